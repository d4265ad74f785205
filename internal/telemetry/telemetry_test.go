package telemetry

import "testing"

func TestNewBuildsAUsableLogger(t *testing.T) {
	logger, err := New(true)
	if err != nil {
		t.Fatalf("New(true) = %v, want nil error", err)
	}
	logger.Info("smoke test", "key", "value")
}

func TestDiscardNeverPanics(t *testing.T) {
	Discard().Info("dropped", "key", "value")
}
