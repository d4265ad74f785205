package reconcile

import (
	"context"
	"testing"
)

func TestNoopReconcileReturnsNil(t *testing.T) {
	if err := (Noop{}).Reconcile(context.Background()); err != nil {
		t.Errorf("Noop.Reconcile() = %v, want nil", err)
	}
}
