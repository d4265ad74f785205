// Package telemetry wires structured logging for the rest of the
// module behind the logr facade, the same way jordigilh-kubernaut's
// test harness constructs its logger (zapr.NewLogger(zapLogger)) — the
// production code here builds the zap.Logger itself instead of relying
// on a test fixture.
package telemetry

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// Logger is the logging facade every package in this module accepts.
// It carries structured key/value pairs; composite.Coordinator.Apply
// tags its log lines with a per-call correlation_id. No otel span
// carries that ID.
type Logger = logr.Logger

// New builds a Logger backed by zap. development selects zap's
// console encoder and debug level, matching zap.NewDevelopment; the
// production path uses zap.NewProduction's JSON encoder.
func New(development bool) (Logger, error) {
	var zl *zap.Logger
	var err error
	if development {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		return logr.Discard(), fmt.Errorf("telemetry: building zap logger: %w", err)
	}
	return zapr.NewLogger(zl), nil
}

// Discard returns a Logger that drops everything, for tests and for
// callers that have not wired a real sink.
func Discard() Logger {
	return logr.Discard()
}
