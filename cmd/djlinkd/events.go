package main

import (
	"context"

	"github.com/djlink/djlink/internal/event"
	"github.com/djlink/djlink/internal/telemetry"
)

// loggingHandler records every use-case result event at info level. It
// is registered first (lowest priority) so a future metrics handler can
// run after it without the two racing to decide log order.
type loggingHandler struct {
	logger telemetry.Logger
}

func (loggingHandler) ID() string { return "djlinkd.logging" }

func (loggingHandler) Handles() []event.Type {
	return []event.Type{event.EntitiesPulled, event.EntitiesDeleted, event.IdleEntitiesListed}
}

func (loggingHandler) Priority() int { return 0 }

func (h loggingHandler) Handle(_ context.Context, e event.Event) error {
	logger := h.logger.WithValues("event", string(e.Type))
	switch e.Type {
	case event.IdleEntitiesListed:
		logger.Info("idle entities listed", "count", e.Identifiers.Len())
	default:
		logger.Info("use case completed", "requested", e.Requested.Len(), "invalid", len(e.Errors))
	}
	for _, inv := range e.Errors {
		logger.Info("invalid operation requested",
			"operation", string(inv.Operation), "identifier", inv.Identifier.String(), "state", inv.State)
	}
	return nil
}
