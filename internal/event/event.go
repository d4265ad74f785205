// Package event defines the domain events a use-case invocation
// publishes (spec §6) and a small priority-ordered dispatcher in the
// shape of the teacher's eventbus.Bus — minus the JetStream transport,
// since these events never leave a single use-case invocation.
package event

import (
	"context"
	"sort"
	"sync"

	"github.com/djlink/djlink/internal/identifier"
)

// Type identifies one of the three result event kinds the core
// produces. InvalidOperationRequested is not a Type of its own: it
// travels inside an event's Errors.
type Type string

const (
	EntitiesPulled     Type = "EntitiesPulled"
	EntitiesDeleted    Type = "EntitiesDeleted"
	IdleEntitiesListed Type = "IdleEntitiesListed"
)

// Operation names the user operation an InvalidOperationRequested
// refers to.
type Operation string

const (
	StartPull   Operation = "START_PULL"
	StartDelete Operation = "START_DELETE"
)

// InvalidOperationRequested is attached to a response event for every
// identifier that could not honor the requested operation — either it
// was unknown to the link, or its state forbids the operation (spec §7).
type InvalidOperationRequested struct {
	Operation  Operation
	Identifier identifier.ID
	State      string
}

// Event is the envelope published by a use case on completion.
type Event struct {
	Type        Type
	Requested   identifier.Set
	Errors      []InvalidOperationRequested
	Identifiers identifier.Set // populated only for IdleEntitiesListed
}

// OutputPort is what a use case publishes its result event to. It is
// the Go analogue of the original source's presenter
// (dj_link/adapters/presenter.py): callers never see a Go error for the
// non-fatal cases in Event.Errors, only for genuine gateway failures.
type OutputPort interface {
	Publish(ctx context.Context, e Event) error
}

// Handler processes events dispatched on a Bus, in the same shape as
// the teacher's eventbus.Handler: lower Priority runs first, Handles
// declares which Types a handler cares about.
type Handler interface {
	ID() string
	Handles() []Type
	Priority() int
	Handle(ctx context.Context, e Event) error
}

// Bus fans a published Event out to every registered Handler interested
// in its Type, in priority order. A Unit of Work buffers events raised
// during its scope and flushes them through a Bus only on commit
// (spec §4.3).
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Register adds h to the bus.
func (b *Bus) Register(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Dispatch delivers e to every matching handler in priority order.
// A handler error is returned immediately — unlike the teacher's
// best-effort hook bus, a domain event handler failing here means a
// subscriber (e.g. a metrics sink) could not record a fact the system
// already committed, which callers should know about.
func (b *Bus) Dispatch(ctx context.Context, e Event) error {
	b.mu.RLock()
	matching := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		for _, t := range h.Handles() {
			if t == e.Type {
				matching = append(matching, h)
				break
			}
		}
	}
	b.mu.RUnlock()

	sort.SliceStable(matching, func(i, j int) bool { return matching[i].Priority() < matching[j].Priority() })

	for _, h := range matching {
		if err := h.Handle(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Publish implements OutputPort by dispatching through the bus.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	return b.Dispatch(ctx, e)
}
