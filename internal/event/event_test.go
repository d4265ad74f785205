package event

import (
	"context"
	"errors"
	"testing"
)

type orderedHandler struct {
	name     string
	priority int
	types    []Type
	log      *[]string
}

func (h orderedHandler) ID() string     { return h.name }
func (h orderedHandler) Handles() []Type { return h.types }
func (h orderedHandler) Priority() int  { return h.priority }
func (h orderedHandler) Handle(ctx context.Context, e Event) error {
	*h.log = append(*h.log, h.name)
	return nil
}

func TestDispatchRunsHandlersInPriorityOrder(t *testing.T) {
	var log []string
	b := NewBus()
	b.Register(orderedHandler{name: "second", priority: 10, types: []Type{EntitiesPulled}, log: &log})
	b.Register(orderedHandler{name: "first", priority: 0, types: []Type{EntitiesPulled}, log: &log})

	if err := b.Dispatch(context.Background(), Event{Type: EntitiesPulled}); err != nil {
		t.Fatalf("Dispatch() = %v, want nil", err)
	}
	if len(log) != 2 || log[0] != "first" || log[1] != "second" {
		t.Errorf("dispatch order = %v, want [first second]", log)
	}
}

func TestDispatchSkipsHandlersNotInterestedInType(t *testing.T) {
	var log []string
	b := NewBus()
	b.Register(orderedHandler{name: "pull-only", priority: 0, types: []Type{EntitiesPulled}, log: &log})

	if err := b.Dispatch(context.Background(), Event{Type: EntitiesDeleted}); err != nil {
		t.Fatalf("Dispatch() = %v, want nil", err)
	}
	if len(log) != 0 {
		t.Errorf("dispatched to uninterested handler: %v", log)
	}
}

type failingHandler struct{ err error }

func (failingHandler) ID() string      { return "failing" }
func (failingHandler) Handles() []Type { return []Type{EntitiesPulled} }
func (failingHandler) Priority() int   { return 0 }
func (h failingHandler) Handle(ctx context.Context, e Event) error { return h.err }

func TestDispatchPropagatesHandlerError(t *testing.T) {
	b := NewBus()
	wantErr := errors.New("sink unavailable")
	b.Register(failingHandler{err: wantErr})

	err := b.Dispatch(context.Background(), Event{Type: EntitiesPulled})
	if !errors.Is(err, wantErr) {
		t.Errorf("Dispatch() = %v, want %v", err, wantErr)
	}
}

func TestPublishDelegatesToDispatch(t *testing.T) {
	var log []string
	b := NewBus()
	b.Register(orderedHandler{name: "only", priority: 0, types: []Type{IdleEntitiesListed}, log: &log})

	if err := b.Publish(context.Background(), Event{Type: IdleEntitiesListed}); err != nil {
		t.Fatalf("Publish() = %v, want nil", err)
	}
	if len(log) != 1 {
		t.Errorf("Publish() did not dispatch to registered handler")
	}
}
