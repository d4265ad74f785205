// Package usecase implements the four use-case services of spec §4.4:
// PULL, DELETE, LIST_IDLE, and PROCESS, each run inside a
// gateway.UnitOfWork. PULL, DELETE and PROCESS are fixed-point drivers,
// looping apply/create_link until no state-changing update remains;
// PULL, DELETE and LIST_IDLE publish a result event.
package usecase

import (
	"context"
	"fmt"

	"github.com/djlink/djlink/internal/domain"
	"github.com/djlink/djlink/internal/entity"
	"github.com/djlink/djlink/internal/event"
	"github.com/djlink/djlink/internal/gateway"
	"github.com/djlink/djlink/internal/identifier"
	"github.com/djlink/djlink/internal/link"
	"github.com/djlink/djlink/internal/reconcile"
)

// Service drives the four use cases against one gateway. Reconciler may
// be reconcile.Noop{} when no outbound ledger is wired (e.g. a
// local-only test double).
type Service struct {
	Gateway    gateway.LinkGateway
	Bus        *event.Bus
	Reconciler reconcile.Reconciler
}

// New constructs a Service.
func New(gw gateway.LinkGateway, bus *event.Bus, rec reconcile.Reconciler) *Service {
	return &Service{Gateway: gw, Bus: bus, Reconciler: rec}
}

// Pull implements the PULL use case (spec §4.4): reconcile, originate
// or advance pulls for requested, then drain via Process until
// quiescent, then publish EntitiesPulled.
func (s *Service) Pull(ctx context.Context, requested identifier.Set) error {
	return s.run(ctx, requested, domain.Pull, event.EntitiesPulled, event.StartPull)
}

// Delete implements the DELETE use case, symmetric to Pull.
func (s *Service) Delete(ctx context.Context, requested identifier.Set) error {
	return s.run(ctx, requested, domain.Delete, event.EntitiesDeleted, event.StartDelete)
}

type originate func(l link.Link, requested identifier.Set) []entity.Update

func (s *Service) run(ctx context.Context, requested identifier.Set, origin originate, evtType event.Type, op event.Operation) error {
	uow := gateway.New(s.Gateway, s.Bus)
	return uow.Run(ctx, func(ctx context.Context, uow *gateway.UnitOfWork) error {
		if err := s.Reconciler.Reconcile(ctx); err != nil {
			return fmt.Errorf("usecase: reconcile: %w", err)
		}

		l, err := s.Gateway.CreateLink(ctx)
		if err != nil {
			return fmt.Errorf("usecase: create link: %w", err)
		}

		unknown := domain.Unassignable(l, requested)
		updates := origin(l, requested)
		originated := stateChangingIDs(updates)

		for hasStateChange(updates) {
			if err := s.Gateway.Apply(ctx, updates); err != nil {
				return fmt.Errorf("usecase: apply: %w", err)
			}
			l, err = s.Gateway.CreateLink(ctx)
			if err != nil {
				return fmt.Errorf("usecase: create link: %w", err)
			}
			updates = domain.Process(l)
		}

		errs := invalidOperations(l, requested, unknown, originated, op)
		uow.Raise(event.Event{Type: evtType, Requested: requested, Errors: errs})
		return nil
	})
}

// invalidOperations reports, per spec §7, every requested identifier
// that is unknown to the link, that ended up Deprecated instead of
// completing the requested operation, or whose own originating update
// was empty — i.e. the operation was nonsensical for the state the
// identifier was in when requested (spec §8 S6), and it never actually
// started. An identifier whose originating update did change state is
// not re-flagged just because it is still mid-process or has already
// reached the operation's terminal state by the time this runs.
func invalidOperations(l link.Link, requested identifier.Set, unknown []identifier.ID, originated identifier.Set, op event.Operation) []event.InvalidOperationRequested {
	unknownSet := identifier.NewSet(unknown...)
	var out []event.InvalidOperationRequested
	for _, id := range requested.Sorted() {
		if unknownSet.Contains(id) {
			out = append(out, event.InvalidOperationRequested{Operation: op, Identifier: id, State: "unassigned"})
			continue
		}
		e, ok := l.Get(id)
		if !ok {
			out = append(out, event.InvalidOperationRequested{Operation: op, Identifier: id, State: "unassigned"})
			continue
		}
		switch {
		case e.State() == entity.Deprecated:
			out = append(out, event.InvalidOperationRequested{Operation: op, Identifier: id, State: e.State().String()})
		case !originated.Contains(id):
			out = append(out, event.InvalidOperationRequested{Operation: op, Identifier: id, State: e.State().String()})
		}
	}
	return out
}

// stateChangingIDs returns the set of identifiers whose update in
// updates actually changed state, for distinguishing a genuinely
// originated transition from a no-op recorded against the same
// identifier.
func stateChangingIDs(updates []entity.Update) identifier.Set {
	out := identifier.NewSet()
	for _, u := range updates {
		if u.IsStateChanging() {
			out.Add(u.ID)
		}
	}
	return out
}

// ListIdle implements LIST_IDLE: a read-only snapshot reporting the
// identifiers currently Idle.
func (s *Service) ListIdle(ctx context.Context) error {
	uow := gateway.New(s.Gateway, s.Bus)
	return uow.Run(ctx, func(ctx context.Context, uow *gateway.UnitOfWork) error {
		ids, err := s.Gateway.ListIdleEntities(ctx)
		if err != nil {
			return fmt.Errorf("usecase: list idle: %w", err)
		}
		uow.Raise(event.Event{Type: event.IdleEntitiesListed, Identifiers: identifier.NewSet(ids...)})
		return nil
	})
}

// Process implements PROCESS: a pure drain that advances any in-flight
// processes without originating new ones. It raises no result event of
// its own. Pull and Delete run the same drain loop inline rather than
// calling this method; it is exposed for operator-triggered draining
// (cmd/djlinkd's process subcommand, spec §9's resolution of the
// PROCESS open question).
func (s *Service) Process(ctx context.Context) error {
	uow := gateway.New(s.Gateway, s.Bus)
	return uow.Run(ctx, func(ctx context.Context, _ *gateway.UnitOfWork) error {
		l, err := s.Gateway.CreateLink(ctx)
		if err != nil {
			return fmt.Errorf("usecase: create link: %w", err)
		}
		updates := domain.Process(l)
		for hasStateChange(updates) {
			if err := s.Gateway.Apply(ctx, updates); err != nil {
				return fmt.Errorf("usecase: apply: %w", err)
			}
			l, err = s.Gateway.CreateLink(ctx)
			if err != nil {
				return fmt.Errorf("usecase: create link: %w", err)
			}
			updates = domain.Process(l)
		}
		return nil
	})
}

func hasStateChange(updates []entity.Update) bool {
	for _, u := range updates {
		if u.IsStateChanging() {
			return true
		}
	}
	return false
}
