// Package gateway defines the LinkGateway port (spec §4.3) and the
// UnitOfWork that scopes a cross-connection transaction around it. The
// concrete two-connection implementation lives in internal/storage;
// this package only knows the contract.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/djlink/djlink/internal/entity"
	"github.com/djlink/djlink/internal/event"
	"github.com/djlink/djlink/internal/identifier"
	"github.com/djlink/djlink/internal/link"
)

// ErrIO classifies a gateway failure as a connection/constraint/abort
// failure per spec §7: it fails the whole use-case invocation and the
// unit of work rolls back both connections.
var ErrIO = errors.New("gateway: I/O failure")

// ErrPartialCommit classifies the fatal case where the second-phase
// commit of a two-connection apply fails after the first has already
// committed (spec §5, §7). It is never retried automatically; the next
// reconciliation pass must restore spec §3's invariants.
var ErrPartialCommit = errors.New("gateway: partial commit — invariants may be violated until reconciliation")

// LinkGateway is the transactional boundary the domain and use-case
// layers are built against. Implementations own both the source-host
// and local-host connections and apply commands to both atomically.
type LinkGateway interface {
	// CreateLink reads a consistent snapshot of SOURCE, OUTBOUND (with
	// taint and active-process flags), and LOCAL, and returns the Link
	// derived from it.
	CreateLink(ctx context.Context) (link.Link, error)

	// Apply executes every command in every update inside one
	// transaction spanning both connections, in the order Order
	// produces. It returns ErrPartialCommit if the local-side commit
	// succeeded but the outbound-side commit failed.
	Apply(ctx context.Context, updates []entity.Update) error

	// ListIdleEntities returns the identifiers currently in the Idle
	// state, for the LIST_IDLE use case.
	ListIdleEntities(ctx context.Context) ([]identifier.ID, error)
}

// Ordered flattens a batch of updates into the single command sequence
// Apply must execute, honoring spec §4.1's total order: command rank
// first, then identifier hash within a rank.
type Ordered struct {
	ID      identifier.ID
	Command entity.Command
}

// Order returns updates' commands in application order.
func Order(updates []entity.Update) []Ordered {
	out := make([]Ordered, 0, len(updates))
	for _, u := range updates {
		for _, c := range u.Commands {
			out = append(out, Ordered{ID: u.ID, Command: c})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Command.Rank(), out[j].Command.Rank()
		if ri != rj {
			return ri < rj
		}
		return identifier.Hash(out[i].ID) < identifier.Hash(out[j].ID)
	})
	return out
}

// UnitOfWork wraps a LinkGateway with scoped transactional semantics
// (spec §4.3): entering it is implicit in Run; events raised during the
// scope are buffered and flushed to the Bus only once the wrapped
// function returns without error.
type UnitOfWork struct {
	Gateway LinkGateway
	Bus     *event.Bus

	pending []event.Event
}

// New constructs a UnitOfWork over gw, publishing through bus on commit.
func New(gw LinkGateway, bus *event.Bus) *UnitOfWork {
	return &UnitOfWork{Gateway: gw, Bus: bus}
}

// Raise buffers e for publication when Commit succeeds. It is not
// flushed if the scope ends in Rollback or an error.
func (u *UnitOfWork) Raise(e event.Event) {
	u.pending = append(u.pending, e)
}

// Commit flushes every buffered event to the bus, in the order raised.
// It does not touch the underlying gateway connections — those are
// committed by Apply as each batch lands (spec §5: "effects are serial
// and visible to the next create_link"); Commit's job is only the
// event-buffering half of the unit of work.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	for _, e := range u.pending {
		if err := u.Bus.Publish(ctx, e); err != nil {
			return fmt.Errorf("unit of work: publishing %s: %w", e.Type, err)
		}
	}
	u.pending = nil
	return nil
}

// Rollback discards any buffered events without publishing them.
func (u *UnitOfWork) Rollback() {
	u.pending = nil
}

// Run executes fn with this unit of work, committing on success and
// discarding buffered events on failure. The underlying two-connection
// transactions are managed per-Apply-call by the gateway implementation,
// not by Run — see spec §5's ordering guarantees.
func (u *UnitOfWork) Run(ctx context.Context, fn func(ctx context.Context, uow *UnitOfWork) error) error {
	if err := fn(ctx, u); err != nil {
		u.Rollback()
		return err
	}
	return u.Commit(ctx)
}
