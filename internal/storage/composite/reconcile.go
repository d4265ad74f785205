package composite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/djlink/djlink/internal/identifier"
	"github.com/djlink/djlink/internal/reconcile"
	"github.com/djlink/djlink/internal/storage/dolt"
	"github.com/djlink/djlink/internal/storage/postgres"
)

var _ reconcile.Reconciler = (*Coordinator)(nil)

// Reconcile runs the three idempotent repair steps of spec §4.5. It is
// invoked at the start of every PULL/DELETE use case and by
// cmd/djlinkd's reconcile subcommand. It does not interact with the
// circuit breaker in Apply, which half-opens on its own timeout.
func (c *Coordinator) Reconcile(ctx context.Context) error {
	if err := c.reconcileOutbound(ctx); err != nil {
		return fmt.Errorf("composite: reconcile outbound: %w", err)
	}
	if err := c.reconcileLocalTaint(ctx); err != nil {
		return fmt.Errorf("composite: reconcile local taint: %w", err)
	}
	return nil
}

// reconcileOutbound runs steps 1 and 2 against the source connection:
// drop taint rows whose identifier is no longer in the local mirror,
// then drop outbound assignments no longer in the local mirror and
// with no active process still in flight for them (spec §4.5). Both
// steps repair the scenario of a local row deleted out-of-band while
// its outbound/taint rows survive, so they cross-check against the
// local set read from the other connection, not against each other.
func (c *Coordinator) reconcileOutbound(ctx context.Context) error {
	local, err := c.readLocal(ctx)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, c.Source.Pool(), func(tx pgx.Tx) error {
		outbound, err := postgres.ReadOutbound(ctx, tx)
		if err != nil {
			return err
		}
		flagged, err := postgres.ReadFlagged(ctx, tx)
		if err != nil {
			return err
		}
		activeProcesses, err := postgres.ReadActiveProcesses(ctx, tx)
		if err != nil {
			return err
		}

		for _, id := range flagged.Sorted() {
			if !local.Contains(id) {
				if err := postgres.RemoveFlagged(ctx, tx, id); err != nil {
					return err
				}
			}
		}
		for _, id := range outbound.Sorted() {
			if _, active := activeProcesses[id]; active {
				continue
			}
			if !local.Contains(id) {
				if err := postgres.RemoveOutbound(ctx, tx, id); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// readLocal reads the local mirror's identifier set in its own
// read-only transaction, for reconcileOutbound's cross-connection
// membership tests.
func (c *Coordinator) readLocal(ctx context.Context) (identifier.Set, error) {
	var out identifier.Set
	err := c.Local.RunInTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = dolt.ReadLocal(ctx, tx)
		return err
	})
	return out, err
}

// reconcileLocalTaint runs step 3: any identifier tainted on the
// outbound ledger but still present in the local mirror without its
// local taint row set gets that row set, so a reader of the local
// mirror alone can see the taint without crossing connections.
func (c *Coordinator) reconcileLocalTaint(ctx context.Context) error {
	flagged, err := c.readOutboundFlagged(ctx)
	if err != nil {
		return err
	}
	if flagged.Len() == 0 {
		return nil
	}

	return c.Local.RunInTransaction(ctx, func(tx *sql.Tx) error {
		local, err := dolt.ReadLocal(ctx, tx)
		if err != nil {
			return err
		}
		localFlagged, err := dolt.ReadLocalFlagged(ctx, tx)
		if err != nil {
			return err
		}
		for _, id := range flagged.Sorted() {
			if local.Contains(id) && !localFlagged.Contains(id) {
				if err := dolt.SetLocalFlagged(ctx, tx, id); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (c *Coordinator) readOutboundFlagged(ctx context.Context) (identifier.Set, error) {
	var out identifier.Set
	err := pgx.BeginTxFunc(ctx, c.Source.Pool(), pgx.TxOptions{AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		var err error
		out, err = postgres.ReadFlagged(ctx, tx)
		return err
	})
	return out, err
}
