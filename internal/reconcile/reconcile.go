// Package reconcile implements the persisted-flag reconciler of spec
// §4.5: propagating operator-side taint from the outbound ledger into
// the local mirror, and cleaning up outbound rows stranded by an
// out-of-band local delete.
package reconcile

import "context"

// Reconciler runs the three idempotent steps of spec §4.5 inside the
// caller's transaction. Concrete implementations live in
// internal/storage/composite, where both connections are available.
type Reconciler interface {
	// Reconcile deletes outbound taint rows with nothing to act on,
	// deletes stale outbound assignment rows, and inserts local taint
	// rows for outbound taints not yet mirrored locally. All three
	// steps run inside one unit of work's transaction and are each
	// individually idempotent.
	Reconcile(ctx context.Context) error
}

// Noop is a Reconciler that does nothing, used by callers (tests, a
// LIST_IDLE-only read path) that have no outbound ledger to reconcile
// against.
type Noop struct{}

// Reconcile implements Reconciler by doing nothing.
func (Noop) Reconcile(context.Context) error { return nil }
