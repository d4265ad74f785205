// Package domain implements the pure fold functions that turn a user
// operation (pull, delete, process) plus a Link snapshot into a batch
// of Updates (spec §4.2). Every function here is pure: it never blocks,
// never fails, and never touches a gateway.
package domain

import (
	"github.com/djlink/djlink/internal/entity"
	"github.com/djlink/djlink/internal/identifier"
	"github.com/djlink/djlink/internal/link"
)

// Pull folds entity.Pull over the requested identifiers, originating a
// start-pull transition for each one currently Idle. Identifiers absent
// from the link are skipped here — the use case reports them as
// InvalidOperationRequested. An in-flight pull never advances through
// this path: only domain.Process does that.
func Pull(l link.Link, requested identifier.Set) []entity.Update {
	return fold(l, requested, func(e entity.Entity) entity.Update { return e.Pull() })
}

// Delete is the symmetric counterpart of Pull.
func Delete(l link.Link, requested identifier.Set) []entity.Update {
	return fold(l, requested, func(e entity.Entity) entity.Update { return e.Delete() })
}

// Process returns one Update per entity with a non-none active process
// whose current state permits a non-empty Process() result. Unlike Pull
// and Delete, Process never originates new work — it only drains
// processes already running, over every entity in the link, not just a
// requested subset.
func Process(l link.Link) []entity.Update {
	var out []entity.Update
	for _, e := range l.All() {
		if e.ActiveProcess == entity.NoProcess {
			continue
		}
		if u := e.Process(); u.IsStateChanging() {
			out = append(out, u)
		}
	}
	return out
}

// fold applies op to every requested identifier present in the link.
// Identifiers absent from the link are skipped; op itself decides
// whether a present identifier's current state accepts the operation,
// returning a no-op update when it doesn't.
func fold(l link.Link, requested identifier.Set, op func(entity.Entity) entity.Update) []entity.Update {
	var out []entity.Update
	for _, id := range requested.Sorted() {
		e, ok := l.Get(id)
		if !ok {
			continue
		}
		if u := op(e); u.IsStateChanging() {
			out = append(out, u)
		}
	}
	return out
}

// Unassignable reports which of the requested identifiers are not
// present anywhere in the link. The use-case layer reports these as
// InvalidOperationRequested (spec §7, "unknown identifier").
func Unassignable(l link.Link, requested identifier.Set) []identifier.ID {
	var out []identifier.ID
	for _, id := range requested.Sorted() {
		if _, ok := l.Get(id); !ok {
			out = append(out, id)
		}
	}
	return out
}
