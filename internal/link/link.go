// Package link implements the aggregate root: an immutable snapshot of
// every entity derivable from the current assignments, taints, and
// active processes. A Link is never mutated — a new one replaces it
// after every applied batch (spec §4.3, §5).
package link

import (
	"github.com/djlink/djlink/internal/entity"
	"github.com/djlink/djlink/internal/identifier"
)

// Link is the joint projection of the source table, its outbound
// ledger, and its local mirror, over the union of every identifier
// present in any of the three. It is indexable by component.
type Link struct {
	entities map[identifier.ID]entity.Entity
}

// Snapshot is the raw data a LinkGateway reads in one consistent read
// (spec §4.3, create_link). Flagged and ActiveProcesses are keyed by
// identifier; an identifier absent from ActiveProcesses has no active
// process.
type Snapshot struct {
	Source         identifier.Set
	Outbound       identifier.Set
	Local          identifier.Set
	Flagged        identifier.Set
	ActiveProcesses map[identifier.ID]entity.Process
}

// New builds a Link from a Snapshot. Every identifier in any of
// Source, Outbound, or Local is given an Entity; identifiers appearing
// only in Flagged or ActiveProcesses but in none of the three
// assignment sets are dropped, since such an identifier would have
// assignment {} — not a configuration spec §3 names.
func New(snap Snapshot) Link {
	union := snap.Source.Union(snap.Outbound).Union(snap.Local)
	entities := make(map[identifier.ID]entity.Entity, union.Len())
	for _, id := range union.Sorted() {
		assignment := identifier.Assignment{
			Source:   snap.Source.Contains(id),
			Outbound: snap.Outbound.Contains(id),
			Local:    snap.Local.Contains(id),
		}
		proc := entity.NoProcess
		if snap.ActiveProcesses != nil {
			proc = snap.ActiveProcesses[id]
		}
		entities[id] = entity.New(id, assignment, snap.Flagged.Contains(id), proc)
	}
	return Link{entities: entities}
}

// Get returns the entity for id and whether it is present in this link.
func (l Link) Get(id identifier.ID) (entity.Entity, bool) {
	e, ok := l.entities[id]
	return e, ok
}

// All returns every entity in the link, ordered deterministically by
// identifier hash.
func (l Link) All() []entity.Entity {
	ids := make(identifier.Set, len(l.entities))
	for id := range l.entities {
		ids.Add(id)
	}
	out := make([]entity.Entity, 0, len(l.entities))
	for _, id := range ids.Sorted() {
		out = append(out, l.entities[id])
	}
	return out
}

// Component returns every entity assigned to c, in deterministic order.
func (l Link) Component(c identifier.Component) []entity.Entity {
	all := l.All()
	out := make([]entity.Entity, 0, len(all))
	for _, e := range all {
		if e.Assignment.Has(c) {
			out = append(out, e)
		}
	}
	return out
}

// InState returns every entity currently in state s, in deterministic order.
func (l Link) InState(s entity.State) []entity.Entity {
	all := l.All()
	out := make([]entity.Entity, 0, len(all))
	for _, e := range all {
		if e.State() == s {
			out = append(out, e)
		}
	}
	return out
}

// CheckInvariants validates spec §3's invariants 1-3 against this
// snapshot. It never runs implicitly — only the tests call it, since
// per-entity State() already panics on a corrupt combination (invariant
// 5 is enforced structurally).
func (l Link) CheckInvariants() error {
	for _, e := range l.All() {
		if e.Assignment.Local && !e.Assignment.Outbound {
			return invariantError(e.ID, "LOCAL without OUTBOUND")
		}
		if e.Assignment.Outbound && !e.Assignment.Source {
			return invariantError(e.ID, "OUTBOUND without SOURCE")
		}
		if e.ActiveProcess != entity.NoProcess && !(e.Assignment.Source && e.Assignment.Outbound) {
			return invariantError(e.ID, "active process without {SOURCE,OUTBOUND}")
		}
		switch e.State() {
		case entity.Tainted, entity.Deprecated:
			if !e.Tainted {
				return invariantError(e.ID, "Tainted/Deprecated state without taint flag")
			}
		case entity.Idle, entity.Pulled:
			if e.Tainted {
				return invariantError(e.ID, "Idle/Pulled state with taint flag set")
			}
		}
	}
	return nil
}

type invariantErr struct {
	id     identifier.ID
	detail string
}

func invariantError(id identifier.ID, detail string) error {
	return &invariantErr{id: id, detail: detail}
}

func (e *invariantErr) Error() string {
	return "link: invariant violated for " + e.id.String() + ": " + e.detail
}
