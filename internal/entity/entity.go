// Package entity implements the per-identifier state machine: the
// twelve (assignment, taint, process) configurations collapsed into six
// named states, and the three pure transition operations — pull,
// delete, process — that the domain services fold over a Link.
package entity

import (
	"github.com/djlink/djlink/internal/identifier"
)

// Process is an in-flight long-running operation attached to an
// identifier. The domain verb "process" (advance one step) and this
// field share a name in the source design; djlink keeps them distinct
// by calling the field ActiveProcess everywhere.
type Process int

const (
	NoProcess Process = iota
	Pull
	Delete
)

func (p Process) String() string {
	switch p {
	case Pull:
		return "PULL"
	case Delete:
		return "DELETE"
	default:
		return "NONE"
	}
}

// State is one of the six named configurations of spec §3.
type State int

const (
	Idle State = iota
	Activated
	Received
	Pulled
	Tainted
	Deprecated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Activated:
		return "Activated"
	case Received:
		return "Received"
	case Pulled:
		return "Pulled"
	case Tainted:
		return "Tainted"
	case Deprecated:
		return "Deprecated"
	default:
		return "Unknown"
	}
}

// Command is one element of the alphabet the gateway executes
// atomically to persist a transition (spec §3).
type Command int

const (
	StartPullProcess Command = iota
	AddToLocal
	FinishPullProcess
	StartDeleteProcess
	RemoveFromLocal
	FinishDeleteProcess
	Deprecate
)

func (c Command) String() string {
	switch c {
	case StartPullProcess:
		return "START_PULL_PROCESS"
	case AddToLocal:
		return "ADD_TO_LOCAL"
	case FinishPullProcess:
		return "FINISH_PULL_PROCESS"
	case StartDeleteProcess:
		return "START_DELETE_PROCESS"
	case RemoveFromLocal:
		return "REMOVE_FROM_LOCAL"
	case FinishDeleteProcess:
		return "FINISH_DELETE_PROCESS"
	case Deprecate:
		return "DEPRECATE"
	default:
		return "UNKNOWN_COMMAND"
	}
}

// Rank gives the total order of §4.1: START_* < ADD_TO_LOCAL <
// REMOVE_FROM_LOCAL < FINISH_* < DEPRECATE. Two commands of equal rank
// are ordered by identifier hash (gateway.Order handles that).
func (c Command) Rank() int {
	switch c {
	case StartPullProcess, StartDeleteProcess:
		return 0
	case AddToLocal:
		return 1
	case RemoveFromLocal:
		return 2
	case FinishPullProcess, FinishDeleteProcess:
		return 3
	case Deprecate:
		return 4
	default:
		return 99
	}
}

// Transition names the (from, to) state change an Update carries.
type Transition struct {
	From State
	To   State
}

// Update is the result of one pure transition: the affected identifier,
// the state change, and the commands the gateway must execute to
// persist it. An empty Commands slice means the operation was a no-op
// for this entity's current state.
type Update struct {
	ID         identifier.ID
	Transition Transition
	Commands   []Command
}

// IsStateChanging reports whether applying this update would move the
// entity to a different state — the condition the fixed-point use-case
// drivers loop on (spec §4.4).
func (u Update) IsStateChanging() bool {
	return len(u.Commands) > 0 && u.Transition.From != u.Transition.To
}

// Entity is the value derived from (identifier, assignment, taint,
// active process) per spec §3. It is immutable; a new Entity replaces
// it whenever any of those four inputs change.
type Entity struct {
	ID            identifier.ID
	Assignment    identifier.Assignment
	Tainted       bool
	ActiveProcess Process
}

// New derives an Entity from its four defining inputs. The resulting
// State is a pure function of them (spec invariant 5).
func New(id identifier.ID, assignment identifier.Assignment, tainted bool, active Process) Entity {
	return Entity{ID: id, Assignment: assignment, Tainted: tainted, ActiveProcess: active}
}

// State derives the named state from the entity's current inputs. It
// panics on a combination that cannot arise from any sequence of pure
// transitions, since that would mean an upstream invariant (spec §3) was
// already violated before this entity was constructed.
func (e Entity) State() State {
	switch {
	case !e.Assignment.Source && !e.Assignment.Outbound && !e.Assignment.Local:
		panic("entity: identifier " + e.ID.String() + " is assigned to no component")
	case e.Assignment.Source && !e.Assignment.Outbound && !e.Assignment.Local:
		return Idle
	case e.Assignment.Source && e.Assignment.Outbound && !e.Assignment.Local:
		if e.ActiveProcess != NoProcess {
			return Activated
		}
		if e.Tainted {
			return Deprecated
		}
		panic("entity: identifier " + e.ID.String() + " is assigned {SOURCE,OUTBOUND} with no process and not tainted")
	case e.Assignment.Source && e.Assignment.Outbound && e.Assignment.Local:
		switch {
		case e.ActiveProcess != NoProcess:
			return Received
		case e.Tainted:
			return Tainted
		default:
			return Pulled
		}
	default:
		panic("entity: identifier " + e.ID.String() + " has an assignment that violates LOCAL ⊆ OUTBOUND ⊆ SOURCE")
	}
}

func noop(id identifier.ID, from State) Update {
	return Update{ID: id, Transition: Transition{From: from, To: from}}
}

// Pull requests to start or advance a pull. Only Idle entities accept a
// start; every other state is a no-op here (in-flight pulls advance via
// Process, not by re-invoking Pull).
func (e Entity) Pull() Update {
	from := e.State()
	if from != Idle {
		return noop(e.ID, from)
	}
	return Update{
		ID:         e.ID,
		Transition: Transition{From: Idle, To: Activated},
		Commands:   []Command{StartPullProcess},
	}
}

// Delete requests to start or advance a delete. Pulled and Tainted
// entities both accept a start (the taint flip biases the eventual
// terminal state toward Deprecated instead of Idle, but the starting
// transition is identical).
func (e Entity) Delete() Update {
	from := e.State()
	if from != Pulled && from != Tainted {
		return noop(e.ID, from)
	}
	return Update{
		ID:         e.ID,
		Transition: Transition{From: from, To: Received},
		Commands:   []Command{StartDeleteProcess},
	}
}

// Process advances a running process one step, per the table in spec
// §4.1. States with no active process, or with a process/taint
// combination not named there, produce an empty update.
func (e Entity) Process() Update {
	from := e.State()
	switch {
	case from == Activated && e.ActiveProcess == Pull && !e.Tainted:
		return Update{ID: e.ID, Transition: Transition{From: Activated, To: Received}, Commands: []Command{AddToLocal}}
	case from == Activated && e.ActiveProcess == Pull && e.Tainted:
		return Update{ID: e.ID, Transition: Transition{From: Activated, To: Deprecated}, Commands: []Command{Deprecate}}
	case from == Activated && e.ActiveProcess == Delete && !e.Tainted:
		return Update{ID: e.ID, Transition: Transition{From: Activated, To: Idle}, Commands: []Command{FinishDeleteProcess}}
	case from == Activated && e.ActiveProcess == Delete && e.Tainted:
		return Update{ID: e.ID, Transition: Transition{From: Activated, To: Deprecated}, Commands: []Command{Deprecate}}
	case from == Received && e.ActiveProcess == Pull && !e.Tainted:
		return Update{ID: e.ID, Transition: Transition{From: Received, To: Pulled}, Commands: []Command{FinishPullProcess}}
	case from == Received && e.ActiveProcess == Pull && e.Tainted:
		return Update{ID: e.ID, Transition: Transition{From: Received, To: Tainted}, Commands: []Command{FinishPullProcess}}
	case from == Received && e.ActiveProcess == Delete:
		// Either taint value advances the same way: the delete process
		// backs the row out of local regardless of a taint flip observed
		// mid-delete (the terminal state is decided by the next Process
		// step from Activated, above).
		return Update{ID: e.ID, Transition: Transition{From: Received, To: Activated}, Commands: []Command{RemoveFromLocal}}
	default:
		return noop(e.ID, from)
	}
}
