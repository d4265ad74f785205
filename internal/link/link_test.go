package link

import (
	"testing"

	"github.com/djlink/djlink/internal/entity"
	"github.com/djlink/djlink/internal/identifier"
)

func id(s string) identifier.ID { return identifier.New(s) }

func TestNewDropsIdentifiersOutsideTheThreeSets(t *testing.T) {
	snap := Snapshot{
		Source:  identifier.NewSet(id("1")),
		Flagged: identifier.NewSet(id("1"), id("ghost")),
	}
	l := New(snap)
	if _, ok := l.Get(id("ghost")); ok {
		t.Error("Get(ghost) found an entity not present in Source/Outbound/Local")
	}
	if _, ok := l.Get(id("1")); !ok {
		t.Error("Get(1) missing expected entity")
	}
}

func TestComponentFiltersByAssignment(t *testing.T) {
	snap := Snapshot{
		Source:   identifier.NewSet(id("1"), id("2")),
		Outbound: identifier.NewSet(id("1")),
	}
	l := New(snap)
	source := l.Component(identifier.Source)
	outbound := l.Component(identifier.Outbound)
	if len(source) != 2 {
		t.Errorf("Component(Source) = %d entities, want 2", len(source))
	}
	if len(outbound) != 1 || outbound[0].ID != id("1") {
		t.Errorf("Component(Outbound) = %v, want [1]", outbound)
	}
}

func TestInStateFiltersByState(t *testing.T) {
	snap := Snapshot{
		Source:          identifier.NewSet(id("1"), id("2")),
		Outbound:        identifier.NewSet(id("1")),
		ActiveProcesses: map[identifier.ID]entity.Process{id("1"): entity.Pull},
	}
	l := New(snap)
	idle := l.InState(entity.Idle)
	activated := l.InState(entity.Activated)
	if len(idle) != 1 || idle[0].ID != id("2") {
		t.Errorf("InState(Idle) = %v, want [2]", idle)
	}
	if len(activated) != 1 || activated[0].ID != id("1") {
		t.Errorf("InState(Activated) = %v, want [1]", activated)
	}
}

func TestCheckInvariantsCatchesLocalWithoutOutbound(t *testing.T) {
	snap := Snapshot{
		Source: identifier.NewSet(id("1")),
		Local:  identifier.NewSet(id("1")),
	}
	l := New(snap)
	if err := l.CheckInvariants(); err == nil {
		t.Error("CheckInvariants() = nil, want error for LOCAL without OUTBOUND")
	}
}

func TestCheckInvariantsAcceptsWellFormedLink(t *testing.T) {
	snap := Snapshot{
		Source:   identifier.NewSet(id("1"), id("2")),
		Outbound: identifier.NewSet(id("1")),
		Local:    identifier.NewSet(id("1")),
	}
	l := New(snap)
	if err := l.CheckInvariants(); err != nil {
		t.Errorf("CheckInvariants() = %v, want nil", err)
	}
}

func TestAllIsDeterministicallyOrdered(t *testing.T) {
	snap := Snapshot{Source: identifier.NewSet(id("a"), id("b"), id("c"))}
	l := New(snap)
	first := l.All()
	for i := 0; i < 5; i++ {
		got := l.All()
		for j := range got {
			if got[j].ID != first[j].ID {
				t.Fatalf("All() order changed between calls")
			}
		}
	}
}
