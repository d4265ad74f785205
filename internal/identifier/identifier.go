// Package identifier defines the opaque primary-key value that names a
// linked entity, and the fixed set of components it can be assigned to.
package identifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/hashstructure/v2"
)

// ID is the primary-key tuple of a linked row, as it exists in the
// source table. Equality is structural: two IDs are the same entity iff
// their Parts are equal element-wise. ID is never mutated once created.
// The parts are stored joined by the ASCII unit separator (0x1F), which
// keeps ID a comparable value usable as a map key; a part must not
// itself contain that byte.
type ID struct {
	key string
}

const partSep = "\x1f"

// New builds an ID from its primary-key parts, in column order. Parts
// must be non-empty; at least one part is required.
func New(parts ...string) ID {
	return ID{key: strings.Join(parts, partSep)}
}

// Parts returns the primary-key parts in column order.
func (id ID) Parts() []string {
	return strings.Split(id.key, partSep)
}

// String renders the ID for logs and error messages.
func (id ID) String() string {
	return strings.ReplaceAll(id.key, partSep, ":")
}

// Hash returns a structural hash of the ID, used only to break ties
// deterministically when ordering updates within a batch (spec §4.1).
// It is never used for equality: Go's == on ID already gives the
// structural comparison the domain requires.
func Hash(id ID) uint64 {
	parts := id.Parts()
	h, err := hashstructure.Hash(parts, hashstructure.FormatV2, nil)
	if err != nil {
		// parts is a []string; hashstructure cannot fail on it.
		panic(fmt.Sprintf("identifier: hashing %v: %v", parts, err))
	}
	return h
}

// Component is one of the three places an identifier can be assigned.
type Component int

const (
	Source Component = iota
	Outbound
	Local
)

func (c Component) String() string {
	switch c {
	case Source:
		return "SOURCE"
	case Outbound:
		return "OUTBOUND"
	case Local:
		return "LOCAL"
	default:
		return fmt.Sprintf("Component(%d)", int(c))
	}
}

// Set is an unordered collection of identifiers with O(1) membership
// tests. The zero value (nil) reads as an empty set, but Add panics on
// it; build a set to add to with NewSet.
type Set map[ID]struct{}

// NewSet builds a Set from the given identifiers.
func NewSet(ids ...ID) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether id is a member of s.
func (s Set) Contains(id ID) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into s.
func (s Set) Add(id ID) {
	s[id] = struct{}{}
}

// Sorted returns the set's members ordered by Hash, then lexically by
// String as a tie-break for hash collisions — the deterministic order
// spec §4.1 requires for applying updates within a command kind.
func (s Set) Sorted() []ID {
	out := make([]ID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		hi, hj := Hash(out[i]), Hash(out[j])
		if hi != hj {
			return hi < hj
		}
		return out[i].String() < out[j].String()
	})
	return out
}

// Len returns the number of members in s.
func (s Set) Len() int {
	return len(s)
}

// Union returns a new set containing every identifier in s or other.
func (s Set) Union(other Set) Set {
	out := make(Set, s.Len()+other.Len())
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Assignment records, for one identifier, which components it is
// currently assigned to. It is a snapshot value — assignments are
// replaced wholesale when the Link is rebuilt, never mutated in place.
type Assignment struct {
	Source   bool
	Outbound bool
	Local    bool
}

// Has reports whether the assignment includes c.
func (a Assignment) Has(c Component) bool {
	switch c {
	case Source:
		return a.Source
	case Outbound:
		return a.Outbound
	case Local:
		return a.Local
	default:
		return false
	}
}
