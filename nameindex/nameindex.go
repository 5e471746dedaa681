// Package nameindex provides the ordered name index used for every named
// metadata collection in a gridgo dataset: groups, variables, dimensions,
// user types and attributes.
//
// An Index preserves strict append order, which is what assigns each object
// its dense ordinal id, and keeps a name-to-position map beside the sequence
// for O(1) lookup. The two structures are deliberately decoupled: removals
// compact the sequence without touching the map or the stored ordinals, and
// the caller that performed the structural edit owns renumbering the
// survivors and calling Rebuild. Keeping that contract explicit makes the
// stale window impossible to miss at call sites.
package nameindex

import (
	"errors"
	"fmt"
)

// Sort tags the kind of metadata object held by an index entry.
type Sort uint8

const (
	SortNone Sort = iota
	SortGroup
	SortVariable
	SortDimension
	SortAttribute
	SortType
)

// String returns the string representation of the Sort.
func (s Sort) String() string {
	switch s {
	case SortGroup:
		return "group"
	case SortVariable:
		return "variable"
	case SortDimension:
		return "dimension"
	case SortAttribute:
		return "attribute"
	case SortType:
		return "type"
	default:
		return "none"
	}
}

// Header is the identity shared by every indexable metadata object.
// ID is the dense ordinal within the owning container; the index never
// assigns or repairs it — call sites do, at append and after removals.
type Header struct {
	Sort Sort
	ID   int
	Name string
}

// Hdr returns the header itself so that embedding types satisfy Object.
func (h *Header) Hdr() *Header { return h }

// Object is anything an Index can hold.
type Object interface {
	Hdr() *Header
}

// ErrCorrupt is returned when the sequence and the name map disagree.
//
// It signals an internal invariant violation: either a structural edit was
// made without Rebuild, or two live objects share a name.
var ErrCorrupt = errors.New("name index corrupt")

// Index is an append-ordered object sequence with a name-to-position map.
//
// The zero value is usable; New pre-sizes the internals.
type Index struct {
	list   []Object
	byName map[string]int
}

// New returns an Index with capacity hints applied.
func New(hint int) *Index {
	if hint < 0 {
		hint = 0
	}
	return &Index{
		list:   make([]Object, 0, hint),
		byName: make(map[string]int, hint),
	}
}

// Len returns the number of objects in the index.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.list)
}

// Lookup returns the object with the given name.
func (ix *Index) Lookup(name string) (Object, bool) {
	if ix == nil || len(ix.list) == 0 {
		return nil, false
	}
	if ix.byName == nil {
		// Zero-value index: degrade to a scan.
		for _, obj := range ix.list {
			if obj != nil && obj.Hdr().Name == name {
				return obj, true
			}
		}
		return nil, false
	}
	i, ok := ix.byName[name]
	if !ok {
		return nil, false
	}
	return ix.list[i], true
}

// Position returns the current position of the named object, or -1.
func (ix *Index) Position(name string) int {
	if ix == nil {
		return -1
	}
	if ix.byName == nil {
		for i, obj := range ix.list {
			if obj != nil && obj.Hdr().Name == name {
				return i
			}
		}
		return -1
	}
	i, ok := ix.byName[name]
	if !ok {
		return -1
	}
	return i
}

// At returns the object at position i.
func (ix *Index) At(i int) (Object, bool) {
	if ix == nil || i < 0 || i >= len(ix.list) {
		return nil, false
	}
	return ix.list[i], true
}

// Add appends obj and indexes its name, returning the position. At append
// time the position equals the ordinal id the caller should have assigned.
// Name uniqueness is the caller's contract; Add does not check it.
func (ix *Index) Add(obj Object) int {
	i := len(ix.list)
	ix.list = append(ix.list, obj)
	if ix.byName == nil {
		ix.byName = make(map[string]int)
	}
	ix.byName[obj.Hdr().Name] = i
	return i
}

// RemoveAt removes and returns the object at position i, compacting the
// sequence. It does NOT renumber ordinal ids and does NOT touch the name
// map: every position at or after i is stale until the caller renumbers and
// calls Rebuild.
func (ix *Index) RemoveAt(i int) (Object, bool) {
	if ix == nil || i < 0 || i >= len(ix.list) {
		return nil, false
	}
	obj := ix.list[i]
	copy(ix.list[i:], ix.list[i+1:])
	ix.list[len(ix.list)-1] = nil
	ix.list = ix.list[:len(ix.list)-1]
	return obj, true
}

// Rebuild discards the name map and regenerates it from the sequence.
// Required after RemoveAt and after any rename of a held object.
func (ix *Index) Rebuild() error {
	if ix == nil {
		return nil
	}
	m := make(map[string]int, len(ix.list))
	for i, obj := range ix.list {
		if obj == nil {
			continue
		}
		name := obj.Hdr().Name
		if prev, dup := m[name]; dup {
			return fmt.Errorf("%w: duplicate name %q at positions %d and %d", ErrCorrupt, name, prev, i)
		}
		m[name] = i
	}
	ix.byName = m
	return nil
}

// Find returns the position of exactly this object (pointer identity), or
// -1. Unlike Lookup it survives a stale map, at linear cost.
func (ix *Index) Find(obj Object) int {
	if ix == nil {
		return -1
	}
	for i, o := range ix.list {
		if o == obj {
			return i
		}
	}
	return -1
}

// Snapshot returns a copy of the sequence for iteration that stays safe
// while the index is mutated.
func (ix *Index) Snapshot() []Object {
	if ix == nil {
		return nil
	}
	out := make([]Object, len(ix.list))
	copy(out, ix.list)
	return out
}

// Verify checks sequence/map congruence in both directions. It is a
// diagnostic: production paths never call it, tests and the inspector do.
func (ix *Index) Verify() error {
	if ix == nil {
		return nil
	}
	if ix.byName == nil {
		if len(ix.list) == 0 {
			return nil
		}
		return fmt.Errorf("%w: %d objects but no name map", ErrCorrupt, len(ix.list))
	}
	if len(ix.byName) != len(ix.list) {
		return fmt.Errorf("%w: map has %d entries, sequence has %d", ErrCorrupt, len(ix.byName), len(ix.list))
	}
	for i, obj := range ix.list {
		if obj == nil {
			return fmt.Errorf("%w: nil object at position %d", ErrCorrupt, i)
		}
		name := obj.Hdr().Name
		j, ok := ix.byName[name]
		if !ok {
			return fmt.Errorf("%w: %q at position %d missing from map", ErrCorrupt, name, i)
		}
		if j != i {
			return fmt.Errorf("%w: %q maps to %d but sits at %d", ErrCorrupt, name, j, i)
		}
	}
	for name, i := range ix.byName {
		if i < 0 || i >= len(ix.list) {
			return fmt.Errorf("%w: %q maps to out-of-range position %d", ErrCorrupt, name, i)
		}
		obj := ix.list[i]
		if obj == nil || obj.Hdr().Name != name {
			return fmt.Errorf("%w: map entry %q does not match object at %d", ErrCorrupt, name, i)
		}
	}
	return nil
}
