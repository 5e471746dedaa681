package gridgo

import (
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/gridgo/dtype"
	"github.com/hupe1980/gridgo/nameindex"
)

// MaxTransferCount is the largest element count a single attribute transfer
// accepts, matching the protocol's 32-bit count field.
const MaxTransferCount = math.MaxInt32

// payloadKind selects the active representation of a payload.
type payloadKind uint8

const (
	payloadNone payloadKind = iota
	payloadFlat
	payloadVLen
	payloadString
)

// payload holds attribute data in exactly one of three representations,
// chosen by the class of the stored type. The constructors keep kind and
// content congruent, and release drops everything at once, so a
// representation switch can never leave two variants live.
type payload struct {
	kind    payloadKind
	flat    []byte
	vlens   [][]byte
	strings []*string
}

func flatPayload(b []byte) payload {
	return payload{kind: payloadFlat, flat: b}
}

func vlenPayload(v [][]byte) payload {
	return payload{kind: payloadVLen, vlens: v}
}

func stringPayload(s []*string) payload {
	return payload{kind: payloadString, strings: s}
}

func (p *payload) release() {
	*p = payload{}
}

// AttrValue carries one attribute payload in a specific memory type. It is
// both the result of a get and the input of a put.
//
// Exactly one of the payload fields is populated, chosen by the class of
// Type: Bytes holds numeric, text, enum, opaque and compound elements as
// little-endian bytes, VLens holds variable-length sequences of base
// elements, and Strings holds string elements, where a nil pointer marks a
// null element.
type AttrValue struct {
	// Type is the memory type of the payload. On put, Native means "same
	// type as the attribute's stored type".
	Type dtype.ID
	// N is the element count.
	N int

	Bytes   []byte
	VLens   [][]byte
	Strings []*string
}

// valueFromPayload copies a stored payload into a fresh AttrValue, leaving
// the descriptor's buffers unaliased.
func valueFromPayload(t dtype.ID, n int, p payload) *AttrValue {
	out := &AttrValue{Type: t, N: n}
	switch p.kind {
	case payloadFlat:
		out.Bytes = append([]byte(nil), p.flat...)
	case payloadVLen:
		out.VLens = make([][]byte, len(p.vlens))
		for i, v := range p.vlens {
			if v != nil {
				out.VLens[i] = append([]byte(nil), v...)
			}
		}
	case payloadString:
		out.Strings = make([]*string, len(p.strings))
		for i, s := range p.strings {
			if s != nil {
				dup := *s
				out.Strings[i] = &dup
			}
		}
	}
	return out
}

// attr is one attribute descriptor: identity, stored type, element count and
// the payload in its stored representation. Callers never hold attrs; the
// protocol operations on Group are the public surface.
type attr struct {
	hdr   nameindex.Header
	ftype dtype.ID // stored ("file") type
	n     int

	// dirty means the payload differs from what the backing store holds.
	// created means an object exists in the store under the current name.
	dirty   bool
	created bool

	data payload
}

func (a *attr) Hdr() *nameindex.Header { return &a.hdr }

// footprint returns the in-memory byte footprint of n elements of a stored
// type. It drives the grow-beyond-current-size check on overwrite.
func (ds *Dataset) footprint(id dtype.ID, n int) int {
	return n * ds.elemMemSize(id)
}

func asAttr(obj nameindex.Object) *attr {
	a, _ := obj.(*attr)
	return a
}

// attrSet pairs an attribute index with a bitmap of dirty ordinals. The
// bitmap mirrors each descriptor's dirty flag; after structural edits
// renumber the ordinals, rebuildDirty reconciles it wholesale, the same
// two-phase contract the name map follows.
type attrSet struct {
	idx   *nameindex.Index
	dirty *roaring.Bitmap
}

func newAttrSet(hint int) attrSet {
	return attrSet{
		idx:   nameindex.New(hint),
		dirty: roaring.New(),
	}
}

func (s *attrSet) len() int { return s.idx.Len() }

func (s *attrSet) lookup(name string) (*attr, bool) {
	obj, ok := s.idx.Lookup(name)
	if !ok {
		return nil, false
	}
	return asAttr(obj), true
}

func (s *attrSet) at(i int) (*attr, bool) {
	obj, ok := s.idx.At(i)
	if !ok {
		return nil, false
	}
	return asAttr(obj), true
}

func (s *attrSet) position(name string) int {
	return s.idx.Position(name)
}

// add appends the descriptor, assigning its dense ordinal.
func (s *attrSet) add(a *attr) int {
	a.hdr.Sort = nameindex.SortAttribute
	a.hdr.ID = s.idx.Len()
	return s.idx.Add(a)
}

// removeAt deletes the descriptor at position i, renumbers the survivors
// behind it and rebuilds both the name map and the dirty bitmap.
func (s *attrSet) removeAt(i int) (*attr, error) {
	obj, ok := s.idx.RemoveAt(i)
	if !ok {
		return nil, ErrAttrNotFound
	}
	for j := i; j < s.idx.Len(); j++ {
		later, _ := s.idx.At(j)
		later.Hdr().ID = j
	}
	if err := s.idx.Rebuild(); err != nil {
		return nil, err
	}
	s.rebuildDirty()
	return asAttr(obj), nil
}

func (s *attrSet) markDirty(a *attr) {
	a.dirty = true
	s.dirty.Add(uint32(a.hdr.ID))
}

func (s *attrSet) clearDirty(a *attr) {
	a.dirty = false
	s.dirty.Remove(uint32(a.hdr.ID))
}

// rebuildDirty regenerates the bitmap from the descriptor flags.
func (s *attrSet) rebuildDirty() {
	s.dirty.Clear()
	for i := 0; i < s.idx.Len(); i++ {
		if a, ok := s.at(i); ok && a.dirty {
			s.dirty.Add(uint32(a.hdr.ID))
		}
	}
}

func (s *attrSet) hasDirty() bool {
	return !s.dirty.IsEmpty()
}

// snapshot returns the descriptors in index order, safe to iterate while the
// set mutates.
func (s *attrSet) snapshot() []*attr {
	objs := s.idx.Snapshot()
	out := make([]*attr, 0, len(objs))
	for _, obj := range objs {
		out = append(out, asAttr(obj))
	}
	return out
}

// verify checks index congruence plus bitmap/flag agreement. Diagnostic
// only; tests and the inspector call it.
func (s *attrSet) verify() error {
	if err := s.idx.Verify(); err != nil {
		return err
	}
	for i := 0; i < s.idx.Len(); i++ {
		a, _ := s.at(i)
		if a.hdr.ID != i {
			return fmt.Errorf("%w: attribute %q has ordinal %d at position %d", nameindex.ErrCorrupt, a.hdr.Name, a.hdr.ID, i)
		}
		if a.dirty != s.dirty.Contains(uint32(i)) {
			return fmt.Errorf("%w: attribute %q dirty flag disagrees with bitmap", nameindex.ErrCorrupt, a.hdr.Name)
		}
	}
	if int(s.dirty.GetCardinality()) > s.idx.Len() {
		return fmt.Errorf("%w: dirty bitmap has more entries than attributes", nameindex.ErrCorrupt)
	}
	return nil
}
