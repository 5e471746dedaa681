package gridgo

import (
	"github.com/hupe1980/gridgo/dtype"
	"github.com/hupe1980/gridgo/nameindex"
	"github.com/hupe1980/gridgo/storage"
)

// Variable is an array shaped by dimensions, carrying its own attribute set.
// Array data itself lives outside this engine; the variable tracks whether
// data has been written because the fill value becomes immutable at that
// point.
type Variable struct {
	hdr nameindex.Header
	g   *Group

	typ  dtype.ID
	dims []*Dimension

	atts attrSet

	// written blocks late fill changes. fillChanged and structDirty mark
	// the variable for a metadata refresh at commit. created means the
	// container object exists in the store.
	written     bool
	fillChanged bool
	structDirty bool
	created     bool
}

func (v *Variable) Hdr() *nameindex.Header { return &v.hdr }

// Name returns the variable name.
func (v *Variable) Name() string { return v.hdr.Name }

// Type returns the stored element type.
func (v *Variable) Type() dtype.ID { return v.typ }

// Group returns the owning group.
func (v *Variable) Group() *Group { return v.g }

// Sel returns the selector that addresses this variable in attribute
// operations on its group.
func (v *Variable) Sel() VarSel { return VarSel(v.hdr.ID) }

// Dims returns the variable's dimensions in declaration order.
func (v *Variable) Dims() []*Dimension {
	out := make([]*Dimension, len(v.dims))
	copy(out, v.dims)
	return out
}

// NumAttrs returns the number of attributes on the variable.
func (v *Variable) NumAttrs() int { return v.atts.len() }

// Written reports whether array data has been written.
func (v *Variable) Written() bool { return v.written }

// MarkWritten records that array data now exists. From this point on the
// fill value is immutable. The transition is one-way.
func (v *Variable) MarkWritten() {
	ds := v.g.ds
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if v.written {
		return
	}
	v.written = true
	v.structDirty = true
}

// FillValue returns the variable's one-element fill value in its stored
// type. The bool reports whether an explicit fill attribute is set. Without
// one, atomic types yield their default sentinel, string types one empty
// string, and user-defined types nothing at all.
func (v *Variable) FillValue() (*AttrValue, bool) {
	ds := v.g.ds
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	if a, ok := v.atts.lookup(AttrFillValue); ok {
		return valueFromPayload(a.ftype, a.n, a.data), true
	}
	switch {
	case v.typ == dtype.String:
		empty := ""
		return &AttrValue{Type: dtype.String, N: 1, Strings: []*string{&empty}}, false
	case dtype.IsAtomic(v.typ):
		return &AttrValue{Type: v.typ, N: 1, Bytes: dtype.DefaultFill(v.typ)}, false
	default:
		return nil, false
	}
}

// loc returns the variable's container location in the backing store.
func (v *Variable) loc() storage.Location {
	return v.g.loc().WithVar(v.hdr.Name)
}
