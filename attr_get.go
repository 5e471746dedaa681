package gridgo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/gridgo/convert"
	"github.com/hupe1980/gridgo/dtype"
)

// GetAttr reads the named attribute of the selected container, expressed in
// memType. Native means "the stored type". Reserved read-only names at the
// root group's global scope are synthesized from manifest state.
//
// A numeric read whose conversion clamps at least one element still returns
// the fully converted value, together with an error matching ErrRange;
// callers distinguish it from hard failures with errors.Is.
func (g *Group) GetAttr(ctx context.Context, v VarSel, name string, memType dtype.ID) (*AttrValue, error) {
	ds := g.ds
	start := time.Now()
	val, err := ds.getAttr(g, v, name, memType)
	duration := time.Since(start)

	opErr := err
	if errors.Is(err, ErrRange) {
		ds.metrics.RecordRangeClamp()
		opErr = nil
	}
	ds.metrics.RecordAttrGet(duration, opErr)
	ds.logger.LogAttrGet(ctx, attrIdent(g, v), name, memType, opErr)
	return val, err
}

func (ds *Dataset) getAttr(g *Group, v VarSel, name string, memType dtype.ID) (*AttrValue, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	if ds.closed {
		return nil, ErrClosed
	}

	if isVirtual(g, v, name) {
		return ds.resolveVirtual(name, memType)
	}

	t, err := g.target(v)
	if err != nil {
		return nil, err
	}
	a, ok := t.set.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAttrNotFound, name)
	}

	if memType == dtype.Native {
		memType = a.ftype
	}
	if ds.classOf(memType) == dtype.ClassInvalid {
		return nil, fmt.Errorf("%w: %s", ErrBadType, memType)
	}

	// Text never mixes with other types. Reading a stored byte attribute
	// with a text memory type is the one sanctioned aliasing; it is a raw
	// copy further down.
	charAlias := memType == dtype.Char && (a.ftype == dtype.Byte || a.ftype == dtype.UByte)
	if memType == dtype.Char && a.ftype != dtype.Char && !charAlias {
		return nil, fmt.Errorf("%w: stored %s requested as text", ErrTextMismatch, a.ftype)
	}
	if memType != dtype.Char && a.ftype == dtype.Char {
		return nil, fmt.Errorf("%w: stored text requested as %s", ErrTextMismatch, memType)
	}

	if a.n == 0 {
		return &AttrValue{Type: memType, N: 0}, nil
	}

	switch ds.classOf(a.ftype) {
	case dtype.ClassVLen, dtype.ClassString, dtype.ClassEnum, dtype.ClassOpaque, dtype.ClassCompound:
		// No conversion for these classes; the memory type must match.
		if memType != a.ftype {
			return nil, fmt.Errorf("%w: %s attribute read as %s", ErrBadType, a.ftype, memType)
		}
		return valueFromPayload(memType, a.n, a.data), nil
	}

	if memType == a.ftype || charAlias {
		return &AttrValue{Type: memType, N: a.n, Bytes: append([]byte(nil), a.data.flat...)}, nil
	}
	if !dtype.IsNumeric(memType) {
		return nil, fmt.Errorf("%w: %s attribute read as %s", ErrBadType, a.ftype, memType)
	}

	dst, clamped, err := convert.Convert(a.data.flat, a.ftype, memType, a.n, convert.Options{ClassicModel: ds.classic})
	if err != nil {
		return nil, &ConversionError{From: a.ftype, To: memType, cause: err}
	}
	out := &AttrValue{Type: memType, N: a.n, Bytes: dst}
	if clamped {
		return out, fmt.Errorf("%w: %s to %s", ErrRange, a.ftype, memType)
	}
	return out, nil
}

// attrIdent renders the addressed container for log lines.
func attrIdent(g *Group, v VarSel) string {
	if v == Global {
		return g.loc().String()
	}
	if obj, ok := g.vars.At(int(v)); ok {
		return g.loc().WithVar(obj.Hdr().Name).String()
	}
	return g.loc().String() + ":?"
}
