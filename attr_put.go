package gridgo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/gridgo/convert"
	"github.com/hupe1980/gridgo/dtype"
	"github.com/hupe1980/gridgo/nameindex"
)

// PutAttr creates or overwrites the named attribute on the selected
// container. The attribute is stored as fileType; val supplies the payload
// in val.Type, where Native means fileType itself. The stored
// representation is redetermined from fileType's class on every put, so an
// overwrite may switch an attribute between flat, vlen and string payloads.
//
// Creating an attribute, or growing one beyond its current byte footprint,
// requires definition mode; outside it the dataset enters implicitly unless
// the classic model forbids that. A put that clamps values during numeric
// conversion installs the converted payload and reports ErrRange.
//
// The put is staged: checks and conversion complete on a private copy
// before the descriptor is touched, so a failed put leaves the old value
// intact.
func (g *Group) PutAttr(ctx context.Context, v VarSel, name string, fileType dtype.ID, val AttrValue) error {
	ds := g.ds
	start := time.Now()
	err := ds.putAttr(g, v, name, fileType, val)
	duration := time.Since(start)

	opErr := err
	if errors.Is(err, ErrRange) {
		ds.metrics.RecordRangeClamp()
		opErr = nil
	}
	ds.metrics.RecordAttrPut(duration, opErr)
	ds.logger.LogAttrPut(ctx, attrIdent(g, v), name, fileType, val.N, opErr)
	return err
}

func (ds *Dataset) putAttr(g *Group, v VarSel, name string, fileType dtype.ID, val AttrValue) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if err := checkName(name); err != nil {
		return err
	}
	if val.N < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCount, val.N)
	}
	if val.N > MaxTransferCount {
		return fmt.Errorf("%w: %d exceeds the transfer cap", ErrTooManyElements, val.N)
	}
	if val.N > 0 && val.Bytes == nil && val.VLens == nil && val.Strings == nil {
		return fmt.Errorf("%w: count %d", ErrNilPayload, val.N)
	}
	if err := ds.requireWritable(); err != nil {
		return err
	}
	if reservedWriteBlocked(g, v, name) {
		return fmt.Errorf("%w: %q is reserved", ErrNameInUse, name)
	}

	if fileType == dtype.Native {
		return fmt.Errorf("%w: stored type must be concrete", ErrBadType)
	}
	fileClass := ds.classOf(fileType)
	if fileClass == dtype.ClassInvalid {
		return fmt.Errorf("%w: %s", ErrBadType, fileType)
	}
	memType := val.Type
	if memType == dtype.Native {
		memType = fileType
	}
	if ds.classOf(memType) == dtype.ClassInvalid {
		return fmt.Errorf("%w: %s", ErrBadType, memType)
	}

	// Text pairs only with text. Unlike get, writes have no byte/text
	// aliasing.
	if (memType == dtype.Char) != (fileType == dtype.Char) {
		return fmt.Errorf("%w: %s written as %s", ErrTextMismatch, fileType, memType)
	}
	switch fileClass {
	case dtype.ClassString, dtype.ClassVLen, dtype.ClassEnum, dtype.ClassOpaque, dtype.ClassCompound:
		// No conversion for these classes.
		if memType != fileType {
			return fmt.Errorf("%w: %s attribute written as %s", ErrBadType, fileType, memType)
		}
	default:
		if memType != dtype.Char && !dtype.IsNumeric(memType) {
			return fmt.Errorf("%w: %s attribute written as %s", ErrBadType, fileType, memType)
		}
	}
	if ds.classic && !dtype.IsClassic(fileType) {
		return fmt.Errorf("%w: %s", ErrClassicModel, fileType)
	}

	t, err := g.target(v)
	if err != nil {
		return err
	}

	existing, exists := t.set.lookup(name)
	needDefine := !exists
	if exists && ds.footprint(fileType, val.N) > ds.footprint(existing.ftype, existing.n) {
		needDefine = true
	}
	if needDefine {
		if err := ds.requireDefine(); err != nil {
			return err
		}
	}

	if t.v != nil && name == AttrFillValue {
		if err := checkFillPut(t.v, fileType, val.N); err != nil {
			return err
		}
	}

	staged, clamped, err := ds.stagePayload(fileType, memType, val)
	if err != nil {
		return err
	}

	if exists {
		existing.data.release()
		existing.data = staged
		existing.ftype = fileType
		existing.n = val.N
		t.set.markDirty(existing)
	} else {
		a := &attr{
			hdr:   nameindex.Header{Name: name},
			ftype: fileType,
			n:     val.N,
			data:  staged,
		}
		t.set.add(a)
		t.set.markDirty(a)
		t.markStructDirty()
	}

	if t.v != nil && name == AttrFillValue {
		noteFillChanged(t.v)
	}

	if clamped {
		return fmt.Errorf("%w: %s to %s", ErrRange, memType, fileType)
	}
	return nil
}

// stagePayload builds the stored payload on a private copy: representation
// chosen by fileType's class, numeric conversion applied when the memory
// type differs. The bool reports whether conversion clamped any element.
func (ds *Dataset) stagePayload(fileType, memType dtype.ID, val AttrValue) (payload, bool, error) {
	n := val.N
	if n == 0 {
		switch ds.classOf(fileType) {
		case dtype.ClassVLen:
			return vlenPayload(nil), false, nil
		case dtype.ClassString:
			return stringPayload(nil), false, nil
		default:
			return flatPayload(nil), false, nil
		}
	}

	switch ds.classOf(fileType) {
	case dtype.ClassVLen:
		if len(val.VLens) < n {
			return payload{}, false, fmt.Errorf("%w: %d vlen elements for count %d", ErrShortPayload, len(val.VLens), n)
		}
		vlens := make([][]byte, n)
		for i, e := range val.VLens[:n] {
			if e != nil {
				vlens[i] = append([]byte(nil), e...)
			}
		}
		return vlenPayload(vlens), false, nil

	case dtype.ClassString:
		if len(val.Strings) < n {
			return payload{}, false, fmt.Errorf("%w: %d strings for count %d", ErrShortPayload, len(val.Strings), n)
		}
		strs := make([]*string, n)
		for i, s := range val.Strings[:n] {
			if s != nil {
				dup := *s
				strs[i] = &dup
			}
		}
		return stringPayload(strs), false, nil
	}

	need := n * ds.elemMemSize(memType)
	if len(val.Bytes) < need {
		return payload{}, false, fmt.Errorf("%w: %d bytes for count %d of %s", ErrShortPayload, len(val.Bytes), n, memType)
	}
	if memType == fileType {
		return flatPayload(append([]byte(nil), val.Bytes[:need]...)), false, nil
	}
	flat, clamped, err := convert.Convert(val.Bytes, memType, fileType, n, convert.Options{ClassicModel: ds.classic})
	if err != nil {
		return payload{}, false, &ConversionError{From: memType, To: fileType, cause: err}
	}
	return flatPayload(flat), clamped, nil
}
