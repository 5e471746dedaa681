package gridgo

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/gridgo/convert"
	"github.com/hupe1980/gridgo/dtype"
)

// Reserved attribute names.
const (
	// AttrFillValue is the fill-value attribute. It is an ordinary stored
	// attribute, but putting it on a variable runs the fill-value checks.
	AttrFillValue = "_FillValue"

	// AttrProperties is the provenance text synthesized from the manifest.
	AttrProperties = "_GridgoProperties"

	// AttrIsGridgo is 1 on a native-format dataset and 0 otherwise.
	AttrIsGridgo = "_IsGridgo"

	// AttrStoreVersion is the manifest format version.
	AttrStoreVersion = "_StoreVersion"

	// metaAttrName is the storage object carrying a container's structural
	// metadata. It is not an attribute; reserving the name keeps user
	// attributes from ever colliding with the object.
	metaAttrName = "_GridgoMeta"
)

type reservedFlags uint8

const (
	// resReadOnly rejects writes at the root group's global scope.
	resReadOnly reservedFlags = 1 << iota
	// resVirtual serves reads from the resolver instead of the store.
	resVirtual
	// resHidden blocks the name at every scope and hides it from listings.
	resHidden
)

var reservedNames = map[string]reservedFlags{
	AttrProperties:   resVirtual | resReadOnly,
	AttrIsGridgo:     resVirtual | resReadOnly,
	AttrStoreVersion: resVirtual | resReadOnly,
	metaAttrName:     resHidden | resReadOnly,
}

// isVirtual reports whether a read of name at (g, v) is served by the
// resolver. Only the root group's global scope is intercepted; the same
// names on subgroups or variables are ordinary attributes.
func isVirtual(g *Group, v VarSel, name string) bool {
	fl, ok := reservedNames[name]
	return ok && fl&resVirtual != 0 && v == Global && g.IsRoot()
}

// reservedWriteBlocked reports whether a put, rename or delete may not
// touch name at the addressed scope.
func reservedWriteBlocked(g *Group, v VarSel, name string) bool {
	fl, ok := reservedNames[name]
	if !ok {
		return false
	}
	if fl&resHidden != 0 {
		return true
	}
	return fl&resReadOnly != 0 && v == Global && g.IsRoot()
}

// resolveVirtual synthesizes the value of a reserved read-only attribute
// from manifest state. Text requests against numeric values, and the
// reverse, fail exactly like regular attributes; numeric values convert to
// any integer memory type. The caller holds at least the read lock.
func (ds *Dataset) resolveVirtual(name string, memType dtype.ID) (*AttrValue, error) {
	switch name {
	case AttrProperties:
		text := ds.manifest.Provenance
		if text == "" {
			return nil, fmt.Errorf("%w: %q", ErrAttrNotFound, name)
		}
		if memType == dtype.Native {
			memType = dtype.Char
		}
		if memType != dtype.Char {
			return nil, fmt.Errorf("%w: %q is text", ErrTextMismatch, name)
		}
		return &AttrValue{Type: dtype.Char, N: len(text), Bytes: []byte(text)}, nil

	case AttrIsGridgo, AttrStoreVersion:
		var iv int64
		if name == AttrIsGridgo {
			if ds.manifest.Native {
				iv = 1
			}
		} else {
			iv = int64(ds.manifest.Version)
		}
		if memType == dtype.Native {
			memType = dtype.Int
		}
		if memType == dtype.Char {
			return nil, fmt.Errorf("%w: %q is numeric", ErrTextMismatch, name)
		}
		if !dtype.IsInteger(memType) {
			return nil, fmt.Errorf("%w: %q converts to integer types only", ErrBadType, name)
		}
		src := make([]byte, 8)
		binary.LittleEndian.PutUint64(src, uint64(iv))
		out, _, err := convert.Convert(src, dtype.Int64, memType, 1, convert.Options{ClassicModel: ds.classic})
		if err != nil {
			return nil, &ConversionError{From: dtype.Int64, To: memType, cause: err}
		}
		return &AttrValue{Type: memType, N: 1, Bytes: out}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrAttrNotFound, name)
	}
}
