package gridgo

import (
	"fmt"

	"github.com/hupe1980/gridgo/dtype"
)

// checkFillPut enforces the fill-value rules before a put installs the fill
// attribute on a variable: the stored type matches the variable's exactly,
// the count is one, and no data has been written yet.
func checkFillPut(v *Variable, fileType dtype.ID, n int) error {
	if fileType != v.typ {
		return fmt.Errorf("%w: fill value for a %s variable must be %s, not %s", ErrBadType, v.typ, v.typ, fileType)
	}
	if n != 1 {
		return fmt.Errorf("%w: fill value takes exactly one element, got %d", ErrInvalidCount, n)
	}
	if v.written {
		return fmt.Errorf("%w: %q", ErrLateFill, v.Name())
	}
	return nil
}

// noteFillChanged records a successful fill install. When the variable's
// container object already exists in the store, the commit path must
// recreate it rather than patch it in place.
func noteFillChanged(v *Variable) {
	if v.created {
		v.fillChanged = true
	}
	v.structDirty = true
}
