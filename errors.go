package gridgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/gridgo/dtype"
	"github.com/hupe1980/gridgo/storage"
)

var (
	// ErrGroupNotFound is returned when a named or positional group lookup
	// misses.
	ErrGroupNotFound = errors.New("group not found")

	// ErrVariableNotFound is returned when a variable selector does not
	// resolve in the target group.
	ErrVariableNotFound = errors.New("variable not found")

	// ErrAttrNotFound is returned when a named or positional attribute
	// lookup misses.
	ErrAttrNotFound = errors.New("attribute not found")

	// ErrDimensionNotFound is returned when a dimension lookup misses.
	ErrDimensionNotFound = errors.New("dimension not found")

	// ErrTypeNotFound is returned when a user type lookup misses.
	ErrTypeNotFound = errors.New("type not found")

	// ErrBadName is returned for names that violate the naming rules.
	ErrBadName = errors.New("invalid name")

	// ErrNameTooLong is returned for names above the maximum length.
	ErrNameTooLong = errors.New("name too long")

	// ErrNameInUse is returned when a name collides with an existing object
	// or with a reserved attribute name.
	ErrNameInUse = errors.New("name already in use")

	// ErrBadType is returned when a type is unknown, still the Native
	// sentinel where a concrete type is required, or fails an exact-match
	// requirement such as the fill value's.
	ErrBadType = errors.New("bad type")

	// ErrTextMismatch is returned when a text payload meets a numeric type
	// or a numeric payload meets a text type. The single exception is
	// reading a stored byte attribute with a Char memory type, which is a
	// raw copy.
	ErrTextMismatch = errors.New("text and numeric types do not mix")

	// ErrRange reports that at least one element was clamped during
	// conversion. It is a soft failure: the operation completed and the
	// data was transferred. Callers detect it with errors.Is.
	ErrRange = errors.New("values were clamped to the destination range")

	// ErrNotInDefineMode is returned when a structural change needs
	// definition mode and the dataset's mode rules forbid entering it
	// implicitly.
	ErrNotInDefineMode = errors.New("operation requires definition mode")

	// ErrClassicModel is returned when a dataset under the classic model is
	// asked to store a type outside the classic-era set.
	ErrClassicModel = errors.New("classic model forbids this type")

	// ErrReadOnly is returned for any mutation on a read-only dataset.
	ErrReadOnly = errors.New("dataset is read-only")

	// ErrLateFill is returned when a fill value arrives after data was
	// written to the variable.
	ErrLateFill = errors.New("fill value set after data write")

	// ErrReservedAttr is returned for metadata requests that make no sense
	// on a synthesized attribute, such as its index position.
	ErrReservedAttr = errors.New("reserved attribute")

	// ErrInvalidCount is returned for element counts an operation cannot
	// accept, such as a fill value with more than one element.
	ErrInvalidCount = errors.New("invalid element count")

	// ErrTooManyElements is returned when an attribute payload exceeds the
	// per-attribute transfer cap.
	ErrTooManyElements = errors.New("too many elements")

	// ErrNilPayload is returned when a put supplies a positive element
	// count with no payload.
	ErrNilPayload = errors.New("nil payload")

	// ErrShortPayload is returned when a put's payload holds fewer
	// elements than the declared count.
	ErrShortPayload = errors.New("payload shorter than element count")

	// ErrClosed is returned for operations on a closed dataset.
	ErrClosed = errors.New("dataset is closed")

	// ErrAlreadyInitialized is returned by Create when the store already
	// holds a dataset.
	ErrAlreadyInitialized = errors.New("store already holds a dataset")

	// ErrUnknownCodec is returned by Open when the manifest names a payload
	// codec this build does not provide.
	ErrUnknownCodec = errors.New("unknown payload codec")
)

// ConversionError wraps a conversion failure with the types involved.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ConversionError struct {
	From  dtype.ID
	To    dtype.ID
	cause error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s to %s", e.From, e.To)
}

func (e *ConversionError) Unwrap() error { return e.cause }

// StoreError wraps a backing store failure with the operation and location.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type StoreError struct {
	Op    string
	Loc   storage.Location
	cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s at %s failed", e.Op, e.Loc)
}

func (e *StoreError) Unwrap() error { return e.cause }
