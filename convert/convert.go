// Package convert implements numeric buffer conversion between the atomic
// types of the gridgo format.
//
// Buffers are little-endian element sequences. Conversions complete even
// when values fall outside the destination's range: out-of-range elements
// are clamped to the nearest representable bound and the call reports a
// single range flag covering the whole buffer. Callers that treat the flag
// as an error still receive fully converted data.
//
// Text, string and user-defined types never convert; routing them here is a
// caller bug and fails with ErrUnsupported.
package convert

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/gridgo/dtype"
)

var (
	// ErrUnsupported is returned for conversion pairs outside the numeric
	// atomic types, including the Native sentinel, which callers must
	// resolve before converting.
	ErrUnsupported = errors.New("unsupported conversion")

	// ErrShortBuffer is returned when a source or destination buffer cannot
	// hold n elements of its type.
	ErrShortBuffer = errors.New("buffer too short")
)

// Options tune conversion behavior.
type Options struct {
	// ClassicModel declares signed and unsigned bytes representation
	// compatible: Byte/UByte interchange is a bit-preserving copy and
	// raises no range flag. Schemas from the classic era store unsigned
	// payloads in signed bytes and rely on this.
	ClassicModel bool
}

// Convert converts n elements of src from one numeric type to another,
// returning a freshly allocated destination buffer. The bool result is the
// range flag: true when at least one element was clamped.
func Convert(src []byte, from, to dtype.ID, n int, opt Options) ([]byte, bool, error) {
	dst := make([]byte, n*dtype.Size(to))
	rangeFlag, err := ConvertInto(dst, src, from, to, n, opt)
	if err != nil {
		return nil, false, err
	}
	return dst, rangeFlag, nil
}

// ConvertInto converts n elements of src into dst, which the caller sizes.
// It reports the per-call range flag.
func ConvertInto(dst, src []byte, from, to dtype.ID, n int, opt Options) (bool, error) {
	if n < 0 {
		return false, fmt.Errorf("%w: negative count %d", ErrUnsupported, n)
	}
	if !dtype.IsNumeric(from) || !dtype.IsNumeric(to) {
		return false, fmt.Errorf("%w: %s to %s", ErrUnsupported, from, to)
	}
	ss, ds := dtype.Size(from), dtype.Size(to)
	if len(src) < n*ss {
		return false, fmt.Errorf("%w: source holds %d bytes, need %d", ErrShortBuffer, len(src), n*ss)
	}
	if len(dst) < n*ds {
		return false, fmt.Errorf("%w: destination holds %d bytes, need %d", ErrShortBuffer, len(dst), n*ds)
	}

	if from == to {
		copy(dst, src[:n*ss])
		return false, nil
	}
	if opt.ClassicModel && byteInterchange(from, to) {
		copy(dst, src[:n])
		return false, nil
	}

	rangeFlag := false
	for i := 0; i < n; i++ {
		s := load(from, src[i*ss:])
		if !store(to, dst[i*ds:], s) {
			rangeFlag = true
		}
	}
	return rangeFlag, nil
}

func byteInterchange(from, to dtype.ID) bool {
	return (from == dtype.Byte && to == dtype.UByte) ||
		(from == dtype.UByte && to == dtype.Byte)
}

type kind uint8

const (
	kindInt kind = iota
	kindUint
	kindFloat
)

// scalar carries one element widened to its native family.
type scalar struct {
	k kind
	i int64
	u uint64
	f float64
}

func load(from dtype.ID, b []byte) scalar {
	switch from {
	case dtype.Byte:
		return scalar{k: kindInt, i: int64(int8(b[0]))}
	case dtype.Short:
		return scalar{k: kindInt, i: int64(int16(binary.LittleEndian.Uint16(b)))}
	case dtype.Int:
		return scalar{k: kindInt, i: int64(int32(binary.LittleEndian.Uint32(b)))}
	case dtype.Int64:
		return scalar{k: kindInt, i: int64(binary.LittleEndian.Uint64(b))}
	case dtype.UByte:
		return scalar{k: kindUint, u: uint64(b[0])}
	case dtype.UShort:
		return scalar{k: kindUint, u: uint64(binary.LittleEndian.Uint16(b))}
	case dtype.UInt:
		return scalar{k: kindUint, u: uint64(binary.LittleEndian.Uint32(b))}
	case dtype.UInt64:
		return scalar{k: kindUint, u: binary.LittleEndian.Uint64(b)}
	case dtype.Float:
		return scalar{k: kindFloat, f: float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))}
	default: // dtype.Double, guarded by IsNumeric upstream
		return scalar{k: kindFloat, f: math.Float64frombits(binary.LittleEndian.Uint64(b))}
	}
}

// store writes the scalar as the destination type, clamping on overflow.
// It returns false when the element was clamped.
func store(to dtype.ID, b []byte, s scalar) bool {
	switch to {
	case dtype.Byte:
		v, ok := s.toInt(math.MinInt8, math.MaxInt8)
		b[0] = byte(int8(v))
		return ok
	case dtype.Short:
		v, ok := s.toInt(math.MinInt16, math.MaxInt16)
		binary.LittleEndian.PutUint16(b, uint16(int16(v)))
		return ok
	case dtype.Int:
		v, ok := s.toInt(math.MinInt32, math.MaxInt32)
		binary.LittleEndian.PutUint32(b, uint32(int32(v)))
		return ok
	case dtype.Int64:
		v, ok := s.toInt(math.MinInt64, math.MaxInt64)
		binary.LittleEndian.PutUint64(b, uint64(v))
		return ok
	case dtype.UByte:
		v, ok := s.toUint(math.MaxUint8)
		b[0] = byte(v)
		return ok
	case dtype.UShort:
		v, ok := s.toUint(math.MaxUint16)
		binary.LittleEndian.PutUint16(b, uint16(v))
		return ok
	case dtype.UInt:
		v, ok := s.toUint(math.MaxUint32)
		binary.LittleEndian.PutUint32(b, uint32(v))
		return ok
	case dtype.UInt64:
		v, ok := s.toUint(math.MaxUint64)
		binary.LittleEndian.PutUint64(b, v)
		return ok
	case dtype.Float:
		v := s.toFloat()
		ok := true
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			if v > math.MaxFloat32 {
				v, ok = math.MaxFloat32, false
			} else if v < -math.MaxFloat32 {
				v, ok = -math.MaxFloat32, false
			}
		}
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
		return ok
	default: // dtype.Double
		binary.LittleEndian.PutUint64(b, math.Float64bits(s.toFloat()))
		return true
	}
}

// toInt narrows to a signed range. Floating sources round half away from
// zero; NaN clamps to zero.
func (s scalar) toInt(min, max int64) (int64, bool) {
	switch s.k {
	case kindInt:
		if s.i < min {
			return min, false
		}
		if s.i > max {
			return max, false
		}
		return s.i, true
	case kindUint:
		if s.u > uint64(max) {
			return max, false
		}
		return int64(s.u), true
	default:
		if math.IsNaN(s.f) {
			return 0, false
		}
		r := math.Round(s.f)
		if r < float64(min) {
			return min, false
		}
		// float64(max)+1 is exact for every bound used here, including
		// MaxInt64, where float64(max) already rounds up to 2^63.
		if r >= float64(max)+1 {
			return max, false
		}
		return int64(r), true
	}
}

// toUint narrows to an unsigned range with the same rounding rules.
func (s scalar) toUint(max uint64) (uint64, bool) {
	switch s.k {
	case kindInt:
		if s.i < 0 {
			return 0, false
		}
		if uint64(s.i) > max {
			return max, false
		}
		return uint64(s.i), true
	case kindUint:
		if s.u > max {
			return max, false
		}
		return s.u, true
	default:
		if math.IsNaN(s.f) {
			return 0, false
		}
		r := math.Round(s.f)
		if r < 0 {
			return 0, false
		}
		if r >= float64(max)+1 {
			return max, false
		}
		return uint64(r), true
	}
}

func (s scalar) toFloat() float64 {
	switch s.k {
	case kindInt:
		return float64(s.i)
	case kindUint:
		return float64(s.u)
	default:
		return s.f
	}
}
