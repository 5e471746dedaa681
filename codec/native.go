package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/gridgo/dtype"
)

var (
	nativeMagic    = [4]byte{'G', 'G', 'A', '0'}
	nativeVersion  = uint16(1)
	nativeFixedLen = 24 // excludes variable name and payload bytes
)

// Payload layout after the fixed header, all little-endian:
//
//	numeric/text/opaque/enum/compound:  raw element bytes (n * elemSize)
//	vlen:    per element, uint32 length + bytes
//	string:  per element, uint8 tag (0 null, 1 present) + uint32 length + bytes
//
// String lengths are byte lengths of the UTF-8 form.

// Native is the binary attribute record codec ("native"). It is the default
// base codec for new datasets.
type Native struct{}

// Name returns the unique name of the codec ("native").
func (Native) Name() string { return "native" }

// Encode frames the record into a self-describing blob.
func (Native) Encode(rec *Record) ([]byte, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if len(rec.Name) > math.MaxUint16 {
		return nil, fmt.Errorf("attribute name is %d bytes, limit %d", len(rec.Name), math.MaxUint16)
	}

	buf := make([]byte, 0, nativeFixedLen+len(rec.Name)+nativeSizePayload(rec))
	buf = append(buf, nativeMagic[:]...)

	var fixed [20]byte
	binary.LittleEndian.PutUint16(fixed[0:2], nativeVersion)
	// fixed[2:4] reserved flags
	binary.LittleEndian.PutUint32(fixed[4:8], uint32(rec.Type))
	fixed[8] = uint8(rec.Class)
	// fixed[9:12] reserved
	binary.LittleEndian.PutUint32(fixed[12:16], uint32(rec.BaseSize))
	binary.LittleEndian.PutUint32(fixed[16:20], uint32(rec.N))
	buf = append(buf, fixed[:]...)

	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(rec.Name)))
	buf = append(buf, rec.Name...)

	switch rec.Class {
	case dtype.ClassVLen:
		for _, el := range rec.VLens {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(el)))
			buf = append(buf, el...)
		}
	case dtype.ClassString:
		for _, s := range rec.Strings {
			if s == nil {
				buf = append(buf, 0)
				continue
			}
			buf = append(buf, 1)
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(*s)))
			buf = append(buf, *s...)
		}
	default:
		buf = append(buf, rec.Bytes...)
	}
	return buf, nil
}

// Decode parses a blob produced by Encode.
func (Native) Decode(data []byte) (*Record, error) {
	if len(data) < nativeFixedLen+2 {
		return nil, fmt.Errorf("%w: blob is %d bytes", ErrMalformed, len(data))
	}
	if [4]byte(data[0:4]) != nativeMagic {
		return nil, fmt.Errorf("%w: invalid magic", ErrMalformed)
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v != nativeVersion {
		return nil, fmt.Errorf("%w: unsupported record version %d", ErrMalformed, v)
	}

	rec := &Record{
		Type:     dtype.ID(binary.LittleEndian.Uint32(data[8:12])),
		Class:    dtype.Class(data[12]),
		BaseSize: int(binary.LittleEndian.Uint32(data[16:20])),
		N:        int(binary.LittleEndian.Uint32(data[20:24])),
	}

	cur := cursor{data: data, off: nativeFixedLen}
	name, err := cur.str16()
	if err != nil {
		return nil, err
	}
	rec.Name = name

	switch rec.Class {
	case dtype.ClassVLen:
		if rec.N < 0 || rec.N > cur.remaining()/4 {
			return nil, fmt.Errorf("%w: vlen count %d exceeds blob", ErrMalformed, rec.N)
		}
		if rec.N > 0 {
			rec.VLens = make([][]byte, rec.N)
		}
		for i := range rec.VLens {
			el, err := cur.bytes32()
			if err != nil {
				return nil, err
			}
			rec.VLens[i] = el
		}
	case dtype.ClassString:
		if rec.N < 0 || rec.N > cur.remaining() {
			return nil, fmt.Errorf("%w: string count %d exceeds blob", ErrMalformed, rec.N)
		}
		if rec.N > 0 {
			rec.Strings = make([]*string, rec.N)
		}
		for i := range rec.Strings {
			tag, err := cur.byte()
			if err != nil {
				return nil, err
			}
			if tag == 0 {
				continue
			}
			b, err := cur.bytes32()
			if err != nil {
				return nil, err
			}
			s := string(b)
			rec.Strings[i] = &s
		}
	default:
		rec.Bytes = cur.rest()
	}

	if !cur.done() {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, cur.remaining())
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

func nativeSizePayload(rec *Record) int {
	switch rec.Class {
	case dtype.ClassVLen:
		n := 0
		for _, el := range rec.VLens {
			n += 4 + len(el)
		}
		return n
	case dtype.ClassString:
		n := 0
		for _, s := range rec.Strings {
			n++
			if s != nil {
				n += 4 + len(*s)
			}
		}
		return n
	default:
		return len(rec.Bytes)
	}
}

// cursor is a bounds-checked reader over a decoded blob.
type cursor struct {
	data []byte
	off  int
}

func (c *cursor) remaining() int { return len(c.data) - c.off }
func (c *cursor) done() bool     { return c.off == len(c.data) }

func (c *cursor) byte() (byte, error) {
	if c.remaining() < 1 {
		return 0, fmt.Errorf("%w: truncated blob", ErrMalformed)
	}
	b := c.data[c.off]
	c.off++
	return b, nil
}

func (c *cursor) str16() (string, error) {
	if c.remaining() < 2 {
		return "", fmt.Errorf("%w: truncated blob", ErrMalformed)
	}
	n := int(binary.LittleEndian.Uint16(c.data[c.off:]))
	c.off += 2
	if c.remaining() < n {
		return "", fmt.Errorf("%w: truncated blob", ErrMalformed)
	}
	s := string(c.data[c.off : c.off+n])
	c.off += n
	return s, nil
}

// bytes32 reads a length-prefixed buffer. Zero-length buffers decode as nil
// so records survive round trips under deep equality.
func (c *cursor) bytes32() ([]byte, error) {
	if c.remaining() < 4 {
		return nil, fmt.Errorf("%w: truncated blob", ErrMalformed)
	}
	n := int(binary.LittleEndian.Uint32(c.data[c.off:]))
	c.off += 4
	if n < 0 || c.remaining() < n {
		return nil, fmt.Errorf("%w: truncated blob", ErrMalformed)
	}
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	copy(b, c.data[c.off:c.off+n])
	c.off += n
	return b, nil
}

// rest copies the remaining bytes and exhausts the cursor.
func (c *cursor) rest() []byte {
	if c.remaining() == 0 {
		return nil
	}
	b := make([]byte, c.remaining())
	copy(b, c.data[c.off:])
	c.off = len(c.data)
	return b
}
