package gridgo

import (
	"context"
	"encoding/binary"
	"errors"
	"math"

	"github.com/hupe1980/gridgo/dtype"
)

// Typed wrappers around PutAttr and GetAttr for the common buffer shapes.
// They carry no semantics of their own; everything goes through the same
// protocol, including clamp reporting via ErrRange.

// PutText stores a text attribute.
func (g *Group) PutText(ctx context.Context, v VarSel, name, text string) error {
	return g.PutAttr(ctx, v, name, dtype.Char, AttrValue{Type: dtype.Char, N: len(text), Bytes: []byte(text)})
}

// GetText reads a text attribute. Stored byte attributes alias to text and
// come back as a raw copy.
func (g *Group) GetText(ctx context.Context, v VarSel, name string) (string, error) {
	val, err := g.GetAttr(ctx, v, name, dtype.Char)
	if err != nil {
		return "", err
	}
	return string(val.Bytes), nil
}

// PutInt32s stores a 32-bit integer attribute.
func (g *Group) PutInt32s(ctx context.Context, v VarSel, name string, values ...int32) error {
	buf := make([]byte, 4*len(values))
	for i, val := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(val))
	}
	return g.PutAttr(ctx, v, name, dtype.Int, AttrValue{Type: dtype.Int, N: len(values), Bytes: buf})
}

// GetInt32s reads a numeric attribute converted to 32-bit integers. Out of
// range values come back clamped together with ErrRange.
func (g *Group) GetInt32s(ctx context.Context, v VarSel, name string) ([]int32, error) {
	val, err := g.GetAttr(ctx, v, name, dtype.Int)
	if err != nil && !errors.Is(err, ErrRange) {
		return nil, err
	}
	out := make([]int32, val.N)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(val.Bytes[i*4:]))
	}
	return out, err
}

// PutInt64s stores a 64-bit integer attribute.
func (g *Group) PutInt64s(ctx context.Context, v VarSel, name string, values ...int64) error {
	buf := make([]byte, 8*len(values))
	for i, val := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(val))
	}
	return g.PutAttr(ctx, v, name, dtype.Int64, AttrValue{Type: dtype.Int64, N: len(values), Bytes: buf})
}

// GetInt64s reads a numeric attribute converted to 64-bit integers.
func (g *Group) GetInt64s(ctx context.Context, v VarSel, name string) ([]int64, error) {
	val, err := g.GetAttr(ctx, v, name, dtype.Int64)
	if err != nil && !errors.Is(err, ErrRange) {
		return nil, err
	}
	out := make([]int64, val.N)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(val.Bytes[i*8:]))
	}
	return out, err
}

// PutFloat64s stores a double attribute.
func (g *Group) PutFloat64s(ctx context.Context, v VarSel, name string, values ...float64) error {
	buf := make([]byte, 8*len(values))
	for i, val := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(val))
	}
	return g.PutAttr(ctx, v, name, dtype.Double, AttrValue{Type: dtype.Double, N: len(values), Bytes: buf})
}

// GetFloat64s reads a numeric attribute converted to doubles.
func (g *Group) GetFloat64s(ctx context.Context, v VarSel, name string) ([]float64, error) {
	val, err := g.GetAttr(ctx, v, name, dtype.Double)
	if err != nil && !errors.Is(err, ErrRange) {
		return nil, err
	}
	out := make([]float64, val.N)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(val.Bytes[i*8:]))
	}
	return out, err
}

// PutStrings stores a string attribute. A nil entry is stored as a null
// element, distinct from an empty string.
func (g *Group) PutStrings(ctx context.Context, v VarSel, name string, values []*string) error {
	return g.PutAttr(ctx, v, name, dtype.String, AttrValue{Type: dtype.String, N: len(values), Strings: values})
}

// GetStrings reads a string attribute. Null elements come back nil.
func (g *Group) GetStrings(ctx context.Context, v VarSel, name string) ([]*string, error) {
	val, err := g.GetAttr(ctx, v, name, dtype.String)
	if err != nil {
		return nil, err
	}
	return val.Strings, nil
}
