package gridgo_test

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gridgo"
	"github.com/hupe1980/gridgo/dtype"
)

func int32LE(values ...int32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf
}

func float64LE(values ...float64) []byte {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func TestPutGetRoundtrip(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	tests := []struct {
		name  string
		typ   dtype.ID
		n     int
		bytes []byte
	}{
		{"byte", dtype.Byte, 3, []byte{0x01, 0xFF, 0x80}},
		{"short", dtype.Short, 2, []byte{0x34, 0x12, 0xFF, 0x7F}},
		{"int", dtype.Int, 2, int32LE(-5, 2147483647)},
		{"float", dtype.Float, 1, []byte{0x00, 0x00, 0x80, 0x3F}},
		{"double", dtype.Double, 2, float64LE(3.5, -0.25)},
		{"ubyte", dtype.UByte, 2, []byte{0x00, 0xFE}},
		{"uint64", dtype.UInt64, 1, []byte{1, 2, 3, 4, 5, 6, 7, 8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := root.PutAttr(ctx, gridgo.Global, tt.name, tt.typ, gridgo.AttrValue{
				Type: tt.typ, N: tt.n, Bytes: tt.bytes,
			})
			require.NoError(t, err)

			got, err := root.GetAttr(ctx, gridgo.Global, tt.name, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, got.Type)
			assert.Equal(t, tt.n, got.N)
			assert.Equal(t, tt.bytes, got.Bytes)

			// Native resolves to the stored type.
			info, err := root.Attr(gridgo.Global, tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, info.Type)
			assert.Equal(t, tt.n, info.N)
		})
	}
}

func TestNativeMemTypeResolvesToStored(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	require.NoError(t, root.PutInt32s(ctx, gridgo.Global, "levels", 7, 8))

	got, err := root.GetAttr(ctx, gridgo.Global, "levels", dtype.Native)
	require.NoError(t, err)
	assert.Equal(t, dtype.Int, got.Type)
	assert.Equal(t, int32LE(7, 8), got.Bytes)
}

func TestGetConverted(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	require.NoError(t, root.PutInt32s(ctx, gridgo.Global, "levels", 1, 5, 10))

	vals, err := root.GetFloat64s(ctx, gridgo.Global, "levels")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 5, 10}, vals)

	got, err := root.GetAttr(ctx, gridgo.Global, "levels", dtype.Short)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 5, 0, 10, 0}, got.Bytes)
}

func TestGetRoundsFloatToInteger(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	require.NoError(t, root.PutFloat64s(ctx, gridgo.Global, "x", 1.4, 1.5, -2.5))

	vals, err := root.GetInt32s(ctx, gridgo.Global, "x")
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, -3}, vals, "halves round away from zero")
}

func TestGetRangeClamps(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	require.NoError(t, root.PutInt32s(ctx, gridgo.Global, "big", 70000, 3, -70000))

	got, err := root.GetAttr(ctx, gridgo.Global, "big", dtype.Short)
	require.ErrorIs(t, err, gridgo.ErrRange)
	require.NotNil(t, got, "a clamped read still transfers the data")
	lo := int16(-32768)
	want := make([]byte, 6)
	binary.LittleEndian.PutUint16(want[0:], 32767)
	binary.LittleEndian.PutUint16(want[2:], 3)
	binary.LittleEndian.PutUint16(want[4:], uint16(lo))
	assert.Equal(t, want, got.Bytes)
}

func TestPutWithConversionClamps(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	// Stored as byte, supplied as int: 300 exceeds the byte range.
	err := root.PutAttr(ctx, gridgo.Global, "small", dtype.Byte, gridgo.AttrValue{
		Type: dtype.Int, N: 2, Bytes: int32LE(300, 5),
	})
	require.ErrorIs(t, err, gridgo.ErrRange)

	// The put completed: the clamped payload is installed.
	got, err := root.GetAttr(ctx, gridgo.Global, "small", dtype.Byte)
	require.NoError(t, err)
	assert.Equal(t, []byte{127, 5}, got.Bytes)
}

func TestClassicByteInterchangeDoesNotClamp(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t, gridgo.WithClassicModel())
	root := ds.Root()

	// 200 as ubyte does not fit a signed byte, but under the classic model
	// the bytes interchange without a range flag.
	err := root.PutAttr(ctx, gridgo.Global, "mask", dtype.Byte, gridgo.AttrValue{
		Type: dtype.UByte, N: 1, Bytes: []byte{200},
	})
	require.NoError(t, err)

	got, err := root.GetAttr(ctx, gridgo.Global, "mask", dtype.UByte)
	require.NoError(t, err)
	assert.Equal(t, []byte{200}, got.Bytes)
}

func TestNativeModelByteConversionClamps(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	err := root.PutAttr(ctx, gridgo.Global, "mask", dtype.Byte, gridgo.AttrValue{
		Type: dtype.UByte, N: 1, Bytes: []byte{200},
	})
	require.ErrorIs(t, err, gridgo.ErrRange)

	got, err := root.GetAttr(ctx, gridgo.Global, "mask", dtype.Byte)
	require.NoError(t, err)
	assert.Equal(t, []byte{127}, got.Bytes)
}

func TestTextSegregation(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	require.NoError(t, root.PutText(ctx, gridgo.Global, "title", "hi"))
	require.NoError(t, root.PutInt32s(ctx, gridgo.Global, "levels", 1))

	t.Run("text read as numeric", func(t *testing.T) {
		_, err := root.GetAttr(ctx, gridgo.Global, "title", dtype.Int)
		assert.ErrorIs(t, err, gridgo.ErrTextMismatch)
	})

	t.Run("numeric read as text", func(t *testing.T) {
		_, err := root.GetAttr(ctx, gridgo.Global, "levels", dtype.Char)
		assert.ErrorIs(t, err, gridgo.ErrTextMismatch)
	})

	t.Run("numeric payload put as text", func(t *testing.T) {
		err := root.PutAttr(ctx, gridgo.Global, "bad", dtype.Char, gridgo.AttrValue{
			Type: dtype.Int, N: 1, Bytes: int32LE(65),
		})
		assert.ErrorIs(t, err, gridgo.ErrTextMismatch)
	})

	t.Run("text payload put as numeric", func(t *testing.T) {
		err := root.PutAttr(ctx, gridgo.Global, "bad", dtype.Int, gridgo.AttrValue{
			Type: dtype.Char, N: 1, Bytes: []byte("A"),
		})
		assert.ErrorIs(t, err, gridgo.ErrTextMismatch)
	})

	t.Run("text put into byte attribute", func(t *testing.T) {
		// Aliasing is a read-side affordance only.
		err := root.PutAttr(ctx, gridgo.Global, "bad", dtype.Byte, gridgo.AttrValue{
			Type: dtype.Char, N: 1, Bytes: []byte("A"),
		})
		assert.ErrorIs(t, err, gridgo.ErrTextMismatch)
	})
}

func TestByteAttributeAliasesToText(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	require.NoError(t, root.PutAttr(ctx, gridgo.Global, "raw", dtype.Byte, gridgo.AttrValue{
		Type: dtype.Byte, N: 2, Bytes: []byte("ok"),
	}))
	require.NoError(t, root.PutAttr(ctx, gridgo.Global, "uraw", dtype.UByte, gridgo.AttrValue{
		Type: dtype.UByte, N: 2, Bytes: []byte("no"),
	}))

	text, err := root.GetText(ctx, gridgo.Global, "raw")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)

	text, err = root.GetText(ctx, gridgo.Global, "uraw")
	require.NoError(t, err)
	assert.Equal(t, "no", text)

	// The alias is strictly one-directional: a short attribute is not text.
	require.NoError(t, root.PutAttr(ctx, gridgo.Global, "wide", dtype.Short, gridgo.AttrValue{
		Type: dtype.Short, N: 1, Bytes: []byte{65, 0},
	}))
	_, err = root.GetText(ctx, gridgo.Global, "wide")
	assert.ErrorIs(t, err, gridgo.ErrTextMismatch)
}

func TestStringAttributeNulls(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	vals := []*string{strPtr("alpha"), nil, strPtr("")}
	require.NoError(t, root.PutStrings(ctx, gridgo.Global, "names", vals))

	got, err := root.GetStrings(ctx, gridgo.Global, "names")
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.NotNil(t, got[0])
	assert.Equal(t, "alpha", *got[0])
	assert.Nil(t, got[1], "null elements stay null")
	require.NotNil(t, got[2])
	assert.Equal(t, "", *got[2], "an empty string is not a null")

	// No conversion in or out of the string class.
	_, err = root.GetAttr(ctx, gridgo.Global, "names", dtype.Int)
	assert.ErrorIs(t, err, gridgo.ErrBadType)

	err = root.PutAttr(ctx, gridgo.Global, "names", dtype.String, gridgo.AttrValue{
		Type: dtype.Int, N: 1, Bytes: int32LE(1),
	})
	assert.ErrorIs(t, err, gridgo.ErrBadType)
}

func TestAttrOrderAndPositions(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	for _, name := range []string{"alpha", "beta", "gamma", "delta"} {
		require.NoError(t, root.PutInt32s(ctx, gridgo.Global, name, 1))
	}

	names, err := root.AttrNames(gridgo.Global)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "gamma", "delta"}, names, "index order is append order")

	pos, err := root.AttrPosition(gridgo.Global, "gamma")
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	name, err := root.AttrName(gridgo.Global, 1)
	require.NoError(t, err)
	assert.Equal(t, "beta", name)

	// Overwriting keeps the position.
	require.NoError(t, root.PutInt32s(ctx, gridgo.Global, "beta", 9))
	pos, err = root.AttrPosition(gridgo.Global, "beta")
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	// Deleting in the middle shifts everything behind it down one.
	require.NoError(t, root.DeleteAttr(ctx, gridgo.Global, "beta"))
	names, err = root.AttrNames(gridgo.Global)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "gamma", "delta"}, names)

	pos, err = root.AttrPosition(gridgo.Global, "delta")
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	count, err := root.AttrCount(gridgo.Global)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = root.AttrPosition(gridgo.Global, "beta")
	assert.ErrorIs(t, err, gridgo.ErrAttrNotFound)
	_, err = root.AttrName(gridgo.Global, 3)
	assert.ErrorIs(t, err, gridgo.ErrAttrNotFound)

	assert.NoError(t, ds.Verify())
}

func TestRenameAttr(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	require.NoError(t, root.PutInt32s(ctx, gridgo.Global, "old", 42))
	require.NoError(t, root.PutInt32s(ctx, gridgo.Global, "other", 7))

	t.Run("keeps position and value", func(t *testing.T) {
		require.NoError(t, root.RenameAttr(ctx, gridgo.Global, "old", "renamed"))

		pos, err := root.AttrPosition(gridgo.Global, "renamed")
		require.NoError(t, err)
		assert.Equal(t, 0, pos)

		vals, err := root.GetInt32s(ctx, gridgo.Global, "renamed")
		require.NoError(t, err)
		assert.Equal(t, []int32{42}, vals)

		_, err = root.GetAttr(ctx, gridgo.Global, "old", dtype.Native)
		assert.ErrorIs(t, err, gridgo.ErrAttrNotFound)
	})

	t.Run("collision leaves both unchanged", func(t *testing.T) {
		err := root.RenameAttr(ctx, gridgo.Global, "renamed", "other")
		require.ErrorIs(t, err, gridgo.ErrNameInUse)

		vals, err := root.GetInt32s(ctx, gridgo.Global, "renamed")
		require.NoError(t, err)
		assert.Equal(t, []int32{42}, vals)

		vals, err = root.GetInt32s(ctx, gridgo.Global, "other")
		require.NoError(t, err)
		assert.Equal(t, []int32{7}, vals)
	})

	t.Run("rename to itself collides", func(t *testing.T) {
		err := root.RenameAttr(ctx, gridgo.Global, "renamed", "renamed")
		assert.ErrorIs(t, err, gridgo.ErrNameInUse)
	})

	t.Run("missing source", func(t *testing.T) {
		err := root.RenameAttr(ctx, gridgo.Global, "ghost", "anything")
		assert.ErrorIs(t, err, gridgo.ErrAttrNotFound)
	})

	assert.NoError(t, ds.Verify())
}

func TestClassicDefineModeRules(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t, gridgo.WithClassicModel())
	root := ds.Root()

	require.NoError(t, root.PutInt32s(ctx, gridgo.Global, "ab", 1, 2))
	require.NoError(t, root.PutInt32s(ctx, gridgo.Global, "grow", 1, 2))
	require.NoError(t, ds.EndDef(ctx))

	t.Run("create needs define mode", func(t *testing.T) {
		err := root.PutInt32s(ctx, gridgo.Global, "fresh", 1)
		assert.ErrorIs(t, err, gridgo.ErrNotInDefineMode)
	})

	t.Run("overwrite within footprint is a data-mode edit", func(t *testing.T) {
		assert.NoError(t, root.PutInt32s(ctx, gridgo.Global, "ab", 9, 9))
		assert.NoError(t, root.PutInt32s(ctx, gridgo.Global, "ab", 5))
	})

	t.Run("growing needs define mode", func(t *testing.T) {
		err := root.PutInt32s(ctx, gridgo.Global, "grow", 1, 2, 3)
		assert.ErrorIs(t, err, gridgo.ErrNotInDefineMode)
	})

	t.Run("delete needs define mode", func(t *testing.T) {
		err := root.DeleteAttr(ctx, gridgo.Global, "ab")
		assert.ErrorIs(t, err, gridgo.ErrNotInDefineMode)
	})

	t.Run("rename to longer needs define mode", func(t *testing.T) {
		err := root.RenameAttr(ctx, gridgo.Global, "ab", "abc")
		assert.ErrorIs(t, err, gridgo.ErrNotInDefineMode)
	})

	t.Run("rename to shorter is a data-mode edit", func(t *testing.T) {
		assert.NoError(t, root.RenameAttr(ctx, gridgo.Global, "ab", "a"))
	})

	t.Run("redef lifts the restrictions", func(t *testing.T) {
		require.NoError(t, ds.Redef())
		assert.NoError(t, root.PutInt32s(ctx, gridgo.Global, "fresh", 1))
		assert.NoError(t, root.DeleteAttr(ctx, gridgo.Global, "fresh"))
	})
}

func TestNativeModelEntersDefineModeImplicitly(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	require.NoError(t, ds.EndDef(ctx))
	require.False(t, ds.InDefineMode())

	// Creating an attribute outside define mode re-enters it silently.
	require.NoError(t, root.PutInt32s(ctx, gridgo.Global, "fresh", 1))
	assert.True(t, ds.InDefineMode())
}

func TestClassicModelRejectsWideTypes(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t, gridgo.WithClassicModel())
	root := ds.Root()

	err := root.PutInt64s(ctx, gridgo.Global, "wide", 1)
	assert.ErrorIs(t, err, gridgo.ErrClassicModel)

	err = root.PutStrings(ctx, gridgo.Global, "strs", []*string{strPtr("x")})
	assert.ErrorIs(t, err, gridgo.ErrClassicModel)

	err = root.PutAttr(ctx, gridgo.Global, "u", dtype.UInt, gridgo.AttrValue{
		Type: dtype.UInt, N: 1, Bytes: []byte{1, 0, 0, 0},
	})
	assert.ErrorIs(t, err, gridgo.ErrClassicModel)

	// The classic-era six are fine.
	assert.NoError(t, root.PutFloat64s(ctx, gridgo.Global, "d", 1.5))
}

func TestFailedPutLeavesOldValue(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	require.NoError(t, root.PutInt32s(ctx, gridgo.Global, "keep", 1, 2, 3))

	// Payload declares three elements but supplies one.
	err := root.PutAttr(ctx, gridgo.Global, "keep", dtype.Int, gridgo.AttrValue{
		Type: dtype.Int, N: 3, Bytes: int32LE(9),
	})
	require.ErrorIs(t, err, gridgo.ErrShortPayload)

	vals, err := root.GetInt32s(ctx, gridgo.Global, "keep")
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3}, vals)
}

func TestPutArgumentChecks(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	t.Run("bad name", func(t *testing.T) {
		err := root.PutInt32s(ctx, gridgo.Global, "bad/name", 1)
		assert.ErrorIs(t, err, gridgo.ErrBadName)
	})

	t.Run("name too long", func(t *testing.T) {
		err := root.PutInt32s(ctx, gridgo.Global, strings.Repeat("x", 300), 1)
		assert.ErrorIs(t, err, gridgo.ErrNameTooLong)
	})

	t.Run("negative count", func(t *testing.T) {
		err := root.PutAttr(ctx, gridgo.Global, "neg", dtype.Int, gridgo.AttrValue{Type: dtype.Int, N: -1})
		assert.ErrorIs(t, err, gridgo.ErrInvalidCount)
	})

	t.Run("nil payload with positive count", func(t *testing.T) {
		err := root.PutAttr(ctx, gridgo.Global, "nil", dtype.Int, gridgo.AttrValue{Type: dtype.Int, N: 2})
		assert.ErrorIs(t, err, gridgo.ErrNilPayload)
	})

	t.Run("native stored type", func(t *testing.T) {
		err := root.PutAttr(ctx, gridgo.Global, "nat", dtype.Native, gridgo.AttrValue{Type: dtype.Int, N: 1, Bytes: int32LE(1)})
		assert.ErrorIs(t, err, gridgo.ErrBadType)
	})

	t.Run("unknown stored type", func(t *testing.T) {
		err := root.PutAttr(ctx, gridgo.Global, "unk", dtype.ID(99), gridgo.AttrValue{Type: dtype.Native, N: 1, Bytes: []byte{1}})
		assert.ErrorIs(t, err, gridgo.ErrBadType)
	})

	t.Run("unknown selector", func(t *testing.T) {
		err := root.PutInt32s(ctx, gridgo.VarSel(5), "a", 1)
		assert.ErrorIs(t, err, gridgo.ErrVariableNotFound)
	})
}

func TestZeroCountAttr(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	require.NoError(t, root.PutAttr(ctx, gridgo.Global, "empty", dtype.Int, gridgo.AttrValue{Type: dtype.Int, N: 0}))

	got, err := root.GetAttr(ctx, gridgo.Global, "empty", dtype.Double)
	require.NoError(t, err)
	assert.Equal(t, 0, got.N)
	assert.Empty(t, got.Bytes)

	// Text segregation applies even to empty payloads.
	_, err = root.GetAttr(ctx, gridgo.Global, "empty", dtype.Char)
	assert.ErrorIs(t, err, gridgo.ErrTextMismatch)
}

func TestOverwriteSwitchesRepresentation(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	require.NoError(t, root.PutInt32s(ctx, gridgo.Global, "shape", 1, 2))

	// Same name, string class: the payload representation flips wholesale.
	require.NoError(t, root.PutStrings(ctx, gridgo.Global, "shape", []*string{strPtr("now strings")}))

	got, err := root.GetStrings(ctx, gridgo.Global, "shape")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "now strings", *got[0])

	// And back to numeric.
	require.NoError(t, root.PutInt32s(ctx, gridgo.Global, "shape", 3))
	vals, err := root.GetInt32s(ctx, gridgo.Global, "shape")
	require.NoError(t, err)
	assert.Equal(t, []int32{3}, vals)

	assert.NoError(t, ds.Verify())
}

func TestRepeatedOverwriteKeepsIndexCongruent(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	// Each round swaps in a string array of different length and null
	// pattern, so the old array's elements are released every time.
	for i := 0; i < 100; i++ {
		values := make([]*string, 1+i%4)
		for j := range values {
			if (i+j)%3 == 0 {
				continue // null element
			}
			values[j] = strPtr(fmt.Sprintf("station %d.%d", i, j))
		}
		require.NoError(t, root.PutStrings(ctx, gridgo.Global, "stations", values))
		require.NoError(t, ds.Verify())
	}

	got, err := root.GetStrings(ctx, gridgo.Global, "stations")
	require.NoError(t, err)
	require.Len(t, got, 4) // 1 + 99%4
	assert.Nil(t, got[0])  // (99+0)%3 == 0
	require.NotNil(t, got[1])
	assert.Equal(t, "station 99.1", *got[1])

	count, err := root.AttrCount(gridgo.Global)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestVariableAttributes(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	dim, err := root.AddDimension("time", 0)
	require.NoError(t, err)
	v, err := root.AddVariable("temp", dtype.Float, []*gridgo.Dimension{dim})
	require.NoError(t, err)

	require.NoError(t, root.PutText(ctx, v.Sel(), "units", "kelvin"))
	require.NoError(t, root.PutText(ctx, gridgo.Global, "units", "global scope"))

	text, err := root.GetText(ctx, v.Sel(), "units")
	require.NoError(t, err)
	assert.Equal(t, "kelvin", text)

	text, err = root.GetText(ctx, gridgo.Global, "units")
	require.NoError(t, err)
	assert.Equal(t, "global scope", text, "variable and group scopes are disjoint")

	assert.Equal(t, 1, v.NumAttrs())
}
