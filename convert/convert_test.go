package convert

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gridgo/dtype"
)

func encInt16(vals ...int16) []byte {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}
	return b
}

func encInt32(vals ...int32) []byte {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[i*4:], uint32(v))
	}
	return b
}

func encInt64(vals ...int64) []byte {
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(b[i*8:], uint64(v))
	}
	return b
}

func encUint64(vals ...uint64) []byte {
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(b[i*8:], v)
	}
	return b
}

func encFloat32(vals ...float32) []byte {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func encFloat64(vals ...float64) []byte {
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b
}

func decFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func TestConvertIdentity(t *testing.T) {
	src := encInt32(-7, 0, 42)
	dst, rangeFlag, err := Convert(src, dtype.Int, dtype.Int, 3, Options{})
	require.NoError(t, err)
	require.False(t, rangeFlag)
	require.Equal(t, src, dst)
}

func TestConvertWidening(t *testing.T) {
	src := []byte{0x80, 0x7F} // int8 -128, 127
	dst, rangeFlag, err := Convert(src, dtype.Byte, dtype.Int64, 2, Options{})
	require.NoError(t, err)
	require.False(t, rangeFlag)
	require.Equal(t, encInt64(-128, 127), dst)
}

func TestConvertClampInteger(t *testing.T) {
	tests := []struct {
		name      string
		src       []byte
		from, to  dtype.ID
		want      []byte
		wantRange bool
	}{
		{
			name: "int32 into int16 clamps both ends",
			src:  encInt32(40000, -40000, 12),
			from: dtype.Int, to: dtype.Short,
			want:      encInt16(32767, -32768, 12),
			wantRange: true,
		},
		{
			name: "negative into unsigned clamps to zero",
			src:  encInt32(-5, 9),
			from: dtype.Int, to: dtype.UShort,
			want:      []byte{0, 0, 9, 0},
			wantRange: true,
		},
		{
			name: "uint64 above int64 range",
			src:  encUint64(math.MaxUint64, 3),
			from: dtype.UInt64, to: dtype.Int64,
			want:      encInt64(math.MaxInt64, 3),
			wantRange: true,
		},
		{
			name: "in-range narrows silently",
			src:  encInt64(-30000, 30000),
			from: dtype.Int64, to: dtype.Short,
			want:      encInt16(-30000, 30000),
			wantRange: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := len(tt.src) / dtype.Size(tt.from)
			dst, rangeFlag, err := Convert(tt.src, tt.from, tt.to, n, Options{})
			require.NoError(t, err)
			require.Equal(t, tt.wantRange, rangeFlag)
			require.Equal(t, tt.want, dst)
		})
	}
}

func TestConvertFloatToIntegerRounding(t *testing.T) {
	src := encFloat64(2.5, -2.5, 2.4, -0.5)
	dst, rangeFlag, err := Convert(src, dtype.Double, dtype.Int, 4, Options{})
	require.NoError(t, err)
	require.False(t, rangeFlag)
	require.Equal(t, encInt32(3, -3, 2, -1), dst)
}

func TestConvertFloatToIntegerOverflow(t *testing.T) {
	src := encFloat64(1e300, -1e300, math.NaN())
	dst, rangeFlag, err := Convert(src, dtype.Double, dtype.Int, 3, Options{})
	require.NoError(t, err)
	require.True(t, rangeFlag)
	require.Equal(t, encInt32(math.MaxInt32, math.MinInt32, 0), dst)
}

func TestConvertFloat64MaxIntoInt64(t *testing.T) {
	src := encFloat64(9.3e18, -9.3e18)
	dst, rangeFlag, err := Convert(src, dtype.Double, dtype.Int64, 2, Options{})
	require.NoError(t, err)
	require.True(t, rangeFlag)
	require.Equal(t, encInt64(math.MaxInt64, math.MinInt64), dst)
}

func TestConvertDoubleToFloat(t *testing.T) {
	src := encFloat64(1.5, 1e39, -1e39)
	dst, rangeFlag, err := Convert(src, dtype.Double, dtype.Float, 3, Options{})
	require.NoError(t, err)
	require.True(t, rangeFlag)
	got := decFloat32(dst)
	require.Equal(t, float32(1.5), got[0])
	require.Equal(t, float32(math.MaxFloat32), got[1])
	require.Equal(t, float32(-math.MaxFloat32), got[2])
}

func TestConvertNonFinitePassThrough(t *testing.T) {
	src := encFloat64(math.Inf(1), math.Inf(-1), math.NaN())
	dst, rangeFlag, err := Convert(src, dtype.Double, dtype.Float, 3, Options{})
	require.NoError(t, err)
	require.False(t, rangeFlag)
	got := decFloat32(dst)
	require.True(t, math.IsInf(float64(got[0]), 1))
	require.True(t, math.IsInf(float64(got[1]), -1))
	require.True(t, math.IsNaN(float64(got[2])))
}

func TestConvertIntegerToFloatNeverFlags(t *testing.T) {
	src := encInt64(math.MaxInt64, math.MinInt64)
	_, rangeFlag, err := Convert(src, dtype.Int64, dtype.Float, 2, Options{})
	require.NoError(t, err)
	require.False(t, rangeFlag)
}

func TestConvertByteInterchange(t *testing.T) {
	t.Run("classic model is bit preserving and silent", func(t *testing.T) {
		src := []byte{0xFF, 0x7F} // int8 -1, 127
		dst, rangeFlag, err := Convert(src, dtype.Byte, dtype.UByte, 2, Options{ClassicModel: true})
		require.NoError(t, err)
		require.False(t, rangeFlag)
		require.Equal(t, []byte{0xFF, 0x7F}, dst)

		src = []byte{0xC8} // uint8 200
		dst, rangeFlag, err = Convert(src, dtype.UByte, dtype.Byte, 1, Options{ClassicModel: true})
		require.NoError(t, err)
		require.False(t, rangeFlag)
		require.Equal(t, []byte{0xC8}, dst)
	})

	t.Run("without classic model it clamps and flags", func(t *testing.T) {
		src := []byte{0xFF} // int8 -1
		dst, rangeFlag, err := Convert(src, dtype.Byte, dtype.UByte, 1, Options{})
		require.NoError(t, err)
		require.True(t, rangeFlag)
		require.Equal(t, []byte{0x00}, dst)

		src = []byte{0xC8} // uint8 200
		dst, rangeFlag, err = Convert(src, dtype.UByte, dtype.Byte, 1, Options{})
		require.NoError(t, err)
		require.True(t, rangeFlag)
		require.Equal(t, []byte{0x7F}, dst)
	})

	t.Run("classic model does not silence other pairs", func(t *testing.T) {
		src := encInt32(70000)
		_, rangeFlag, err := Convert(src, dtype.Int, dtype.UShort, 1, Options{ClassicModel: true})
		require.NoError(t, err)
		require.True(t, rangeFlag)
	})
}

func TestConvertUnsupported(t *testing.T) {
	for _, id := range []dtype.ID{dtype.Char, dtype.String, dtype.Native, dtype.FirstUserID} {
		_, _, err := Convert([]byte{1}, id, dtype.Int, 1, Options{})
		require.ErrorIs(t, err, ErrUnsupported, "from %s", id)

		_, _, err = Convert(encInt32(1), dtype.Int, id, 1, Options{})
		require.ErrorIs(t, err, ErrUnsupported, "to %s", id)
	}
}

func TestConvertShortBuffer(t *testing.T) {
	_, _, err := Convert(encInt32(1), dtype.Int, dtype.Short, 2, Options{})
	require.ErrorIs(t, err, ErrShortBuffer)

	dst := make([]byte, 2)
	_, err = ConvertInto(dst, encInt32(1, 2), dtype.Int, dtype.Short, 2, Options{})
	require.ErrorIs(t, err, ErrShortBuffer)
}
