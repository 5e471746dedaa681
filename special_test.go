package gridgo_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gridgo"
	"github.com/hupe1980/gridgo/dtype"
)

func TestVirtualIsGridgo(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	t.Run("native default type", func(t *testing.T) {
		got, err := root.GetAttr(ctx, gridgo.Global, gridgo.AttrIsGridgo, dtype.Native)
		require.NoError(t, err)
		assert.Equal(t, dtype.Int, got.Type)
		assert.Equal(t, 1, got.N)
		assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(got.Bytes))
	})

	t.Run("converts to any integer type", func(t *testing.T) {
		got, err := root.GetAttr(ctx, gridgo.Global, gridgo.AttrIsGridgo, dtype.Byte)
		require.NoError(t, err)
		assert.Equal(t, []byte{1}, got.Bytes)

		got, err = root.GetAttr(ctx, gridgo.Global, gridgo.AttrIsGridgo, dtype.Int64)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), binary.LittleEndian.Uint64(got.Bytes))
	})

	t.Run("text request fails", func(t *testing.T) {
		_, err := root.GetAttr(ctx, gridgo.Global, gridgo.AttrIsGridgo, dtype.Char)
		assert.ErrorIs(t, err, gridgo.ErrTextMismatch)
	})

	t.Run("floating request fails", func(t *testing.T) {
		_, err := root.GetAttr(ctx, gridgo.Global, gridgo.AttrIsGridgo, dtype.Double)
		assert.ErrorIs(t, err, gridgo.ErrBadType)
	})

	t.Run("no position", func(t *testing.T) {
		_, err := root.AttrPosition(gridgo.Global, gridgo.AttrIsGridgo)
		assert.ErrorIs(t, err, gridgo.ErrReservedAttr)
	})

	t.Run("invisible in listings", func(t *testing.T) {
		names, err := root.AttrNames(gridgo.Global)
		require.NoError(t, err)
		assert.NotContains(t, names, gridgo.AttrIsGridgo)
	})
}

func TestVirtualStoreVersion(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)

	got, err := ds.Root().GetAttr(ctx, gridgo.Global, gridgo.AttrStoreVersion, dtype.Native)
	require.NoError(t, err)
	assert.Equal(t, dtype.Int, got.Type)
	assert.Equal(t, uint32(ds.Manifest().Version), binary.LittleEndian.Uint32(got.Bytes))
}

func TestVirtualProperties(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	text, err := root.GetText(ctx, gridgo.Global, gridgo.AttrProperties)
	require.NoError(t, err)

	info, err := gridgo.ParseProvenance(text)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Version)
	assert.Equal(t, gridgo.Version, info.Get("gridgo"))

	// Describing it works without a payload transfer.
	ai, err := root.Attr(gridgo.Global, gridgo.AttrProperties)
	require.NoError(t, err)
	assert.Equal(t, dtype.Char, ai.Type)
	assert.Equal(t, len(text), ai.N)

	// Numeric requests fail like any text attribute.
	_, err = root.GetAttr(ctx, gridgo.Global, gridgo.AttrProperties, dtype.Int)
	assert.ErrorIs(t, err, gridgo.ErrTextMismatch)
}

func TestReservedNamesRejectWrites(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	for _, name := range []string{gridgo.AttrIsGridgo, gridgo.AttrStoreVersion, gridgo.AttrProperties} {
		err := root.PutInt32s(ctx, gridgo.Global, name, 1)
		assert.ErrorIs(t, err, gridgo.ErrNameInUse, "put %s", name)

		err = root.DeleteAttr(ctx, gridgo.Global, name)
		assert.ErrorIs(t, err, gridgo.ErrNameInUse, "delete %s", name)

		err = root.RenameAttr(ctx, gridgo.Global, name, "elsewhere")
		assert.ErrorIs(t, err, gridgo.ErrNameInUse, "rename from %s", name)
	}

	// Renaming an ordinary attribute onto a reserved name is just as blocked.
	require.NoError(t, root.PutInt32s(ctx, gridgo.Global, "ordinary", 1))
	err := root.RenameAttr(ctx, gridgo.Global, "ordinary", gridgo.AttrIsGridgo)
	assert.ErrorIs(t, err, gridgo.ErrNameInUse)
}

func TestReservedNamesAreScopedToRootGlobal(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	sub, err := root.CreateGroup("sub")
	require.NoError(t, err)
	dim, err := root.AddDimension("x", 4)
	require.NoError(t, err)
	v, err := root.AddVariable("data", dtype.Int, []*gridgo.Dimension{dim})
	require.NoError(t, err)

	// On a subgroup or a variable the same names are ordinary attributes.
	require.NoError(t, sub.PutInt32s(ctx, gridgo.Global, gridgo.AttrIsGridgo, 7))
	vals, err := sub.GetInt32s(ctx, gridgo.Global, gridgo.AttrIsGridgo)
	require.NoError(t, err)
	assert.Equal(t, []int32{7}, vals)

	require.NoError(t, root.PutInt32s(ctx, v.Sel(), gridgo.AttrStoreVersion, 9))
	vals, err = root.GetInt32s(ctx, v.Sel(), gridgo.AttrStoreVersion)
	require.NoError(t, err)
	assert.Equal(t, []int32{9}, vals)

	// Virtual reads resolve only at the root's global scope; elsewhere a
	// missing name is simply missing.
	_, err = sub.GetAttr(ctx, gridgo.Global, gridgo.AttrProperties, dtype.Native)
	assert.ErrorIs(t, err, gridgo.ErrAttrNotFound)
}

func TestMetadataNameBlockedEverywhere(t *testing.T) {
	ctx := context.Background()
	ds := newTestDataset(t)
	root := ds.Root()

	sub, err := root.CreateGroup("sub")
	require.NoError(t, err)

	err = root.PutInt32s(ctx, gridgo.Global, "_GridgoMeta", 1)
	assert.ErrorIs(t, err, gridgo.ErrNameInUse)

	err = sub.PutInt32s(ctx, gridgo.Global, "_GridgoMeta", 1)
	assert.ErrorIs(t, err, gridgo.ErrNameInUse, "the metadata object name is reserved at every scope")

	_, err = root.GetAttr(ctx, gridgo.Global, "_GridgoMeta", dtype.Native)
	assert.ErrorIs(t, err, gridgo.ErrAttrNotFound)
}
