package gridgo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gridgo"
	"github.com/hupe1980/gridgo/dtype"
)

func TestGroupTree(t *testing.T) {
	ds := newTestDataset(t)
	root := ds.Root()

	assert.True(t, root.IsRoot())
	assert.Nil(t, root.Parent())
	assert.Equal(t, "/", root.Path())

	ocean, err := root.CreateGroup("ocean")
	require.NoError(t, err)
	deep, err := ocean.CreateGroup("deep")
	require.NoError(t, err)

	assert.Equal(t, "/ocean", ocean.Path())
	assert.Equal(t, "/ocean/deep", deep.Path())
	assert.Same(t, ocean, deep.Parent())
	assert.Same(t, ds, deep.Dataset())

	found, err := root.Group("ocean")
	require.NoError(t, err)
	assert.Same(t, ocean, found)

	_, err = root.Group("atmosphere")
	assert.ErrorIs(t, err, gridgo.ErrGroupNotFound)

	atmos, err := root.CreateGroup("atmosphere")
	require.NoError(t, err)

	// Children list in creation order.
	groups := root.Groups()
	require.Len(t, groups, 2)
	assert.Same(t, ocean, groups[0])
	assert.Same(t, atmos, groups[1])

	_, err = root.CreateGroup("ocean")
	assert.ErrorIs(t, err, gridgo.ErrNameInUse)
}

func TestGroupNamespaces(t *testing.T) {
	ds := newTestDataset(t)
	root := ds.Root()

	_, err := root.CreateGroup("temp")
	require.NoError(t, err)

	// Groups, variables and types share one namespace per group.
	_, err = root.AddVariable("temp", dtype.Int, nil)
	assert.ErrorIs(t, err, gridgo.ErrNameInUse)
	_, err = root.CreateOpaqueType("temp", 4)
	assert.ErrorIs(t, err, gridgo.ErrNameInUse)

	// Dimensions live in their own namespace.
	d, err := root.AddDimension("temp", 12)
	require.NoError(t, err)
	assert.Equal(t, int64(12), d.Len())

	_, err = root.AddDimension("temp", 8)
	assert.ErrorIs(t, err, gridgo.ErrNameInUse)

	// And the shared namespace ignores dimensions.
	_, err = root.AddVariable("lat", dtype.Float, []*gridgo.Dimension{d})
	require.NoError(t, err)
	_, err = root.AddDimension("lat", 4)
	require.NoError(t, err)

	// Sibling groups are independent namespaces.
	sub, err := root.CreateGroup("sub")
	require.NoError(t, err)
	_, err = sub.AddVariable("temp", dtype.Int, nil)
	require.NoError(t, err)
}

func TestFindDimShadowing(t *testing.T) {
	ds := newTestDataset(t)
	root := ds.Root()

	outer, err := root.AddDimension("time", 10)
	require.NoError(t, err)

	sub, err := root.CreateGroup("sub")
	require.NoError(t, err)
	inner, err := sub.AddDimension("time", 20)
	require.NoError(t, err)

	leaf, err := sub.CreateGroup("leaf")
	require.NoError(t, err)

	// The nearest definition on the path to the root wins.
	found, err := leaf.FindDim("time")
	require.NoError(t, err)
	assert.Same(t, inner, found)

	found, err = sub.FindDim("time")
	require.NoError(t, err)
	assert.Same(t, inner, found)

	found, err = root.FindDim("time")
	require.NoError(t, err)
	assert.Same(t, outer, found)

	// Dim does not search ancestors; FindDim does.
	_, err = leaf.Dim("time")
	assert.ErrorIs(t, err, gridgo.ErrDimensionNotFound)

	_, err = leaf.FindDim("depth")
	assert.ErrorIs(t, err, gridgo.ErrDimensionNotFound)
}

func TestAddVariable(t *testing.T) {
	ds := newTestDataset(t)
	root := ds.Root()

	timeDim, err := root.AddDimension("time", 0)
	require.NoError(t, err)
	assert.True(t, timeDim.Unlimited())
	assert.Equal(t, int64(0), timeDim.Len())

	latDim, err := root.AddDimension("lat", 180)
	require.NoError(t, err)

	v, err := root.AddVariable("sst", dtype.Float, []*gridgo.Dimension{timeDim, latDim})
	require.NoError(t, err)
	assert.Equal(t, "sst", v.Name())
	assert.Equal(t, dtype.Float, v.Type())
	require.Len(t, v.Dims(), 2)
	assert.Same(t, timeDim, v.Dims()[0])

	byName, err := root.Var("sst")
	require.NoError(t, err)
	assert.Same(t, v, byName)

	t.Run("ancestor dims are visible", func(t *testing.T) {
		sub, err := root.CreateGroup("sub")
		require.NoError(t, err)
		_, err = sub.AddVariable("child", dtype.Int, []*gridgo.Dimension{latDim})
		require.NoError(t, err)
	})

	t.Run("sibling dims are not", func(t *testing.T) {
		a, err := root.CreateGroup("a")
		require.NoError(t, err)
		b, err := root.CreateGroup("b")
		require.NoError(t, err)
		d, err := a.AddDimension("x", 3)
		require.NoError(t, err)
		_, err = b.AddVariable("y", dtype.Int, []*gridgo.Dimension{d})
		assert.ErrorIs(t, err, gridgo.ErrDimensionNotFound)
	})

	t.Run("type must be concrete and known", func(t *testing.T) {
		_, err := root.AddVariable("v1", dtype.Native, nil)
		assert.ErrorIs(t, err, gridgo.ErrBadType)
		_, err = root.AddVariable("v2", dtype.ID(200), nil)
		assert.ErrorIs(t, err, gridgo.ErrBadType)
	})

	t.Run("user typed variable", func(t *testing.T) {
		et, err := root.CreateEnumType("flag", dtype.Byte, []gridgo.EnumMember{{Name: "ok", Value: 0}})
		require.NoError(t, err)
		ev, err := root.AddVariable("flags", et.ID(), []*gridgo.Dimension{latDim})
		require.NoError(t, err)
		assert.Equal(t, et.ID(), ev.Type())
	})
}

func TestClassicStructureRules(t *testing.T) {
	ds := newTestDataset(t, gridgo.WithClassicModel())
	root := ds.Root()

	_, err := root.CreateGroup("sub")
	assert.ErrorIs(t, err, gridgo.ErrClassicModel)

	rec, err := root.AddDimension("record", 0)
	require.NoError(t, err)
	assert.True(t, rec.Unlimited())

	_, err = root.AddDimension("record2", 0)
	assert.ErrorIs(t, err, gridgo.ErrClassicModel, "one unlimited dimension only")

	lat, err := root.AddDimension("lat", 90)
	require.NoError(t, err)

	// The unlimited dimension leads or is absent.
	_, err = root.AddVariable("good", dtype.Double, []*gridgo.Dimension{rec, lat})
	require.NoError(t, err)
	_, err = root.AddVariable("bad", dtype.Double, []*gridgo.Dimension{lat, rec})
	assert.ErrorIs(t, err, gridgo.ErrClassicModel)

	_, err = root.AddVariable("wide", dtype.Int64, nil)
	assert.ErrorIs(t, err, gridgo.ErrClassicModel)
	_, err = root.AddVariable("str", dtype.String, nil)
	assert.ErrorIs(t, err, gridgo.ErrClassicModel)
}

func TestClassicStructureNeedsDefineMode(t *testing.T) {
	ds := newTestDataset(t, gridgo.WithClassicModel())
	root := ds.Root()
	require.NoError(t, ds.EndDef(context.Background()))

	_, err := root.AddDimension("x", 4)
	assert.ErrorIs(t, err, gridgo.ErrNotInDefineMode)
	_, err = root.AddVariable("v", dtype.Int, nil)
	assert.ErrorIs(t, err, gridgo.ErrNotInDefineMode)

	require.NoError(t, ds.Redef())
	_, err = root.AddDimension("x", 4)
	require.NoError(t, err)
}

func TestStructureEntersDefineModeImplicitly(t *testing.T) {
	ds := newTestDataset(t)
	root := ds.Root()
	require.NoError(t, ds.EndDef(context.Background()))
	require.False(t, ds.InDefineMode())

	_, err := root.AddDimension("x", 4)
	require.NoError(t, err)
	assert.True(t, ds.InDefineMode())
}

func TestVariableMarkWritten(t *testing.T) {
	ds := newTestDataset(t)
	root := ds.Root()

	v, err := root.AddVariable("sst", dtype.Float, nil)
	require.NoError(t, err)
	assert.False(t, v.Written())

	v.MarkWritten()
	assert.True(t, v.Written())
	v.MarkWritten()
	assert.True(t, v.Written())
}
