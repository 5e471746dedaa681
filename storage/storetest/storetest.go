// Package storetest provides a conformance suite for storage.Store
// implementations. It tests the interface contract, not implementation
// details, so every backend runs the same battery.
//
// Usage:
//
//	func TestMemoryStoreConformance(t *testing.T) {
//	    suite := &storetest.Suite{
//	        New: func(t *testing.T) storage.Store {
//	            return storage.NewMemoryStore()
//	        },
//	    }
//	    suite.Run(t)
//	}
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gridgo/storage"
)

// Suite runs the Store contract against a backend.
type Suite struct {
	// New returns a fresh, empty store for one test. Backends that hold
	// OS resources should register cleanup on t.
	New func(t *testing.T) storage.Store
}

// Run executes the full suite.
func (s *Suite) Run(t *testing.T) {
	t.Run("Manifest", s.runManifestTests)
	t.Run("Containers", s.runContainerTests)
	t.Run("Attributes", s.runAttributeTests)
	t.Run("Locations", s.runLocationTests)
}

func testManifest(seq uint64) *storage.Manifest {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &storage.Manifest{
		Version:    storage.ManifestVersion,
		Seq:        seq,
		Native:     true,
		Codec:      "native+zstd",
		Provenance: "version=2,gridgo=test",
		CreatedAt:  now,
		UpdatedAt:  now.Add(time.Duration(seq) * time.Minute),
	}
}

func (s *Suite) runManifestTests(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh store has none", func(t *testing.T) {
		store := s.New(t)
		_, err := store.LoadManifest(ctx)
		assert.ErrorIs(t, err, storage.ErrNoManifest)
	})

	t.Run("roundtrip", func(t *testing.T) {
		store := s.New(t)
		in := testManifest(1)
		require.NoError(t, store.CommitManifest(ctx, in))

		out, err := store.LoadManifest(ctx)
		require.NoError(t, err)
		assert.Equal(t, in.Seq, out.Seq)
		assert.Equal(t, in.Codec, out.Codec)
		assert.Equal(t, in.Provenance, out.Provenance)
		assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
		assert.True(t, in.UpdatedAt.Equal(out.UpdatedAt))
	})

	t.Run("load returns a copy", func(t *testing.T) {
		store := s.New(t)
		require.NoError(t, store.CommitManifest(ctx, testManifest(1)))

		out, err := store.LoadManifest(ctx)
		require.NoError(t, err)
		out.Seq = 99
		out.Codec = "mutated"

		again, err := store.LoadManifest(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), again.Seq)
		assert.Equal(t, "native+zstd", again.Codec)
	})

	t.Run("sequence must advance", func(t *testing.T) {
		store := s.New(t)
		require.NoError(t, store.CommitManifest(ctx, testManifest(2)))

		err := store.CommitManifest(ctx, testManifest(2))
		assert.ErrorIs(t, err, storage.ErrConcurrentCommit)
		err = store.CommitManifest(ctx, testManifest(1))
		assert.ErrorIs(t, err, storage.ErrConcurrentCommit)

		require.NoError(t, store.CommitManifest(ctx, testManifest(3)))
		out, err := store.LoadManifest(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), out.Seq)
	})
}

func (s *Suite) runContainerTests(t *testing.T) {
	ctx := context.Background()

	t.Run("ensure is idempotent", func(t *testing.T) {
		store := s.New(t)
		loc := storage.GroupLocation("ocean")
		require.NoError(t, store.EnsureContainer(ctx, loc))
		require.NoError(t, store.EnsureContainer(ctx, loc))
	})

	t.Run("remove missing container", func(t *testing.T) {
		store := s.New(t)
		err := store.RemoveContainer(ctx, storage.GroupLocation("ghost"))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("remove drops the container and its attributes", func(t *testing.T) {
		store := s.New(t)
		loc := storage.RootLocation().WithVar("sst")
		require.NoError(t, store.EnsureContainer(ctx, loc))
		require.NoError(t, store.PutAttribute(ctx, loc, "units", []byte("degC")))

		require.NoError(t, store.RemoveContainer(ctx, loc))

		_, err := store.GetAttribute(ctx, loc, "units")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		names, err := store.ListAttributes(ctx, loc)
		require.NoError(t, err)
		assert.Empty(t, names)

		// And the container can come back empty.
		require.NoError(t, store.EnsureContainer(ctx, loc))
		names, err = store.ListAttributes(ctx, loc)
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("remove leaves siblings alone", func(t *testing.T) {
		store := s.New(t)
		a := storage.RootLocation().WithVar("a")
		b := storage.RootLocation().WithVar("b")
		require.NoError(t, store.EnsureContainer(ctx, a))
		require.NoError(t, store.EnsureContainer(ctx, b))
		require.NoError(t, store.PutAttribute(ctx, b, "keep", []byte{1}))

		require.NoError(t, store.RemoveContainer(ctx, a))

		blob, err := store.GetAttribute(ctx, b, "keep")
		require.NoError(t, err)
		assert.Equal(t, []byte{1}, blob)
	})
}

func (s *Suite) runAttributeTests(t *testing.T) {
	ctx := context.Background()
	loc := storage.GroupLocation("ocean", "deep")

	t.Run("get missing", func(t *testing.T) {
		store := s.New(t)
		require.NoError(t, store.EnsureContainer(ctx, loc))
		_, err := store.GetAttribute(ctx, loc, "nope")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("roundtrip and overwrite", func(t *testing.T) {
		store := s.New(t)
		require.NoError(t, store.EnsureContainer(ctx, loc))

		require.NoError(t, store.PutAttribute(ctx, loc, "units", []byte("degC")))
		blob, err := store.GetAttribute(ctx, loc, "units")
		require.NoError(t, err)
		assert.Equal(t, []byte("degC"), blob)

		require.NoError(t, store.PutAttribute(ctx, loc, "units", []byte("K")))
		blob, err = store.GetAttribute(ctx, loc, "units")
		require.NoError(t, err)
		assert.Equal(t, []byte("K"), blob)
	})

	t.Run("blobs are isolated from caller buffers", func(t *testing.T) {
		store := s.New(t)
		require.NoError(t, store.EnsureContainer(ctx, loc))

		in := []byte{1, 2, 3}
		require.NoError(t, store.PutAttribute(ctx, loc, "x", in))
		in[0] = 9

		out, err := store.GetAttribute(ctx, loc, "x")
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, out)

		out[1] = 9
		again, err := store.GetAttribute(ctx, loc, "x")
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, again)
	})

	t.Run("empty blob", func(t *testing.T) {
		store := s.New(t)
		require.NoError(t, store.EnsureContainer(ctx, loc))
		require.NoError(t, store.PutAttribute(ctx, loc, "empty", nil))
		blob, err := store.GetAttribute(ctx, loc, "empty")
		require.NoError(t, err)
		assert.Empty(t, blob)
	})

	t.Run("delete", func(t *testing.T) {
		store := s.New(t)
		require.NoError(t, store.EnsureContainer(ctx, loc))

		err := store.DeleteAttribute(ctx, loc, "nope")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, store.PutAttribute(ctx, loc, "units", []byte("psu")))
		require.NoError(t, store.DeleteAttribute(ctx, loc, "units"))
		_, err = store.GetAttribute(ctx, loc, "units")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("list is lexical", func(t *testing.T) {
		store := s.New(t)
		require.NoError(t, store.EnsureContainer(ctx, loc))
		for _, name := range []string{"zeta", "alpha", "_FillValue", "mid.point", "mid-point"} {
			require.NoError(t, store.PutAttribute(ctx, loc, name, []byte(name)))
		}

		names, err := store.ListAttributes(ctx, loc)
		require.NoError(t, err)
		assert.Equal(t, []string{"_FillValue", "alpha", "mid-point", "mid.point", "zeta"}, names)
	})

	t.Run("list of empty or missing container", func(t *testing.T) {
		store := s.New(t)
		names, err := store.ListAttributes(ctx, storage.GroupLocation("never"))
		require.NoError(t, err)
		assert.Empty(t, names)
	})
}

func (s *Suite) runLocationTests(t *testing.T) {
	ctx := context.Background()

	t.Run("same name at different locations", func(t *testing.T) {
		store := s.New(t)
		root := storage.RootLocation()
		grp := storage.GroupLocation("sst")
		vr := storage.RootLocation().WithVar("sst")
		for i, loc := range []storage.Location{root, grp, vr} {
			require.NoError(t, store.EnsureContainer(ctx, loc))
			require.NoError(t, store.PutAttribute(ctx, loc, "units", []byte{byte(i)}))
		}

		for i, loc := range []storage.Location{root, grp, vr} {
			blob, err := store.GetAttribute(ctx, loc, "units")
			require.NoError(t, err)
			assert.Equal(t, []byte{byte(i)}, blob, "location %s", loc.Key())
		}
	})

	t.Run("variable attrs invisible to the group listing", func(t *testing.T) {
		store := s.New(t)
		grp := storage.GroupLocation("ocean")
		vr := grp.WithVar("sst")
		require.NoError(t, store.EnsureContainer(ctx, grp))
		require.NoError(t, store.EnsureContainer(ctx, vr))
		require.NoError(t, store.PutAttribute(ctx, grp, "title", []byte("t")))
		require.NoError(t, store.PutAttribute(ctx, vr, "units", []byte("u")))

		names, err := store.ListAttributes(ctx, grp)
		require.NoError(t, err)
		assert.Equal(t, []string{"title"}, names)

		names, err = store.ListAttributes(ctx, vr)
		require.NoError(t, err)
		assert.Equal(t, []string{"units"}, names)
	})
}
