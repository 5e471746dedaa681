// Package gridgo provides an embedded metadata and attribute engine for
// scientific array datasets.
//
// Gridgo manages the self-describing half of an array store: a tree of
// groups, variables, dimensions and user-defined types, each node carrying
// an ordered set of typed attributes. Array payloads live elsewhere; gridgo
// owns the naming, the typing, the attribute data and the commit protocol
// that makes the tree durable.
//
// # Quick Start
//
// Local mode:
//
//	ctx := context.Background()
//	store, _ := storage.NewLocalStore("./data")
//	ds, _ := gridgo.Create(ctx, store)
//	ds, _ = gridgo.Open(ctx, store) // re-open existing
//
// In-memory mode:
//
//	ds, _ := gridgo.Create(ctx, storage.NewMemoryStore())
//
// # Attributes
//
// Attributes are typed, ordered and converted on the fly. Writes declare the
// stored type; reads declare the type the caller wants back:
//
//	root := ds.Root()
//	root.PutText(ctx, gridgo.Global, "title", "ocean reanalysis")
//	root.PutInt32s(ctx, gridgo.Global, "levels", 1, 5, 10, 50)
//
//	// Read the int32 attribute as float64: converted element-wise.
//	vals, _ := root.GetFloat64s(ctx, gridgo.Global, "levels")
//
// Out-of-range conversions clamp and report ErrRange, a soft error: the data
// is transferred and the caller decides whether clamping matters:
//
//	v, err := root.GetAttr(ctx, gridgo.Global, "big", dtype.Short)
//	if errors.Is(err, gridgo.ErrRange) {
//	    // v holds the clamped values
//	}
//
// # Definition Mode
//
// Structural changes (new groups, variables, dimensions, types, growing
// attributes) happen in definition mode. Native-model datasets enter it
// implicitly; classic-model datasets must call Redef first, mirroring the
// strict semantics of the classic file model:
//
//	ds.Redef()
//	g, _ := ds.Root().CreateGroup("model")
//	t, _ := g.AddDimension("time", 0) // length 0 declares it unlimited
//	ds.EndDef(ctx)                    // leaves define mode and commits
//
// # Durability Model
//
// Gridgo uses commit-oriented durability. Mutations buffer in memory;
// Commit encodes dirty attributes, writes container metadata and installs a
// manifest with the next sequence number. The manifest is the commit point:
//
//	root.PutText(ctx, gridgo.Global, "history", "rev 2") // buffered
//	ds.Commit(ctx)                                       // durable after this
//
// Close commits pending state unless the dataset is read-only.
//
// # Key Features
//
//   - Ordered attribute sets with dense positional access
//   - Element-wise numeric conversion with range clamping on read and write
//   - Flat, variable-length and null-aware string payload representations
//   - Group trees, shared dimensions, enum/opaque/vlen/compound user types
//   - Classic compatibility model with strict define-mode rules
//   - Pluggable payload codecs (native, XDR, JSON; zstd/lz4 compression)
//   - Pluggable backing stores (memory, local directory, Badger, S3, MinIO)
package gridgo
