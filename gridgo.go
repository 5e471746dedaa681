package gridgo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/gridgo/codec"
	"github.com/hupe1980/gridgo/dtype"
	"github.com/hupe1980/gridgo/resource"
	"github.com/hupe1980/gridgo/storage"
)

// Dataset is an open gridgo container: the in-memory metadata tree, the
// backing store it persists through and the mode flags that gate structural
// edits.
//
// A dataset assumes one logical writer. Methods are safe for concurrent use
// from multiple goroutines, but the single-writer model is the intended
// shape: readers scale, writers serialize.
type Dataset struct {
	mu sync.RWMutex

	store storage.Store
	codec codec.Codec

	logger  *Logger
	metrics MetricsCollector
	rc      *resource.Controller

	manifest *storage.Manifest
	root     *Group

	// types is the dataset-wide registry of user-defined type identifiers.
	// Name visibility is per group subtree; identifiers are global.
	types      map[dtype.ID]*UserType
	nextTypeID dtype.ID

	classic    bool
	readOnly   bool
	defineMode bool
	closed     bool
}

// Create initializes a fresh dataset on an empty store and opens it in
// definition mode. Creating over a store that already holds a dataset fails
// with ErrAlreadyInitialized.
func Create(ctx context.Context, store storage.Store, optFns ...Option) (*Dataset, error) {
	opts := applyOptions(optFns)
	if opts.readOnly {
		return nil, fmt.Errorf("gridgo: cannot create a dataset read-only")
	}

	switch _, err := store.LoadManifest(ctx); {
	case err == nil:
		return nil, ErrAlreadyInitialized
	case !errors.Is(err, storage.ErrNoManifest):
		return nil, &StoreError{Op: "load manifest", Loc: storage.RootLocation(), cause: err}
	}

	// Classic-model datasets default to the classic wire codec so payloads
	// stay interchangeable with classic-era tooling.
	if opts.classicModel && !opts.codecSet {
		opts.codec = codec.Classic
	}

	now := time.Now().UTC()
	ds := &Dataset{
		store:   store,
		codec:   opts.codec,
		logger:  opts.logger,
		metrics: opts.metricsCollector,
		rc:      opts.resourceController,
		manifest: &storage.Manifest{
			Version:    storage.ManifestVersion,
			Native:     true,
			Classic:    opts.classicModel,
			Codec:      opts.codec.Name(),
			Provenance: buildProvenance(),
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		types:      make(map[dtype.ID]*UserType),
		nextTypeID: dtype.FirstUserID,
		classic:    opts.classicModel,
		defineMode: true,
	}
	ds.root = newGroup(ds, nil, "", 0)
	ds.root.structDirty = true

	ds.logger.InfoContext(ctx, "dataset created", "classic", ds.classic, "codec", ds.codec.Name())
	return ds, nil
}

// Open loads an existing dataset. The manifest decides the payload codec
// and the compatibility model; options cannot override either. The dataset
// starts in data mode.
func Open(ctx context.Context, store storage.Store, optFns ...Option) (*Dataset, error) {
	opts := applyOptions(optFns)

	m, err := store.LoadManifest(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNoManifest) {
			// Not wrapped: callers branch on it to create instead.
			return nil, err
		}
		return nil, &StoreError{Op: "load manifest", Loc: storage.RootLocation(), cause: err}
	}

	c := opts.codec
	if m.Codec != "" {
		cc, ok := codec.ByName(m.Codec)
		if !ok {
			return nil, fmt.Errorf("%w: manifest names %q", ErrUnknownCodec, m.Codec)
		}
		c = cc
	}

	ds := &Dataset{
		store:      store,
		codec:      c,
		logger:     opts.logger,
		metrics:    opts.metricsCollector,
		rc:         opts.resourceController,
		manifest:   m,
		types:      make(map[dtype.ID]*UserType),
		nextTypeID: dtype.FirstUserID,
		classic:    m.Classic,
		readOnly:   opts.readOnly,
	}
	ds.root = newGroup(ds, nil, "", 0)
	ds.root.created = true

	if err := ds.loadTree(ctx); err != nil {
		return nil, err
	}

	ds.logger.InfoContext(ctx, "dataset opened", "seq", m.Seq, "classic", ds.classic, "read_only", ds.readOnly)
	return ds, nil
}

// Root returns the root group.
func (ds *Dataset) Root() *Group { return ds.root }

// Manifest returns a copy of the current manifest.
func (ds *Dataset) Manifest() *storage.Manifest {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.manifest.Clone()
}

// Classic reports whether the dataset enforces the classic compatibility
// model.
func (ds *Dataset) Classic() bool { return ds.classic }

// ReadOnly reports whether the dataset rejects mutations.
func (ds *Dataset) ReadOnly() bool { return ds.readOnly }

// InDefineMode reports whether the dataset currently permits structural
// metadata changes.
func (ds *Dataset) InDefineMode() bool {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.defineMode
}

// TypeByID returns the user type registered under the given identifier.
func (ds *Dataset) TypeByID(id dtype.ID) (*UserType, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	t, ok := ds.types[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrTypeNotFound, uint32(id))
	}
	return t, nil
}

// Redef puts the dataset into definition mode. Being there already is not
// an error.
func (ds *Dataset) Redef() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if err := ds.requireWritable(); err != nil {
		return err
	}
	ds.defineMode = true
	return nil
}

// EndDef leaves definition mode and commits pending metadata.
func (ds *Dataset) EndDef(ctx context.Context) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if err := ds.requireWritable(); err != nil {
		return err
	}
	ds.defineMode = false
	return ds.commitLocked(ctx)
}

// Commit flushes every dirty attribute and container to the backing store,
// then installs a manifest with the next sequence number.
func (ds *Dataset) Commit(ctx context.Context) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if err := ds.requireWritable(); err != nil {
		return err
	}
	return ds.commitLocked(ctx)
}

// Close commits pending metadata unless the dataset is read-only, then
// releases the store. Close is idempotent; every other operation after it
// fails with ErrClosed.
func (ds *Dataset) Close(ctx context.Context) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.closed {
		return nil
	}

	var firstErr error
	if !ds.readOnly {
		if err := ds.commitLocked(ctx); err != nil {
			firstErr = err
		}
	}
	if err := ds.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	ds.closed = true

	if firstErr != nil {
		ds.logger.ErrorContext(ctx, "dataset close failed", "error", firstErr)
	} else {
		ds.logger.InfoContext(ctx, "dataset closed")
	}
	return firstErr
}

func (ds *Dataset) requireWritable() error {
	if ds.closed {
		return ErrClosed
	}
	if ds.readOnly {
		return ErrReadOnly
	}
	return nil
}

// requireDefine enters definition mode implicitly where the model allows
// it. The classic model forbids implicit entry.
func (ds *Dataset) requireDefine() error {
	if err := ds.requireWritable(); err != nil {
		return err
	}
	if ds.defineMode {
		return nil
	}
	if ds.classic {
		return ErrNotInDefineMode
	}
	ds.defineMode = true
	return nil
}

// userType returns the registered user type for id.
func (ds *Dataset) userType(id dtype.ID) (*UserType, bool) {
	t, ok := ds.types[id]
	return t, ok
}

// classOf resolves the class of a concrete type id, consulting the type
// registry for user-defined identifiers.
func (ds *Dataset) classOf(id dtype.ID) dtype.Class {
	if c := dtype.ClassOf(id); c != dtype.ClassInvalid {
		return c
	}
	if t, ok := ds.types[id]; ok {
		return t.class
	}
	return dtype.ClassInvalid
}

// elemMemSize returns the in-memory element size of a concrete type id, or
// zero when the id is unknown.
func (ds *Dataset) elemMemSize(id dtype.ID) int {
	if s := dtype.Size(id); s > 0 {
		return s
	}
	if t, ok := ds.types[id]; ok {
		return t.MemSize()
	}
	return 0
}
