// Package badgerstore implements storage.Store on BadgerDB, an embedded
// key-value store. It suits datasets that need crash-safe local persistence
// with a single database file tree instead of one file per attribute.
//
// Key namespaces:
//
//	Data type   Prefix  Key format                      Value
//	=========================================================
//	Manifest    "m:"    m:current                       Manifest (JSON)
//	Container   "c:"    c:<container key>               empty
//	Attribute   "a:"    a:<container key>/attrs/<name>  payload blob
//
// Container keys come from Location.Key(), whose fixed group/var markers
// keep prefixes unambiguous for any legal object name.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/hupe1980/gridgo/storage"
)

const manifestKey = "m:current"

func containerKey(loc storage.Location) []byte {
	return []byte("c:" + loc.Key())
}

func attrKey(loc storage.Location, name string) []byte {
	return []byte("a:" + loc.Key() + "/attrs/" + name)
}

func attrPrefix(loc storage.Location) []byte {
	return []byte("a:" + loc.Key() + "/attrs/")
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	badgerOptions *badger.Options
	inMemory      bool
}

// WithBadgerOptions replaces the tuned defaults entirely. The path argument
// of New is ignored when this option is set.
func WithBadgerOptions(opts badger.Options) Option {
	return func(o *storeOptions) {
		o.badgerOptions = &opts
	}
}

// WithInMemory keeps the whole database in memory. Nothing survives Close;
// meant for tests and ephemeral datasets.
func WithInMemory() Option {
	return func(o *storeOptions) {
		o.inMemory = true
	}
}

// Store is a BadgerDB-backed storage.Store.
type Store struct {
	db *badger.DB
}

var _ storage.Store = (*Store)(nil)

// New opens or creates a store at path. Badger holds its own directory
// lock, so the one-writer-per-dataset model comes for free.
func New(path string, optFns ...Option) (*Store, error) {
	var o storeOptions
	for _, fn := range optFns {
		fn(&o)
	}

	var opts badger.Options
	switch {
	case o.badgerOptions != nil:
		opts = *o.badgerOptions
	case o.inMemory:
		opts = badger.DefaultOptions("").WithInMemory(true)
		opts = opts.WithLoggingLevel(badger.WARNING)
	default:
		opts = badger.DefaultOptions(path)
		opts = opts.WithLoggingLevel(badger.WARNING)
		// Attribute blobs arrive codec-compressed already.
		opts = opts.WithCompression(options.None)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// LoadManifest implements storage.Store.
func (s *Store) LoadManifest(_ context.Context) (*storage.Manifest, error) {
	var m storage.Manifest
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(manifestKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNoManifest
	}
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	if m.Version != storage.ManifestVersion {
		return nil, fmt.Errorf("unsupported manifest version: %d (expected %d)", m.Version, storage.ManifestVersion)
	}
	return &m, nil
}

// CommitManifest implements storage.Store. The read-check-write runs in one
// serializable transaction, so concurrent commits cannot both win.
func (s *Store) CommitManifest(_ context.Context, m *storage.Manifest) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(manifestKey))
		switch {
		case err == nil:
			var existing storage.Manifest
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &existing)
			}); err != nil {
				return err
			}
			if existing.Seq >= m.Seq {
				return fmt.Errorf("%w: store at seq %d, commit at seq %d", storage.ErrConcurrentCommit, existing.Seq, m.Seq)
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		stamped := m.Clone()
		stamped.Version = storage.ManifestVersion
		data, err := json.Marshal(stamped)
		if err != nil {
			return err
		}
		return txn.Set([]byte(manifestKey), data)
	})
}

// EnsureContainer implements storage.Store.
func (s *Store) EnsureContainer(_ context.Context, loc storage.Location) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(containerKey(loc), nil)
	})
}

// RemoveContainer implements storage.Store. The container marker, every
// attribute under it and every nested container go in one transaction.
func (s *Store) RemoveContainer(_ context.Context, loc storage.Location) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := containerKey(loc)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("container %s: %w", loc, storage.ErrNotFound)
			}
			return err
		}

		doomed := [][]byte{key}
		for _, prefix := range [][]byte{
			[]byte("c:" + loc.Key() + "/"),
			[]byte("a:" + loc.Key() + "/"),
		} {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = prefix
			it := txn.NewIterator(opts)
			for it.Rewind(); it.Valid(); it.Next() {
				doomed = append(doomed, it.Item().KeyCopy(nil))
			}
			it.Close()
		}

		for _, k := range doomed {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// PutAttribute implements storage.Store.
func (s *Store) PutAttribute(_ context.Context, loc storage.Location, name string, blob []byte) error {
	// The transaction keeps a reference to the value until commit.
	copied := make([]byte, len(blob))
	copy(copied, blob)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(attrKey(loc, name), copied)
	})
}

// GetAttribute implements storage.Store.
func (s *Store) GetAttribute(_ context.Context, loc storage.Location, name string) ([]byte, error) {
	var blob []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(attrKey(loc, name))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("attribute %s at %s: %w", name, loc, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if blob == nil {
		blob = []byte{}
	}
	return blob, nil
}

// DeleteAttribute implements storage.Store.
func (s *Store) DeleteAttribute(_ context.Context, loc storage.Location, name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := attrKey(loc, name)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("attribute %s at %s: %w", name, loc, storage.ErrNotFound)
			}
			return err
		}
		return txn.Delete(key)
	})
}

// ListAttributes implements storage.Store. Badger iterates in byte order,
// which is the lexical order the contract asks for.
func (s *Store) ListAttributes(_ context.Context, loc storage.Location) ([]string, error) {
	prefix := attrPrefix(loc)
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			names = append(names, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Close implements storage.Store.
func (s *Store) Close() error {
	return s.db.Close()
}
