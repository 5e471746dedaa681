package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/gridgo/internal/fs"
)

const (
	manifestFileName = "MANIFEST"
	currentFileName  = "CURRENT"
	lockFileName     = "LOCK"
	attrsDirName     = "attrs"
)

// LocalStore is a Store rooted in a local directory. Attribute and manifest
// writes are atomic (temp file, fsync, rename). A single exclusive flock on
// LOCK enforces the one-writer-per-dataset model across processes.
type LocalStore struct {
	fsys   fs.FileSystem
	root   string
	unlock func() error
	mu     sync.Mutex
}

// LocalOption configures a LocalStore.
type LocalOption func(*localOptions)

type localOptions struct {
	fsys fs.FileSystem
}

// WithFileSystem injects a FileSystem, mainly for fault-injection tests.
// Injected file systems skip the process lock, which belongs to the real
// one.
func WithFileSystem(fsys fs.FileSystem) LocalOption {
	return func(o *localOptions) {
		o.fsys = fsys
	}
}

// NewLocalStore opens or initializes a store in the given directory.
func NewLocalStore(root string, optFns ...LocalOption) (*LocalStore, error) {
	opts := localOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &LocalStore{root: root}
	if opts.fsys != nil {
		s.fsys = opts.fsys
	} else {
		s.fsys = fs.Default
	}

	if err := s.fsys.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}

	if opts.fsys == nil {
		unlock, err := lockFile(filepath.Join(root, lockFileName))
		if err != nil {
			return nil, err
		}
		s.unlock = unlock
	}
	return s, nil
}

func (s *LocalStore) readFile(path string) ([]byte, error) {
	f, err := s.fsys.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// writeFileAtomic writes data through a temp file, fsyncs it and renames it
// into place.
func (s *LocalStore) writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := s.fsys.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		s.fsys.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		s.fsys.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		s.fsys.Remove(tmpPath)
		return err
	}
	if err := s.fsys.Rename(tmpPath, path); err != nil {
		s.fsys.Remove(tmpPath)
		return err
	}
	return s.syncDir(filepath.Dir(path))
}

func (s *LocalStore) syncDir(dir string) error {
	f, err := s.fsys.OpenFile(dir, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// LoadManifest implements Store.
func (s *LocalStore) LoadManifest(_ context.Context) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadManifestLocked()
}

func (s *LocalStore) loadManifestLocked() (*Manifest, error) {
	content, err := s.readFile(filepath.Join(s.root, currentFileName))
	if os.IsNotExist(err) {
		return nil, ErrNoManifest
	}
	if err != nil {
		return nil, err
	}

	data, err := s.readFile(filepath.Join(s.root, strings.TrimSpace(string(content))))
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("unsupported manifest version: %d (expected %d)", m.Version, ManifestVersion)
	}
	return &m, nil
}

// CommitManifest implements Store.
func (s *LocalStore) CommitManifest(_ context.Context, m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := s.loadManifestLocked(); err == nil {
		if existing.Seq >= m.Seq {
			return fmt.Errorf("%w: store at seq %d, commit at seq %d", ErrConcurrentCommit, existing.Seq, m.Seq)
		}
	} else if err != ErrNoManifest {
		return err
	}

	m.Version = ManifestVersion
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("%s-%06d.json", manifestFileName, m.Seq)
	if err := s.writeFileAtomic(filepath.Join(s.root, filename), data); err != nil {
		return err
	}
	return s.writeFileAtomic(filepath.Join(s.root, currentFileName), []byte(filename))
}

func (s *LocalStore) containerDir(loc Location) string {
	return filepath.Join(s.root, filepath.FromSlash(loc.Key()))
}

// EnsureContainer implements Store.
func (s *LocalStore) EnsureContainer(_ context.Context, loc Location) error {
	return s.fsys.MkdirAll(filepath.Join(s.containerDir(loc), attrsDirName), 0o755)
}

// RemoveContainer implements Store.
func (s *LocalStore) RemoveContainer(_ context.Context, loc Location) error {
	dir := s.containerDir(loc)
	if _, err := s.fsys.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("container %s: %w", loc, ErrNotFound)
		}
		return err
	}
	return s.fsys.RemoveAll(dir)
}

// PutAttribute implements Store.
func (s *LocalStore) PutAttribute(ctx context.Context, loc Location, name string, blob []byte) error {
	if err := s.EnsureContainer(ctx, loc); err != nil {
		return err
	}
	return s.writeFileAtomic(filepath.Join(s.containerDir(loc), attrsDirName, name), blob)
}

// GetAttribute implements Store.
func (s *LocalStore) GetAttribute(_ context.Context, loc Location, name string) ([]byte, error) {
	data, err := s.readFile(filepath.Join(s.containerDir(loc), attrsDirName, name))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("attribute %s at %s: %w", name, loc, ErrNotFound)
	}
	return data, err
}

// DeleteAttribute implements Store.
func (s *LocalStore) DeleteAttribute(_ context.Context, loc Location, name string) error {
	err := s.fsys.Remove(filepath.Join(s.containerDir(loc), attrsDirName, name))
	if os.IsNotExist(err) {
		return fmt.Errorf("attribute %s at %s: %w", name, loc, ErrNotFound)
	}
	return err
}

// ListAttributes implements Store.
func (s *LocalStore) ListAttributes(_ context.Context, loc Location) ([]string, error) {
	entries, err := s.fsys.ReadDir(filepath.Join(s.containerDir(loc), attrsDirName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Close implements Store.
func (s *LocalStore) Close() error {
	if s.unlock != nil {
		err := s.unlock()
		s.unlock = nil
		return err
	}
	return nil
}
