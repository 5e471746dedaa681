package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store implementation for testing and
// ephemeral datasets. Thread-safe for concurrent reads and writes.
type MemoryStore struct {
	mu         sync.RWMutex
	manifest   *Manifest
	containers map[string]struct{}
	attrs      map[string][]byte // containerKey + "/attrs/" + name
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		containers: make(map[string]struct{}),
		attrs:      make(map[string][]byte),
	}
}

func attrKey(loc Location, name string) string {
	return loc.Key() + "/attrs/" + name
}

// LoadManifest implements Store.
func (m *MemoryStore) LoadManifest(_ context.Context) (*Manifest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.manifest == nil {
		return nil, ErrNoManifest
	}
	return m.manifest.Clone(), nil
}

// CommitManifest implements Store.
func (m *MemoryStore) CommitManifest(_ context.Context, mf *Manifest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.manifest != nil && m.manifest.Seq >= mf.Seq {
		return fmt.Errorf("%w: store at seq %d, commit at seq %d", ErrConcurrentCommit, m.manifest.Seq, mf.Seq)
	}
	m.manifest = mf.Clone()
	return nil
}

// EnsureContainer implements Store.
func (m *MemoryStore) EnsureContainer(_ context.Context, loc Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.containers[loc.Key()] = struct{}{}
	return nil
}

// RemoveContainer implements Store.
func (m *MemoryStore) RemoveContainer(_ context.Context, loc Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := loc.Key()
	if _, ok := m.containers[key]; !ok {
		return fmt.Errorf("container %s: %w", loc, ErrNotFound)
	}
	delete(m.containers, key)
	prefix := key + "/"
	for k := range m.attrs {
		if strings.HasPrefix(k, prefix) {
			delete(m.attrs, k)
		}
	}
	for k := range m.containers {
		if strings.HasPrefix(k, prefix) {
			delete(m.containers, k)
		}
	}
	return nil
}

// PutAttribute implements Store.
func (m *MemoryStore) PutAttribute(_ context.Context, loc Location, name string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy to prevent external mutation.
	copied := make([]byte, len(blob))
	copy(copied, blob)
	m.attrs[attrKey(loc, name)] = copied
	return nil
}

// GetAttribute implements Store.
func (m *MemoryStore) GetAttribute(_ context.Context, loc Location, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	blob, ok := m.attrs[attrKey(loc, name)]
	if !ok {
		return nil, fmt.Errorf("attribute %s at %s: %w", name, loc, ErrNotFound)
	}
	copied := make([]byte, len(blob))
	copy(copied, blob)
	return copied, nil
}

// DeleteAttribute implements Store.
func (m *MemoryStore) DeleteAttribute(_ context.Context, loc Location, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := attrKey(loc, name)
	if _, ok := m.attrs[key]; !ok {
		return fmt.Errorf("attribute %s at %s: %w", name, loc, ErrNotFound)
	}
	delete(m.attrs, key)
	return nil
}

// ListAttributes implements Store.
func (m *MemoryStore) ListAttributes(_ context.Context, loc Location) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := loc.Key() + "/attrs/"
	var names []string
	for k := range m.attrs {
		if rest, ok := strings.CutPrefix(k, prefix); ok && !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
