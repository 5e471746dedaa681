// Package storage defines the object protocol a gridgo dataset persists
// through, plus the in-memory and local-directory implementations.
//
// A store holds three kinds of objects: one manifest per dataset, one
// container object per group or variable, and one attribute object per
// committed attribute. The metadata engine creates containers and attribute
// objects lazily at commit time; the only synchronous store call outside a
// commit is DeleteAttribute, issued when an already-committed attribute is
// renamed or deleted.
//
// Implementations must be safe for concurrent use.
package storage

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"
)

// ErrNotFound is returned when a container or attribute object does not
// exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// ErrNoManifest is returned by LoadManifest on a store that has never been
// committed to.
var ErrNoManifest = errors.New("no manifest")

// ErrConcurrentCommit is returned when a manifest commit loses against a
// newer sequence number already in the store.
var ErrConcurrentCommit = errors.New("concurrent manifest commit")

// ErrLocked is returned when another process holds the store's writer lock.
var ErrLocked = errors.New("store locked by another process")

// ManifestVersion is the manifest format version written by this package.
const ManifestVersion = 1

// Manifest is the dataset superblock: the single commit point describing
// the container tree's format and provenance.
type Manifest struct {
	Version    int       `json:"version"`
	Seq        uint64    `json:"seq"`
	Native     bool      `json:"native"`
	Classic    bool      `json:"classic"`
	Codec      string    `json:"codec"`
	Provenance string    `json:"provenance,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	if m == nil {
		return nil
	}
	out := *m
	return &out
}

// Location addresses a container: a group, or a variable inside a group.
type Location struct {
	// GroupPath is the group name chain from the root. Empty means the
	// root group.
	GroupPath []string
	// Var is the variable name, or "" when the location is the group
	// itself.
	Var string
}

// RootLocation addresses the root group.
func RootLocation() Location { return Location{} }

// GroupLocation addresses a group by its name chain from the root.
func GroupLocation(path ...string) Location {
	return Location{GroupPath: path}
}

// Child returns the location of a subgroup. It panics on variable
// locations, which have no children.
func (l Location) Child(group string) Location {
	if l.Var != "" {
		panic("storage: variable locations have no child groups")
	}
	path := make([]string, 0, len(l.GroupPath)+1)
	path = append(path, l.GroupPath...)
	path = append(path, group)
	return Location{GroupPath: path}
}

// WithVar returns the location of a variable inside this group.
func (l Location) WithVar(name string) Location {
	path := make([]string, len(l.GroupPath))
	copy(path, l.GroupPath)
	return Location{GroupPath: path, Var: name}
}

// IsVar reports whether the location addresses a variable.
func (l Location) IsVar() bool { return l.Var != "" }

// Key returns the canonical object key of the container. Group and
// variable segments alternate with fixed markers, so keys stay unambiguous
// for any legal object name (names never contain a slash).
func (l Location) Key() string {
	var sb strings.Builder
	sb.WriteString("tree")
	for _, g := range l.GroupPath {
		sb.WriteString("/groups/")
		sb.WriteString(g)
	}
	if l.Var != "" {
		sb.WriteString("/vars/")
		sb.WriteString(l.Var)
	}
	return sb.String()
}

// String returns a human-readable form: "/", "/a/b" or "/a/b:var".
func (l Location) String() string {
	var sb strings.Builder
	if len(l.GroupPath) == 0 {
		sb.WriteString("/")
	} else {
		for _, g := range l.GroupPath {
			sb.WriteString("/")
			sb.WriteString(g)
		}
	}
	if l.Var != "" {
		sb.WriteString(":")
		sb.WriteString(l.Var)
	}
	return sb.String()
}

// Store is the persistence contract of a gridgo dataset.
type Store interface {
	// LoadManifest returns the current manifest, or ErrNoManifest on a
	// fresh store.
	LoadManifest(ctx context.Context) (*Manifest, error)

	// CommitManifest atomically installs m as the current manifest. The
	// commit fails with ErrConcurrentCommit when the store already holds a
	// manifest with an equal or newer sequence number.
	CommitManifest(ctx context.Context, m *Manifest) error

	// EnsureContainer creates the container object for loc if it does not
	// exist. Creating a variable container does not require a prior
	// EnsureContainer of its group, but stores may create parents as a
	// side effect.
	EnsureContainer(ctx context.Context, loc Location) error

	// RemoveContainer deletes the container and every attribute object
	// under it. Removing a missing container returns ErrNotFound.
	RemoveContainer(ctx context.Context, loc Location) error

	// PutAttribute creates or replaces the named attribute object.
	PutAttribute(ctx context.Context, loc Location, name string, blob []byte) error

	// GetAttribute returns the attribute object's bytes.
	GetAttribute(ctx context.Context, loc Location, name string) ([]byte, error)

	// DeleteAttribute removes the named attribute object. Deleting a
	// missing attribute returns ErrNotFound.
	DeleteAttribute(ctx context.Context, loc Location, name string) error

	// ListAttributes returns the attribute object names under loc in
	// lexical order. Storage order is not index order; the engine keeps
	// the authoritative ordering in the container's metadata object.
	// Listing a missing container yields an empty list.
	ListAttributes(ctx context.Context, loc Location) ([]string, error)

	// Close releases store resources.
	Close() error
}
