// Package minio implements storage.Store on MinIO or any S3-compatible
// endpoint reachable through the minio-go client.
//
// The object layout matches the s3 package:
//
//	CURRENT                          name of the current manifest object
//	manifests/MANIFEST-%06d.json     one object per committed manifest
//	<container key>/.container      container marker
//	<container key>/attrs/<name>    one object per attribute payload
//
// Manifest commits are read-then-write; the dataset's single-writer model
// makes that safe. Multi-writer deployments should commit through the s3
// package's DDBCommitStore instead.
package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/gridgo/storage"
)

const (
	currentObjectName = "CURRENT"
	markerObjectName  = ".container"
)

// Store is a MinIO-backed storage.Store.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ storage.Store = (*Store)(nil)

// New creates a store on the given bucket. rootPrefix is prepended to every
// key (e.g. "datasets/sst/"). The bucket must already exist.
func New(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NotFound"
}

func (s *Store) getObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	// minio-go defers the request until the first read, so missing objects
	// surface here, not from GetObject.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) putObject(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	return err
}

func (s *Store) statObject(ctx context.Context, key string) error {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	return err
}

// listKeys returns every object key under fullPrefix, relative to it, in
// lexical order.
func (s *Store) listKeys(ctx context.Context, fullPrefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    fullPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		rel := strings.TrimPrefix(obj.Key, fullPrefix)
		if rel != "" {
			keys = append(keys, rel)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// LoadManifest implements storage.Store.
func (s *Store) LoadManifest(ctx context.Context) (*storage.Manifest, error) {
	current, err := s.getObject(ctx, s.key(currentObjectName))
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrNoManifest
		}
		return nil, fmt.Errorf("load manifest pointer: %w", err)
	}

	name := strings.TrimSpace(string(current))
	data, err := s.getObject(ctx, s.key(name))
	if err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", name, err)
	}

	var m storage.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Version != storage.ManifestVersion {
		return nil, fmt.Errorf("unsupported manifest version: %d (expected %d)", m.Version, storage.ManifestVersion)
	}
	return &m, nil
}

// CommitManifest implements storage.Store.
func (s *Store) CommitManifest(ctx context.Context, m *storage.Manifest) error {
	existing, err := s.LoadManifest(ctx)
	switch {
	case err == nil:
		if existing.Seq >= m.Seq {
			return fmt.Errorf("%w: store at seq %d, commit at seq %d", storage.ErrConcurrentCommit, existing.Seq, m.Seq)
		}
	case !errors.Is(err, storage.ErrNoManifest):
		return err
	}

	stamped := m.Clone()
	stamped.Version = storage.ManifestVersion
	data, err := json.MarshalIndent(stamped, "", "  ")
	if err != nil {
		return err
	}

	name := fmt.Sprintf("manifests/MANIFEST-%06d.json", m.Seq)
	if err := s.putObject(ctx, s.key(name), data); err != nil {
		return fmt.Errorf("put manifest %s: %w", name, err)
	}
	return s.putObject(ctx, s.key(currentObjectName), []byte(name))
}

// EnsureContainer implements storage.Store.
func (s *Store) EnsureContainer(ctx context.Context, loc storage.Location) error {
	return s.putObject(ctx, s.key(loc.Key()+"/"+markerObjectName), nil)
}

// RemoveContainer implements storage.Store.
func (s *Store) RemoveContainer(ctx context.Context, loc storage.Location) error {
	marker := s.key(loc.Key() + "/" + markerObjectName)
	if err := s.statObject(ctx, marker); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("container %s: %w", loc, storage.ErrNotFound)
		}
		return err
	}

	fullPrefix := s.key(loc.Key()) + "/"
	keys, err := s.listKeys(ctx, fullPrefix)
	if err != nil {
		return err
	}
	for _, rel := range keys {
		if err := s.client.RemoveObject(ctx, s.bucket, fullPrefix+rel, minio.RemoveObjectOptions{}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) attrObjectKey(loc storage.Location, name string) string {
	return s.key(loc.Key() + "/attrs/" + name)
}

// PutAttribute implements storage.Store.
func (s *Store) PutAttribute(ctx context.Context, loc storage.Location, name string, blob []byte) error {
	return s.putObject(ctx, s.attrObjectKey(loc, name), blob)
}

// GetAttribute implements storage.Store.
func (s *Store) GetAttribute(ctx context.Context, loc storage.Location, name string) ([]byte, error) {
	blob, err := s.getObject(ctx, s.attrObjectKey(loc, name))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("attribute %s at %s: %w", name, loc, storage.ErrNotFound)
		}
		return nil, err
	}
	return blob, nil
}

// DeleteAttribute implements storage.Store. MinIO deletes are silently
// idempotent, so a stat probe supplies the missing-object error the
// contract asks for.
func (s *Store) DeleteAttribute(ctx context.Context, loc storage.Location, name string) error {
	key := s.attrObjectKey(loc, name)
	if err := s.statObject(ctx, key); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("attribute %s at %s: %w", name, loc, storage.ErrNotFound)
		}
		return err
	}
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// ListAttributes implements storage.Store.
func (s *Store) ListAttributes(ctx context.Context, loc storage.Location) ([]string, error) {
	return s.listKeys(ctx, s.key(loc.Key()+"/attrs")+"/")
}

// Close implements storage.Store. The client belongs to the caller.
func (s *Store) Close() error { return nil }
