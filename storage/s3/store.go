// Package s3 implements storage.Store on Amazon S3 or any S3-compatible
// object store.
//
// Object layout under the configured root prefix:
//
//	CURRENT                          name of the current manifest object
//	manifests/MANIFEST-%06d.json     one object per committed manifest
//	<container key>/.container      container marker
//	<container key>/attrs/<name>    one object per attribute payload
//
// Plain S3 cannot compare-and-swap the CURRENT pointer, so the sequence
// check in CommitManifest is read-then-write. That matches the dataset's
// single-writer model; deployments that need multi-writer safety commit
// through DDBCommitStore, which points CURRENT at DynamoDB conditional
// writes instead.
package s3

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

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/gridgo/storage"
)

const (
	currentObjectName = "CURRENT"
	markerObjectName  = ".container"

	// multipartThreshold routes objects at or above this size through the
	// upload manager instead of a single PutObject.
	multipartThreshold = 8 << 20
)

// Client is the narrow S3 surface the store needs. *s3.Client satisfies it;
// tests substitute fakes.
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store is an S3-backed storage.Store.
type Store struct {
	client Client
	bucket string
	prefix string

	// uploader handles objects at or above multipartThreshold. Nil when
	// the store was built on a narrow Client; single puts then carry
	// everything.
	uploader *manager.Uploader
}

var _ storage.Store = (*Store)(nil)

// New creates a store on the given bucket. rootPrefix is prepended to every
// key (e.g. "datasets/sst/").
func New(client Client, bucket, rootPrefix string) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
	}
}

// NewDefault creates a store using the ambient AWS configuration:
// environment, shared config files, instance metadata. Large objects go
// through the multipart upload manager.
func NewDefault(ctx context.Context, bucket, rootPrefix string, optFns ...func(*awsconfig.LoadOptions) error) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)

	s := New(client, bucket, rootPrefix)
	s.uploader = manager.NewUploader(client)
	return s, nil
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	return errors.As(err, &nsk)
}

func (s *Store) getObject(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s *Store) putObject(ctx context.Context, key string, data []byte) error {
	if s.uploader != nil && len(data) >= multipartThreshold {
		_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		return err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	return err
}

// listKeys returns every object key under fullPrefix, relative to it, in
// lexical order.
func (s *Store) listKeys(ctx context.Context, fullPrefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(fullPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			rel := strings.TrimPrefix(*obj.Key, fullPrefix)
			if rel != "" {
				keys = append(keys, rel)
			}
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
	return s.loadManifestObject(ctx, strings.TrimSpace(string(current)))
}

func (s *Store) loadManifestObject(ctx context.Context, name string) (*storage.Manifest, error) {
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

func manifestObjectName(seq uint64) string {
	return fmt.Sprintf("manifests/MANIFEST-%06d.json", seq)
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

	name, err := s.putManifestObject(ctx, m)
	if err != nil {
		return err
	}
	return s.putObject(ctx, s.key(currentObjectName), []byte(name))
}

func (s *Store) putManifestObject(ctx context.Context, m *storage.Manifest) (string, error) {
	stamped := m.Clone()
	stamped.Version = storage.ManifestVersion
	data, err := json.MarshalIndent(stamped, "", "  ")
	if err != nil {
		return "", err
	}
	name := manifestObjectName(m.Seq)
	if err := s.putObject(ctx, s.key(name), data); err != nil {
		return "", fmt.Errorf("put manifest %s: %w", name, err)
	}
	return name, nil
}

// EnsureContainer implements storage.Store.
func (s *Store) EnsureContainer(ctx context.Context, loc storage.Location) error {
	return s.putObject(ctx, s.key(loc.Key()+"/"+markerObjectName), nil)
}

// RemoveContainer implements storage.Store. S3 has no recursive delete, so
// every object under the container prefix goes one DeleteObject at a time.
func (s *Store) RemoveContainer(ctx context.Context, loc storage.Location) error {
	marker := s.key(loc.Key() + "/" + markerObjectName)
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(marker),
	}); err != nil {
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
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(fullPrefix + rel),
		}); err != nil {
			return err
		}
	}
	return nil
}

// PutAttribute implements storage.Store.
func (s *Store) PutAttribute(ctx context.Context, loc storage.Location, name string, blob []byte) error {
	return s.putObject(ctx, s.attrObjectKey(loc, name), blob)
}

func (s *Store) attrObjectKey(loc storage.Location, name string) string {
	return s.key(loc.Key() + "/attrs/" + name)
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

// DeleteAttribute implements storage.Store. S3 deletes are silently
// idempotent, so a head probe supplies the missing-object error the
// contract asks for.
func (s *Store) DeleteAttribute(ctx context.Context, loc storage.Location, name string) error {
	key := s.attrObjectKey(loc, name)
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("attribute %s at %s: %w", name, loc, storage.ErrNotFound)
		}
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// ListAttributes implements storage.Store.
func (s *Store) ListAttributes(ctx context.Context, loc storage.Location) ([]string, error) {
	// path.Join strips trailing slashes; the prefix needs one so relative
	// names come back clean.
	return s.listKeys(ctx, s.key(loc.Key()+"/attrs")+"/")
}

// Close implements storage.Store. The S3 client belongs to the caller.
func (s *Store) Close() error { return nil }
