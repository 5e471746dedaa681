package minio_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gridgo/storage"
	miniostore "github.com/hupe1980/gridgo/storage/minio"
	"github.com/hupe1980/gridgo/storage/storetest"
)

// newTestClient connects to a local MinIO instance and skips the test when
// none is reachable. Override the endpoint with GRIDGO_MINIO_ENDPOINT.
func newTestClient(t *testing.T) *miniogo.Client {
	t.Helper()

	endpoint := os.Getenv("GRIDGO_MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}

	client, err := miniogo.New(endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("minio client creation failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("minio not available at %s: %v", endpoint, err)
	}
	return client
}

func ensureBucket(t *testing.T, client *miniogo.Client, bucket string) {
	t.Helper()
	ctx := context.Background()

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}))
	}
}

func TestConformance(t *testing.T) {
	client := newTestClient(t)
	bucket := "gridgo-test"
	ensureBucket(t, client, bucket)

	n := 0
	suite := &storetest.Suite{
		New: func(t *testing.T) storage.Store {
			// Fresh prefix per test so suites do not see each other's
			// objects.
			n++
			return miniostore.New(client, bucket, fmt.Sprintf("conformance-%d-%d/", time.Now().UnixNano(), n))
		},
	}
	suite.Run(t)
}

func TestAttributeRoundTrip(t *testing.T) {
	client := newTestClient(t)
	bucket := "gridgo-test"
	ensureBucket(t, client, bucket)

	ctx := context.Background()
	store := miniostore.New(client, bucket, fmt.Sprintf("roundtrip-%d/", time.Now().UnixNano()))
	loc := storage.RootLocation().WithVar("sst")

	require.NoError(t, store.EnsureContainer(ctx, loc))
	require.NoError(t, store.PutAttribute(ctx, loc, "units", []byte("degC")))

	blob, err := store.GetAttribute(ctx, loc, "units")
	require.NoError(t, err)
	require.Equal(t, []byte("degC"), blob)

	names, err := store.ListAttributes(ctx, loc)
	require.NoError(t, err)
	require.Equal(t, []string{"units"}, names)

	require.NoError(t, store.DeleteAttribute(ctx, loc, "units"))
	_, err = store.GetAttribute(ctx, loc, "units")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
