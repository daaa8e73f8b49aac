//go:build integration
// +build integration

package cloudstage_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calyptra-io/cloudstage"
	"github.com/calyptra-io/cloudstage/cloudtypes"
	s3driver "github.com/calyptra-io/cloudstage/driver/s3"
	cserrors "github.com/calyptra-io/cloudstage/errors"
	"github.com/calyptra-io/cloudstage/internal/testutil"
)

// newIntegrationStore builds a Store on a real SDK client pointed at
// LocalStack and creates its bucket.
func newIntegrationStore(
	t *testing.T,
	client *awss3.Client,
	bucket, rootPath string,
	opts ...cloudtypes.Option,
) *cloudstage.Store {
	t.Helper()

	backend := s3driver.NewWithClient(client, bucket)
	store, err := cloudstage.New(backend, rootPath, opts...)
	require.NoError(t, err)
	require.NoError(t, store.Setup(context.Background()))
	return store
}

// drainList collects every entry List yields, failing on iteration errors.
func drainList(t *testing.T, store *cloudstage.Store, prefix string) []cloudtypes.ObjectEntry {
	t.Helper()

	var entries []cloudtypes.ObjectEntry
	for entry := range store.List(context.Background(), prefix) {
		require.NoError(t, entry.Err)
		entries = append(entries, entry)
	}
	return entries
}

// TestIntegrationStoreBasics exercises the flat object operations against
// LocalStack.
func TestIntegrationStoreBasics(t *testing.T) {
	ctx := context.Background()
	client, cleanup := testutil.StartLocalStack(t)
	defer cleanup()

	bucket := testutil.GenerateTestBucketName("cloudstage")
	store := newIntegrationStore(t, client, bucket, "registry/data")
	require.NoError(t, store.Validate(ctx))

	t.Run("put get checksum remove", func(t *testing.T) {
		content := testutil.GenerateRandomData(1024)

		require.NoError(t, store.PutContent(ctx, "blobs/sample", content, ""))

		exists, err := store.Exists(ctx, "blobs/sample")
		require.NoError(t, err)
		assert.True(t, exists)

		got, err := store.GetContent(ctx, "blobs/sample")
		require.NoError(t, err)
		assert.True(t, bytes.Equal(content, got))

		sum, err := store.Checksum(ctx, "blobs/sample")
		require.NoError(t, err)
		expected := strings.Trim(testutil.CalculateETag(content), `"`)
		assert.Equal(t, expected[:7], sum)

		require.NoError(t, store.Remove(ctx, "blobs/sample"))

		exists, err = store.Exists(ctx, "blobs/sample")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = store.GetContent(ctx, "blobs/sample")
		assert.True(t, cserrors.IsNotFound(err))
	})

	t.Run("multipart stream write round trip", func(t *testing.T) {
		// Larger than one part buffer, so the write goes up as a real
		// multipart upload.
		content := testutil.GenerateRandomData(10 * 1024 * 1024)

		n, err := store.StreamWrite(ctx, "blobs/large", bytes.NewReader(content), int64(len(content)), "")
		require.NoError(t, err)
		assert.Equal(t, int64(len(content)), n)

		got, err := store.GetContent(ctx, "blobs/large")
		require.NoError(t, err)
		assert.True(t, bytes.Equal(content, got))

		require.NoError(t, store.Remove(ctx, "blobs/large"))
	})

	t.Run("list relative keys", func(t *testing.T) {
		require.NoError(t, store.PutContent(ctx, "listing/a", []byte("1"), ""))
		require.NoError(t, store.PutContent(ctx, "listing/b", []byte("2"), ""))

		entries := drainList(t, store, "listing")
		require.Len(t, entries, 2)
		assert.Equal(t, "listing/a", entries[0].Key)
		assert.Equal(t, "listing/b", entries[1].Key)

		require.NoError(t, store.Remove(ctx, "listing"))
		assert.Empty(t, drainList(t, store, "listing"))
	})

	t.Run("file round trip", func(t *testing.T) {
		content := testutil.GenerateRandomData(64 * 1024)
		tempDir := t.TempDir()

		source := filepath.Join(tempDir, "upload.bin")
		require.NoError(t, os.WriteFile(source, content, 0o644))
		require.NoError(t, store.PutFile(ctx, "files/upload.bin", source, ""))

		target := filepath.Join(tempDir, "download.bin")
		require.NoError(t, store.GetToFile(ctx, "files/upload.bin", target))

		got, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(content, got))
	})

	t.Run("setup tolerates an existing bucket", func(t *testing.T) {
		other := testutil.GenerateTestBucketName("cloudstage-pre")
		require.NoError(t, testutil.CreateTestBucket(ctx, client, other))
		t.Cleanup(func() {
			require.NoError(t, testutil.DrainTestBucket(ctx, client, other))
		})

		pre, err := cloudstage.New(s3driver.NewWithClient(client, other), "registry/data")
		require.NoError(t, err)
		require.NoError(t, pre.Setup(ctx))
		require.NoError(t, pre.Validate(ctx))
	})
}

// TestIntegrationChunkedUpload drives full resumable upload lifecycles
// against LocalStack, covering both assembly strategies.
func TestIntegrationChunkedUpload(t *testing.T) {
	ctx := context.Background()
	client, cleanup := testutil.StartLocalStack(t)
	defer cleanup()

	const maxChunk = 5 * 1024 * 1024

	bucket := testutil.GenerateTestBucketName("cloudstage")
	store := newIntegrationStore(t, client, bucket, "registry/data",
		cloudstage.WithMaxChunkSize(maxChunk))

	t.Run("server side assembly", func(t *testing.T) {
		// Two staged chunks: one at the split boundary and a smaller tail.
		content := testutil.GenerateRandomData(maxChunk + 1024*1024)

		uploadID, session := store.InitiateChunkedUpload()

		n, session, err := store.StreamUploadChunk(ctx, uploadID, int64(len(content)), bytes.NewReader(content), session)
		require.NoError(t, err)
		require.Equal(t, int64(len(content)), n)
		require.Len(t, session.Chunks, 2)

		require.NoError(t, store.CompleteChunkedUpload(ctx, uploadID, "blobs/assembled", session))

		got, err := store.GetContent(ctx, "blobs/assembled")
		require.NoError(t, err)
		assert.True(t, bytes.Equal(content, got))

		assert.Empty(t, drainList(t, store, "uploads"))
	})

	t.Run("client side join of undersized chunks", func(t *testing.T) {
		first := testutil.GenerateRandomData(1024)
		second := testutil.GenerateRandomData(2048)

		uploadID, session := store.InitiateChunkedUpload()

		_, session, err := store.StreamUploadChunk(ctx, uploadID, int64(len(first)), bytes.NewReader(first), session)
		require.NoError(t, err)
		_, session, err = store.StreamUploadChunk(ctx, uploadID, int64(len(second)), bytes.NewReader(second), session)
		require.NoError(t, err)
		require.Len(t, session.Chunks, 2)

		require.NoError(t, store.CompleteChunkedUpload(ctx, uploadID, "blobs/joined", session))

		got, err := store.GetContent(ctx, "blobs/joined")
		require.NoError(t, err)
		assert.True(t, bytes.Equal(append(first, second...), got))

		assert.Empty(t, drainList(t, store, "uploads"))
	})

	t.Run("empty upload", func(t *testing.T) {
		uploadID, session := store.InitiateChunkedUpload()

		require.NoError(t, store.CompleteChunkedUpload(ctx, uploadID, "blobs/empty", session))

		got, err := store.GetContent(ctx, "blobs/empty")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("cancel removes staged chunks", func(t *testing.T) {
		content := testutil.GenerateRandomData(4096)

		uploadID, session := store.InitiateChunkedUpload()

		_, session, err := store.StreamUploadChunk(ctx, uploadID, int64(len(content)), bytes.NewReader(content), session)
		require.NoError(t, err)
		require.Len(t, session.Chunks, 1)
		require.NotEmpty(t, drainList(t, store, "uploads"))

		require.NoError(t, store.CancelChunkedUpload(ctx, uploadID, session))
		assert.Empty(t, drainList(t, store, "uploads"))

		// Cancelling again is a no-op.
		require.NoError(t, store.CancelChunkedUpload(ctx, uploadID, session))
	})
}

// TestIntegrationMaintenance covers the sweep and copy paths against
// LocalStack.
func TestIntegrationMaintenance(t *testing.T) {
	ctx := context.Background()
	client, cleanup := testutil.StartLocalStack(t)
	defer cleanup()

	bucket := testutil.GenerateTestBucketName("cloudstage")
	store := newIntegrationStore(t, client, bucket, "registry/data")

	t.Run("sweep deletes only stale staging objects", func(t *testing.T) {
		require.NoError(t, store.PutContent(ctx, "blobs/final", []byte("keep me"), ""))

		content := testutil.GenerateRandomData(1024)
		uploadID, session := store.InitiateChunkedUpload()
		_, _, err := store.StreamUploadChunk(ctx, uploadID, int64(len(content)), bytes.NewReader(content), session)
		require.NoError(t, err)

		// A day-long horizon keeps the fresh chunk alive.
		result, err := store.CleanPartialUploads(ctx, 24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Scanned)
		assert.Equal(t, 0, result.Deleted)

		// Give the object's server-side timestamp room to fall behind the
		// zero-age cutoff before sweeping everything.
		time.Sleep(2 * time.Second)

		result, err = store.CleanPartialUploads(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Deleted)
		assert.Equal(t, int64(1024), result.ReclaimedBytes)
		assert.Empty(t, drainList(t, store, "uploads"))

		exists, err := store.Exists(ctx, "blobs/final")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("server side copy between roots", func(t *testing.T) {
		replica, err := cloudstage.New(s3driver.NewWithClient(client, bucket), "registry/replica")
		require.NoError(t, err)

		content := testutil.GenerateRandomData(2048)
		require.NoError(t, store.PutContent(ctx, "blobs/origin", content, ""))

		require.NoError(t, store.CopyTo(ctx, replica, "blobs/origin"))

		got, err := replica.GetContent(ctx, "blobs/origin")
		require.NoError(t, err)
		assert.True(t, bytes.Equal(content, got))

		// Source stays in place.
		got, err = store.GetContent(ctx, "blobs/origin")
		require.NoError(t, err)
		assert.True(t, bytes.Equal(content, got))
	})
}
