package testutil

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calyptra-io/cloudstage/driver"
	cserrors "github.com/calyptra-io/cloudstage/errors"
)

func TestMockS3Client(t *testing.T) {
	t.Run("custom function is invoked", func(t *testing.T) {
		mock := &MockS3Client{
			PutObjectFunc: func(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
				assert.Equal(t, "test-bucket", *params.Bucket)
				assert.Equal(t, "test-key", *params.Key)
				return &s3.PutObjectOutput{ETag: aws.String(`"test-etag"`)}, nil
			},
		}

		output, err := mock.PutObject(context.Background(), &s3.PutObjectInput{
			Bucket: aws.String("test-bucket"),
			Key:    aws.String("test-key"),
		})

		require.NoError(t, err)
		assert.Equal(t, `"test-etag"`, *output.ETag)
	})

	t.Run("returns empty default when no function set", func(t *testing.T) {
		mock := &MockS3Client{}

		output, err := mock.GetObject(context.Background(), &s3.GetObjectInput{
			Bucket: aws.String("test-bucket"),
			Key:    aws.String("test-key"),
		})

		require.NoError(t, err)
		assert.NotNil(t, output)
	})
}

func TestFakeBackend(t *testing.T) {
	ctx := context.Background()

	t.Run("seeded objects are readable", func(t *testing.T) {
		backend := NewFakeBackend("bucket").Seed("some/key", []byte("hello"))

		body, err := backend.Get(ctx, "some/key")
		require.NoError(t, err)
		data, err := io.ReadAll(body)
		require.NoError(t, err)
		require.NoError(t, body.Close())
		assert.Equal(t, []byte("hello"), data)
	})

	t.Run("stat reports the single-part etag", func(t *testing.T) {
		content := []byte("etag me")
		backend := NewFakeBackend("bucket")
		require.NoError(t, backend.Put(ctx, "obj", bytes.NewReader(content), int64(len(content)), ""))

		info, err := backend.Stat(ctx, "obj")
		require.NoError(t, err)
		assert.Equal(t, CalculateETag(content), info.ETag)
		assert.Equal(t, int64(len(content)), info.Size)
	})

	t.Run("call counters track operations", func(t *testing.T) {
		backend := NewFakeBackend("bucket").Seed("a", []byte("x"))

		_, err := backend.Stat(ctx, "a")
		require.NoError(t, err)
		_, err = backend.Stat(ctx, "a")
		require.NoError(t, err)
		require.NoError(t, backend.Delete(ctx, "a"))

		assert.Equal(t, 2, backend.CallCount("Stat"))
		assert.Equal(t, 1, backend.CallCount("Delete"))
		assert.Equal(t, 3, backend.TotalCalls())
	})

	t.Run("missing object maps to not found", func(t *testing.T) {
		backend := NewFakeBackend("bucket")

		_, err := backend.Stat(ctx, "nope")
		assert.True(t, cserrors.IsNotFound(err))
	})

	t.Run("injected failures fire per operation and key", func(t *testing.T) {
		backend := NewFakeBackend("bucket").Seed("a", []byte("x")).Seed("b", []byte("y"))
		backend.FailOn = func(op, key string) error {
			if op == "Delete" && key == "a" {
				return cserrors.ErrAccessDenied
			}
			return nil
		}

		assert.Error(t, backend.Delete(ctx, "a"))
		assert.NoError(t, backend.Delete(ctx, "b"))
	})

	t.Run("list iterates a snapshot in key order", func(t *testing.T) {
		backend := NewFakeBackend("bucket").
			Seed("c", []byte("3")).
			Seed("a", []byte("1")).
			Seed("b", []byte("2"))

		var keys []string
		err := backend.List(ctx, "", func(info driver.ObjectInfo) error {
			keys = append(keys, info.Key)
			// Mutating during iteration must not affect the snapshot.
			return backend.Delete(ctx, "c")
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, keys)
	})
}

func TestHelpers(t *testing.T) {
	t.Run("generates random data", func(t *testing.T) {
		data := GenerateRandomData(1024)
		assert.Len(t, data, 1024)
		assert.NotEqual(t, data, GenerateRandomData(1024))
	})

	t.Run("generates unique test keys", func(t *testing.T) {
		key1 := GenerateTestKey("prefix")
		assert.Contains(t, key1, "prefix/")
		assert.Contains(t, key1, "test-object-")

		key2 := GenerateTestKey("")
		assert.Contains(t, key2, "test-object-")
		assert.NotEqual(t, key1, key2)
	})

	t.Run("generates valid bucket names", func(t *testing.T) {
		name := GenerateTestBucketName("test")
		assert.Contains(t, name, "test-")
		assert.LessOrEqual(t, len(name), 63)
		assert.Regexp(t, "^[a-z0-9][a-z0-9.-]*[a-z0-9]$", name)
	})

	t.Run("calculates quoted etags", func(t *testing.T) {
		etag := CalculateETag([]byte("test data"))
		assert.True(t, strings.HasPrefix(etag, `"`))
		assert.True(t, strings.HasSuffix(etag, `"`))
		assert.Len(t, etag, 34)
	})
}
