package minio

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"

	"github.com/calyptra-io/cloudstage/driver"
	cserrors "github.com/calyptra-io/cloudstage/errors"
)

// Stat returns size, ETag, and modification time for the object at key.
//
// Errors:
//   - ErrObjectNotFound: If no object exists at key
//   - ErrBucketNotFound: If the bucket doesn't exist
func (b *Backend) Stat(ctx context.Context, key string) (driver.ObjectInfo, error) {
	stat, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return driver.ObjectInfo{}, cserrors.NewPathError("stat", b.bucket, key, translate(err))
	}

	return driver.ObjectInfo{
		Key:          key,
		Size:         stat.Size,
		ETag:         stat.ETag,
		LastModified: stat.LastModified,
	}, nil
}

// Get opens the object at key for reading. The Core variant of GetObject is
// used because it performs the request eagerly, so a missing object is
// reported here rather than on first read. The caller must close the
// returned reader.
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, _, _, err := b.core.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, cserrors.NewPathError("get", b.bucket, key, translate(err))
	}

	return rc, nil
}

// Put writes size bytes from r to the object at key, replacing any existing
// object. size must be the exact byte length of r.
func (b *Backend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return cserrors.NewPathError("put", b.bucket, key, translate(err))
	}

	return nil
}

// Delete removes the object at key. Deleting a key that does not exist is
// not an error.
func (b *Backend) Delete(ctx context.Context, key string) error {
	err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return cserrors.NewPathError("delete", b.bucket, key, translate(err))
	}

	return nil
}

// DeleteBatch removes the given keys through the client's bulk remove
// channel. Keys that do not exist are ignored. The first per-key failure
// fails the whole call.
func (b *Backend) DeleteBatch(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)

	for removeErr := range b.client.RemoveObjects(ctx, b.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if removeErr.Err != nil {
			return cserrors.NewPathError("deleteBatch", b.bucket, removeErr.ObjectName, translate(removeErr.Err))
		}
	}

	return nil
}

// List walks every object under prefix in lexical key order, invoking fn for
// each one. If fn returns an error the walk stops and that error is
// returned unwrapped.
func (b *Backend) List(ctx context.Context, prefix string, fn func(driver.ObjectInfo) error) error {
	// Cancel the listing goroutine as soon as the walk stops early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return cserrors.NewPathError("list", b.bucket, prefix, translate(obj.Err))
		}

		info := driver.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
		}
		if err := fn(info); err != nil {
			return err
		}
	}

	return nil
}

// Copy performs a server-side copy of srcBucket/srcKey onto dstKey in this
// backend's bucket. Objects larger than 5 GiB cannot be copied in a single
// call; callers fall back to multipart part copies for those.
func (b *Backend) Copy(ctx context.Context, srcBucket, srcKey, dstKey string) error {
	_, err := b.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: b.bucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: srcBucket, Object: srcKey},
	)
	if err != nil {
		return cserrors.NewPathError("copy", b.bucket, dstKey, translate(err))
	}

	return nil
}

// CheckBucket verifies that the backend's bucket exists and is reachable
// with the configured credentials.
//
// Errors:
//   - ErrBucketNotFound: If the bucket doesn't exist
func (b *Backend) CheckBucket(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return cserrors.NewError("checkBucket", translate(err)).WithBucket(b.bucket)
	}
	if !exists {
		return cserrors.NewError("checkBucket", cserrors.ErrBucketNotFound).WithBucket(b.bucket)
	}

	return nil
}

// CreateBucket creates the backend's bucket in the configured region.
//
// Errors:
//   - ErrBucketAlreadyExists: If the bucket already exists
func (b *Backend) CreateBucket(ctx context.Context) error {
	err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: b.region})
	if err != nil {
		return cserrors.NewError("createBucket", translate(err)).WithBucket(b.bucket)
	}

	return nil
}
