package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/calyptra-io/cloudstage/driver"
	cserrors "github.com/calyptra-io/cloudstage/errors"
)

// Stat returns size, ETag, and modification time for the object at key.
//
// Errors:
//   - ErrObjectNotFound: If no object exists at key
//   - ErrBucketNotFound: If the bucket doesn't exist
func (b *Backend) Stat(ctx context.Context, key string) (driver.ObjectInfo, error) {
	output, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return driver.ObjectInfo{}, cserrors.NewPathError("stat", b.bucket, key, classify(err))
	}

	return driver.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(output.ContentLength),
		ETag:         aws.ToString(output.ETag),
		LastModified: aws.ToTime(output.LastModified),
	}, nil
}

// Get opens the object at key for reading. The caller must close the
// returned reader.
//
// Errors:
//   - ErrObjectNotFound: If no object exists at key
//   - ErrBucketNotFound: If the bucket doesn't exist
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	output, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, cserrors.NewPathError("get", b.bucket, key, classify(err))
	}

	return output.Body, nil
}

// Put writes size bytes from r to the object at key, replacing any existing
// object. size must be the exact byte length of r.
func (b *Backend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := b.client.PutObject(ctx, input); err != nil {
		return cserrors.NewPathError("put", b.bucket, key, classify(err))
	}

	return nil
}

// Delete removes the object at key. Deleting a key that does not exist is
// not an error; S3 reports it as a successful delete.
func (b *Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return cserrors.NewPathError("delete", b.bucket, key, classify(err))
	}

	return nil
}

// DeleteBatch removes the given keys, splitting the request into batches of
// at most 1000 keys as S3 requires. Keys that do not exist are ignored. The
// first per-key failure reported by S3 fails the whole call.
func (b *Backend) DeleteBatch(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += deleteBatchMax {
		end := start + deleteBatchMax
		if end > len(keys) {
			end = len(keys)
		}

		batch := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			batch = append(batch, types.ObjectIdentifier{
				Key: aws.String(key),
			})
		}

		output, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.bucket),
			Delete: &types.Delete{
				Objects: batch,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return cserrors.NewError("deleteBatch", classify(err)).WithBucket(b.bucket)
		}

		if len(output.Errors) > 0 {
			first := output.Errors[0]
			return cserrors.NewError("deleteBatch",
				fmt.Errorf("%d keys failed, first %q: %s: %s",
					len(output.Errors), aws.ToString(first.Key),
					aws.ToString(first.Code), aws.ToString(first.Message))).
				WithBucket(b.bucket)
		}
	}

	return nil
}

// List walks every object under prefix in lexical key order, invoking fn for
// each one. Pagination is handled internally. If fn returns an error the
// walk stops and that error is returned unwrapped.
func (b *Backend) List(ctx context.Context, prefix string, fn func(driver.ObjectInfo) error) error {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	for {
		output, err := b.client.ListObjectsV2(ctx, input)
		if err != nil {
			return cserrors.NewPathError("list", b.bucket, prefix, classify(err))
		}

		for _, obj := range output.Contents {
			info := driver.ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				ETag:         aws.ToString(obj.ETag),
				LastModified: aws.ToTime(obj.LastModified),
			}
			if err := fn(info); err != nil {
				return err
			}
		}

		if !aws.ToBool(output.IsTruncated) {
			return nil
		}
		input.ContinuationToken = output.NextContinuationToken
	}
}

// Copy performs a server-side copy of srcBucket/srcKey onto dstKey in this
// backend's bucket. Objects larger than 5 GiB cannot be copied in a single
// call; callers fall back to multipart part copies for those.
func (b *Backend) Copy(ctx context.Context, srcBucket, srcKey, dstKey string) error {
	_, err := b.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(fmt.Sprintf("%s/%s", srcBucket, srcKey)),
	})
	if err != nil {
		return cserrors.NewPathError("copy", b.bucket, dstKey, classify(err))
	}

	return nil
}

// CheckBucket verifies that the backend's bucket exists and is reachable
// with the configured credentials.
//
// Errors:
//   - ErrBucketNotFound: If the bucket doesn't exist
//   - ErrAccessDenied: If the credentials lack permission to access it
func (b *Backend) CheckBucket(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err != nil {
		cause := classify(err)
		// HeadBucket reports a missing bucket as a bare 404
		if errors.Is(cause, cserrors.ErrObjectNotFound) {
			cause = cserrors.ErrBucketNotFound
		}
		return cserrors.NewError("checkBucket", cause).WithBucket(b.bucket)
	}

	return nil
}

// CreateBucket creates the backend's bucket. Regions other than us-east-1
// require an explicit location constraint.
//
// Errors:
//   - ErrBucketAlreadyExists: If the bucket already exists
func (b *Backend) CreateBucket(ctx context.Context) error {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	}
	if b.region != "" && b.region != defaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.region),
		}
	}

	if _, err := b.client.CreateBucket(ctx, input); err != nil {
		return cserrors.NewError("createBucket", classify(err)).WithBucket(b.bucket)
	}

	return nil
}
