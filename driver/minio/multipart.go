package minio

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"

	"github.com/calyptra-io/cloudstage/driver"
	cserrors "github.com/calyptra-io/cloudstage/errors"
)

// CreateMultipart starts a multipart upload for key and returns its upload
// ID. The object does not become visible until CompleteMultipart.
func (b *Backend) CreateMultipart(ctx context.Context, key, contentType string) (string, error) {
	uploadID, err := b.core.NewMultipartUpload(ctx, b.bucket, key, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", cserrors.NewPathError("createMultipart", b.bucket, key, translate(err))
	}

	return uploadID, nil
}

// UploadPart uploads one part of a multipart upload from r. size must be the
// exact byte length of r.
func (b *Backend) UploadPart(
	ctx context.Context,
	key, uploadID string,
	partNumber int32,
	r io.Reader,
	size int64,
) (driver.Part, error) {
	part, err := b.core.PutObjectPart(ctx, b.bucket, key, uploadID, int(partNumber), r, size,
		minio.PutObjectPartOptions{})
	if err != nil {
		return driver.Part{}, cserrors.NewPathError("uploadPart", b.bucket, key, translate(err))
	}

	return driver.Part{
		Number: partNumber,
		ETag:   part.ETag,
	}, nil
}

// UploadPartCopy fills one part of a multipart upload from a byte range of
// an existing object in the same bucket. The range covers length bytes
// starting at start; no data flows through the client.
func (b *Backend) UploadPartCopy(
	ctx context.Context,
	key, uploadID string,
	partNumber int32,
	srcKey string,
	start, length int64,
) (driver.Part, error) {
	part, err := b.core.CopyObjectPart(ctx, b.bucket, srcKey, b.bucket, key,
		uploadID, int(partNumber), start, length, nil)
	if err != nil {
		return driver.Part{}, cserrors.NewPathError("uploadPartCopy", b.bucket, key, translate(err))
	}

	return driver.Part{
		Number: partNumber,
		ETag:   part.ETag,
	}, nil
}

// CompleteMultipart finishes a multipart upload, stitching the given parts
// into the final object. Parts must be listed in ascending part number
// order.
func (b *Backend) CompleteMultipart(ctx context.Context, key, uploadID string, parts []driver.Part) error {
	completed := make([]minio.CompletePart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, minio.CompletePart{
			PartNumber: int(p.Number),
			ETag:       p.ETag,
		})
	}

	_, err := b.core.CompleteMultipartUpload(ctx, b.bucket, key, uploadID, completed,
		minio.PutObjectOptions{})
	if err != nil {
		return cserrors.NewPathError("completeMultipart", b.bucket, key, translate(err))
	}

	return nil
}

// AbortMultipart abandons a multipart upload and releases its stored parts.
//
// Errors:
//   - ErrUploadNotFound: If the upload ID is unknown or already finished
func (b *Backend) AbortMultipart(ctx context.Context, key, uploadID string) error {
	err := b.core.AbortMultipartUpload(ctx, b.bucket, key, uploadID)
	if err != nil {
		return cserrors.NewPathError("abortMultipart", b.bucket, key, translate(err))
	}

	return nil
}
