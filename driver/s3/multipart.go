package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/calyptra-io/cloudstage/driver"
	cserrors "github.com/calyptra-io/cloudstage/errors"
)

// CreateMultipart starts a multipart upload for key and returns its upload
// ID. The object does not become visible until CompleteMultipart.
func (b *Backend) CreateMultipart(ctx context.Context, key, contentType string) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	output, err := b.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", cserrors.NewPathError("createMultipart", b.bucket, key, classify(err))
	}

	return aws.ToString(output.UploadId), nil
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
	output, err := b.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return driver.Part{}, cserrors.NewPathError("uploadPart", b.bucket, key, classify(err))
	}

	return driver.Part{
		Number: partNumber,
		ETag:   aws.ToString(output.ETag),
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
	output, err := b.client.UploadPartCopy(ctx, &s3.UploadPartCopyInput{
		Bucket:          aws.String(b.bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		PartNumber:      aws.Int32(partNumber),
		CopySource:      aws.String(fmt.Sprintf("%s/%s", b.bucket, srcKey)),
		CopySourceRange: aws.String(fmt.Sprintf("bytes=%d-%d", start, start+length-1)),
	})
	if err != nil {
		return driver.Part{}, cserrors.NewPathError("uploadPartCopy", b.bucket, key, classify(err))
	}

	part := driver.Part{Number: partNumber}
	if output.CopyPartResult != nil {
		part.ETag = aws.ToString(output.CopyPartResult.ETag)
	}
	return part, nil
}

// CompleteMultipart finishes a multipart upload, stitching the given parts
// into the final object. Parts must be listed in ascending part number
// order.
func (b *Backend) CompleteMultipart(ctx context.Context, key, uploadID string, parts []driver.Part) error {
	completed := make([]types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, types.CompletedPart{
			PartNumber: aws.Int32(p.Number),
			ETag:       aws.String(p.ETag),
		})
	}

	_, err := b.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(b.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: completed,
		},
	})
	if err != nil {
		return cserrors.NewPathError("completeMultipart", b.bucket, key, classify(err))
	}

	return nil
}

// AbortMultipart abandons a multipart upload and releases its stored parts.
//
// Errors:
//   - ErrUploadNotFound: If the upload ID is unknown or already finished
func (b *Backend) AbortMultipart(ctx context.Context, key, uploadID string) error {
	_, err := b.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(b.bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return cserrors.NewPathError("abortMultipart", b.bucket, key, classify(err))
	}

	return nil
}
