// Package driver defines the backend capability interface the cloudstage
// engine is composed over, plus the shared types its implementations return.
//
// A Backend is bucket-scoped: one value wraps one bucket on one endpoint
// with one set of credentials. Variant implementations live in the driver/s3
// and driver/minio subpackages; the engine never depends on a concrete
// backend type.
package driver

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	// Key is the full object key within the bucket
	Key string

	// Size is the object size in bytes
	Size int64

	// ETag is the backend entity tag for the object
	ETag string

	// LastModified is when the object was last modified
	LastModified time.Time
}

// Part identifies one committed unit of a multipart upload.
type Part struct {
	// Number is the 1-based part number
	Number int32

	// ETag is the backend entity tag returned for the part
	ETag string
}

// Limits are the immutable per-backend part-size bounds. They are fixed at
// backend construction and never change afterwards.
type Limits struct {
	// MinPartSize is the smallest part the backend accepts in a multipart
	// upload, except for the final part.
	MinPartSize int64

	// MaxPartSize is the largest single part the backend accepts, for both
	// uploaded and server-side copied parts.
	MaxPartSize int64
}

// Backend is the capability set the engine requires of an object store.
//
// Keys are full keys within the backend's bucket; the engine applies its own
// root-path prefixing before calling down. Implementations map their SDK's
// failure modes onto the sentinel errors of the errors package: a missing
// key surfaces as ErrObjectNotFound, a missing bucket as ErrBucketNotFound,
// a missing multipart upload as ErrUploadNotFound.
type Backend interface {
	// Bucket returns the bucket this backend is scoped to.
	Bucket() string

	// Limits returns the backend's immutable part-size bounds.
	Limits() Limits

	// Stat returns metadata for key.
	Stat(ctx context.Context, key string) (ObjectInfo, error)

	// Get opens key for reading. Missing keys fail at open, not first read.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Put writes size bytes from r to key in one atomic operation. The
	// object is not visible until the write commits.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteBatch removes up to the backend's batch limit of keys per
	// round trip. Absent keys are not errors.
	DeleteBatch(ctx context.Context, keys []string) error

	// List calls fn for every key under prefix, handling pagination
	// internally. Returning an error from fn stops the walk and propagates.
	List(ctx context.Context, prefix string, fn func(ObjectInfo) error) error

	// Copy performs a server-side copy from srcBucket/srcKey to dstKey in
	// this backend's bucket. srcBucket may equal Bucket().
	Copy(ctx context.Context, srcBucket, srcKey, dstKey string) error

	// CheckBucket verifies the bucket exists and is reachable.
	CheckBucket(ctx context.Context) error

	// CreateBucket creates the bucket. Implementations return
	// ErrBucketAlreadyExists-wrapped errors when it is already present.
	CreateBucket(ctx context.Context) error

	// CreateMultipart starts a multipart upload targeting key and returns
	// the backend upload id.
	CreateMultipart(ctx context.Context, key, contentType string) (string, error)

	// UploadPart uploads size bytes from r as part partNumber.
	UploadPart(ctx context.Context, key, uploadID string, partNumber int32, r io.Reader, size int64) (Part, error)

	// UploadPartCopy copies length bytes starting at start from the
	// existing object srcKey as part partNumber.
	UploadPartCopy(ctx context.Context, key, uploadID string, partNumber int32, srcKey string, start, length int64) (Part, error)

	// CompleteMultipart commits the upload from the ordered part list.
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []Part) error

	// AbortMultipart abandons the upload and releases its parts.
	AbortMultipart(ctx context.Context, key, uploadID string) error

	// CanCopyFrom reports whether objects can be copied server-side from
	// src, which requires both backends to share a driver, endpoint, and
	// credentials.
	CanCopyFrom(src Backend) bool
}
