// Package minio implements the driver.Backend interface on top of the MinIO
// Go client. It targets MinIO itself as well as other S3-compatible stores
// reachable by plain host:port endpoint, and uses the client's low-level
// Core API for multipart operations.
package minio

import (
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/calyptra-io/cloudstage/driver"
	cserrors "github.com/calyptra-io/cloudstage/errors"
	"github.com/calyptra-io/cloudstage/internal/validation"
)

const (
	// minPartSize is the smallest part accepted for any non-final part of a
	// multipart upload (5 MiB).
	minPartSize = 5 * 1024 * 1024

	// maxPartSize is the largest single part or server-side part copy
	// accepted (5 GiB).
	maxPartSize = 5 * 1024 * 1024 * 1024
)

// Backend is the MinIO implementation of driver.Backend. All operations are
// scoped to the bucket fixed at construction time. Backend is safe for
// concurrent use.
type Backend struct {
	// client is the high-level MinIO client, shared with core
	client *minio.Client

	// core exposes the low-level multipart API
	core *minio.Core

	// bucket is the bucket all operations target
	bucket string

	// endpoint is the host:port the client was built against
	endpoint string

	// region passed to bucket creation, may be empty
	region string

	// accessKeyID identifies the credentials in use
	accessKeyID string
}

// Ensure Backend implements the driver contract
var _ driver.Backend = (*Backend)(nil)

// Config holds the settings used to construct a Backend. Callers normally
// populate it through Option values passed to New.
type Config struct {
	// AccessKeyID and SecretAccessKey are the static credentials for the
	// endpoint. Both are required.
	AccessKeyID     string
	SecretAccessKey string

	// Region is passed through to bucket creation. Optional.
	Region string

	// Secure selects TLS for the connection. Default is true.
	Secure bool

	// ForcePathStyle forces path-style bucket addressing. Most self-hosted
	// deployments require it, so it defaults to true.
	ForcePathStyle bool
}

// Option configures a Backend during construction.
type Option func(*Config)

// defaultConfig returns the construction defaults applied before options.
func defaultConfig() Config {
	return Config{
		Secure:         true,
		ForcePathStyle: true,
	}
}

// WithCredentials sets the static access key pair for the endpoint.
func WithCredentials(accessKeyID, secretAccessKey string) Option {
	return func(c *Config) {
		c.AccessKeyID = accessKeyID
		c.SecretAccessKey = secretAccessKey
	}
}

// WithRegion sets the region used when creating the bucket.
func WithRegion(region string) Option {
	return func(c *Config) {
		c.Region = region
	}
}

// WithSecure selects between TLS and plaintext connections.
// Default is true (TLS).
func WithSecure(secure bool) Option {
	return func(c *Config) {
		c.Secure = secure
	}
}

// WithForcePathStyle selects path-style bucket addressing. Default is true;
// disable it only for deployments with working virtual-hosted DNS.
func WithForcePathStyle(forcePathStyle bool) Option {
	return func(c *Config) {
		c.ForcePathStyle = forcePathStyle
	}
}

// New creates a Backend bound to the given bucket behind endpoint. The
// endpoint is a bare host or host:port without scheme; TLS is controlled
// through WithSecure.
//
// Example:
//
//	backend, err := minio.New("rados.internal:7480", "registry-storage",
//	    minio.WithCredentials(accessKey, secretKey),
//	    minio.WithSecure(false),
//	)
func New(endpoint, bucket string, opts ...Option) (*Backend, error) {
	if endpoint == "" {
		return nil, cserrors.NewError("new", cserrors.ErrInvalidInput).
			WithBucket(bucket).
			WithMessage("endpoint cannot be empty")
	}
	if err := validation.ValidateBucketName(bucket); err != nil {
		return nil, cserrors.NewError("new", cserrors.ErrInvalidInput).
			WithBucket(bucket).
			WithMessage(err.Error())
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, cserrors.NewError("new", cserrors.ErrInvalidInput).
			WithBucket(bucket).
			WithMessage("credentials are required")
	}

	lookup := minio.BucketLookupAuto
	if cfg.ForcePathStyle {
		lookup = minio.BucketLookupPath
	}

	core, err := minio.NewCore(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:       cfg.Secure,
		Region:       cfg.Region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, cserrors.NewError("new", err).WithBucket(bucket)
	}

	return &Backend{
		client:      core.Client,
		core:        core,
		bucket:      bucket,
		endpoint:    endpoint,
		region:      cfg.Region,
		accessKeyID: cfg.AccessKeyID,
	}, nil
}

// Bucket returns the bucket this backend operates on.
func (b *Backend) Bucket() string {
	return b.bucket
}

// Limits reports the S3-compatible multipart constraints: every part except
// the last must be at least 5 MiB, and a single part or server-side part
// copy may not exceed 5 GiB.
func (b *Backend) Limits() driver.Limits {
	return driver.Limits{
		MinPartSize: minPartSize,
		MaxPartSize: maxPartSize,
	}
}

// CanCopyFrom reports whether src addresses the same deployment with the
// same credentials, in which case objects can be copied server side instead
// of being streamed through the client.
func (b *Backend) CanCopyFrom(src driver.Backend) bool {
	other, ok := src.(*Backend)
	if !ok {
		return false
	}
	return other.endpoint == b.endpoint && other.accessKeyID == b.accessKeyID
}

// translate maps MinIO client failures onto the package sentinel errors so
// that callers can tell a missing object apart from a transport fault.
// Errors without a recognized response code are returned unchanged.
func translate(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return cserrors.ErrObjectNotFound
	case "NoSuchBucket":
		return cserrors.ErrBucketNotFound
	case "NoSuchUpload":
		return cserrors.ErrUploadNotFound
	case "AccessDenied":
		return cserrors.ErrAccessDenied
	case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
		return cserrors.ErrBucketAlreadyExists
	}
	return err
}
