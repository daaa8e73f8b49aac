// Package s3 implements the driver.Backend interface on top of the AWS SDK
// for Go v2 S3 client.
package s3

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/calyptra-io/cloudstage/driver"
	cserrors "github.com/calyptra-io/cloudstage/errors"
	"github.com/calyptra-io/cloudstage/internal/s3api"
	"github.com/calyptra-io/cloudstage/internal/validation"
)

const (
	// defaultRegion is used when no region is configured and none can be
	// discovered from the environment.
	defaultRegion = "us-east-1"

	// defaultMaxRetries is the default number of retry attempts for
	// transient failures.
	defaultMaxRetries = 3

	// minPartSize is the smallest part S3 accepts for any non-final part of
	// a multipart upload (5 MiB).
	minPartSize = 5 * 1024 * 1024

	// maxPartSize is the largest single part or server-side part copy S3
	// accepts (5 GiB).
	maxPartSize = 5 * 1024 * 1024 * 1024

	// deleteBatchMax is the largest number of keys a single DeleteObjects
	// call accepts.
	deleteBatchMax = 1000
)

// Backend is the Amazon S3 implementation of driver.Backend. All operations
// are scoped to the bucket fixed at construction time. Backend is safe for
// concurrent use.
type Backend struct {
	// client is the underlying AWS SDK S3 client
	client s3api.S3API

	// bucket is the bucket all operations target
	bucket string

	// region the client was configured with
	region string

	// endpoint is the resolved custom endpoint URL, empty for AWS proper
	endpoint string

	// accessKeyID identifies the static credentials in use, empty when the
	// default credential chain is used
	accessKeyID string
}

// Ensure Backend implements the driver contract
var _ driver.Backend = (*Backend)(nil)

// New creates a Backend bound to the given bucket.
// Credentials and region come from the default AWS credential chain unless
// overridden through options. A custom endpoint switches the client to
// path-style addressing, which S3-compatible stores such as RadosGW and
// MinIO require.
//
// Example:
//
//	backend, err := s3.New(ctx, "registry-storage",
//	    s3.WithRegion("us-west-2"),
//	    s3.WithStaticCredentials(accessKey, secretKey),
//	)
func New(ctx context.Context, bucket string, opts ...Option) (*Backend, error) {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return nil, cserrors.NewError("new", cserrors.ErrInvalidInput).
			WithBucket(bucket).
			WithMessage(err.Error())
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	// Start with default AWS configuration or use custom config
	var awsCfg aws.Config
	var err error

	if cfg.AWSConfig != nil {
		awsCfg = *cfg.AWSConfig
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, cserrors.NewError("new", err).WithBucket(bucket)
		}
	}

	// Apply region from options if specified, otherwise ensure a region is set
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	} else if awsCfg.Region == "" {
		awsCfg.Region = defaultRegion
	}

	if cfg.AccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	if cfg.MaxRetries > 0 {
		awsCfg.RetryMaxAttempts = cfg.MaxRetries
	}

	endpoint := ""
	if cfg.Hostname != "" {
		endpoint = driver.EndpointURL(cfg.Hostname, cfg.Port, cfg.Secure)
	}

	var s3Opts []func(*s3.Options)

	if endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	// Custom endpoints rarely resolve virtual-hosted bucket names, so a
	// configured endpoint forces path-style addressing.
	if cfg.ForcePathStyle || endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	if cfg.HTTPClient != nil {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = cfg.HTTPClient
		})
	}

	return &Backend{
		client:      s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:      bucket,
		region:      awsCfg.Region,
		endpoint:    endpoint,
		accessKeyID: cfg.AccessKeyID,
	}, nil
}

// NewWithClient creates a Backend backed by a custom S3API implementation.
// This is primarily used for testing with mocked clients.
func NewWithClient(client s3api.S3API, bucket string) *Backend {
	return &Backend{
		client: client,
		bucket: bucket,
		region: defaultRegion,
	}
}

// Bucket returns the bucket this backend operates on.
func (b *Backend) Bucket() string {
	return b.bucket
}

// Limits reports the S3 multipart constraints: every part except the last
// must be at least 5 MiB, and a single part or server-side part copy may not
// exceed 5 GiB.
func (b *Backend) Limits() driver.Limits {
	return driver.Limits{
		MinPartSize: minPartSize,
		MaxPartSize: maxPartSize,
	}
}

// CanCopyFrom reports whether src addresses the same S3 deployment with the
// same credentials, in which case objects can be copied server side instead
// of being streamed through the client.
func (b *Backend) CanCopyFrom(src driver.Backend) bool {
	other, ok := src.(*Backend)
	if !ok {
		return false
	}
	return other.endpoint == b.endpoint && other.accessKeyID == b.accessKeyID
}

// classify maps AWS SDK failures onto the package sentinel errors so that
// callers can tell a missing object apart from a transport fault. Errors
// without a recognized API code are returned unchanged.
func classify(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound":
		return cserrors.ErrObjectNotFound
	case "NoSuchBucket":
		return cserrors.ErrBucketNotFound
	case "NoSuchUpload":
		return cserrors.ErrUploadNotFound
	case "AccessDenied", "Forbidden":
		return cserrors.ErrAccessDenied
	case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
		return cserrors.ErrBucketAlreadyExists
	}

	return err
}
