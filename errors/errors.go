// Package errors provides error types and handling for cloudstage storage operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a storage operation error with context about the operation
// that failed. It wraps the underlying backend error with additional context
// for better debugging.
type Error struct {
	// Op is the operation that failed (e.g., "put", "streamWrite", "copy.server")
	Op string

	// Bucket is the backend bucket name (if applicable)
	Bucket string

	// Path is the storage path involved (if applicable)
	Path string

	// Err is the underlying error from the backend SDK or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Bucket != "" && e.Path != "" {
		return fmt.Sprintf("cloudstage.%s %s/%s: %v", e.Op, e.Bucket, e.Path, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("cloudstage.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("cloudstage.%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("cloudstage.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithPath adds storage path context to an existing error.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewPathError creates a new Error with bucket and path context.
func NewPathError(op, bucket, path string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Path:   path,
		Err:    err,
	}
}

// Sentinel errors for common storage operation failures.
// These can be used with errors.Is() for error checking.
//
// The taxonomy is three-way: not-found errors (ErrObjectNotFound,
// ErrUploadNotFound) for missing keys on read paths, validation errors
// (ErrInvalidInput, ErrInvalidSession) for locally detected contract
// violations raised before any backend call, and everything else (a missing
// bucket included) as an I/O failure propagated from the backend.
var (
	// ErrObjectNotFound indicates that the requested object does not exist
	ErrObjectNotFound = errors.New("cloudstage: object not found")

	// ErrBucketNotFound indicates that the configured bucket does not exist
	ErrBucketNotFound = errors.New("cloudstage: bucket not found")

	// ErrBucketAlreadyExists indicates that the bucket already exists
	ErrBucketAlreadyExists = errors.New("cloudstage: bucket already exists")

	// ErrUploadNotFound indicates that the backend multipart upload does not exist
	ErrUploadNotFound = errors.New("cloudstage: multipart upload not found")

	// ErrAccessDenied indicates that access to the resource is denied
	ErrAccessDenied = errors.New("cloudstage: access denied")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("cloudstage: invalid input")

	// ErrInvalidSession indicates that an upload session value is malformed
	// (wrong schema version, or a chunk list that is not contiguous from zero)
	ErrInvalidSession = errors.New("cloudstage: invalid upload session")

	// ErrInvalidRange indicates that a requested byte range is invalid
	ErrInvalidRange = errors.New("cloudstage: invalid range")
)

// IsNotFound checks if an error indicates a missing object or multipart
// upload. A missing bucket is deliberately excluded: per the storage
// contract that is an I/O failure, not a not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound) || errors.Is(err, ErrUploadNotFound)
}

// IsBucketNotFound checks if an error indicates that the bucket was not found.
func IsBucketNotFound(err error) bool {
	return errors.Is(err, ErrBucketNotFound)
}

// IsBucketExists checks if an error indicates that the bucket already exists.
func IsBucketExists(err error) bool {
	return errors.Is(err, ErrBucketAlreadyExists)
}

// IsAccessDenied checks if an error indicates access was denied.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsValidation checks if an error is a locally detected contract violation
// (invalid input or malformed session) raised before any backend call.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidSession)
}
