// Package cloudtypes provides shared type definitions for the cloudstage module.
package cloudtypes

import (
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
)

// ReadUntilEnd is the sentinel length meaning "read the source until it is
// exhausted" for streaming operations whose total size is unknown.
const ReadUntilEnd int64 = -1

// SessionVersion is the schema version stamped on upload sessions created by
// this module. Sessions are value objects persisted by the caller (for
// example as a database row), so the version travels with the value.
const SessionVersion = 1

// ChunkRecord describes one durably written physical staging object.
type ChunkRecord struct {
	// Path is the store-relative key of the staging object
	Path string `json:"path"`

	// Offset is the logical byte offset of this chunk within the final object
	Offset int64 `json:"offset"`

	// Length is the number of bytes held by the staging object
	Length int64 `json:"length"`
}

// End returns the exclusive end offset of the chunk within the final object.
func (r ChunkRecord) End() int64 {
	return r.Offset + r.Length
}

// UploadSession is the resumable-upload state a caller threads through
// chunked upload calls. The engine holds no copy of it between calls: each
// successful stream call returns a new session value with the freshly
// written chunks appended, and the caller persists it externally.
//
// Invariant: Chunks are ordered by offset, contiguous, non-overlapping, and
// cover [0, TotalLength()) with no gaps.
type UploadSession struct {
	// ID is the opaque upload identifier scoping the staging namespace
	ID string `json:"upload_id"`

	// Version is the session schema version (SessionVersion)
	Version int `json:"version"`

	// Chunks is the ordered list of staged chunk records
	Chunks []ChunkRecord `json:"chunks"`

	// MultipartID is the backend multipart upload id, if one was created
	MultipartID string `json:"multipart_id,omitempty"`

	// MultipartPath is the store-relative path the multipart upload targets.
	// Backend abort calls require the key alongside the id, so the two
	// fields travel together.
	MultipartPath string `json:"multipart_path,omitempty"`
}

// TotalLength returns the total number of bytes staged so far, which is also
// the offset at which the next chunk write begins.
func (s UploadSession) TotalLength() int64 {
	if len(s.Chunks) == 0 {
		return 0
	}
	return s.Chunks[len(s.Chunks)-1].End()
}

// Clone returns a deep copy of the session. Appending chunks to the copy
// leaves the original untouched.
func (s UploadSession) Clone() UploadSession {
	clone := s
	if s.Chunks != nil {
		clone.Chunks = make([]ChunkRecord, len(s.Chunks))
		copy(clone.Chunks, s.Chunks)
	}
	return clone
}

// ObjectEntry is one element of a lazy listing: a key with its metadata, or
// an iteration error. Consumers must check Err before using the other
// fields; after an entry with Err set, the channel is closed.
type ObjectEntry struct {
	// Key is the store-relative object path
	Key string

	// Size is the object size in bytes
	Size int64

	// LastModified is when the object was last modified
	LastModified time.Time

	// Err reports an iteration failure, if any
	Err error
}

// SweepResult contains the result of a partial-upload sweep.
type SweepResult struct {
	// Scanned is the number of staging objects examined
	Scanned int

	// Deleted is the number of staging objects removed
	Deleted int

	// Failed is the number of deletions that failed and were skipped
	Failed int

	// ReclaimedBytes is the total size of the removed objects
	ReclaimedBytes int64
}

// Configuration types for functional options

// StoreConfig holds configuration for a Store.
type StoreConfig struct {
	// MinChunkSize is the smallest chunk the native completion path may
	// hand to a backend part copy (except the final chunk). Zero means
	// use the backend's limit.
	MinChunkSize int64

	// MaxChunkSize caps the size of a single staging object; incoming
	// streams are split at this boundary. Zero means use the backend's
	// maximum part size.
	MaxChunkSize int64

	// PartBufferSize is the size of the in-memory buffer used by the
	// streaming write path. This bounds memory use per writer.
	PartBufferSize int64

	// Logger receives debug traces and the absorbed-failure warnings of
	// the reaper and post-completion cleanup.
	Logger log.Logger

	// Filesystem backs the file-path convenience operations.
	Filesystem fs.Filesystem
}

// CompleteConfig holds configuration for completing a chunked upload via
// functional options.
type CompleteConfig struct {
	// ClientSideAssembly forces the read-back-and-rewrite completion path
	// even when the backend could assemble the object server-side.
	ClientSideAssembly bool

	// ContentType is the content type for the final object.
	ContentType string
}

// Option is a functional option for configuring a Store.
type (
	Option func(*StoreConfig)
	// CompleteOption is a functional option for configuring completion of a
	// chunked upload.
	CompleteOption func(*CompleteConfig)
)
