package cloudstage

import (
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/calyptra-io/cloudstage/cloudtypes"
)

// WithMinChunkSize sets the smallest non-final chunk the native completion
// path may hand to a backend part copy. A completion holding any smaller
// non-final chunk falls back to client-side assembly instead.
// Must be at least the backend's minimum part size.
func WithMinChunkSize(size int64) cloudtypes.Option {
	return func(c *cloudtypes.StoreConfig) {
		c.MinChunkSize = size
	}
}

// WithMaxChunkSize caps the size of a single staged chunk object. Incoming
// chunk streams are split at this boundary, so one StreamUploadChunk call
// may stage several objects. Completion re-splits records that exceed the
// backend's part size limit, so the cap may exceed that limit.
func WithMaxChunkSize(size int64) cloudtypes.Option {
	return func(c *cloudtypes.StoreConfig) {
		c.MaxChunkSize = size
	}
}

// WithPartBufferSize sets the in-memory buffer of the streaming write path.
// The buffer bounds the memory held per concurrent writer and becomes the
// part size of multipart uploads issued for unbounded streams, so it must
// be at least the backend's minimum part size. Default is 8MB.
func WithPartBufferSize(size int64) cloudtypes.Option {
	return func(c *cloudtypes.StoreConfig) {
		c.PartBufferSize = size
	}
}

// WithLogger routes the store's debug traces and absorbed-failure warnings
// to the given logger.
func WithLogger(logger log.Logger) cloudtypes.Option {
	return func(c *cloudtypes.StoreConfig) {
		c.Logger = logger
	}
}

// WithFilesystem sets the filesystem abstraction backing PutFile and
// GetToFile. Defaults to the host filesystem; an in-memory implementation
// is useful in tests.
func WithFilesystem(fsys fs.Filesystem) cloudtypes.Option {
	return func(c *cloudtypes.StoreConfig) {
		c.Filesystem = fsys
	}
}

// WithClientSideAssembly forces completion to rebuild the final object by
// reading every staged chunk back through this process, even when the
// backend could assemble them server-side.
func WithClientSideAssembly() cloudtypes.CompleteOption {
	return func(c *cloudtypes.CompleteConfig) {
		c.ClientSideAssembly = true
	}
}

// WithCompletionContentType sets the content type recorded on the final
// object of a completed chunked upload.
func WithCompletionContentType(contentType string) cloudtypes.CompleteOption {
	return func(c *cloudtypes.CompleteConfig) {
		c.ContentType = contentType
	}
}
