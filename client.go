package cloudstage

import (
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"

	"github.com/calyptra-io/cloudstage/cloudtypes"
	"github.com/calyptra-io/cloudstage/driver"
	cserrors "github.com/calyptra-io/cloudstage/errors"
	"github.com/calyptra-io/cloudstage/internal/pool"
)

const (
	// defaultPartBufferSize is the streaming write buffer used when the
	// caller does not override it. 8MB sits comfortably above the S3
	// minimum part size while keeping per-writer memory modest.
	defaultPartBufferSize = 8 * 1024 * 1024

	// stagingPrefix is the store-relative namespace holding the staged
	// chunk objects of in-flight uploads.
	stagingPrefix = "uploads"
)

// Store exposes object storage rooted at a path prefix, together with the
// chunked upload engine. All methods are safe for concurrent use; the Store
// itself is immutable after construction.
type Store struct {
	// backend is the object storage implementation operations run against
	backend driver.Backend

	// rootPath prefixes every store-relative path
	rootPath string

	// minChunkSize is the smallest non-final chunk the native completion
	// path may hand to a backend part copy
	minChunkSize int64

	// maxChunkSize caps the size of a single staged chunk object
	maxChunkSize int64

	// bufferSize is the part size of the streaming write path, bounding
	// the memory held per concurrent writer
	bufferSize int64

	// logger receives debug traces and absorbed-failure warnings
	logger log.Logger

	// fs backs the file-path convenience operations
	fs fs.Filesystem

	// parts hands out reusable part buffers for streaming writes
	parts *pool.SizedPool
}

// New creates a Store over backend rooted at rootPath. Chunk size bounds
// default to the backend's part size limits and can be narrowed with
// options; widening past what the backend accepts is rejected here rather
// than midway through an upload.
//
// Example:
//
//	store, err := cloudstage.New(backend, "registry/v2",
//	    cloudstage.WithMaxChunkSize(100*1024*1024),
//	    cloudstage.WithLogger(logger),
//	)
func New(backend driver.Backend, rootPath string, opts ...cloudtypes.Option) (*Store, error) {
	if backend == nil {
		return nil, cserrors.NewError("new", cserrors.ErrInvalidInput).
			WithMessage("backend cannot be nil")
	}

	cfg := &cloudtypes.StoreConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	limits := backend.Limits()

	minChunk := limits.MinPartSize
	if cfg.MinChunkSize > 0 {
		if cfg.MinChunkSize < limits.MinPartSize {
			return nil, cserrors.NewError("new", cserrors.ErrInvalidInput).
				WithMessage("minimum chunk size is below the backend minimum part size")
		}
		minChunk = cfg.MinChunkSize
	}

	maxChunk := limits.MaxPartSize
	if cfg.MaxChunkSize > 0 {
		maxChunk = cfg.MaxChunkSize
	}
	if maxChunk < minChunk {
		return nil, cserrors.NewError("new", cserrors.ErrInvalidInput).
			WithMessage("maximum chunk size cannot be below the minimum chunk size")
	}

	bufferSize := int64(defaultPartBufferSize)
	if bufferSize < limits.MinPartSize {
		bufferSize = limits.MinPartSize
	}
	if cfg.PartBufferSize > 0 {
		if cfg.PartBufferSize < limits.MinPartSize {
			return nil, cserrors.NewError("new", cserrors.ErrInvalidInput).
				WithMessage("part buffer size is below the backend minimum part size")
		}
		bufferSize = cfg.PartBufferSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewLogger()
	}

	filesystem := cfg.Filesystem
	if filesystem == nil {
		filesystem = billy.NewOSFS("/")
	}

	return &Store{
		backend:      backend,
		rootPath:     rootPath,
		minChunkSize: minChunk,
		maxChunkSize: maxChunk,
		bufferSize:   bufferSize,
		logger:       logger,
		fs:           filesystem,
		parts:        pool.NewSized(int(bufferSize)),
	}, nil
}
