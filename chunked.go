package cloudstage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"

	"github.com/calyptra-io/cloudstage/cloudtypes"
	"github.com/calyptra-io/cloudstage/driver"
	cserrors "github.com/calyptra-io/cloudstage/errors"
	"github.com/calyptra-io/cloudstage/internal/validation"
)

// InitiateChunkedUpload starts a new resumable upload, returning its opaque
// id and an empty session. No backend call is made: the upload exists only
// as the session value in the caller's hands until data is streamed.
func (s *Store) InitiateChunkedUpload() (string, cloudtypes.UploadSession) {
	id := uuid.New().String()
	return id, cloudtypes.UploadSession{
		ID:      id,
		Version: cloudtypes.SessionVersion,
	}
}

// stagingPath returns the store-relative key of the staging object whose
// payload begins at offset within the given upload.
func stagingPath(uploadID string, offset int64) string {
	return path.Join(stagingPrefix, uploadID, fmt.Sprintf("%016d", offset))
}

// validateSession checks the structural invariants a caller-supplied
// session must hold: the known schema version and a chunk list that is
// ordered, contiguous from offset zero, and free of empty records.
func validateSession(sess *cloudtypes.UploadSession) error {
	if sess.Version != cloudtypes.SessionVersion {
		return cserrors.NewError("validateSession", cserrors.ErrInvalidSession).
			WithMessage(fmt.Sprintf("unsupported session version %d", sess.Version))
	}

	var next int64
	for i := range sess.Chunks {
		rec := &sess.Chunks[i]
		if rec.Length <= 0 || rec.Offset != next {
			return cserrors.NewError("validateSession", cserrors.ErrInvalidSession).
				WithMessage(fmt.Sprintf("chunk %d breaks contiguity at offset %d", i, rec.Offset))
		}
		next = rec.End()
	}
	return nil
}

// StreamUploadChunk appends up to length bytes from r to the upload,
// staging them as one or more objects of at most the store's maximum chunk
// size. Pass ReadUntilEnd as length to consume r entirely. The caller's
// session is never mutated; the returned session has the freshly staged
// chunks appended and must replace the caller's persisted copy.
//
// A source that ends before length bytes is not an error: the returned
// count says how much was staged, and the caller resumes with another call
// once more data is available. When a write fails midway, chunks staged
// before the failure are already recorded in the returned session, so a
// retry continues where the data actually stops.
func (s *Store) StreamUploadChunk(
	ctx context.Context,
	uploadID string,
	length int64,
	r io.Reader,
	session cloudtypes.UploadSession,
) (int64, cloudtypes.UploadSession, error) {
	if err := validation.ValidateUploadID(uploadID); err != nil {
		return 0, session, err
	}
	if length < 0 && length != cloudtypes.ReadUntilEnd {
		return 0, session, cserrors.NewError("streamUploadChunk", cserrors.ErrInvalidInput).
			WithMessage("length must be non-negative or ReadUntilEnd")
	}
	if err := validateSession(&session); err != nil {
		return 0, session, err
	}

	newSession := session.Clone()

	var (
		written   int64
		remaining = length
		offset    = newSession.TotalLength()
	)

	for {
		if remaining == 0 {
			break
		}

		chunkLimit := s.maxChunkSize
		if remaining > 0 && remaining < chunkLimit {
			chunkLimit = remaining
		}

		chunkPath := stagingPath(uploadID, offset)
		n, err := s.streamWriteInternal(ctx, s.initPath(chunkPath), r, chunkLimit, "", false)
		if n > 0 {
			newSession.Chunks = append(newSession.Chunks, cloudtypes.ChunkRecord{
				Path:   chunkPath,
				Offset: offset,
				Length: n,
			})
			offset += n
			written += n
			if remaining > 0 {
				remaining -= n
			}
		}
		if err != nil {
			return written, newSession, err
		}
		if n < chunkLimit {
			break
		}
	}

	return written, newSession, nil
}

// CompleteChunkedUpload assembles the staged chunks of an upload into the
// single final object at finalPath. With no chunks staged the final object
// is written empty. Otherwise the store prefers assembling server-side via
// a backend multipart upload whose parts are copied straight from the
// staging objects; it falls back to downloading and re-streaming the chunks
// through this process when forced by option, or when any non-final chunk
// is smaller than the backend part copy can accept.
//
// On success the staging objects are deleted best-effort: a failed cleanup
// is logged and left to CleanPartialUploads. On failure the staging objects
// are intact and the upload can be completed again or cancelled.
func (s *Store) CompleteChunkedUpload(
	ctx context.Context,
	uploadID, finalPath string,
	session cloudtypes.UploadSession,
	opts ...cloudtypes.CompleteOption,
) error {
	if err := validation.ValidateUploadID(uploadID); err != nil {
		return err
	}
	if err := validation.ValidatePath(finalPath); err != nil {
		return err
	}
	if err := validateSession(&session); err != nil {
		return err
	}

	cfg := &cloudtypes.CompleteConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.ContentType != "" {
		if err := validation.ValidateContentType(cfg.ContentType); err != nil {
			return err
		}
	}

	key := s.initPath(finalPath)

	if len(session.Chunks) == 0 {
		return s.backend.Put(ctx, key, bytes.NewReader(nil), 0, cfg.ContentType)
	}

	if cfg.ClientSideAssembly || s.hasUndersizedChunk(&session) {
		if err := s.clientSideJoin(ctx, key, &session, cfg.ContentType); err != nil {
			return err
		}
	} else if err := s.nativeAssembly(ctx, key, &session, cfg.ContentType); err != nil {
		return err
	}

	s.removeStagedChunks(ctx, &session)
	return nil
}

// hasUndersizedChunk reports whether any chunk other than the last is
// smaller than the minimum the backend part copy accepts. Such a layout
// cannot be assembled server-side.
func (s *Store) hasUndersizedChunk(sess *cloudtypes.UploadSession) bool {
	for i := range sess.Chunks {
		if i < len(sess.Chunks)-1 && sess.Chunks[i].Length < s.minChunkSize {
			return true
		}
	}
	return false
}

// nativeAssembly builds the final object with a backend multipart upload,
// copying every byte server-side from the staging objects. Chunk records
// larger than the backend part cap are re-split on the fly; part numbers
// ascend in offset order as backends require. A failure aborts the
// multipart upload and leaves the staging objects untouched.
func (s *Store) nativeAssembly(
	ctx context.Context,
	key string,
	sess *cloudtypes.UploadSession,
	contentType string,
) error {
	uploadID, err := s.backend.CreateMultipart(ctx, key, contentType)
	if err != nil {
		return err
	}

	s.logger.Debugf("Assembling %d staged chunks into %s via multipart upload %s",
		len(sess.Chunks), key, uploadID)

	maxPart := s.backend.Limits().MaxPartSize

	var (
		parts   []driver.Part
		partNum int32
	)

	for _, rec := range sess.Chunks {
		for _, sub := range rechunk(rec, maxPart) {
			partNum++
			part, err := s.backend.UploadPartCopy(
				ctx, key, uploadID, partNum,
				s.initPath(sub.Path), sub.Offset-rec.Offset, sub.Length,
			)
			if err != nil {
				s.abortAssembly(ctx, key, uploadID)
				return err
			}
			parts = append(parts, part)
		}
	}

	if err := s.backend.CompleteMultipart(ctx, key, uploadID, parts); err != nil {
		s.abortAssembly(ctx, key, uploadID)
		return err
	}
	return nil
}

// abortAssembly tears down a failed assembly multipart upload best-effort.
func (s *Store) abortAssembly(ctx context.Context, key, uploadID string) {
	if err := s.backend.AbortMultipart(ctx, key, uploadID); err != nil && !cserrors.IsNotFound(err) {
		s.logger.Warnf("Could not abort multipart upload %s for %s: %s", uploadID, key, err)
	}
}

// clientSideJoin downloads the staged chunks in offset order and streams
// their concatenation into the final object as one write.
func (s *Store) clientSideJoin(
	ctx context.Context,
	key string,
	sess *cloudtypes.UploadSession,
	contentType string,
) error {
	s.logger.Debugf("Assembling %d staged chunks into %s client side", len(sess.Chunks), key)

	joined := newChunkJoinReader(ctx, s, sess.Chunks)
	defer func() { _ = joined.Close() }()

	_, err := s.streamWriteInternal(ctx, key, joined, sess.TotalLength(), contentType, true)
	return err
}

// removeStagedChunks deletes the staging objects of a completed upload.
// Failures are logged and absorbed: the final object is already committed
// and CleanPartialUploads collects whatever is left behind.
func (s *Store) removeStagedChunks(ctx context.Context, sess *cloudtypes.UploadSession) {
	for i := range sess.Chunks {
		chunkPath := sess.Chunks[i].Path
		if err := s.backend.Delete(ctx, s.initPath(chunkPath)); err != nil {
			s.logger.Warnf("Could not clean up staged chunk %s: %s", chunkPath, err)
		}
	}
}

// CancelChunkedUpload abandons an upload: every staged chunk object is
// deleted and any backend multipart upload recorded in the session is
// aborted. Cancelling twice is safe; objects and uploads already gone are
// ignored.
func (s *Store) CancelChunkedUpload(
	ctx context.Context,
	uploadID string,
	session cloudtypes.UploadSession,
) error {
	if err := validation.ValidateUploadID(uploadID); err != nil {
		return err
	}
	if err := validateSession(&session); err != nil {
		return err
	}

	for i := range session.Chunks {
		if err := s.backend.Delete(ctx, s.initPath(session.Chunks[i].Path)); err != nil {
			return err
		}
	}

	if session.MultipartID != "" && session.MultipartPath != "" {
		err := s.backend.AbortMultipart(ctx, s.initPath(session.MultipartPath), session.MultipartID)
		if err != nil && !cserrors.IsNotFound(err) {
			return err
		}
	}
	return nil
}

// chunkJoinReader presents a session's staged chunks as one sequential
// stream. Objects open on demand, one at a time, so joining holds a single
// chunk body open regardless of how many chunks the session carries.
type chunkJoinReader struct {
	ctx     context.Context
	store   *Store
	pending []cloudtypes.ChunkRecord
	current io.ReadCloser
}

func newChunkJoinReader(ctx context.Context, store *Store, chunks []cloudtypes.ChunkRecord) *chunkJoinReader {
	return &chunkJoinReader{ctx: ctx, store: store, pending: chunks}
}

func (r *chunkJoinReader) Read(p []byte) (int, error) {
	for {
		if r.current == nil {
			if len(r.pending) == 0 {
				return 0, io.EOF
			}
			body, err := r.store.backend.Get(r.ctx, r.store.initPath(r.pending[0].Path))
			if err != nil {
				return 0, err
			}
			r.current = body
			r.pending = r.pending[1:]
		}

		n, err := r.current.Read(p)
		if err == io.EOF {
			closeErr := r.current.Close()
			r.current = nil
			if closeErr != nil {
				return n, closeErr
			}
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (r *chunkJoinReader) Close() error {
	if r.current == nil {
		return nil
	}
	err := r.current.Close()
	r.current = nil
	return err
}
