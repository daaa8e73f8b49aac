package cloudstage

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/calyptra-io/cloudstage/cloudtypes"
	"github.com/calyptra-io/cloudstage/driver"
	cserrors "github.com/calyptra-io/cloudstage/errors"
	"github.com/calyptra-io/cloudstage/internal/pool"
	"github.com/calyptra-io/cloudstage/internal/validation"
)

// listBuffer is the channel capacity of List. It lets the walker stay ahead
// of a slow consumer without holding a full page of entries per send.
const listBuffer = 100

// initPath resolves a store-relative path to its backend key: joined under
// the root, cleaned, and stripped of any leading slash.
func (s *Store) initPath(relPath string) string {
	return strings.TrimLeft(path.Join(s.rootPath, relPath), "/")
}

// relKey converts a backend key back to the store-relative form initPath
// resolved it from.
func (s *Store) relKey(key string) string {
	root := strings.TrimLeft(path.Join(s.rootPath), "/")
	if root == "" || root == "." {
		return key
	}
	return strings.TrimPrefix(key, root+"/")
}

// Exists reports whether an object is stored at relPath. A missing object
// is (false, nil); a missing bucket or a transport failure is an error.
func (s *Store) Exists(ctx context.Context, relPath string) (bool, error) {
	if err := validation.ValidatePath(relPath); err != nil {
		return false, err
	}

	_, err := s.backend.Stat(ctx, s.initPath(relPath))
	if err != nil {
		if cserrors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetContent downloads the object at relPath into memory. Intended for
// small objects; use StreamRead for anything sizable.
func (s *Store) GetContent(ctx context.Context, relPath string) ([]byte, error) {
	if err := validation.ValidatePath(relPath); err != nil {
		return nil, err
	}

	body, err := s.backend.Get(ctx, s.initPath(relPath))
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, cserrors.NewPathError("getContent", s.backend.Bucket(), relPath, err)
	}
	return data, nil
}

// PutContent uploads data as the object at relPath. An empty contentType is
// filled in by sniffing the payload.
func (s *Store) PutContent(ctx context.Context, relPath string, data []byte, contentType string) error {
	if err := validation.ValidatePath(relPath); err != nil {
		return err
	}
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	} else if err := validation.ValidateContentType(contentType); err != nil {
		return err
	}

	return s.backend.Put(ctx, s.initPath(relPath), bytes.NewReader(data), int64(len(data)), contentType)
}

// Remove deletes the object at relPath. When no exact object exists there,
// the path is treated as a directory and everything under it is deleted in
// batches. Removing a path with neither form present is a no-op.
func (s *Store) Remove(ctx context.Context, relPath string) error {
	if err := validation.ValidatePath(relPath); err != nil {
		return err
	}

	key := s.initPath(relPath)
	_, err := s.backend.Stat(ctx, key)
	switch {
	case err == nil:
		return s.backend.Delete(ctx, key)
	case !cserrors.IsNotFound(err):
		return err
	}

	var keys []string
	err = s.backend.List(ctx, key+"/", func(info driver.ObjectInfo) error {
		keys = append(keys, info.Key)
		return nil
	})
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.backend.DeleteBatch(ctx, keys)
}

// List lazily walks every object under prefix, relative to the store root.
// Entries arrive on the returned channel in key order with store-relative
// keys; the channel closes when the walk ends. A failed walk delivers one
// final entry with Err set before closing.
func (s *Store) List(ctx context.Context, prefix string) <-chan cloudtypes.ObjectEntry {
	entries := make(chan cloudtypes.ObjectEntry, listBuffer)

	if err := validation.ValidatePrefix(prefix); err != nil {
		entries <- cloudtypes.ObjectEntry{Err: err}
		close(entries)
		return entries
	}

	go func() {
		defer close(entries)

		err := s.backend.List(ctx, s.initPath(prefix), func(info driver.ObjectInfo) error {
			entry := cloudtypes.ObjectEntry{
				Key:          s.relKey(info.Key),
				Size:         info.Size,
				LastModified: info.LastModified,
			}
			select {
			case entries <- entry:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			select {
			case entries <- cloudtypes.ObjectEntry{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return entries
}

// StreamRead opens the object at relPath for sequential reading. The caller
// owns the returned reader and must close it.
func (s *Store) StreamRead(ctx context.Context, relPath string) (io.ReadCloser, error) {
	if err := validation.ValidatePath(relPath); err != nil {
		return nil, err
	}
	return s.backend.Get(ctx, s.initPath(relPath))
}

// StreamWrite copies up to size bytes from r into the object at relPath,
// holding at most one part buffer in memory. Pass ReadUntilEnd as size to
// copy until the source is exhausted. A source that ends before size bytes
// is not an error; the count tells the caller how much actually arrived.
func (s *Store) StreamWrite(
	ctx context.Context,
	relPath string,
	r io.Reader,
	size int64,
	contentType string,
) (int64, error) {
	if err := validation.ValidatePath(relPath); err != nil {
		return 0, err
	}
	if contentType != "" {
		if err := validation.ValidateContentType(contentType); err != nil {
			return 0, err
		}
	}
	if size < 0 && size != cloudtypes.ReadUntilEnd {
		return 0, cserrors.NewError("streamWrite", cserrors.ErrInvalidInput).
			WithPath(relPath).
			WithMessage("size must be non-negative or ReadUntilEnd")
	}

	return s.streamWriteInternal(ctx, s.initPath(relPath), r, size, contentType, true)
}

// streamWriteInternal copies at most size bytes from r (all of r when size
// is ReadUntilEnd) into the object at key. Payloads that fit one part
// buffer go up as a single put; anything larger becomes a backend multipart
// upload built part by part from the same reused buffer, so memory use
// stays bounded regardless of payload size. With allowEmpty false an
// exhausted source produces no object at all instead of an empty one.
func (s *Store) streamWriteInternal(
	ctx context.Context,
	key string,
	r io.Reader,
	size int64,
	contentType string,
	allowEmpty bool,
) (int64, error) {
	buf := s.parts.Get()
	defer s.parts.Put(buf)

	remaining := size

	n, err := readInto(buf, r, remaining)
	if err != nil {
		return 0, cserrors.NewPathError("streamWrite", s.backend.Bucket(), key, err)
	}
	if remaining > 0 {
		remaining -= int64(n)
	}

	if n == 0 && !allowEmpty {
		return 0, nil
	}

	// The whole payload fit in one buffer.
	if n < len(buf) || remaining == 0 {
		if err := s.backend.Put(ctx, key, bytes.NewReader(buf[:n]), int64(n), contentType); err != nil {
			return 0, err
		}
		return int64(n), nil
	}

	// More may follow. Switch to a multipart upload and feed it one
	// buffered part at a time.
	uploadID, err := s.backend.CreateMultipart(ctx, key, contentType)
	if err != nil {
		return 0, err
	}

	abort := func() {
		// Best effort. The write is already failing and the backend
		// expires abandoned uploads on its own schedule.
		if abortErr := s.backend.AbortMultipart(ctx, key, uploadID); abortErr != nil {
			s.logger.Warnf("Could not abort multipart upload %s for %s: %s", uploadID, key, abortErr)
		}
	}

	var (
		parts   []driver.Part
		partNum int32
		written int64
	)

	for {
		partNum++
		part, err := s.backend.UploadPart(ctx, key, uploadID, partNum, bytes.NewReader(buf[:n]), int64(n))
		if err != nil {
			abort()
			return written, err
		}
		parts = append(parts, part)
		written += int64(n)

		if n < len(buf) || remaining == 0 {
			break
		}

		n, err = readInto(buf, r, remaining)
		if err != nil {
			abort()
			return written, cserrors.NewPathError("streamWrite", s.backend.Bucket(), key, err)
		}
		if remaining > 0 {
			remaining -= int64(n)
		}
		if n == 0 {
			break
		}
	}

	if err := s.backend.CompleteMultipart(ctx, key, uploadID, parts); err != nil {
		abort()
		return written, err
	}
	return written, nil
}

// readInto fills buf from r up to limit bytes (no limit when limit is
// ReadUntilEnd), returning how many bytes arrived. End of input is consumed
// rather than returned, so a short fill simply means the source ran out.
func readInto(buf []byte, r io.Reader, limit int64) (int, error) {
	target := len(buf)
	if limit >= 0 && limit < int64(target) {
		target = int(limit)
	}

	total := 0
	for total < target {
		n, err := r.Read(buf[total:target])
		total += n
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Checksum returns an opaque short digest for the object at relPath: the
// backend ETag stripped of quotes and truncated to seven characters. Equal
// digests are a strong hint of equal content, nothing more.
func (s *Store) Checksum(ctx context.Context, relPath string) (string, error) {
	if err := validation.ValidatePath(relPath); err != nil {
		return "", err
	}

	info, err := s.backend.Stat(ctx, s.initPath(relPath))
	if err != nil {
		return "", err
	}

	sum := strings.Trim(info.ETag, `"`)
	if len(sum) > 7 {
		sum = sum[:7]
	}
	return sum, nil
}

// PutFile uploads the local file at filename to relPath. The content type
// is sniffed from the file head unless contentType is set.
func (s *Store) PutFile(ctx context.Context, relPath, filename, contentType string) error {
	if err := validation.ValidatePath(relPath); err != nil {
		return err
	}

	info, err := s.fs.Stat(filename)
	if err != nil {
		return cserrors.NewPathError("putFile", s.backend.Bucket(), relPath, err)
	}
	if info.IsDir() {
		return cserrors.NewError("putFile", cserrors.ErrInvalidInput).
			WithPath(relPath).
			WithMessage("filename points to a directory, not a file")
	}

	file, err := s.fs.Open(filename)
	if err != nil {
		return cserrors.NewPathError("putFile", s.backend.Bucket(), relPath, err)
	}
	defer func() { _ = file.Close() }()

	if contentType == "" {
		head := make([]byte, 512)
		n, _ := file.Read(head)
		contentType = mimetype.Detect(head[:n]).String()
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return cserrors.NewPathError("putFile", s.backend.Bucket(), relPath, err)
		}
	} else if err := validation.ValidateContentType(contentType); err != nil {
		return err
	}

	if _, err := s.streamWriteInternal(ctx, s.initPath(relPath), file, info.Size(), contentType, true); err != nil {
		return err
	}
	return nil
}

// GetToFile downloads the object at relPath into the local file at
// filename, creating or truncating it.
func (s *Store) GetToFile(ctx context.Context, relPath, filename string) error {
	if err := validation.ValidatePath(relPath); err != nil {
		return err
	}

	body, err := s.backend.Get(ctx, s.initPath(relPath))
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	file, err := s.fs.Create(filename)
	if err != nil {
		return cserrors.NewPathError("getToFile", s.backend.Bucket(), relPath, err)
	}

	buf := pool.GetCopyBuffer()
	_, copyErr := io.CopyBuffer(file, body, buf)
	pool.PutCopyBuffer(buf)

	closeErr := file.Close()
	if copyErr != nil {
		return cserrors.NewPathError("getToFile", s.backend.Bucket(), relPath, copyErr)
	}
	if closeErr != nil {
		return cserrors.NewPathError("getToFile", s.backend.Bucket(), relPath, closeErr)
	}
	return nil
}

// Setup creates the backend bucket when it does not exist yet. A bucket
// that already exists, including one created concurrently, is success.
func (s *Store) Setup(ctx context.Context) error {
	err := s.backend.CheckBucket(ctx)
	if err == nil {
		return nil
	}
	if !cserrors.IsBucketNotFound(err) {
		return err
	}

	err = s.backend.CreateBucket(ctx)
	if err != nil && !cserrors.IsBucketExists(err) {
		return err
	}
	return nil
}

// Validate verifies the configured bucket is reachable with the configured
// credentials.
func (s *Store) Validate(ctx context.Context) error {
	return s.backend.CheckBucket(ctx)
}
