package testutil

import (
	"context"
	"crypto/md5" //nolint:gosec // ETag fidelity, not cryptography
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/calyptra-io/cloudstage/driver"
	cserrors "github.com/calyptra-io/cloudstage/errors"
)

// FakeBackend is an in-memory driver.Backend for engine tests. It mirrors
// the error discipline of the real drivers (sentinel-wrapped not-found,
// missing-bucket failures on every operation) and keeps per-operation call
// counts so tests can assert which storage path was taken. Limits are
// configurable so multipart behavior can be exercised with small payloads.
type FakeBackend struct {
	mu sync.Mutex

	bucket string
	limits driver.Limits

	objects map[string]*fakeObject
	uploads map[string]*fakeUpload
	peers   map[string]*FakeBackend

	bucketMissing bool
	nextUploadID  int

	calls map[string]int

	// FailOn, when set, is consulted first by every operation. Returning a
	// non-nil error fails the call with that error. The op argument is the
	// driver method name, e.g. "UploadPartCopy". The callback runs with the
	// backend lock held and must not call back into the backend.
	FailOn func(op, key string) error
}

type fakeObject struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

type fakeUpload struct {
	key         string
	contentType string
	parts       map[int32]fakePart
}

type fakePart struct {
	data []byte
	etag string
}

// Ensure FakeBackend implements the driver contract
var _ driver.Backend = (*FakeBackend)(nil)

// NewFakeBackend creates an empty in-memory backend for bucket with the real
// S3 limits (5 MiB minimum part, 5 GiB maximum part).
func NewFakeBackend(bucket string) *FakeBackend {
	return &FakeBackend{
		bucket: bucket,
		limits: driver.Limits{
			MinPartSize: 5 * 1024 * 1024,
			MaxPartSize: 5 * 1024 * 1024 * 1024,
		},
		objects: make(map[string]*fakeObject),
		uploads: make(map[string]*fakeUpload),
		peers:   make(map[string]*FakeBackend),
		calls:   make(map[string]int),
	}
}

// SetLimits overrides the advertised multipart limits. Tests shrink these so
// the native assembly path triggers on byte-sized payloads.
func (f *FakeBackend) SetLimits(limits driver.Limits) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = limits
	return f
}

// Seed stores data at key with the current time as its modification time.
func (f *FakeBackend) Seed(key string, data []byte) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = &fakeObject{
		data:         append([]byte(nil), data...),
		lastModified: time.Now(),
	}
	return f
}

// SetModTime rewrites the modification time of an existing object. Tests use
// it to age staged chunks for reaper runs.
func (f *FakeBackend) SetModTime(key string, t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if obj, ok := f.objects[key]; ok {
		obj.lastModified = t
	}
}

// SetBucketMissing makes every operation except CreateBucket fail as if the
// bucket did not exist.
func (f *FakeBackend) SetBucketMissing(missing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bucketMissing = missing
}

// AllowCopyFrom registers src as server-side copy compatible with this
// backend and makes its objects addressable by bucket name in Copy calls.
func (f *FakeBackend) AllowCopyFrom(src *FakeBackend) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.peers[src.bucket] = src
}

// Data returns a copy of the bytes stored at key.
func (f *FakeBackend) Data(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), obj.data...), true
}

// ContentType returns the content type recorded for key.
func (f *FakeBackend) ContentType(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if obj, ok := f.objects[key]; ok {
		return obj.contentType
	}
	return ""
}

// Keys returns all stored keys in lexical order.
func (f *FakeBackend) Keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedKeysLocked()
}

// CallCount reports how many times the named driver method ran.
func (f *FakeBackend) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls reports how many driver method calls ran in total.
func (f *FakeBackend) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// OpenUploads reports the number of multipart uploads neither completed nor
// aborted.
func (f *FakeBackend) OpenUploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

// Bucket returns the bucket this backend operates on.
func (f *FakeBackend) Bucket() string {
	return f.bucket
}

// Limits reports the configured multipart constraints.
func (f *FakeBackend) Limits() driver.Limits {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.limits
}

// CanCopyFrom reports true for this backend itself and for fakes registered
// through AllowCopyFrom.
func (f *FakeBackend) CanCopyFrom(src driver.Backend) bool {
	other, ok := src.(*FakeBackend)
	if !ok {
		return false
	}
	if other == f {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peers[other.bucket] == other
}

func (f *FakeBackend) enter(op, key string) error {
	f.calls[op]++
	if f.bucketMissing {
		return cserrors.NewPathError(op, f.bucket, key, cserrors.ErrBucketNotFound)
	}
	if f.FailOn != nil {
		if err := f.FailOn(op, key); err != nil {
			return err
		}
	}
	return nil
}

func (f *FakeBackend) sortedKeysLocked() []string {
	keys := make([]string, 0, len(f.objects))
	for key := range f.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func etagOf(data []byte) string {
	return fmt.Sprintf("%q", fmt.Sprintf("%x", md5.Sum(data))) //nolint:gosec // ETag fidelity
}

// Stat returns the stored object's metadata.
func (f *FakeBackend) Stat(ctx context.Context, key string) (driver.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Stat", key); err != nil {
		return driver.ObjectInfo{}, err
	}

	obj, ok := f.objects[key]
	if !ok {
		return driver.ObjectInfo{}, cserrors.NewPathError("Stat", f.bucket, key, cserrors.ErrObjectNotFound)
	}
	return driver.ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		ETag:         etagOf(obj.data),
		LastModified: obj.lastModified,
	}, nil
}

// Get opens the stored object for reading.
func (f *FakeBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Get", key); err != nil {
		return nil, err
	}

	obj, ok := f.objects[key]
	if !ok {
		return nil, cserrors.NewPathError("Get", f.bucket, key, cserrors.ErrObjectNotFound)
	}
	return io.NopCloser(newSliceReader(obj.data)), nil
}

// Put stores size bytes from r at key.
func (f *FakeBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return cserrors.NewPathError("Put", f.bucket, key, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Put", key); err != nil {
		return err
	}

	if size >= 0 && int64(len(data)) != size {
		return cserrors.NewPathError("Put", f.bucket, key,
			fmt.Errorf("body length %d does not match declared size %d", len(data), size))
	}

	f.objects[key] = &fakeObject{
		data:         data,
		contentType:  contentType,
		lastModified: time.Now(),
	}
	return nil
}

// Delete removes the object at key. Missing keys are ignored.
func (f *FakeBackend) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Delete", key); err != nil {
		return err
	}

	delete(f.objects, key)
	return nil
}

// DeleteBatch removes the given keys. Missing keys are ignored.
func (f *FakeBackend) DeleteBatch(ctx context.Context, keys []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteBatch", ""); err != nil {
		return err
	}

	for _, key := range keys {
		delete(f.objects, key)
	}
	return nil
}

// List walks stored keys under prefix in lexical order. The snapshot is
// taken up front so fn may delete objects without deadlocking.
func (f *FakeBackend) List(ctx context.Context, prefix string, fn func(driver.ObjectInfo) error) error {
	f.mu.Lock()
	if err := f.enter("List", prefix); err != nil {
		f.mu.Unlock()
		return err
	}

	var infos []driver.ObjectInfo
	for _, key := range f.sortedKeysLocked() {
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			continue
		}
		obj := f.objects[key]
		infos = append(infos, driver.ObjectInfo{
			Key:          key,
			Size:         int64(len(obj.data)),
			ETag:         etagOf(obj.data),
			LastModified: obj.lastModified,
		})
	}
	f.mu.Unlock()

	for _, info := range infos {
		if err := fn(info); err != nil {
			return err
		}
	}
	return nil
}

// Copy copies srcBucket/srcKey onto dstKey. The source bucket must be this
// backend's own bucket or one registered through AllowCopyFrom.
func (f *FakeBackend) Copy(ctx context.Context, srcBucket, srcKey, dstKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Copy", dstKey); err != nil {
		return err
	}

	source := f
	if srcBucket != f.bucket {
		peer, ok := f.peers[srcBucket]
		if !ok {
			return cserrors.NewPathError("Copy", srcBucket, srcKey, cserrors.ErrBucketNotFound)
		}
		source = peer
	}

	var data []byte
	if source == f {
		obj, ok := f.objects[srcKey]
		if !ok {
			return cserrors.NewPathError("Copy", srcBucket, srcKey, cserrors.ErrObjectNotFound)
		}
		data = append([]byte(nil), obj.data...)
	} else {
		srcData, ok := source.Data(srcKey)
		if !ok {
			return cserrors.NewPathError("Copy", srcBucket, srcKey, cserrors.ErrObjectNotFound)
		}
		data = srcData
	}

	f.objects[dstKey] = &fakeObject{data: data, lastModified: time.Now()}
	return nil
}

// CheckBucket reports whether the bucket exists.
func (f *FakeBackend) CheckBucket(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CheckBucket"]++
	if f.FailOn != nil {
		if err := f.FailOn("CheckBucket", ""); err != nil {
			return err
		}
	}
	if f.bucketMissing {
		return cserrors.NewError("CheckBucket", cserrors.ErrBucketNotFound).WithBucket(f.bucket)
	}
	return nil
}

// CreateBucket creates the bucket, clearing any missing-bucket simulation.
func (f *FakeBackend) CreateBucket(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateBucket"]++
	if f.FailOn != nil {
		if err := f.FailOn("CreateBucket", ""); err != nil {
			return err
		}
	}
	if !f.bucketMissing {
		return cserrors.NewError("CreateBucket", cserrors.ErrBucketAlreadyExists).WithBucket(f.bucket)
	}
	f.bucketMissing = false
	return nil
}

// CreateMultipart opens a new multipart session for key.
func (f *FakeBackend) CreateMultipart(ctx context.Context, key, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateMultipart", key); err != nil {
		return "", err
	}

	f.nextUploadID++
	uploadID := fmt.Sprintf("fake-upload-%d", f.nextUploadID)
	f.uploads[uploadID] = &fakeUpload{
		key:         key,
		contentType: contentType,
		parts:       make(map[int32]fakePart),
	}
	return uploadID, nil
}

// UploadPart stores one part of an open multipart session.
func (f *FakeBackend) UploadPart(
	ctx context.Context,
	key, uploadID string,
	partNumber int32,
	r io.Reader,
	size int64,
) (driver.Part, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return driver.Part{}, cserrors.NewPathError("UploadPart", f.bucket, key, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UploadPart", key); err != nil {
		return driver.Part{}, err
	}

	up, ok := f.uploads[uploadID]
	if !ok {
		return driver.Part{}, cserrors.NewPathError("UploadPart", f.bucket, key, cserrors.ErrUploadNotFound)
	}
	if size >= 0 && int64(len(data)) != size {
		return driver.Part{}, cserrors.NewPathError("UploadPart", f.bucket, key,
			fmt.Errorf("body length %d does not match declared size %d", len(data), size))
	}

	etag := etagOf(data)
	up.parts[partNumber] = fakePart{data: data, etag: etag}
	return driver.Part{Number: partNumber, ETag: etag}, nil
}

// UploadPartCopy fills a part from a byte range of an existing object.
func (f *FakeBackend) UploadPartCopy(
	ctx context.Context,
	key, uploadID string,
	partNumber int32,
	srcKey string,
	start, length int64,
) (driver.Part, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UploadPartCopy", key); err != nil {
		return driver.Part{}, err
	}

	up, ok := f.uploads[uploadID]
	if !ok {
		return driver.Part{}, cserrors.NewPathError("UploadPartCopy", f.bucket, key, cserrors.ErrUploadNotFound)
	}
	src, ok := f.objects[srcKey]
	if !ok {
		return driver.Part{}, cserrors.NewPathError("UploadPartCopy", f.bucket, srcKey, cserrors.ErrObjectNotFound)
	}
	if start < 0 || length <= 0 || start+length > int64(len(src.data)) {
		return driver.Part{}, cserrors.NewPathError("UploadPartCopy", f.bucket, srcKey, cserrors.ErrInvalidRange).
			WithMessage(fmt.Sprintf("range [%d, %d) outside object of %d bytes", start, start+length, len(src.data)))
	}

	data := append([]byte(nil), src.data[start:start+length]...)
	etag := etagOf(data)
	up.parts[partNumber] = fakePart{data: data, etag: etag}
	return driver.Part{Number: partNumber, ETag: etag}, nil
}

// CompleteMultipart stitches the stored parts into the final object. Part
// numbers must be strictly ascending and every referenced part must have
// been uploaded.
func (f *FakeBackend) CompleteMultipart(ctx context.Context, key, uploadID string, parts []driver.Part) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CompleteMultipart", key); err != nil {
		return err
	}

	up, ok := f.uploads[uploadID]
	if !ok {
		return cserrors.NewPathError("CompleteMultipart", f.bucket, key, cserrors.ErrUploadNotFound)
	}

	var data []byte
	last := int32(0)
	for _, p := range parts {
		if p.Number <= last {
			return cserrors.NewPathError("CompleteMultipart", f.bucket, key,
				fmt.Errorf("part numbers not ascending: %d after %d", p.Number, last))
		}
		last = p.Number

		stored, ok := up.parts[p.Number]
		if !ok {
			return cserrors.NewPathError("CompleteMultipart", f.bucket, key,
				fmt.Errorf("part %d was never uploaded", p.Number))
		}
		if p.ETag != stored.etag {
			return cserrors.NewPathError("CompleteMultipart", f.bucket, key,
				fmt.Errorf("part %d etag mismatch", p.Number))
		}
		data = append(data, stored.data...)
	}

	f.objects[key] = &fakeObject{
		data:         data,
		contentType:  up.contentType,
		lastModified: time.Now(),
	}
	delete(f.uploads, uploadID)
	return nil
}

// AbortMultipart discards an open multipart session.
func (f *FakeBackend) AbortMultipart(ctx context.Context, key, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("AbortMultipart", key); err != nil {
		return err
	}

	if _, ok := f.uploads[uploadID]; !ok {
		return cserrors.NewPathError("AbortMultipart", f.bucket, key, cserrors.ErrUploadNotFound)
	}
	delete(f.uploads, uploadID)
	return nil
}

// sliceReader is a minimal reader over a byte slice. bytes.NewReader is
// avoided so the fake returns a reader without Seek, matching what object
// storage bodies actually provide.
type sliceReader struct {
	data []byte
	off  int
}

func newSliceReader(data []byte) *sliceReader {
	return &sliceReader{data: append([]byte(nil), data...)}
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.off:])
	r.off += n
	return n, nil
}
