package cloudstage

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calyptra-io/cloudstage/cloudtypes"
	"github.com/calyptra-io/cloudstage/driver"
	cserrors "github.com/calyptra-io/cloudstage/errors"
	"github.com/calyptra-io/cloudstage/internal/testutil"
)

const testBucket = "upload-test-bucket"

// newTestBackend returns an in-memory backend with small part limits so
// multipart and assembly paths trigger on byte-sized payloads.
func newTestBackend() *testutil.FakeBackend {
	return testutil.NewFakeBackend(testBucket).SetLimits(driver.Limits{
		MinPartSize: 16,
		MaxPartSize: 1 << 20,
	})
}

func newTestStore(t *testing.T, rootPath string, opts ...cloudtypes.Option) (*Store, *testutil.FakeBackend) {
	t.Helper()
	backend := newTestBackend()
	store, err := New(backend, rootPath, opts...)
	require.NoError(t, err)
	return store, backend
}

func testContent(t *testing.T, n int) []byte {
	t.Helper()
	data := make([]byte, n)
	_, err := rand.Read(data)
	require.NoError(t, err)
	return data
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		backend driver.Backend
		opts    []cloudtypes.Option
		wantErr bool
	}{
		{
			name:    "default configuration",
			backend: newTestBackend(),
		},
		{
			name:    "custom chunk bounds",
			backend: newTestBackend(),
			opts: []cloudtypes.Option{
				WithMinChunkSize(16),
				WithMaxChunkSize(48),
				WithPartBufferSize(32),
			},
		},
		{
			name:    "nil backend",
			backend: nil,
			wantErr: true,
		},
		{
			name:    "min chunk below backend minimum",
			backend: newTestBackend(),
			opts:    []cloudtypes.Option{WithMinChunkSize(8)},
			wantErr: true,
		},
		{
			name:    "max chunk below min chunk",
			backend: newTestBackend(),
			opts:    []cloudtypes.Option{WithMinChunkSize(64), WithMaxChunkSize(32)},
			wantErr: true,
		},
		{
			name:    "part buffer below backend minimum",
			backend: newTestBackend(),
			opts:    []cloudtypes.Option{WithPartBufferSize(8)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(tt.backend, "some/path", tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, cserrors.IsValidation(err))
				assert.Nil(t, store)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, store)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	backend := newTestBackend()
	store, err := New(backend, "some/path")
	require.NoError(t, err)

	limits := backend.Limits()
	assert.Equal(t, limits.MinPartSize, store.minChunkSize)
	assert.Equal(t, limits.MaxPartSize, store.maxChunkSize)
	assert.Equal(t, int64(defaultPartBufferSize), store.bufferSize)
	assert.NotNil(t, store.logger)
	assert.NotNil(t, store.fs)
	assert.NotNil(t, store.parts)
}

func TestStore_InitPath(t *testing.T) {
	tests := []struct {
		name     string
		rootPath string
		relPath  string
		want     string
	}{
		{name: "nested root", rootPath: "some/path", relPath: "some/cool/path", want: "some/path/some/cool/path"},
		{name: "slash root", rootPath: "/", relPath: "uploads/u1/0", want: "uploads/u1/0"},
		{name: "empty root", rootPath: "", relPath: "a/b", want: "a/b"},
		{name: "root with leading slash", rootPath: "/data", relPath: "x", want: "data/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newTestStore(t, tt.rootPath)
			assert.Equal(t, tt.want, store.initPath(tt.relPath))
		})
	}
}

func TestStore_RelKey(t *testing.T) {
	store, _ := newTestStore(t, "some/path")
	assert.Equal(t, "a/b", store.relKey("some/path/a/b"))

	rootless, _ := newTestStore(t, "/")
	assert.Equal(t, "a/b", rootless.relKey("a/b"))
}
