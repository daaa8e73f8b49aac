package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSized(t *testing.T) {
	p := NewSized(8 * 1024)
	require.NotNil(t, p)
	assert.Equal(t, 8*1024, p.Size())
}

func TestSizedPool_GetPut(t *testing.T) {
	p := NewSized(1024)

	buf := p.Get()
	require.NotNil(t, buf)
	assert.Equal(t, 1024, len(buf))
	assert.Equal(t, 1024, cap(buf))

	// Use the buffer
	copy(buf, []byte("test data"))
	assert.Equal(t, byte('t'), buf[0])

	// Return to pool and get again
	p.Put(buf)
	buf2 := p.Get()
	assert.Equal(t, 1024, len(buf2))
	p.Put(buf2)
}

func TestSizedPool_PutWrongCapacity(t *testing.T) {
	p := NewSized(1024)

	// A foreign buffer must be dropped, not pooled
	p.Put(make([]byte, 512))

	buf := p.Get()
	assert.Equal(t, 1024, len(buf))
	p.Put(buf)
}

func TestSizedPool_GetAfterShrink(t *testing.T) {
	p := NewSized(256)

	buf := p.Get()
	p.Put(buf[:10])

	// Pooled buffers come back at full length regardless of how they
	// were sliced before Put.
	buf2 := p.Get()
	assert.Equal(t, 256, len(buf2))
	p.Put(buf2)
}

func TestCopyBuffer(t *testing.T) {
	buf := GetCopyBuffer()
	require.NotNil(t, buf)
	assert.Equal(t, CopyBufferSize, len(buf))

	PutCopyBuffer(buf)

	// Wrong-capacity buffers are dropped silently
	PutCopyBuffer(make([]byte, 16))

	buf2 := GetCopyBuffer()
	assert.Equal(t, CopyBufferSize, len(buf2))
	PutCopyBuffer(buf2)
}

func TestSizedPool_Concurrent(t *testing.T) {
	p := NewSized(512)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				buf := p.Get()
				buf[0] = byte(j)
				p.Put(buf)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
