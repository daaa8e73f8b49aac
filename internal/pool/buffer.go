package pool

import (
	"sync"
)

// CopyBufferSize defines the size of pooled copy buffers (64KB). These back
// io.CopyBuffer loops on download and concatenation paths.
const CopyBufferSize = 64 * 1024

// SizedPool manages reusable fixed-size buffers. The streaming write path
// holds at most one of these per writer, which is what bounds its memory
// use, so the size is fixed at construction and buffers of any other
// capacity are never pooled.
type SizedPool struct {
	size int
	pool *sync.Pool
}

// NewSized creates a pool of buffers of exactly size bytes.
func NewSized(size int) *SizedPool {
	return &SizedPool{
		size: size,
		pool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, size)
				return &buf
			},
		},
	}
}

// Size returns the buffer size this pool hands out.
func (p *SizedPool) Size() int {
	return p.size
}

// Get returns a full-length buffer from the pool.
// The caller is responsible for calling Put to return the buffer to the pool.
func (p *SizedPool) Get() []byte {
	bufPtr := p.pool.Get().(*[]byte)
	return (*bufPtr)[:p.size]
}

// Put returns a buffer to the pool.
// The buffer should not be used after calling Put. Buffers whose capacity
// does not match the pool size are dropped.
func (p *SizedPool) Put(buf []byte) {
	if cap(buf) != p.size {
		return
	}
	buf = buf[:p.size]
	p.pool.Put(&buf)
}

// Global copy-buffer pool instance for use throughout the module.
var copyBufferPool = &sync.Pool{
	New: func() interface{} {
		buf := make([]byte, CopyBufferSize)
		return &buf
	},
}

// GetCopyBuffer returns a copy buffer from the global pool.
func GetCopyBuffer() []byte {
	bufPtr := copyBufferPool.Get().(*[]byte)
	return (*bufPtr)[:CopyBufferSize]
}

// PutCopyBuffer returns a copy buffer to the global pool.
func PutCopyBuffer(buf []byte) {
	if cap(buf) != CopyBufferSize {
		return
	}
	buf = buf[:CopyBufferSize]
	copyBufferPool.Put(&buf)
}
