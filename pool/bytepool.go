// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>

package pool

import "sync"

// BytePool hands out byte slices of a fixed size.
type BytePool struct {
	size int
	pool sync.Pool
}

// NewBytePool creates a pool of size-byte buffers.
func NewBytePool(size int) *BytePool {
	b := &BytePool{size: size}
	b.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return b
}

// Size is the length of every buffer the pool returns.
func (b *BytePool) Size() int { return b.size }

// GetBuffer returns a buffer of exactly Size bytes. Its contents are
// undefined.
func (b *BytePool) GetBuffer() []byte {
	return *b.pool.Get().(*[]byte)
}

// PutBuffer returns buf to the pool. Buffers of a different capacity are
// dropped.
func (b *BytePool) PutBuffer(buf []byte) {
	if cap(buf) != b.size {
		return
	}
	buf = buf[:b.size]
	b.pool.Put(&buf)
}

var (
	sharedMu sync.Mutex
	shared   = make(map[int]*BytePool)
)

// ForSize returns the process-wide pool for size-byte buffers.
func ForSize(size int) *BytePool {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	p, ok := shared[size]
	if !ok {
		p = NewBytePool(size)
		shared[size] = p
	}
	return p
}
