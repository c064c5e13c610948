package util

import (
	"io"
	"sync"
)

// Buffer is an in-memory byte slice that supports ReadAt and WriteAt, growing
// as needed on writes past the end. It is safe for concurrent use.
type Buffer struct {
	data []byte
	mtx  *sync.Mutex
}

// NewBuffer returns a buffer holding data. The buffer takes ownership of data.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data, mtx: &sync.Mutex{}}
}

// ReadAt implements io.ReaderAt.
func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt.
func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	end := int(off) + len(p)
	if end > len(b.data) {
		grown := make([]byte, end)
		copy(grown, b.data)
		b.data = grown
	}
	return copy(b.data[off:], p), nil
}

// Bytes returns the buffer contents.
func (b *Buffer) Bytes() []byte {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.data
}

// Len returns the buffer length.
func (b *Buffer) Len() int {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return len(b.data)
}
