// Package capture holds one run's worth of child output and decides whether
// two runs produced the same output.
//
// A Buffer is a chain of fixed-capacity chunks. Chunks come from a shared
// pool and go back to it on Release, so a long-running watch reuses the same
// memory from one iteration to the next.
package capture

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// ChunkSize is the capacity of a single chunk in bytes.
const ChunkSize = 1024

// ErrReleased is returned when a buffer is used or released after Release.
var ErrReleased = errors.New("capture: buffer already released")

type chunk struct {
	data [ChunkSize]byte
	size int
}

var chunkPool = sync.Pool{
	New: func() any { return new(chunk) },
}

// outstanding counts buffers created by New that have not been released.
var outstanding atomic.Int64

// Outstanding returns the number of buffers that have been created and not
// yet released.
func Outstanding() int64 {
	return outstanding.Load()
}

// Buffer is an ordered, growable sequence of chunks. The zero value is not
// usable; create buffers with New.
//
// A Buffer is owned by a single goroutine and is not safe for concurrent use.
type Buffer struct {
	chunks   []*chunk
	released bool
}

// New returns an empty buffer.
func New() *Buffer {
	outstanding.Add(1)
	return &Buffer{}
}

func (b *Buffer) grow() *chunk {
	c := chunkPool.Get().(*chunk)
	c.size = 0
	b.chunks = append(b.chunks, c)
	return c
}

// Write implements io.Writer. It fills the tail chunk and allocates new
// chunks one at a time as each fills up.
func (b *Buffer) Write(p []byte) (int, error) {
	if b.released {
		return 0, ErrReleased
	}

	n := len(p)
	for len(p) > 0 {
		var tail *chunk
		if len(b.chunks) > 0 {
			tail = b.chunks[len(b.chunks)-1]
		}
		if tail == nil || tail.size == ChunkSize {
			tail = b.grow()
		}
		copied := copy(tail.data[tail.size:], p)
		tail.size += copied
		p = p[copied:]
	}
	return n, nil
}

// ReadFrom implements io.ReaderFrom. It reads r until EOF, placing the
// result of every read in a chunk of its own, so chunk boundaries follow
// the boundaries at which the source delivered data.
func (b *Buffer) ReadFrom(r io.Reader) (int64, error) {
	if b.released {
		return 0, ErrReleased
	}

	var total int64
	for {
		c := b.grow()
		n, err := r.Read(c.data[:])
		c.size = n
		total += int64(n)

		if n == 0 {
			// Nothing landed in this chunk; hand it back.
			b.chunks = b.chunks[:len(b.chunks)-1]
			chunkPool.Put(c)
		}

		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// WriteTo implements io.WriterTo, writing every chunk in order.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	if b.released {
		return 0, ErrReleased
	}

	var total int64
	for _, c := range b.chunks {
		n, err := w.Write(c.data[:c.size])
		total += int64(n)
		if err != nil {
			return total, err
		}
		if n != c.size {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// Release returns the buffer's chunks to the pool. Calling it a second time
// returns ErrReleased and has no other effect.
func (b *Buffer) Release() error {
	if b.released {
		return ErrReleased
	}
	b.released = true

	for i, c := range b.chunks {
		chunkPool.Put(c)
		b.chunks[i] = nil
	}
	b.chunks = nil
	outstanding.Add(-1)
	return nil
}

// Released reports whether Release has been called.
func (b *Buffer) Released() bool {
	return b.released
}

// Len returns the number of bytes held.
func (b *Buffer) Len() int {
	var n int
	for _, c := range b.chunks {
		n += c.size
	}
	return n
}

// Chunks returns the number of chunks in use.
func (b *Buffer) Chunks() int {
	return len(b.chunks)
}

// Bytes returns a copy of the buffer's content.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, 0, b.Len())
	for _, c := range b.chunks {
		out = append(out, c.data[:c.size]...)
	}
	return out
}
