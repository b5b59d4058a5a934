package storage

import (
	"fmt"
	"io"
)

// DefaultChunkSize is the transfer unit used when a backend is not
// configured with an explicit chunk size. It bounds both the writer staging
// buffers and the reader refill requests.
const DefaultChunkSize = 10 * 1024 * 1024

// RemoteFile is an open streaming handle to one remote object, bound to
// exactly one FileMode.
//
// Read fills p completely unless the stream is exhausted; after the last
// byte it returns (0, io.EOF). Write buffers locally and may dispatch one or
// more backend transfers as a side effect once the buffered bytes exceed the
// backend's chunk threshold. Close flushes and finalizes any pending upload
// state, releases transport resources, and is idempotent; a handle is never
// reused after Close. Call sites acquire handles with defer f.Close() so the
// error path releases resources exactly like the success path.
//
// Calling Read on a write-only handle (or Write on a read-only one) fails
// with an ErrUnsupportedOperation-wrapped error.
type RemoteFile interface {
	io.Reader
	io.Writer
	io.Closer

	// Mode returns the FileMode the handle was opened with.
	Mode() FileMode
}

// ReadOnly is embedded by reader implementations to supply the Mode and the
// rejected write direction.
type ReadOnly struct{}

func (ReadOnly) Mode() FileMode { return ModeRead }

func (ReadOnly) Write([]byte) (int, error) {
	return 0, fmt.Errorf("handle not open for writing: %w", ErrUnsupportedOperation)
}

// WriteOnly is embedded by writer implementations to supply the Mode and the
// rejected read direction.
type WriteOnly struct{}

func (WriteOnly) Mode() FileMode { return ModeWrite }

func (WriteOnly) Read([]byte) (int, error) {
	return 0, fmt.Errorf("handle not open for reading: %w", ErrUnsupportedOperation)
}

// ChunkIterator yields successive byte chunks from a RemoteFile (or any
// reader) until exhaustion. It is finite and single-pass: the underlying
// stream position is never reset, so a consumed iterator cannot be
// restarted.
type ChunkIterator struct {
	r    io.Reader
	buf  []byte
	done bool
}

// NewChunkIterator returns an iterator reading chunks of at most chunkSize
// bytes. A non-positive chunkSize falls back to DefaultChunkSize.
func NewChunkIterator(r io.Reader, chunkSize int) *ChunkIterator {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &ChunkIterator{r: r, buf: make([]byte, chunkSize)}
}

// Next returns the next chunk, or (nil, io.EOF) once the stream is
// exhausted. The returned slice is only valid until the following Next
// call. Transport errors propagate as-is.
func (it *ChunkIterator) Next() ([]byte, error) {
	if it.done {
		return nil, io.EOF
	}

	n, err := io.ReadFull(it.r, it.buf)
	switch {
	case err == io.EOF:
		it.done = true
		return nil, io.EOF
	case err == io.ErrUnexpectedEOF:
		// Short final chunk.
		it.done = true
		return it.buf[:n], nil
	case err != nil:
		it.done = true
		return nil, err
	}
	return it.buf[:n], nil
}
