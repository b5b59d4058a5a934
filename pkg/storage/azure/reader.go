package azure

import (
	"context"
	"fmt"
	"io"

	"github.com/caskstore/cask/pkg/storage"
)

func (b *Backend) openReader(ctx context.Context, path string) (*Reader, error) {
	blob := b.container.Blob(path)

	size, err := blob.Size(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, &storage.FileNotFoundError{Storage: b.name, Filename: path}
		}
		return nil, fmt.Errorf("fetching size of blob %s: %w", path, err)
	}

	return &Reader{
		ctx:       ctx,
		blob:      blob,
		chunkSize: int64(b.chunkSize),
		size:      size,
	}, nil
}

// Reader streams a blob through ranged downloads. The blob size is fetched
// once at open; each ranged GET pulls at most one chunk into a local
// buffer.
type Reader struct {
	storage.ReadOnly

	ctx       context.Context
	blob      Blob
	chunkSize int64
	size      int64
	cursor    int64
	buf       []byte
	closed    bool
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, fmt.Errorf("read on closed reader")
	}

	total := 0
	for total < len(p) {
		if len(r.buf) == 0 {
			if r.cursor >= r.size {
				break
			}
			count := r.size - r.cursor
			if count > r.chunkSize {
				count = r.chunkSize
			}
			data, err := r.blob.DownloadRange(r.ctx, r.cursor, count)
			if err != nil {
				return total, fmt.Errorf("downloading range at %d: %w", r.cursor, err)
			}
			if len(data) == 0 {
				// The blob shrank after the size fetch.
				return total, fmt.Errorf("blob truncated at offset %d: %w", r.cursor, io.ErrUnexpectedEOF)
			}
			r.cursor += int64(len(data))
			r.buf = data
		}
		n := copy(p[total:], r.buf)
		r.buf = r.buf[n:]
		total += n
	}

	if total == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return total, nil
}

func (r *Reader) Close() error {
	r.closed = true
	r.buf = nil
	return nil
}
