package azure

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/caskstore/cask/pkg/storage"
)

// blockID returns the ID for the block at the given zero-based index: an
// 8-byte big-endian index followed by 40 random bytes, base64-encoded.
// The index prefix makes dispatch order recoverable from the IDs alone;
// the random tail prevents collisions with concurrent uploads to the same
// blob name. All IDs for a blob must have equal length, hence the fixed
// layout.
func blockID(index uint64) (string, error) {
	raw := make([]byte, 48)
	binary.BigEndian.PutUint64(raw[:8], index)
	if _, err := rand.Read(raw[8:]); err != nil {
		return "", fmt.Errorf("generating block ID: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Writer streams a blob through staged blocks.
//
// Blocks are staged whenever the buffer reaches the chunk size and the
// block list is committed on Close, in dispatch order. A writer closed
// without data commits nothing and creates no blob.
type Writer struct {
	storage.WriteOnly

	ctx       context.Context
	blob      Blob
	chunkSize int
	buf       bytes.Buffer
	blockIDs  []string
	closed    bool
}

func newWriter(ctx context.Context, blob Blob, chunkSize int) *Writer {
	return &Writer{ctx: ctx, blob: blob, chunkSize: chunkSize}
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write on closed writer")
	}

	w.buf.Write(p)
	for w.buf.Len() >= w.chunkSize {
		if err := w.stageBlock(w.buf.Next(w.chunkSize)); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (w *Writer) stageBlock(data []byte) error {
	id, err := blockID(uint64(len(w.blockIDs)))
	if err != nil {
		return err
	}
	if err := w.blob.StageBlock(w.ctx, id, data); err != nil {
		return fmt.Errorf("staging block %d: %w", len(w.blockIDs), err)
	}
	w.blockIDs = append(w.blockIDs, id)
	return nil
}

// Close stages any buffered remainder and commits the block list. Closing
// a writer that never received data is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if w.buf.Len() > 0 {
		if err := w.stageBlock(w.buf.Bytes()); err != nil {
			return err
		}
		w.buf.Reset()
	}

	if len(w.blockIDs) == 0 {
		return nil
	}

	if err := w.blob.CommitBlockList(w.ctx, w.blockIDs); err != nil {
		return fmt.Errorf("committing block list: %w", err)
	}
	return nil
}
