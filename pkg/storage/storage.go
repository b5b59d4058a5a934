// Package storage defines the uniform storage abstraction shared by every
// backend: the Backend contract, the RemoteFile streaming handle, the
// bitflag mode and share-link types, the common error taxonomy, and the
// signed link-token protocol for backends without native pre-authorized
// URLs.
//
// Concrete backends live in the subpackages (s3, azure, sftp, localfs,
// memory). Callers hold the Backend interface; the convenience operations
// in this file (Get, Put, Download, Upload) are built purely on the
// RemoteFile contract and are never reimplemented per backend.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// Backend is the uniform contract a storage provider integration
// implements.
//
// A Backend instance lives for the whole process, holds its credentials and
// client state, and is identified by a name that is unique within a
// registry. The name salts internal link tokens and appears in error
// messages. Underlying clients may be reused across sequential Opens but
// are not assumed safe for concurrent use; callers needing concurrency
// provision one backend per worker.
type Backend interface {
	// Name returns the configured profile name.
	Name() string

	// List returns the entries under path. Structurally invalid or
	// non-listable paths are an error, never an empty result.
	List(ctx context.Context, path string) ([]ListEntry, error)

	// Open returns a streaming handle to path bound to mode. Unsupported
	// mode combinations fail immediately with ErrUnsupportedOperation.
	Open(ctx context.Context, path string, mode FileMode) (RemoteFile, error)

	// Delete removes the object at path. Whether deleting a missing object
	// is an error is part of each backend's documented contract: the
	// providers genuinely disagree and the difference is preserved.
	Delete(ctx context.Context, path string) error

	// LinkTo returns a URL granting time-limited, credential-free access to
	// perform op on path: a native presigned/SAS URL where the provider has
	// one, otherwise an internal signed-token link.
	LinkTo(ctx context.Context, path string, op ShareLinkOperation, expire time.Time) (string, error)
}

// ProgressFunc receives the cumulative number of bytes transferred after
// each chunk.
type ProgressFunc func(totalBytes int64)

// Get downloads the object at path into the local file dest.
func Get(ctx context.Context, b Backend, path, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := Download(ctx, b, path, out, nil); err != nil {
		return err
	}
	return out.Close()
}

// Put uploads the local file src to the object at path.
func Put(ctx context.Context, b Backend, src, path string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	_, err = Upload(ctx, b, in, path, nil)
	return err
}

// ReadAll reads the whole object at path into memory.
func ReadAll(ctx context.Context, b Backend, path string) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := Download(ctx, b, path, &buf, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Download streams the object at path into sink, invoking progress (if
// non-nil) with the running byte total after each chunk. Returns the total
// number of bytes written to sink.
func Download(ctx context.Context, b Backend, path string, sink io.Writer, progress ProgressFunc) (int64, error) {
	f, err := b.Open(ctx, path, ModeRead)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var total int64
	it := NewChunkIterator(f, DefaultChunkSize)
	for {
		chunk, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, err
		}
		n, err := sink.Write(chunk)
		total += int64(n)
		if err != nil {
			return total, err
		}
		if progress != nil {
			progress(total)
		}
	}
	return total, nil
}

// Upload streams source to the object at path, symmetric to Download.
func Upload(ctx context.Context, b Backend, source io.Reader, path string, progress ProgressFunc) (int64, error) {
	f, err := b.Open(ctx, path, ModeWrite)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var total int64
	it := NewChunkIterator(source, DefaultChunkSize)
	for {
		chunk, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, err
		}
		n, err := f.Write(chunk)
		total += int64(n)
		if err != nil {
			return total, err
		}
		if progress != nil {
			progress(total)
		}
	}
	return total, f.Close()
}
