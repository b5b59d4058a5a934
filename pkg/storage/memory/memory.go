// Package memory implements an in-memory storage backend.
//
// It exists for tests, local development and exercising the internal
// link-token flow without provisioning a real provider. Objects live in a
// mutex-guarded map for the lifetime of the backend.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/caskstore/cask/pkg/storage"
)

type object struct {
	data     []byte
	modified time.Time
}

// Backend is an in-memory storage.Backend with internal link support.
type Backend struct {
	storage.InternalLinks

	mu      sync.RWMutex
	objects map[string]object
}

// New creates an empty in-memory backend. Secret and endpoint configure the
// internal link-token protocol and may be empty.
func New(name string, secret []byte, endpoint string) *Backend {
	return &Backend{
		InternalLinks: storage.NewInternalLinks(name, secret, endpoint),
		objects:       make(map[string]object),
	}
}

// List returns all objects whose name starts with path, sorted by name.
func (b *Backend) List(ctx context.Context, path string) ([]storage.ListEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var entries []storage.ListEntry
	for name, obj := range b.objects {
		if !strings.HasPrefix(name, path) {
			continue
		}
		entries = append(entries, storage.ListEntry{
			Name:         name,
			LastModified: obj.modified,
			Size:         int64(len(obj.data)),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Open returns a handle for path. Read and write modes are exclusive, as
// for the remote object stores.
func (b *Backend) Open(ctx context.Context, path string, mode storage.FileMode) (storage.RemoteFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if mode.CanRead() && mode.CanWrite() {
		return nil, fmt.Errorf("read+write mode not supported by the memory backend: %w", storage.ErrUnsupportedOperation)
	}

	switch {
	case mode.CanRead():
		b.mu.RLock()
		obj, ok := b.objects[path]
		b.mu.RUnlock()
		if !ok {
			return nil, &storage.FileNotFoundError{Storage: b.Name(), Filename: path}
		}
		return &reader{Reader: bytes.NewReader(obj.data)}, nil
	case mode.CanWrite():
		return &writer{backend: b, path: path}, nil
	default:
		return nil, fmt.Errorf("unsupported mode %q: %w", mode, storage.ErrUnsupportedOperation)
	}
}

// Delete removes the object at path. Deleting a missing object is an error,
// matching the object-store backends rather than the local filesystem.
func (b *Backend) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.objects[path]; !ok {
		return &storage.FileNotFoundError{Storage: b.Name(), Filename: path}
	}
	delete(b.objects, path)
	return nil
}

type reader struct {
	storage.ReadOnly
	*bytes.Reader
}

func (r *reader) Close() error { return nil }

// writer buffers all written bytes and commits the object on Close. A
// handle that never received a Write creates no object, matching the
// multipart-style backends.
type writer struct {
	storage.WriteOnly
	backend *Backend
	path    string
	buf     bytes.Buffer
	wrote   bool
	closed  bool
}

func (w *writer) Write(p []byte) (int, error) {
	w.wrote = true
	return w.buf.Write(p)
}

func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if !w.wrote {
		return nil
	}

	w.backend.mu.Lock()
	defer w.backend.mu.Unlock()
	w.backend.objects[w.path] = object{
		data:     append([]byte(nil), w.buf.Bytes()...),
		modified: time.Now(),
	}
	return nil
}
