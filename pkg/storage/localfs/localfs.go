// Package localfs implements a storage backend rooted at a local directory.
//
// All paths are interpreted relative to the backend root and are validated
// so that no operation can read or write outside it, even through symlinks
// planted inside the tree. Only regular files are visible; directories act
// purely as namespace.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/caskstore/cask/pkg/storage"
)

// Backend stores objects as files under a root directory.
type Backend struct {
	storage.InternalLinks

	root string
}

// New creates a backend rooted at root, creating the directory if needed.
// The root is resolved once so later symlink checks compare real paths.
func New(name, root string, secret []byte, endpoint string) (*Backend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating root %s: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", root, err)
	}
	return &Backend{
		InternalLinks: storage.NewInternalLinks(name, secret, endpoint),
		root:          resolved,
	}, nil
}

// disallowed reports whether r may not appear in a path. Space is the only
// whitespace rune allowed.
func disallowed(r rune) bool {
	switch r {
	case '~', '?', '*':
		return true
	}
	return unicode.IsSpace(r) && r != ' '
}

// resolve maps a backend path to an absolute filesystem path, rejecting
// anything that would land outside the root.
func (b *Backend) resolve(path string) (string, error) {
	if i := strings.IndexFunc(path, disallowed); i >= 0 {
		return "", fmt.Errorf("path %q contains disallowed character %q: %w", path, path[i], storage.ErrInvalidPath)
	}

	full := filepath.Join(b.root, filepath.FromSlash(path))
	resolved, err := resolveExisting(full)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", path, err)
	}
	if resolved != b.root && !strings.HasPrefix(resolved, b.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the storage root: %w", path, storage.ErrInvalidPath)
	}
	return full, nil
}

// resolveExisting resolves symlinks in the longest existing prefix of path
// and rejoins the non-existing remainder. A plain EvalSymlinks would fail
// for paths about to be created.
func resolveExisting(path string) (string, error) {
	existing := path
	var rest []string
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			for i := len(rest) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, rest[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return "", err
		}
		rest = append(rest, filepath.Base(existing))
		existing = parent
	}
}

// List walks the tree under path and returns every regular file, sorted by
// name. Paths in the result are relative to the root, with forward slashes.
func (b *Backend) List(ctx context.Context, path string) ([]storage.ListEntry, error) {
	full, err := b.resolve(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &storage.FileNotFoundError{Storage: b.Name(), Filename: path}
	}
	if err != nil {
		return nil, err
	}

	var entries []storage.ListEntry
	if info.Mode().IsRegular() {
		entries = append(entries, b.entry(full, info))
		return entries, nil
	}

	err = filepath.WalkDir(full, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		entries = append(entries, b.entry(p, fi))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (b *Backend) entry(full string, info fs.FileInfo) storage.ListEntry {
	rel, err := filepath.Rel(b.root, full)
	if err != nil {
		rel = info.Name()
	}
	return storage.ListEntry{
		Name:         filepath.ToSlash(rel),
		LastModified: info.ModTime(),
		Size:         info.Size(),
	}
}

// Open opens path with the given mode. Unlike the remote object stores,
// read+write handles are supported, but only on an existing file. Opening
// for write creates missing parent directories.
func (b *Backend) Open(ctx context.Context, path string, mode storage.FileMode) (storage.RemoteFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full, err := b.resolve(path)
	if err != nil {
		return nil, err
	}

	var flag int
	switch {
	case mode.CanRead() && mode.CanWrite():
		flag = os.O_RDWR
	case mode.CanRead():
		flag = os.O_RDONLY
	case mode.CanWrite():
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	default:
		return nil, fmt.Errorf("unsupported mode %q: %w", mode, storage.ErrUnsupportedOperation)
	}

	if mode.CanWrite() {
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return nil, fmt.Errorf("creating parent directories for %s: %w", path, err)
		}
	}

	if info, err := os.Stat(full); err == nil && !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file: %w", path, storage.ErrInvalidPath)
	}

	f, err := os.OpenFile(full, flag, 0o644)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &storage.FileNotFoundError{Storage: b.Name(), Filename: path}
	}
	if err != nil {
		return nil, err
	}
	return &file{File: f, mode: mode}, nil
}

// Delete removes the regular file at path. Deleting a missing file is a
// no-op; directories, symlinks and other non-regular entries are rejected.
func (b *Backend) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	full, err := b.resolve(path)
	if err != nil {
		return err
	}

	info, err := os.Lstat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file: %w", path, storage.ErrInvalidPath)
	}
	return os.Remove(full)
}

// file wraps an *os.File, gating reads and writes by the open mode.
type file struct {
	*os.File
	mode storage.FileMode
}

func (f *file) Mode() storage.FileMode { return f.mode }

func (f *file) Read(p []byte) (int, error) {
	if !f.mode.CanRead() {
		return 0, fmt.Errorf("file is write-only: %w", storage.ErrUnsupportedOperation)
	}
	return f.File.Read(p)
}

func (f *file) Write(p []byte) (int, error) {
	if !f.mode.CanWrite() {
		return 0, fmt.Errorf("file is read-only: %w", storage.ErrUnsupportedOperation)
	}
	return f.File.Write(p)
}
