package localfs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/caskstore/cask/pkg/storage"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New("local", t.TempDir(), nil, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestPutGetRoundTrip(t *testing.T) {
	b := newTestBackend(t)
	ctx := t.Context()

	if _, err := storage.Upload(ctx, b, strings.NewReader("content"), "nested/dir/file.txt", nil); err != nil {
		t.Fatalf("Put: %v", err)
	}

	data, err := storage.ReadAll(ctx, b, "nested/dir/file.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "content" {
		t.Fatalf("got %q", data)
	}
}

func TestOpenMissing(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.Open(t.Context(), "absent.txt", storage.ModeRead)
	if !storage.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestDisallowedCharacters(t *testing.T) {
	b := newTestBackend(t)
	ctx := t.Context()

	for _, path := range []string{
		"file~.txt",
		"what?.txt",
		"glob*.txt",
		"tab\there.txt",
		"new\nline.txt",
	} {
		_, err := b.Open(ctx, path, storage.ModeRead)
		if !errors.Is(err, storage.ErrInvalidPath) {
			t.Errorf("path %q: expected ErrInvalidPath, got %v", path, err)
		}
	}

	// A plain space is allowed.
	if _, err := storage.Upload(ctx, b, strings.NewReader("x"), "with space.txt", nil); err != nil {
		t.Fatalf("Put with space: %v", err)
	}
}

func TestDotDotEscape(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.Open(t.Context(), "../outside.txt", storage.ModeWrite)
	if !errors.Is(err, storage.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

func TestSymlinkEscape(t *testing.T) {
	outside := t.TempDir()
	root := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "evil")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	b, err := New("local", root, nil, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = b.Open(t.Context(), "evil/target.txt", storage.ModeWrite)
	if !errors.Is(err, storage.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

func TestSymlinkInsideRootAllowed(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "real"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "alias")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	b, err := New("local", root, nil, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := t.Context()

	if _, err := storage.Upload(ctx, b, strings.NewReader("hi"), "alias/file.txt", nil); err != nil {
		t.Fatalf("Put through internal symlink: %v", err)
	}
	data, err := storage.ReadAll(ctx, b, "real/file.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "hi" {
		t.Fatalf("got %q", data)
	}
}

func TestListRecursiveSorted(t *testing.T) {
	b := newTestBackend(t)
	ctx := t.Context()

	for _, name := range []string{"b/two.txt", "a/one.txt", "a/sub/three.txt"} {
		if _, err := storage.Upload(ctx, b, strings.NewReader(name), name, nil); err != nil {
			t.Fatalf("Put %s: %v", name, err)
		}
	}

	entries, err := b.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"a/one.txt", "a/sub/three.txt", "b/two.txt"}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Name != want[i] {
			t.Errorf("entry %d: got %s, want %s", i, e.Name, want[i])
		}
		if e.Size != int64(len(e.Name)) {
			t.Errorf("entry %s: size %d", e.Name, e.Size)
		}
		if e.IsPrefix() {
			t.Errorf("entry %s reported as prefix", e.Name)
		}
	}
}

func TestListSingleFile(t *testing.T) {
	b := newTestBackend(t)
	ctx := t.Context()

	if _, err := storage.Upload(ctx, b, strings.NewReader("x"), "single.txt", nil); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entries, err := b.List(ctx, "single.txt")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "single.txt" {
		t.Fatalf("unexpected entries: %v", entries)
	}
}

func TestListMissing(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.List(t.Context(), "nowhere")
	if !storage.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestDeleteMissingIsNoop(t *testing.T) {
	b := newTestBackend(t)

	if err := b.Delete(t.Context(), "never-existed.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestDeleteFifoRejected(t *testing.T) {
	root := t.TempDir()
	if err := syscall.Mkfifo(filepath.Join(root, "pipe"), 0o644); err != nil {
		t.Skipf("fifos unavailable: %v", err)
	}

	b, err := New("local", root, nil, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := b.Delete(t.Context(), "pipe"); !errors.Is(err, storage.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
	if _, err := os.Lstat(filepath.Join(root, "pipe")); err != nil {
		t.Fatalf("fifo was removed: %v", err)
	}
}

func TestDeleteSymlinkRejected(t *testing.T) {
	root := t.TempDir()
	b, err := New("local", root, nil, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := t.Context()

	if _, err := storage.Upload(ctx, b, strings.NewReader("x"), "real.txt", nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "alias")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if err := b.Delete(ctx, "alias"); !errors.Is(err, storage.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
	if _, err := storage.ReadAll(ctx, b, "real.txt"); err != nil {
		t.Fatalf("symlink target was removed: %v", err)
	}
}

func TestDeleteDirectoryRejected(t *testing.T) {
	b := newTestBackend(t)
	ctx := t.Context()

	if _, err := storage.Upload(ctx, b, strings.NewReader("x"), "dir/file.txt", nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := b.Delete(ctx, "dir"); !errors.Is(err, storage.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

func TestReadWriteMode(t *testing.T) {
	b := newTestBackend(t)
	ctx := t.Context()

	if _, err := storage.Upload(ctx, b, strings.NewReader("old!"), "rw.txt", nil); err != nil {
		t.Fatalf("Put: %v", err)
	}

	f, err := b.Open(ctx, "rw.txt", storage.ModeRead|storage.ModeWrite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := f.Write([]byte("data")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := storage.ReadAll(ctx, b, "rw.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "data" {
		t.Fatalf("got %q", data)
	}
}

func TestReadWriteMissing(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.Open(t.Context(), "absent.txt", storage.ModeRead|storage.ModeWrite)
	if !storage.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestModeGating(t *testing.T) {
	b := newTestBackend(t)
	ctx := t.Context()

	if _, err := storage.Upload(ctx, b, strings.NewReader("x"), "gated.txt", nil); err != nil {
		t.Fatalf("Put: %v", err)
	}

	r, err := b.Open(ctx, "gated.txt", storage.ModeRead)
	if err != nil {
		t.Fatalf("Open read: %v", err)
	}
	defer r.Close()
	if _, err := r.Write([]byte("y")); !errors.Is(err, storage.ErrUnsupportedOperation) {
		t.Fatalf("write on read handle: %v", err)
	}

	w, err := b.Open(ctx, "gated.txt", storage.ModeWrite)
	if err != nil {
		t.Fatalf("Open write: %v", err)
	}
	defer w.Close()
	buf := make([]byte, 1)
	if _, err := w.Read(buf); !errors.Is(err, storage.ErrUnsupportedOperation) {
		t.Fatalf("read on write handle: %v", err)
	}
}
