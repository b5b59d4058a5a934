// Package azure implements a storage backend on Azure Blob Storage.
//
// Uploads stage block-blob blocks and commit them on close; downloads use
// ranged reads over a local buffer so arbitrarily large blobs stream
// without full buffering. Share links are SAS URLs signed with the shared
// account key.
package azure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/caskstore/cask/pkg/storage"
)

// Blob is one blob's operation surface. The SDK adapter in this package
// implements it over a block-blob client; tests substitute a fake.
type Blob interface {
	StageBlock(ctx context.Context, blockID string, data []byte) error
	CommitBlockList(ctx context.Context, blockIDs []string) error
	DownloadRange(ctx context.Context, offset, count int64) ([]byte, error)
	Size(ctx context.Context) (int64, error)
	Delete(ctx context.Context) error
}

// Item is one blob in a container listing.
type Item struct {
	Name         string
	LastModified time.Time
	Size         int64
}

// Container is the container-level surface the backend needs.
type Container interface {
	Blob(path string) Blob

	// List returns the blobs and virtual-directory prefixes directly
	// under prefix, using "/" as the hierarchy delimiter.
	List(ctx context.Context, prefix string) (items []Item, prefixes []string, err error)

	// SignURL returns a SAS URL for path carrying the given permission
	// string, valid until expiry.
	SignURL(path, permissions string, expiry time.Time) (string, error)
}

// Backend is an Azure Blob Storage storage.Backend.
type Backend struct {
	name      string
	container Container
	chunkSize int
}

// Config contains everything needed to construct a Backend.
type Config struct {
	Name      string
	Container Container

	// ChunkSize is the block size in bytes. Defaults to
	// storage.DefaultChunkSize.
	ChunkSize int
}

// New creates an Azure backend over an existing container.
func New(cfg Config) (*Backend, error) {
	if cfg.Container == nil {
		return nil, fmt.Errorf("container client is required")
	}

	chunkSize := cfg.ChunkSize
	if chunkSize == 0 {
		chunkSize = storage.DefaultChunkSize
	}

	return &Backend{
		name:      cfg.Name,
		container: cfg.Container,
		chunkSize: chunkSize,
	}, nil
}

// Name returns the configured backend name.
func (b *Backend) Name() string { return b.name }

// isNotFound reports whether err is the service's blob-missing response.
func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return false
	}
	return respErr.ErrorCode == "BlobNotFound" || respErr.ErrorCode == "ContainerNotFound"
}

// List returns the blobs directly under path along with virtual-directory
// entries, which carry a zero timestamp.
func (b *Backend) List(ctx context.Context, path string) ([]storage.ListEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items, prefixes, err := b.container.List(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("listing blobs under %q: %w", path, err)
	}

	entries := make([]storage.ListEntry, 0, len(items)+len(prefixes))
	for _, p := range prefixes {
		entries = append(entries, storage.ListEntry{Name: p})
	}
	for _, item := range items {
		entries = append(entries, storage.ListEntry{
			Name:         item.Name,
			LastModified: item.LastModified,
			Size:         item.Size,
		})
	}
	return entries, nil
}

// Open opens a blob for reading or writing. Read+write handles are not
// supported since committed blobs are immutable.
func (b *Backend) Open(ctx context.Context, path string, mode storage.FileMode) (storage.RemoteFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if mode.CanRead() && mode.CanWrite() {
		return nil, fmt.Errorf("read+write mode not supported by the Azure backend: %w", storage.ErrUnsupportedOperation)
	}

	switch {
	case mode.CanRead():
		return b.openReader(ctx, path)
	case mode.CanWrite():
		return newWriter(ctx, b.container.Blob(path), b.chunkSize), nil
	default:
		return nil, fmt.Errorf("unsupported mode %q: %w", mode, storage.ErrUnsupportedOperation)
	}
}

// Delete removes the blob at path.
func (b *Backend) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := b.container.Blob(path).Delete(ctx); err != nil {
		return fmt.Errorf("deleting blob %s: %w", path, err)
	}
	return nil
}

// LinkTo returns a SAS URL for path. Unlike presigned URLs, a single SAS
// token can carry several permissions, so combined operations are allowed:
// download maps to read, upload to create+write, remove to delete.
func (b *Backend) LinkTo(ctx context.Context, path string, op storage.ShareLinkOperation, expire time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var perms string
	if op.Has(storage.OperationDownload) {
		perms += "r"
	}
	if op.Has(storage.OperationUpload) {
		perms += "cw"
	}
	if op.Has(storage.OperationRemove) {
		perms += "d"
	}
	if perms == "" {
		return "", fmt.Errorf("no operations requested: %w", storage.ErrUnsupportedOperation)
	}

	url, err := b.container.SignURL(path, perms, expire)
	if err != nil {
		return "", fmt.Errorf("signing SAS URL for %s: %w", path, err)
	}
	return url, nil
}
