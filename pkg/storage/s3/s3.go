// Package s3 implements a storage backend on Amazon S3 or any
// S3-compatible object store.
//
// Uploads stream through the multipart upload API so objects of any size
// can be written without buffering them whole. Share links are presigned
// URLs, so no signing secret besides the AWS credentials is needed.
package s3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/caskstore/cask/pkg/storage"
)

// Client is the subset of the S3 API the backend uses. *awss3.Client
// satisfies it; tests substitute a fake.
type Client interface {
	GetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *awss3.HeadObjectInput, opts ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *awss3.ListObjectsV2Input, opts ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, opts ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, in *awss3.CreateMultipartUploadInput, opts ...func(*awss3.Options)) (*awss3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *awss3.UploadPartInput, opts ...func(*awss3.Options)) (*awss3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *awss3.CompleteMultipartUploadInput, opts ...func(*awss3.Options)) (*awss3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *awss3.AbortMultipartUploadInput, opts ...func(*awss3.Options)) (*awss3.AbortMultipartUploadOutput, error)
}

// Presigner generates presigned URLs for single-object operations.
// *awss3.PresignClient satisfies it.
type Presigner interface {
	PresignGetObject(ctx context.Context, in *awss3.GetObjectInput, opts ...func(*awss3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignPutObject(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*awss3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignDeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, opts ...func(*awss3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Config contains everything needed to construct a Backend.
type Config struct {
	// Name identifies the backend in errors and listings.
	Name string

	// Client is the configured S3 client.
	Client Client

	// Presigner generates share links. Optional; LinkTo fails without it.
	Presigner Presigner

	// Bucket is the S3 bucket name.
	Bucket string

	// ChunkSize is the multipart part size in bytes. Defaults to
	// storage.DefaultChunkSize. The S3 minimum of 5MB applies to every
	// part but the last.
	ChunkSize int
}

// Backend is an S3-backed storage.Backend.
type Backend struct {
	name      string
	client    Client
	presigner Presigner
	bucket    string
	chunkSize int
}

// New creates an S3 backend. The bucket must already exist.
func New(cfg Config) (*Backend, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	chunkSize := cfg.ChunkSize
	if chunkSize == 0 {
		chunkSize = storage.DefaultChunkSize
	}

	return &Backend{
		name:      cfg.Name,
		client:    cfg.Client,
		presigner: cfg.Presigner,
		bucket:    cfg.Bucket,
		chunkSize: chunkSize,
	}, nil
}

// Name returns the configured backend name.
func (b *Backend) Name() string { return b.name }

// isNotFound reports whether err is any of the S3 "object does not exist"
// error shapes. GetObject returns NoSuchKey while HeadObject returns the
// generic NotFound.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// List returns all objects under the given key prefix.
func (b *Backend) List(ctx context.Context, path string) ([]storage.ListEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []storage.ListEntry

	paginator := awss3.NewListObjectsV2Paginator(b.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(path),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			entry := storage.ListEntry{Name: *obj.Key}
			if obj.LastModified != nil {
				entry.LastModified = *obj.LastModified
			}
			if obj.Size != nil {
				entry.Size = *obj.Size
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

// Open opens an object for reading or writing. Read+write handles are not
// supported since S3 objects are immutable once written.
func (b *Backend) Open(ctx context.Context, path string, mode storage.FileMode) (storage.RemoteFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if mode.CanRead() && mode.CanWrite() {
		return nil, fmt.Errorf("read+write mode not supported by the S3 backend: %w", storage.ErrUnsupportedOperation)
	}

	switch {
	case mode.CanRead():
		return b.openReader(ctx, path)
	case mode.CanWrite():
		return newWriter(ctx, b, path), nil
	default:
		return nil, fmt.Errorf("unsupported mode %q: %w", mode, storage.ErrUnsupportedOperation)
	}
}

// Delete removes the object at path. A missing object is an error; the
// existence check is explicit because S3 DeleteObject succeeds regardless.
func (b *Backend) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := b.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return &storage.FileNotFoundError{Storage: b.name, Filename: path}
		}
		return fmt.Errorf("checking object %s: %w", path, err)
	}

	_, err = b.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return fmt.Errorf("deleting object %s: %w", path, err)
	}
	return nil
}

// LinkTo returns a presigned URL for path. A presigned URL authorizes a
// single HTTP method, so exactly one operation must be requested.
func (b *Backend) LinkTo(ctx context.Context, path string, op storage.ShareLinkOperation, expire time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if b.presigner == nil {
		return "", fmt.Errorf("no presigner configured: %w", storage.ErrNotConfigured)
	}

	ttl := time.Until(expire)
	if ttl <= 0 {
		return "", fmt.Errorf("expiry %s is in the past", expire)
	}
	withExpiry := func(o *awss3.PresignOptions) { o.Expires = ttl }

	var (
		req *v4.PresignedHTTPRequest
		err error
	)
	switch op {
	case storage.OperationDownload:
		req, err = b.presigner.PresignGetObject(ctx, &awss3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(path),
		}, withExpiry)
	case storage.OperationUpload:
		req, err = b.presigner.PresignPutObject(ctx, &awss3.PutObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(path),
		}, withExpiry)
	case storage.OperationRemove:
		req, err = b.presigner.PresignDeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(path),
		}, withExpiry)
	default:
		return "", fmt.Errorf("presigned URLs authorize exactly one operation, got %q: %w", op, storage.ErrUnsupportedOperation)
	}
	if err != nil {
		return "", fmt.Errorf("presigning %s for %s: %w", op, path, err)
	}

	return req.URL, nil
}
