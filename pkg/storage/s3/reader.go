package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/caskstore/cask/pkg/storage"
)

func (b *Backend) openReader(ctx context.Context, path string) (*Reader, error) {
	out, err := b.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, &storage.FileNotFoundError{Storage: b.name, Filename: path}
		}
		return nil, fmt.Errorf("getting object %s: %w", path, err)
	}
	return &Reader{body: out.Body}, nil
}

// Reader streams an object's content. Reads fill the whole buffer unless
// the object is exhausted, which keeps chunked consumers producing
// full-size chunks regardless of how the HTTP body arrives.
type Reader struct {
	storage.ReadOnly
	body io.ReadCloser
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := io.ReadFull(r.body, p)
	if err == io.ErrUnexpectedEOF {
		return n, nil
	}
	return n, err
}

func (r *Reader) Close() error {
	return r.body.Close()
}
