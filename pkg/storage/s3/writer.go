package s3

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/caskstore/cask/pkg/storage"
)

// Writer streams an object to S3 through a multipart upload.
//
// The upload is created lazily on the first part flush, so a writer that is
// closed without data creates no object at all. Parts are uploaded whenever
// the buffer reaches the backend chunk size; the remainder is flushed as
// the final part on Close.
type Writer struct {
	storage.WriteOnly

	ctx      context.Context
	backend  *Backend
	path     string
	buf      bytes.Buffer
	uploadID string
	parts    []types.CompletedPart
	closed   bool
}

func newWriter(ctx context.Context, b *Backend, path string) *Writer {
	return &Writer{ctx: ctx, backend: b, path: path}
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write on closed writer")
	}

	w.buf.Write(p)
	for w.buf.Len() >= w.backend.chunkSize {
		if err := w.flushPart(w.buf.Next(w.backend.chunkSize)); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// flushPart uploads one part, creating the multipart upload first if this
// is the initial part.
func (w *Writer) flushPart(data []byte) error {
	if w.uploadID == "" {
		out, err := w.backend.client.CreateMultipartUpload(w.ctx, &awss3.CreateMultipartUploadInput{
			Bucket: aws.String(w.backend.bucket),
			Key:    aws.String(w.path),
		})
		if err != nil {
			return fmt.Errorf("creating multipart upload for %s: %w", w.path, err)
		}
		w.uploadID = aws.ToString(out.UploadId)
	}

	partNumber := int32(len(w.parts) + 1)
	out, err := w.backend.client.UploadPart(w.ctx, &awss3.UploadPartInput{
		Bucket:     aws.String(w.backend.bucket),
		Key:        aws.String(w.path),
		UploadId:   aws.String(w.uploadID),
		PartNumber: aws.Int32(partNumber),
		Body:       bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("uploading part %d of %s: %w", partNumber, w.path, err)
	}

	w.parts = append(w.parts, types.CompletedPart{
		ETag:       out.ETag,
		PartNumber: aws.Int32(partNumber),
	})
	return nil
}

// Close flushes any buffered remainder and completes the upload. Closing a
// writer that never received data is a no-op and creates no object.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if w.buf.Len() > 0 {
		if err := w.flushPart(w.buf.Bytes()); err != nil {
			return err
		}
		w.buf.Reset()
	}

	if w.uploadID == "" {
		return nil
	}

	_, err := w.backend.client.CompleteMultipartUpload(w.ctx, &awss3.CompleteMultipartUploadInput{
		Bucket:   aws.String(w.backend.bucket),
		Key:      aws.String(w.path),
		UploadId: aws.String(w.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: w.parts,
		},
	})
	if err != nil {
		return fmt.Errorf("completing multipart upload for %s: %w", w.path, err)
	}
	return nil
}

// Abort cancels the upload and discards every part uploaded so far. It is
// safe to call on a writer that never flushed a part.
func (w *Writer) Abort() error {
	w.closed = true
	w.buf.Reset()

	if w.uploadID == "" {
		return nil
	}

	_, err := w.backend.client.AbortMultipartUpload(w.ctx, &awss3.AbortMultipartUploadInput{
		Bucket:   aws.String(w.backend.bucket),
		Key:      aws.String(w.path),
		UploadId: aws.String(w.uploadID),
	})
	if err != nil {
		return fmt.Errorf("aborting multipart upload for %s: %w", w.path, err)
	}
	return nil
}
