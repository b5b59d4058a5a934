package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/caskstore/cask/pkg/storage"
)

// fakeClient implements Client in memory, recording multipart traffic.
type fakeClient struct {
	objects map[string]string

	uploadID  string
	parts     map[int32]string
	completed *awss3.CompleteMultipartUploadInput
	aborted   bool

	headCalls   int
	deleteCalls int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		objects: make(map[string]string),
		parts:   make(map[int32]string),
	}
}

func (f *fakeClient) GetObject(ctx context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	// One byte at a time to exercise the full-fill read path.
	return &awss3.GetObjectOutput{
		Body: io.NopCloser(iotest.OneByteReader(strings.NewReader(data))),
	}, nil
}

func (f *fakeClient) HeadObject(ctx context.Context, in *awss3.HeadObjectInput, _ ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
	f.headCalls++
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &awss3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeClient) ListObjectsV2(ctx context.Context, in *awss3.ListObjectsV2Input, _ ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error) {
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	// Two-page listing to exercise the paginator.
	var contents []types.Object
	truncated := false
	start := 0
	if aws.ToString(in.ContinuationToken) == "page2" {
		start = 1
	}
	for i, key := range keys {
		if i < start {
			continue
		}
		if start == 0 && i >= 1 && len(keys) > 1 {
			truncated = true
			break
		}
		contents = append(contents, types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(f.objects[key]))),
			LastModified: aws.Time(time.Unix(1700000000, 0)),
		})
	}

	out := &awss3.ListObjectsV2Output{
		Contents:    contents,
		IsTruncated: aws.Bool(truncated),
	}
	if truncated {
		out.NextContinuationToken = aws.String("page2")
	}
	return out, nil
}

func (f *fakeClient) DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	f.deleteCalls++
	delete(f.objects, aws.ToString(in.Key))
	return &awss3.DeleteObjectOutput{}, nil
}

func (f *fakeClient) CreateMultipartUpload(ctx context.Context, in *awss3.CreateMultipartUploadInput, _ ...func(*awss3.Options)) (*awss3.CreateMultipartUploadOutput, error) {
	f.uploadID = "upload-1"
	return &awss3.CreateMultipartUploadOutput{UploadId: aws.String(f.uploadID)}, nil
}

func (f *fakeClient) UploadPart(ctx context.Context, in *awss3.UploadPartInput, _ ...func(*awss3.Options)) (*awss3.UploadPartOutput, error) {
	if aws.ToString(in.UploadId) != f.uploadID {
		return nil, fmt.Errorf("unknown upload id %q", aws.ToString(in.UploadId))
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	num := aws.ToInt32(in.PartNumber)
	f.parts[num] = string(data)
	return &awss3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("etag-%d", num))}, nil
}

func (f *fakeClient) CompleteMultipartUpload(ctx context.Context, in *awss3.CompleteMultipartUploadInput, _ ...func(*awss3.Options)) (*awss3.CompleteMultipartUploadOutput, error) {
	f.completed = in
	var sb strings.Builder
	for i := int32(1); i <= int32(len(f.parts)); i++ {
		sb.WriteString(f.parts[i])
	}
	f.objects[aws.ToString(in.Key)] = sb.String()
	return &awss3.CompleteMultipartUploadOutput{}, nil
}

func (f *fakeClient) AbortMultipartUpload(ctx context.Context, in *awss3.AbortMultipartUploadInput, _ ...func(*awss3.Options)) (*awss3.AbortMultipartUploadOutput, error) {
	f.aborted = true
	f.parts = make(map[int32]string)
	return &awss3.AbortMultipartUploadOutput{}, nil
}

func newTestBackend(t *testing.T, client Client, presigner Presigner) *Backend {
	t.Helper()
	b, err := New(Config{
		Name:      "s3",
		Client:    client,
		Presigner: presigner,
		Bucket:    "bucket",
		ChunkSize: 10,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestWriterChunking(t *testing.T) {
	client := newFakeClient()
	b := newTestBackend(t, client, nil)
	ctx := t.Context()

	f, err := b.Open(ctx, "file.bin", storage.ModeWrite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := f.Write([]byte("abcdefghijklmnopqrstuvwxyz12")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := map[int32]string{1: "abcdefghij", 2: "klmnopqrst", 3: "uvwxyz12"}
	if len(client.parts) != len(want) {
		t.Fatalf("got %d parts, want %d", len(client.parts), len(want))
	}
	for num, data := range want {
		if client.parts[num] != data {
			t.Errorf("part %d: got %q, want %q", num, client.parts[num], data)
		}
	}

	if client.completed == nil {
		t.Fatal("upload was not completed")
	}
	parts := client.completed.MultipartUpload.Parts
	if len(parts) != 3 {
		t.Fatalf("completed with %d parts", len(parts))
	}
	for i, p := range parts {
		if aws.ToInt32(p.PartNumber) != int32(i+1) {
			t.Errorf("completed part %d has number %d", i, aws.ToInt32(p.PartNumber))
		}
		if aws.ToString(p.ETag) != fmt.Sprintf("etag-%d", i+1) {
			t.Errorf("completed part %d has etag %q", i, aws.ToString(p.ETag))
		}
	}

	if client.objects["file.bin"] != "abcdefghijklmnopqrstuvwxyz12" {
		t.Fatalf("assembled object %q", client.objects["file.bin"])
	}
}

func TestWriterZeroWriteCreatesNothing(t *testing.T) {
	client := newFakeClient()
	b := newTestBackend(t, client, nil)

	f, err := b.Open(t.Context(), "empty.bin", storage.ModeWrite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if client.uploadID != "" {
		t.Fatal("multipart upload was created for an empty writer")
	}
	if _, ok := client.objects["empty.bin"]; ok {
		t.Fatal("object was created for an empty writer")
	}
}

func TestWriterAbort(t *testing.T) {
	client := newFakeClient()
	b := newTestBackend(t, client, nil)

	f, err := b.Open(t.Context(), "aborted.bin", storage.ModeWrite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	w := f.(*Writer)
	if _, err := w.Write([]byte("0123456789extra")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	if !client.aborted {
		t.Fatal("AbortMultipartUpload was not called")
	}
	if client.completed != nil {
		t.Fatal("upload was completed after abort")
	}
	if _, ok := client.objects["aborted.bin"]; ok {
		t.Fatal("object exists after abort")
	}
}

func TestReaderFillsBuffer(t *testing.T) {
	client := newFakeClient()
	client.objects["data.bin"] = "abcdefghijklmnop"
	b := newTestBackend(t, client, nil)

	f, err := b.Open(t.Context(), "data.bin", storage.ModeRead)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	// The fake body yields one byte per read; the handle must still fill
	// the caller's buffer.
	buf := make([]byte, 10)
	n, err := f.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 10 || string(buf) != "abcdefghij" {
		t.Fatalf("got n=%d buf=%q", n, buf[:n])
	}

	rest, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(rest) != "klmnop" {
		t.Fatalf("rest %q", rest)
	}
}

func TestOpenMissing(t *testing.T) {
	b := newTestBackend(t, newFakeClient(), nil)

	_, err := b.Open(t.Context(), "missing", storage.ModeRead)
	if !storage.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestOpenReadWriteRejected(t *testing.T) {
	b := newTestBackend(t, newFakeClient(), nil)

	_, err := b.Open(t.Context(), "x", storage.ModeRead|storage.ModeWrite)
	if !errors.Is(err, storage.ErrUnsupportedOperation) {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}
}

func TestDeleteMissing(t *testing.T) {
	client := newFakeClient()
	b := newTestBackend(t, client, nil)

	err := b.Delete(t.Context(), "missing")
	if !storage.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if client.deleteCalls != 0 {
		t.Fatal("DeleteObject called for a missing object")
	}
}

func TestDelete(t *testing.T) {
	client := newFakeClient()
	client.objects["doomed"] = "x"
	b := newTestBackend(t, client, nil)

	if err := b.Delete(t.Context(), "doomed"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if client.headCalls != 1 || client.deleteCalls != 1 {
		t.Fatalf("head=%d delete=%d", client.headCalls, client.deleteCalls)
	}
}

func TestListPaginated(t *testing.T) {
	client := newFakeClient()
	client.objects["logs/a"] = "aa"
	client.objects["logs/b"] = "bbb"
	client.objects["other"] = "x"
	b := newTestBackend(t, client, nil)

	entries, err := b.List(t.Context(), "logs/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries: %v", len(entries), entries)
	}
	seen := make(map[string]int64)
	for _, e := range entries {
		seen[e.Name] = e.Size
		if e.IsPrefix() {
			t.Errorf("entry %s reported as prefix", e.Name)
		}
	}
	if seen["logs/a"] != 2 || seen["logs/b"] != 3 {
		t.Fatalf("unexpected entries: %v", seen)
	}
}

// fakePresigner records which presign method was used.
type fakePresigner struct {
	method string
}

func (f *fakePresigner) PresignGetObject(ctx context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.method = "GET"
	return &v4.PresignedHTTPRequest{URL: "https://bucket.example.com/" + aws.ToString(in.Key) + "?sig=get"}, nil
}

func (f *fakePresigner) PresignPutObject(ctx context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.method = "PUT"
	return &v4.PresignedHTTPRequest{URL: "https://bucket.example.com/" + aws.ToString(in.Key) + "?sig=put"}, nil
}

func (f *fakePresigner) PresignDeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, _ ...func(*awss3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.method = "DELETE"
	return &v4.PresignedHTTPRequest{URL: "https://bucket.example.com/" + aws.ToString(in.Key) + "?sig=delete"}, nil
}

func TestLinkTo(t *testing.T) {
	tests := []struct {
		op     storage.ShareLinkOperation
		method string
	}{
		{storage.OperationDownload, "GET"},
		{storage.OperationUpload, "PUT"},
		{storage.OperationRemove, "DELETE"},
	}
	for _, tt := range tests {
		presigner := &fakePresigner{}
		b := newTestBackend(t, newFakeClient(), presigner)

		url, err := b.LinkTo(t.Context(), "file.bin", tt.op, time.Now().Add(time.Hour))
		if err != nil {
			t.Fatalf("LinkTo(%s): %v", tt.op, err)
		}
		if presigner.method != tt.method {
			t.Errorf("op %s used method %s, want %s", tt.op, presigner.method, tt.method)
		}
		if !strings.Contains(url, "file.bin") {
			t.Errorf("url %q does not reference the key", url)
		}
	}
}

func TestLinkToMultipleOperations(t *testing.T) {
	b := newTestBackend(t, newFakeClient(), &fakePresigner{})

	_, err := b.LinkTo(t.Context(), "f", storage.OperationDownload|storage.OperationUpload, time.Now().Add(time.Hour))
	if !errors.Is(err, storage.ErrUnsupportedOperation) {
		t.Fatalf("expected ErrUnsupportedOperation, got %v", err)
	}
}

func TestLinkToWithoutPresigner(t *testing.T) {
	b := newTestBackend(t, newFakeClient(), nil)

	_, err := b.LinkTo(t.Context(), "f", storage.OperationDownload, time.Now().Add(time.Hour))
	if !errors.Is(err, storage.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestLinkToPastExpiry(t *testing.T) {
	b := newTestBackend(t, newFakeClient(), &fakePresigner{})

	_, err := b.LinkTo(t.Context(), "f", storage.OperationDownload, time.Now().Add(-time.Minute))
	if err == nil {
		t.Fatal("expected error for past expiry")
	}
}
