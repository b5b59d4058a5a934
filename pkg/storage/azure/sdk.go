package azure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
)

// sdkContainer adapts an azblob container client to the Container
// interface.
type sdkContainer struct {
	name   string
	client *container.Client
	cred   *azblob.SharedKeyCredential
}

// NewSDKContainer connects to a container using shared-key credentials.
// serviceURL is the account endpoint, e.g.
// "https://account.blob.core.windows.net". The container must exist.
func NewSDKContainer(serviceURL, containerName, accountName, accountKey string) (Container, error) {
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("building shared key credential: %w", err)
	}

	containerURL := strings.TrimSuffix(serviceURL, "/") + "/" + containerName
	client, err := container.NewClientWithSharedKeyCredential(containerURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("building container client: %w", err)
	}

	return &sdkContainer{name: containerName, client: client, cred: cred}, nil
}

func (c *sdkContainer) Blob(path string) Blob {
	return &sdkBlob{client: c.client.NewBlockBlobClient(path)}
}

func (c *sdkContainer) List(ctx context.Context, prefix string) ([]Item, []string, error) {
	var (
		items    []Item
		prefixes []string
	)

	pager := c.client.NewListBlobsHierarchyPager("/", &container.ListBlobsHierarchyOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range page.Segment.BlobPrefixes {
			if p.Name != nil {
				prefixes = append(prefixes, *p.Name)
			}
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			entry := Item{Name: *item.Name}
			if item.Properties != nil {
				if item.Properties.LastModified != nil {
					entry.LastModified = *item.Properties.LastModified
				}
				if item.Properties.ContentLength != nil {
					entry.Size = *item.Properties.ContentLength
				}
			}
			items = append(items, entry)
		}
	}

	return items, prefixes, nil
}

func (c *sdkContainer) SignURL(path, permissions string, expiry time.Time) (string, error) {
	values := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		ExpiryTime:    expiry.UTC(),
		Permissions:   permissions,
		ContainerName: c.name,
		BlobName:      path,
	}
	params, err := values.SignWithSharedKey(c.cred)
	if err != nil {
		return "", err
	}

	return c.client.NewBlobClient(path).URL() + "?" + params.Encode(), nil
}

// sdkBlob adapts an azblob block-blob client to the Blob interface.
type sdkBlob struct {
	client *blockblob.Client
}

func (b *sdkBlob) StageBlock(ctx context.Context, blockID string, data []byte) error {
	_, err := b.client.StageBlock(ctx, blockID, streaming.NopCloser(bytes.NewReader(data)), nil)
	return err
}

func (b *sdkBlob) CommitBlockList(ctx context.Context, blockIDs []string) error {
	_, err := b.client.CommitBlockList(ctx, blockIDs, nil)
	return err
}

func (b *sdkBlob) DownloadRange(ctx context.Context, offset, count int64) ([]byte, error) {
	resp, err := b.client.DownloadStream(ctx, &blob.DownloadStreamOptions{
		Range: blob.HTTPRange{Offset: offset, Count: count},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (b *sdkBlob) Size(ctx context.Context) (int64, error) {
	resp, err := b.client.GetProperties(ctx, nil)
	if err != nil {
		return 0, err
	}
	if resp.ContentLength == nil {
		return 0, fmt.Errorf("content length missing from blob properties")
	}
	return *resp.ContentLength, nil
}

func (b *sdkBlob) Delete(ctx context.Context) error {
	_, err := b.client.Delete(ctx, nil)
	return err
}
