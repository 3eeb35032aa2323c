package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// BlobStore keeps images as block blobs in one container.
type BlobStore struct {
	client    *azblob.Client
	container string
}

// NewBlobStore uses an existing client.
func NewBlobStore(client *azblob.Client, container string) (*BlobStore, error) {
	if client == nil {
		return nil, errors.New("blob store requires a client")
	}
	if container == "" {
		return nil, errors.New("blob store requires a container")
	}
	return &BlobStore{client: client, container: container}, nil
}

// NewBlobStoreFromAccount authenticates with DefaultAzureCredential
// (environment, workload identity, managed identity or az CLI).
func NewBlobStoreFromAccount(accountURL, container string) (*BlobStore, error) {
	if accountURL == "" {
		return nil, errors.New("blob store requires an account URL")
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("creating Azure credential: %w", err)
	}
	return newBlobStoreWithCredential(accountURL, container, cred)
}

func newBlobStoreWithCredential(accountURL, container string, cred azcore.TokenCredential) (*BlobStore, error) {
	client, err := azblob.NewClient(accountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating blob client: %w", err)
	}
	return NewBlobStore(client, container)
}

// Put implements Store.
func (s *BlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	opts := &azblob.UploadBufferOptions{}
	if contentType != "" {
		opts.HTTPHeaders = &blob.HTTPHeaders{BlobContentType: &contentType}
	}
	if _, err := s.client.UploadBuffer(ctx, s.container, key, data, opts); err != nil {
		return "", fmt.Errorf("uploading blob %s: %w", key, err)
	}
	return strings.TrimSuffix(s.client.URL(), "/") + "/" + s.container + "/" + key, nil
}

// Get implements Store.
func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	resp, err := s.client.DownloadStream(ctx, s.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("downloading blob %s: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", key, err)
	}
	return data, nil
}

// Delete implements Store.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if _, err := s.client.DeleteBlob(ctx, s.container, key, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return ErrImageNotFound
		}
		return fmt.Errorf("deleting blob %s: %w", key, err)
	}
	return nil
}

var _ Store = (*BlobStore)(nil)
