// Package azure stores media in an Azure Blob Storage container. Links are
// either CDN URLs or read-only SAS URLs signed with the account key.
package azure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"github.com/communityhub/platform/internal/config"
	"github.com/communityhub/platform/internal/storage"
)

const checksumMetaKey = "sha256"

func init() {
	storage.Register("azure", func(cfg *config.Config) (storage.Backend, error) {
		return New(&cfg.Storage.Azure)
	})
}

// Store is a Blob Storage backed storage.Backend
type Store struct {
	container  *container.Client
	credential *azblob.SharedKeyCredential
	serviceURL string
	name       string
	cdnURL     string
}

// New connects with the account's shared key
func New(cfg *config.AzureStorageConfig) (*Store, error) {
	if cfg.AccountName == "" {
		return nil, fmt.Errorf("azure storage account name is required")
	}
	if cfg.AccountKey == "" {
		return nil, fmt.Errorf("azure storage account key is required")
	}
	if cfg.ContainerName == "" {
		return nil, fmt.Errorf("azure storage container name is required")
	}
	return newStore(fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName), cfg)
}

func newStore(serviceURL string, cfg *config.AzureStorageConfig) (*Store, error) {
	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}
	return &Store{
		container:  client.ServiceClient().NewContainerClient(cfg.ContainerName),
		credential: credential,
		serviceURL: strings.TrimSuffix(serviceURL, "/"),
		name:       cfg.ContainerName,
		cdnURL:     strings.TrimSuffix(cfg.CDNURL, "/"),
	}, nil
}

// Put uploads a block blob with its content type and checksum
func (s *Store) Put(ctx context.Context, key string, body io.Reader, contentType string) (*storage.Object, error) {
	if !storage.ValidKey(key) {
		return nil, fmt.Errorf("invalid media key %q", key)
	}
	data, checksum, err := storage.Digest(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if contentType == "" {
		contentType = storage.ContentTypeOf(key)
	}

	_, err = s.container.NewBlockBlobClient(key).Upload(ctx, streaming.NopCloser(bytes.NewReader(data)), &blockblob.UploadOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
		Metadata:    map[string]*string{checksumMetaKey: &checksum},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to Azure Blob: %w", err)
	}

	return &storage.Object{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: contentType,
		Checksum:    checksum,
	}, nil
}

// Open streams the blob
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, *storage.Object, error) {
	resp, err := s.container.NewBlobClient(key).DownloadStream(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, nil, storage.ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to download from Azure Blob: %w", err)
	}
	obj := &storage.Object{Key: key}
	if resp.ContentLength != nil {
		obj.Size = *resp.ContentLength
	}
	if resp.ContentType != nil {
		obj.ContentType = *resp.ContentType
	} else {
		obj.ContentType = storage.ContentTypeOf(key)
	}
	if resp.LastModified != nil {
		obj.LastModified = *resp.LastModified
	}
	obj.Checksum = metaValue(resp.Metadata)
	return resp.Body, obj, nil
}

// Delete removes the blob. Missing blobs are ignored.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.container.NewBlobClient(key).Delete(ctx, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("failed to delete from Azure Blob: %w", err)
	}
	return nil
}

// URL returns the CDN link when configured, otherwise a read-only SAS link
func (s *Store) URL(ctx context.Context, key string) (string, error) {
	if s.cdnURL != "" {
		return s.cdnURL + "/" + key, nil
	}

	now := time.Now().UTC()
	params, err := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPSandHTTP,
		StartTime:     now.Add(-5 * time.Minute),
		ExpiryTime:    now.Add(storage.SignedURLTTL),
		Permissions:   (&sas.BlobPermissions{Read: true}).String(),
		ContainerName: s.name,
		BlobName:      key,
	}.SignWithSharedKey(s.credential)
	if err != nil {
		return "", fmt.Errorf("failed to generate SAS token: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s?%s", s.serviceURL, s.name, escapeKey(key), params.Encode()), nil
}

// Stat reads the blob properties
func (s *Store) Stat(ctx context.Context, key string) (*storage.Object, error) {
	props, err := s.container.NewBlobClient(key).GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get blob properties: %w", err)
	}
	obj := &storage.Object{Key: key, Checksum: metaValue(props.Metadata)}
	if props.ContentLength != nil {
		obj.Size = *props.ContentLength
	}
	if props.ContentType != nil {
		obj.ContentType = *props.ContentType
	}
	if props.LastModified != nil {
		obj.LastModified = *props.LastModified
	}
	return obj, nil
}

// EnsureContainer creates the container when it is missing
func (s *Store) EnsureContainer(ctx context.Context) error {
	_, err := s.container.Create(ctx, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("failed to create container: %w", err)
	}
	return nil
}

// metaValue looks the checksum up case-insensitively; the service may
// return metadata keys with different casing.
func metaValue(meta map[string]*string) string {
	for k, v := range meta {
		if strings.EqualFold(k, checksumMetaKey) && v != nil {
			return *v
		}
	}
	return ""
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

var _ storage.Backend = (*Store)(nil)
