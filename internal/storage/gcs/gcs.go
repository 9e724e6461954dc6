// Package gcs stores media in a Google Cloud Storage bucket and hands out V4
// signed URLs. Credentials come from Application Default Credentials, a
// service account key, or Workload Identity.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	appconfig "github.com/communityhub/platform/internal/config"
	appstorage "github.com/communityhub/platform/internal/storage"
)

const checksumMetaKey = "sha256"

func init() {
	appstorage.Register("gcs", func(cfg *appconfig.Config) (appstorage.Backend, error) {
		return New(&cfg.Storage.GCS)
	})
}

// Store is a GCS-backed storage.Backend
type Store struct {
	client *storage.Client
	bucket string
}

// clientOptions turns the configured auth method into client options
func clientOptions(cfg *appconfig.GCSStorageConfig) ([]option.ClientOption, error) {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	method := cfg.AuthMethod
	if method == "" {
		method = "default"
		if cfg.CredentialsFile != "" || cfg.CredentialsJSON != "" {
			method = "service_account"
		}
	}

	switch method {
	case "service_account":
		switch {
		case cfg.CredentialsJSON != "":
			opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		case cfg.CredentialsFile != "":
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		default:
			return nil, fmt.Errorf("credentials_file or credentials_json is required for service_account auth")
		}
	case "workload_identity", "default":
	default:
		return nil, fmt.Errorf("unsupported auth_method %q (must be default, service_account or workload_identity)", method)
	}
	return opts, nil
}

// New creates the client
func New(cfg *appconfig.GCSStorageConfig) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// Close releases the client
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) object(key string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(key)
}

// Put writes the object with its content type and checksum metadata
func (s *Store) Put(ctx context.Context, key string, body io.Reader, contentType string) (*appstorage.Object, error) {
	if !appstorage.ValidKey(key) {
		return nil, fmt.Errorf("invalid media key %q", key)
	}
	data, checksum, err := appstorage.Digest(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if contentType == "" {
		contentType = appstorage.ContentTypeOf(key)
	}

	w := s.object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000, immutable"
	w.Metadata = map[string]string{checksumMetaKey: checksum}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close GCS writer: %w", err)
	}

	return &appstorage.Object{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: contentType,
		Checksum:    checksum,
	}, nil
}

// Open streams the object
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, *appstorage.Object, error) {
	r, err := s.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, nil, appstorage.ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to read from GCS: %w", err)
	}
	return r, &appstorage.Object{
		Key:          key,
		Size:         r.Attrs.Size,
		ContentType:  r.Attrs.ContentType,
		LastModified: r.Attrs.LastModified,
	}, nil
}

// Delete removes the object. Missing objects are ignored.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.object(key).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}
	return nil
}

// URL signs a GET link valid for storage.SignedURLTTL. The credentials need
// signBlob permission (a key file or iam.serviceAccountTokenCreator).
func (s *Store) URL(ctx context.Context, key string) (string, error) {
	u, err := s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(appstorage.SignedURLTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return u, nil
}

// Stat reads the object attributes
func (s *Store) Stat(ctx context.Context, key string) (*appstorage.Object, error) {
	attrs, err := s.object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, appstorage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object metadata: %w", err)
	}
	return &appstorage.Object{
		Key:          key,
		Size:         attrs.Size,
		ContentType:  attrs.ContentType,
		Checksum:     attrs.Metadata[checksumMetaKey],
		LastModified: attrs.Updated,
	}, nil
}

// EnsureBucket creates the bucket in projectID when it does not exist
func (s *Store) EnsureBucket(ctx context.Context, projectID string) error {
	bucket := s.client.Bucket(s.bucket)
	_, err := bucket.Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if projectID == "" {
		return fmt.Errorf("project_id is required to create a bucket")
	}
	if err := bucket.Create(ctx, projectID, nil); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

var _ appstorage.Backend = (*Store)(nil)
