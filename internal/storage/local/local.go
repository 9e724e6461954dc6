// Package local keeps media on the server's filesystem and serves it back
// through the /media route. It suits development and single-node installs;
// several replicas need a shared volume.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/communityhub/platform/internal/config"
	"github.com/communityhub/platform/internal/storage"
)

func init() {
	storage.Register("local", func(cfg *config.Config) (storage.Backend, error) {
		return New(&cfg.Storage.Local, cfg.Server.GetPublicURL())
	})
}

// Store is a filesystem-backed storage.Backend
type Store struct {
	basePath      string
	serveDirectly bool
	baseURL       string
}

// New creates the base directory if needed
func New(cfg *config.LocalStorageConfig, publicURL string) (*Store, error) {
	if cfg.BasePath == "" {
		return nil, fmt.Errorf("local storage base_path is required")
	}
	if err := os.MkdirAll(cfg.BasePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Store{
		basePath:      cfg.BasePath,
		serveDirectly: cfg.ServeDirectly,
		baseURL:       strings.TrimSuffix(publicURL, "/"),
	}, nil
}

func (s *Store) fullPath(key string) (string, error) {
	if !storage.ValidKey(key) {
		return "", fmt.Errorf("invalid media key %q", key)
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key)), nil
}

// Put writes body to a temporary file and renames it into place
func (s *Store) Put(ctx context.Context, key string, body io.Reader, contentType string) (*storage.Object, error) {
	full, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}
	data, checksum, err := storage.Digest(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	if contentType == "" {
		contentType = storage.ContentTypeOf(key)
	}
	return &storage.Object{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: contentType,
		Checksum:    checksum,
	}, nil
}

// Open returns the file for key
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, *storage.Object, error) {
	full, err := s.fullPath(key)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, storage.ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat file: %w", err)
	}
	return f, &storage.Object{
		Key:          key,
		Size:         info.Size(),
		ContentType:  storage.ContentTypeOf(key),
		LastModified: info.ModTime(),
	}, nil
}

// Delete removes the file and any directories left empty by it
func (s *Store) Delete(ctx context.Context, key string) error {
	full, err := s.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	for dir := filepath.Dir(full); dir != filepath.Clean(s.basePath); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			break
		}
	}
	return nil
}

// URL points at the server's /media route, or at the file itself when the
// store is not served over HTTP.
func (s *Store) URL(ctx context.Context, key string) (string, error) {
	full, err := s.fullPath(key)
	if err != nil {
		return "", err
	}
	if !s.serveDirectly {
		return "file://" + full, nil
	}
	return s.baseURL + "/media/" + key, nil
}

// Stat reports size, checksum and modification time for key
func (s *Store) Stat(ctx context.Context, key string) (*storage.Object, error) {
	rc, obj, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	_, checksum, err := storage.Digest(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate checksum: %w", err)
	}
	obj.Checksum = checksum
	return obj, nil
}
