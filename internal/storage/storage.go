// Package storage keeps uploaded community media (event covers, post images,
// logos) in a pluggable object store.
//
// Backends live in their own packages and register a constructor from init:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (storage.Backend, error) {
//	        return New(&cfg.Storage.MyBackend)
//	    })
//	}
//
// cmd/server blank-imports every backend and NewBackend picks the one named by
// storage.default_backend.
package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/communityhub/platform/pkg/checksum"
)

// ErrNotFound is returned when a key has no stored object
var ErrNotFound = errors.New("media object not found")

// SignedURLTTL is how long links from Backend.URL stay valid on backends that sign them
const SignedURLTTL = 12 * time.Hour

// Backend stores media objects under opaque keys
type Backend interface {
	// Put stores body under key and reports what was written
	Put(ctx context.Context, key string, body io.Reader, contentType string) (*Object, error)

	// Open streams a stored object. The caller closes the reader.
	Open(ctx context.Context, key string) (io.ReadCloser, *Object, error)

	// Delete removes an object. Missing objects are not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a link a browser can load the object from
	URL(ctx context.Context, key string) (string, error)

	// Stat describes a stored object without reading it
	Stat(ctx context.Context, key string) (*Object, error)
}

// Object describes a stored media object
type Object struct {
	Key          string
	Size         int64
	ContentType  string
	Checksum     string // hex SHA-256 of the content
	LastModified time.Time
}

// NewKey builds a fresh object key for an upload into a community:
// "<tenantID>/<uuid><ext>", with the extension derived from contentType.
func NewKey(tenantID, contentType string) string {
	return tenantID + "/" + uuid.New().String() + extensionFor(contentType)
}

// ValidKey reports whether key is safe to hand to a backend
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	return path.Clean(key) == key && !strings.HasPrefix(key, "../") && key != ".."
}

// ContentTypeOf guesses a content type from the key's extension
func ContentTypeOf(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func extensionFor(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	case "image/avif":
		return ".avif"
	}
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// Digest reads body to the end and returns its content and hex SHA-256
func Digest(body io.Reader) ([]byte, string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", err
	}
	sum, err := checksum.CalculateSHA256(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}
	return data, sum, nil
}
