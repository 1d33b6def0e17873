package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/o2a/bapsim/config"
)

// ErrNotConfigured is returned by Open when no storage backend is selected.
var ErrNotConfigured = errors.New("object storage is not configured")

const imagePrefix = "posts/"

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	// URL returns the backend's own address for key.
	URL(key string) string
	Bucket() string
}

// Storage stores recipe images on an ObjectStorage backend.
type Storage struct {
	backend   ObjectStorage
	publicURL string
}

// NewStorage wraps backend. When publicURL is set, image URLs are built from
// it instead of the backend address (for a CDN or reverse proxy).
func NewStorage(backend ObjectStorage, publicURL string) *Storage {
	return &Storage{
		backend:   backend,
		publicURL: strings.TrimRight(strings.TrimSpace(publicURL), "/"),
	}
}

// Open builds the backend selected by cfg.Backend and makes sure its bucket
// exists.
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.Backend {
	case "":
		return nil, ErrNotConfigured
	case "minio":
		backend, err = NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return NewStorage(backend, cfg.PublicURL), nil
}

// PutImage uploads a recipe image under a fresh key and returns the key and
// its public URL.
func (s *Storage) PutImage(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, string, error) {
	key := imagePrefix + uuid.NewString() + strings.ToLower(path.Ext(filename))
	if err := s.backend.Put(ctx, key, r, size, contentType); err != nil {
		return "", "", err
	}
	return key, s.URL(key), nil
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

func (s *Storage) URL(key string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + strings.TrimLeft(key, "/")
	}
	return s.backend.URL(key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}
