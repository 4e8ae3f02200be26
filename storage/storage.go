package storage

import (
	"context"
	"io"
	"time"
)

// FileInfo describes a stored object.
type FileInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// Storage is an object store keyed by slash-separated paths.
type Storage interface {
	// Upload writes reader to path, replacing any existing object.
	Upload(ctx context.Context, path string, reader io.Reader) error
	// Download opens path. Missing objects fail with NOT_FOUND. The caller
	// closes the reader.
	Download(ctx context.Context, path string) (io.ReadCloser, error)
	// Delete removes path. Deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	// List returns objects under prefix sorted by path.
	List(ctx context.Context, prefix string) ([]FileInfo, error)
}
