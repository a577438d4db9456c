package ports

import (
	"context"
	"io"
)

// BlobStore is the opaque storage for uploaded avatars, keyed by path.
type BlobStore interface {
	Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, path string) error
	// URL returns the public location of path.
	URL(path string) string
}
