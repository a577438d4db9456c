// Package storage implements ports.BlobStore on the local filesystem and on
// S3-compatible object storage through MinIO.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/99minutos/accounts/internal/core/ports"
)

const (
	ProviderFilesystem = "filesystem"
	ProviderMinio      = "minio"
)

// Config selects and configures one blob store.
type Config struct {
	Provider string
	// PublicURL is the base URL blobs are served from, e.g.
	// "https://accounts.example.com/media/".
	PublicURL string

	Root string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// New returns the blob store named by cfg.Provider.
func New(ctx context.Context, cfg Config) (ports.BlobStore, error) {
	switch cfg.Provider {
	case "", ProviderFilesystem:
		return NewFilesystemStore(cfg.Root, cfg.PublicURL)
	case ProviderMinio:
		return NewMinioStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
