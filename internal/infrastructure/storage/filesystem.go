package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStore keeps blobs under a root directory.
type FilesystemStore struct {
	root      string
	publicURL string
}

func NewFilesystemStore(root, publicURL string) (*FilesystemStore, error) {
	if root == "" {
		return nil, errors.New("filesystem storage: empty root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("filesystem storage: %w", err)
	}
	return &FilesystemStore{root: root, publicURL: publicURL}, nil
}

// Put writes r to a temporary file and renames it into place.
func (s *FilesystemStore) Put(ctx context.Context, path string, r io.Reader, _ int64, _ string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("filesystem put: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return fmt.Errorf("filesystem put: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("filesystem put: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filesystem put: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("filesystem put: %w", err)
	}
	return nil
}

// Delete removes path. Missing blobs are not an error.
func (s *FilesystemStore) Delete(_ context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("filesystem delete: %w", err)
	}
	return nil
}

func (s *FilesystemStore) URL(path string) string {
	return joinURL(s.publicURL, path)
}

// resolve maps path under root, rejecting attempts to escape it.
func (s *FilesystemStore) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if clean == "/" {
		return "", errors.New("filesystem storage: empty path")
	}
	full := filepath.Join(s.root, clean)
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("filesystem storage: invalid path %q", path)
	}
	return full, nil
}
