package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalUploader copies artifacts into a directory tree, mirroring the
// remote key layout. Useful for development and for tests that need a real
// Uploader without network access.
type LocalUploader struct {
	dest Destination
	base string
}

// NewLocal builds a filesystem uploader rooted at the destination BasePath.
func NewLocal(dest Destination) (*LocalUploader, error) {
	if dest.BasePath == "" {
		return nil, errors.New("local uploads require a base path")
	}
	return &LocalUploader{dest: dest, base: filepath.Clean(dest.BasePath)}, nil
}

// containedPath resolves key under base and rejects traversal outside it.
func containedPath(base, key string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolving base path: %w", err)
	}
	joined, err := filepath.Abs(filepath.Join(absBase, filepath.FromSlash(key)))
	if err != nil {
		return "", fmt.Errorf("resolving destination path: %w", err)
	}
	if joined != absBase && !strings.HasPrefix(joined, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("destination %q escapes base %q", key, base)
	}
	return joined, nil
}

// Upload copies one file into the tree.
func (u *LocalUploader) Upload(ctx context.Context, localPath string, kind Kind) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	destPath, err := containedPath(u.base, u.dest.ObjectKey(kind, localPath))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating destination dir: %w", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destPath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copying to %s: %w", destPath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("finalizing %s: %w", destPath, err)
	}
	log.Debug("uploaded segment", "provider", "local", "path", destPath)
	return nil
}
