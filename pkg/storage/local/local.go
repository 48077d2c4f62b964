package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/williamokano/backup_receiver/pkg/storage"
)

const Type = "filesystem"

type Backend struct {
	name     string
	basePath string
}

// New creates a new local filesystem backend
func New(name string, cfg Config) (*Backend, error) {
	if cfg.BaseDir == "" {
		return nil, storage.WrapError(name, "init", fmt.Errorf("missing required option base_dir: %w", storage.ErrInvalidConfig))
	}

	// Resolve to an absolute path so the containment check in abs is stable
	basePath, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, storage.WrapError(name, "init", err)
	}

	return &Backend{
		name:     name,
		basePath: basePath,
	}, nil
}

func (b *Backend) Name() string { return b.name }
func (b *Backend) Type() string { return Type }

// BaseDir returns the absolute directory uploads are written under
func (b *Backend) BaseDir() string { return b.basePath }

// abs joins destName onto the base directory and refuses anything that
// would land outside of it.
func (b *Backend) abs(destName string) (string, error) {
	if destName == "" {
		return "", storage.ErrInvalidName
	}
	joined := filepath.Join(b.basePath, filepath.FromSlash(destName))
	rel, err := filepath.Rel(b.basePath, joined)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q escapes %s: %w", destName, b.basePath, storage.ErrInvalidName)
	}
	return joined, nil
}

// Receive streams body into basePath/destName.
// A failed copy leaves the partially written file on disk.
func (b *Backend) Receive(ctx context.Context, destName string, body io.Reader, size int64) error {
	destFullPath, err := b.abs(destName)
	if err != nil {
		return storage.WrapError(b.name, "receive", err)
	}

	// Ensure destination directory exists
	if err := os.MkdirAll(filepath.Dir(destFullPath), 0755); err != nil {
		return storage.WrapError(b.name, "receive", err)
	}

	dest, err := os.OpenFile(destFullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return storage.WrapError(b.name, "receive", err)
	}

	if _, err := io.Copy(dest, body); err != nil {
		dest.Close()
		return storage.WrapError(b.name, "receive", err)
	}

	if err := dest.Sync(); err != nil {
		dest.Close()
		return storage.WrapError(b.name, "sync", err)
	}

	if err := dest.Close(); err != nil {
		return storage.WrapError(b.name, "close", err)
	}

	return nil
}

// Close is a no-op for local backend
func (b *Backend) Close() error {
	return nil
}
