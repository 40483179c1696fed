// Package file keeps snapshot slots as JSON files in a local directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"alcyxob/rehabflow/internal/repository"
)

const fileExt = ".json"

// fileSnapshotRepository implements repository.SnapshotRepository
type fileSnapshotRepository struct {
	dir string
}

// NewFileSnapshotRepository stores each slot as <dir>/<slot>.json. The
// directory is created if it does not exist.
func NewFileSnapshotRepository(dir string) (repository.SnapshotRepository, error) {
	if dir == "" {
		return nil, errors.New("snapshot directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &fileSnapshotRepository{dir: dir}, nil
}

// Load reads the slot file.
func (r *fileSnapshotRepository) Load(ctx context.Context, slot string) ([]byte, error) {
	path, err := r.pathFor(slot)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Save writes data to a temp file in the same directory and renames it over
// the slot file, so readers never observe a half-written document.
func (r *fileSnapshotRepository) Save(ctx context.Context, slot string, data []byte) error {
	path, err := r.pathFor(slot)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(r.dir, slot+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", repository.ErrWriteFailed, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %v", repository.ErrWriteFailed, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("%w: %v", repository.ErrWriteFailed, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", repository.ErrWriteFailed, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("%w: %v", repository.ErrWriteFailed, err)
	}
	return nil
}

func (r *fileSnapshotRepository) pathFor(slot string) (string, error) {
	if slot == "" || strings.ContainsAny(slot, `/\`) || slot == "." || slot == ".." {
		return "", fmt.Errorf("invalid slot name %q", slot)
	}
	return filepath.Join(r.dir, slot+fileExt), nil
}
