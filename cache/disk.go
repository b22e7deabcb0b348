package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DiskStore keeps cache entries as files.
//
// Writes go to a temporary file in the destination directory, are synced,
// and renamed over the entry. Concurrent writers of one path are last-writer-
// wins; readers never observe a partial file.
type DiskStore struct {
	dirPerm  fs.FileMode
	filePerm fs.FileMode
}

// NewDiskStore creates a DiskStore with 0755 directories and 0644 files.
func NewDiskStore() *DiskStore {
	return &DiskStore{dirPerm: 0o755, filePerm: 0o644}
}

// Get reads the entry at path.
func (s *DiskStore) Get(ctx context.Context, path string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := ValidatePath(path); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: read %s: %w", path, err)
	}
	return data, true, nil
}

// Set writes payload to path, creating parent directories as needed.
func (s *DiskStore) Set(ctx context.Context, path string, payload []byte) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidatePath(path); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return fmt.Errorf("cache: create %s: %w", dir, err)
	}

	// The temp name stays short: entry names may already be near NAME_MAX.
	tmp, err := os.CreateTemp(dir, ".datahub-*.tmp")
	if err != nil {
		return fmt.Errorf("cache: create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(payload); err != nil {
		return fmt.Errorf("cache: write %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("cache: sync %s: %w", path, err)
	}
	if err = tmp.Chmod(s.filePerm); err != nil {
		return fmt.Errorf("cache: chmod %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("cache: close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("cache: rename into %s: %w", path, err)
	}
	return nil
}

// Delete removes the entry at path. Missing entries are not an error.
func (s *DiskStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidatePath(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cache: delete %s: %w", path, err)
	}
	return nil
}

var _ Store = (*DiskStore)(nil)
