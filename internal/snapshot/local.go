// Package snapshot persists diagnostic screenshots to blob storage.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore writes snapshots to a directory on disk.
type LocalStore struct {
	dir string
}

// NewLocal creates the directory if needed and returns a store.
func NewLocal(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Put writes data under key and returns a file URI.
func (s *LocalStore) Put(_ context.Context, key string, data []byte) (string, error) {
	path := filepath.Join(s.dir, filepath.Base(key))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot %s: %w", key, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return "file://" + abs, nil
}
