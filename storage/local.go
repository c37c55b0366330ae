package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore writes uploads below a root directory on disk.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) Backend() string { return "local" }

// Save creates the file exclusively, so two concurrent uploads of the same
// name end up in different files.
func (s *LocalStore) Save(_ context.Context, dir, name string, data []byte) (string, error) {
	folder := filepath.Join(s.root, filepath.FromSlash(dir))
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("create upload folder: %w", err)
	}

	for n := 0; n < maxSuffix; n++ {
		path := filepath.Join(folder, candidateName(name, n))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create upload file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", fmt.Errorf("write upload file: %w", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("close upload file: %w", err)
		}
		return path, nil
	}
	return "", ErrNoFreeName
}

func (s *LocalStore) Remove(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
