package imagestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore keeps images under a directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a LocalStore rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(key))
}

// Put implements Store.
func (s *LocalStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", fmt.Errorf("creating image directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	return p, nil
}

// Get implements Store.
func (s *LocalStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return data, nil
}

// Delete implements Store.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return ErrImageNotFound
	}
	return err
}

var _ Store = (*LocalStore)(nil)
