package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ImageStore persists generated images and returns their public URL
type ImageStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
	Delete(ctx context.Context, name string) error
}

// LocalStore writes images below a directory served at publicURL
type LocalStore struct {
	dir       string
	publicURL string
}

// NewLocalStore creates a store rooted at dir
func NewLocalStore(dir, publicURL string) *LocalStore {
	return &LocalStore{dir: dir, publicURL: strings.TrimRight(publicURL, "/")}
}

// Dir returns the root directory
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save writes data to dir/name, creating parent directories
func (s *LocalStore) Save(_ context.Context, name string, data []byte) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}

	return s.publicURL + "/" + filepath.ToSlash(clean), nil
}

// Delete removes dir/name. A missing file is not an error.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	clean, err := cleanName(name)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, clean)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}

// cleanName keeps name inside the store root
func cleanName(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid image name %q", name)
	}
	return clean, nil
}
