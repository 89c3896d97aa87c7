// Package storage persists captured images and hands back a reference that
// clients can use to display them.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileStorage stores captures on the local filesystem
type FileStorage struct {
	basePath  string
	urlPrefix string
}

// NewFileStorage creates the capture directory if needed
func NewFileStorage(basePath, urlPrefix string) (*FileStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}

	return &FileStorage{
		basePath:  basePath,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
	}, nil
}

// Dir is the directory served under the URL prefix
func (fs *FileStorage) Dir() string {
	return fs.basePath
}

// Save writes data under name and returns its public reference
func (fs *FileStorage) Save(ctx context.Context, name, contentType string, data io.Reader) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(fs.basePath, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create capture file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write capture data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close capture file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(fs.basePath, name)); err != nil {
		return "", fmt.Errorf("failed to store capture: %w", err)
	}

	return path.Join(fs.urlPrefix, name), nil
}

// Load opens a stored capture
func (fs *FileStorage) Load(ctx context.Context, name string) (io.ReadCloser, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(fs.basePath, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}
	return file, nil
}

func cleanName(name string) (string, error) {
	base := filepath.Base(name)
	if base != name || base == "." || base == ".." || strings.HasPrefix(base, ".") {
		return "", fmt.Errorf("invalid capture name %q", name)
	}
	return base, nil
}
