// Package storage is the blob store behind uploaded log images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidPath is returned for object paths that escape the store root.
var ErrInvalidPath = errors.New("invalid object path")

// Store uploads blobs and maps object paths to retrievable URLs.
type Store interface {
	Upload(ctx context.Context, objectPath string, data []byte) error
	Delete(ctx context.Context, objectPath string) error
	URL(objectPath string) string
	PathFromURL(url string) (string, bool)
}

// FSStore keeps blobs on the local filesystem under Root and serves them
// below BaseURL.
type FSStore struct {
	Root    string
	BaseURL string
}

// NewFSStore creates root if needed.
func NewFSStore(root, baseURL string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FSStore{Root: root, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *FSStore) Upload(ctx context.Context, objectPath string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return err
	}
	tmp := abs + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	// Rename keeps readers from ever seeing a partial blob.
	if err := os.Rename(tmp, abs); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func (s *FSStore) Delete(_ context.Context, objectPath string) error {
	abs, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FSStore) URL(objectPath string) string {
	return s.BaseURL + "/" + strings.TrimLeft(path.Clean("/"+objectPath), "/")
}

// PathFromURL reverses URL for blobs owned by this store.
func (s *FSStore) PathFromURL(url string) (string, bool) {
	prefix := s.BaseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

func (s *FSStore) resolve(objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)
	if clean == "/" || strings.Contains(objectPath, "..") {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.Root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}
