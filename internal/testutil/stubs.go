// Package testutil provides shared test doubles and fixtures.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
)

// MemStore is an in-memory storage.Store. Set FailUploads to simulate a
// failing object store.
type MemStore struct {
	mu          sync.Mutex
	objects     map[string][]byte
	BaseURL     string
	FailUploads bool
}

// NewMemStore creates an empty store serving below /media.
func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string][]byte), BaseURL: "/media"}
}

func (s *MemStore) Upload(_ context.Context, objectPath string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUploads {
		return errors.New("object store unavailable")
	}
	s.objects[objectPath] = append([]byte(nil), data...)
	return nil
}

func (s *MemStore) Delete(_ context.Context, objectPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectPath)
	return nil
}

func (s *MemStore) URL(objectPath string) string {
	return s.BaseURL + "/" + objectPath
}

func (s *MemStore) PathFromURL(url string) (string, bool) {
	prefix := s.BaseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

// Has reports whether objectPath is stored.
func (s *MemStore) Has(objectPath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[objectPath]
	return ok
}

// Len returns the number of stored objects.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// TinyPNG returns a solid PNG of the given size.
func TinyPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
