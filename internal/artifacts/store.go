// Package artifacts stores raw uploaded image bytes behind opaque references.
// Structured records keep only the reference so image data can be erased
// independently of the verification audit trail.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"idverify/internal/sentinel"
)

// Store persists raw artifact content and hands back an opaque reference.
type Store interface {
	// Put writes the content and returns a reference for later retrieval
	// or deletion. The reference is stable for the artifact's lifetime.
	Put(ctx context.Context, content []byte, mimeType string) (string, error)

	// Get reads the content behind a reference.
	Get(ctx context.Context, ref string) ([]byte, error)

	// Delete removes the content behind a reference. Deleting an unknown
	// reference returns sentinel.ErrNotFound.
	Delete(ctx context.Context, ref string) error
}

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory artifact store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Put stores a copy of the content under a fresh reference.
func (s *MemoryStore) Put(_ context.Context, content []byte, _ string) (string, error) {
	ref := fmt.Sprintf("mem://%s", uuid.New().String())

	buf := make([]byte, len(content))
	copy(buf, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[ref] = buf
	return ref, nil
}

// Get returns a copy of the stored content.
func (s *MemoryStore) Get(_ context.Context, ref string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, ok := s.blobs[ref]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	buf := make([]byte, len(blob))
	copy(buf, blob)
	return buf, nil
}

// Delete removes the stored content.
func (s *MemoryStore) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[ref]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.blobs, ref)
	return nil
}

// Len returns the number of stored artifacts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// DiskStore writes artifacts to a local directory, one file per artifact.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the directory if needed and returns a disk-backed store.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Put writes the content to a uniquely named file.
func (s *DiskStore) Put(_ context.Context, content []byte, mimeType string) (string, error) {
	name := uuid.New().String() + extensionFor(mimeType)
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, content, 0o640); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return fmt.Sprintf("file://%s", name), nil
}

// Get reads the content behind a reference.
func (s *DiskStore) Get(_ context.Context, ref string) ([]byte, error) {
	path, err := s.pathFor(ref)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return content, nil
}

// Delete removes the file behind a reference.
func (s *DiskStore) Delete(_ context.Context, ref string) error {
	path, err := s.pathFor(ref)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

func (s *DiskStore) pathFor(ref string) (string, error) {
	const prefix = "file://"
	if len(ref) <= len(prefix) || ref[:len(prefix)] != prefix {
		return "", sentinel.ErrInvalidInput
	}
	name := ref[len(prefix):]
	// References are generated server-side, but refuse traversal anyway.
	if name != filepath.Base(name) {
		return "", sentinel.ErrInvalidInput
	}
	return filepath.Join(s.dir, name), nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}
