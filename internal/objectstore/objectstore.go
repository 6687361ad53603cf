// Package objectstore persists uploaded source files to local disk. It
// stands in for the cloud object store a production deployment of this
// system would use, keeping the same narrow upload/download/delete surface
// so a cloud-backed implementation can be swapped in later without touching
// callers.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store persists and retrieves source file bytes by a caller-chosen key.
type Store interface {
	Upload(ctx context.Context, key string, data []byte) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// FilesystemStore implements Store by writing files under a base directory.
type FilesystemStore struct {
	baseDir string
}

// NewFilesystemStore creates a FilesystemStore rooted at baseDir, creating
// the directory if it does not already exist.
func NewFilesystemStore(baseDir string) (*FilesystemStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("objectstore.NewFilesystemStore: baseDir is empty")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("objectstore.NewFilesystemStore: %w", err)
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("objectstore.NewFilesystemStore: %w", err)
	}
	return &FilesystemStore{baseDir: abs}, nil
}

// Upload writes data to key, creating any intermediate directories.
func (s *FilesystemStore) Upload(ctx context.Context, key string, data []byte) error {
	path, err := s.resolve(key)
	if err != nil {
		return fmt.Errorf("objectstore.Upload: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("objectstore.Upload: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("objectstore.Upload: %w", err)
	}
	return nil
}

// Download reads the bytes stored at key.
func (s *FilesystemStore) Download(ctx context.Context, key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, fmt.Errorf("objectstore.Download: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("objectstore.Download: %w", io.ErrUnexpectedEOF)
		}
		return nil, fmt.Errorf("objectstore.Download: %w", err)
	}
	return data, nil
}

// Delete removes the object stored at key. It is not an error if key does
// not exist, matching the idempotent-delete semantics callers expect when
// cascading a source deletion.
func (s *FilesystemStore) Delete(ctx context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return fmt.Errorf("objectstore.Delete: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("objectstore.Delete: %w", err)
	}
	return nil
}

// resolve joins key onto the base directory and rejects any key that would
// escape it via ".." traversal.
func (s *FilesystemStore) resolve(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key is empty")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("key %q escapes object store root", key)
	}
	clean := filepath.Clean("/" + key)
	path := filepath.Join(s.baseDir, clean)
	if !strings.HasPrefix(path, s.baseDir+string(filepath.Separator)) && path != s.baseDir {
		return "", fmt.Errorf("key %q escapes object store root", key)
	}
	return path, nil
}
