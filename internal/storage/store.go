// Package storage holds the single-slot document store, its HTTP surface and the
// download sink for composed output.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	pdferrors "github.com/a3tai/pdf-form-overlay/internal/pdf/errors"
)

// ErrEmptySlot is returned by Load when nothing has been stored yet
var ErrEmptySlot = errors.New("storage slot is empty")

// Store fetches the original document and persists composed output
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// FileStore keeps the document in a single file on disk
type FileStore struct {
	path    string
	maxSize int64
}

// NewFileStore creates a store backed by path. maxSize <= 0 disables the size limit.
func NewFileStore(path string, maxSize int64) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("storage path cannot be empty")
	}
	return &FileStore{path: path, maxSize: maxSize}, nil
}

// Path returns the slot's file path
func (s *FileStore) Path() string {
	return s.path
}

// MaxSize returns the configured size limit in bytes
func (s *FileStore) MaxSize() int64 {
	return s.maxSize
}

// Load reads the slot. A missing file yields a LoadError wrapping ErrEmptySlot.
func (s *FileStore) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, pdferrors.Load("load cancelled", err)
	}

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pdferrors.Load("no document stored", ErrEmptySlot).WithContext(s.path)
		}
		return nil, pdferrors.Load("cannot open stored document", err).WithContext(s.path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, pdferrors.Load("cannot stat stored document", err).WithContext(s.path)
	}
	if info.IsDir() {
		return nil, pdferrors.Load("storage path is a directory", nil).WithContext(s.path)
	}
	if s.maxSize > 0 && info.Size() > s.maxSize {
		return nil, pdferrors.Load(fmt.Sprintf("stored document too large: %d bytes (max: %d bytes)", info.Size(), s.maxSize), nil)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, pdferrors.Load("failed to read stored document", err).WithContext(s.path)
	}
	return data, nil
}

// Save replaces the slot atomically via a temp file and rename
func (s *FileStore) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return pdferrors.SaveTransport("save cancelled", err)
	}
	if len(data) == 0 {
		return pdferrors.SaveTransport("refusing to store an empty document", nil)
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return pdferrors.SaveTransport(fmt.Sprintf("document too large: %d bytes (max: %d bytes)", len(data), s.maxSize), nil)
	}

	if err := writeFileAtomic(s.path, data); err != nil {
		return pdferrors.SaveTransport("failed to write stored document", err).WithContext(s.path)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}
