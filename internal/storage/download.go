package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDownloadName is used when no file name is given
const DefaultDownloadName = "edited.pdf"

// DownloadSink writes composed documents into a download directory
type DownloadSink struct {
	validator *PathValidator
}

// NewDownloadSink creates a sink rooted at dir
func NewDownloadSink(dir string) (*DownloadSink, error) {
	validator, err := NewPathValidator(dir)
	if err != nil {
		return nil, err
	}
	return &DownloadSink{validator: validator}, nil
}

// Dir returns the download directory
func (s *DownloadSink) Dir() string {
	return s.validator.GetConfiguredDirectory()
}

// Write stores data as name inside the download directory and returns the
// absolute path written. ext is appended when name lacks it.
func (s *DownloadSink) Write(name, ext string, data []byte) (string, error) {
	if name == "" {
		name = strings.TrimSuffix(DefaultDownloadName, filepath.Ext(DefaultDownloadName)) + ext
	}
	if ext != "" && !strings.EqualFold(filepath.Ext(name), ext) {
		name += ext
	}

	path, err := s.validator.Resolve(name)
	if err != nil {
		return "", fmt.Errorf("invalid download name: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}
