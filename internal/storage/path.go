package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator confines output files to a configured directory
type PathValidator struct {
	configuredDirectory string
}

// NewPathValidator creates a validator for directory. The directory does not
// need to exist yet.
func NewPathValidator(configuredDirectory string) (*PathValidator, error) {
	if configuredDirectory == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}
	return &PathValidator{configuredDirectory: configuredDirectory}, nil
}

// GetConfiguredDirectory returns the configured directory path
func (v *PathValidator) GetConfiguredDirectory() string {
	return v.configuredDirectory
}

// SanitizeName strips dangerous characters from a bare file name and rejects
// anything that would address a different directory.
func (v *PathValidator) SanitizeName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\x00", "")
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("file name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("file name must not contain path separators: %s", name)
	}
	if name == "." || name == ".." {
		return "", fmt.Errorf("invalid file name: %s", name)
	}
	return name, nil
}

// Resolve joins name onto the configured directory and verifies the result
// stays inside it, following symlinks where they exist.
func (v *PathValidator) Resolve(name string) (string, error) {
	clean, err := v.SanitizeName(name)
	if err != nil {
		return "", err
	}

	absDir, err := filepath.Abs(v.configuredDirectory)
	if err != nil {
		return "", fmt.Errorf("failed to resolve configured directory: %w", err)
	}
	path := filepath.Join(absDir, clean)

	ok, err := v.IsPathWithinDirectory(path)
	if err != nil {
		return "", fmt.Errorf("path validation failed: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("path is outside configured directory: %s", name)
	}
	return path, nil
}

// IsPathWithinDirectory checks if a path is within the configured directory
func (v *PathValidator) IsPathWithinDirectory(path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	absDir, err := filepath.Abs(v.configuredDirectory)
	if err != nil {
		return false, fmt.Errorf("failed to resolve configured directory: %w", err)
	}

	cleanPath := filepath.Clean(absPath)
	cleanDir := filepath.Clean(absDir)

	// An existing symlink is judged by its target
	realPath := cleanPath
	if info, err := os.Lstat(cleanPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		resolved, err := filepath.EvalSymlinks(cleanPath)
		if err != nil {
			return false, nil
		}
		realPath = resolved
	}

	realDir := cleanDir
	if resolved, err := filepath.EvalSymlinks(cleanDir); err == nil {
		realDir = resolved
	}

	return within(cleanPath, cleanDir) && (within(realPath, cleanDir) || within(realPath, realDir)), nil
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
