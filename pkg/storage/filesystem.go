package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Filesystem stores generated documents under a single root directory.
type Filesystem struct {
	root string
}

// NewFilesystem creates the root directory if needed.
func NewFilesystem(root string) (*Filesystem, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Filesystem{root: abs}, nil
}

// Save writes data under the given relative path, creating parents.
func (f *Filesystem) Save(relPath string, data []byte) error {
	full, err := f.Resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create document dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// Exists reports whether a stored document is present.
func (f *Filesystem) Exists(relPath string) bool {
	full, err := f.Resolve(relPath)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// Resolve maps a relative path to an absolute one, rejecting escapes
// from the storage root.
func (f *Filesystem) Resolve(relPath string) (string, error) {
	cleaned := filepath.Clean("/" + relPath)
	full := filepath.Join(f.root, cleaned)
	if !strings.HasPrefix(full, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes storage root: %s", relPath)
	}
	return full, nil
}
