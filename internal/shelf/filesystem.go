package shelf

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileSystemShelf is a filesystem-based implementation of the Shelf
// interface. Objects are stored as plain files under the root:
//
//	<root>/
//	  <package>/
//	    <content_hash>.uvd
//	    latest
type FileSystemShelf struct {
	name string
	root string
}

// NewFileSystemShelf creates a new filesystem shelf rooted at the given path.
func NewFileSystemShelf(name, root string) (*FileSystemShelf, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create shelf root: %w", err)
	}
	return &FileSystemShelf{name: name, root: root}, nil
}

// objectPath maps a shelf key onto the filesystem, rejecting keys that
// would escape the root.
func (v *FileSystemShelf) objectPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid shelf key: %q", key)
	}
	return filepath.Join(v.root, clean), nil
}

// Put stores an object under key using an atomic write (temp file + rename).
func (v *FileSystemShelf) Put(_ context.Context, key string, r io.Reader, size int64) error {
	destPath, err := v.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on failure
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Get retrieves an object by key and writes it to w.
func (v *FileSystemShelf) Get(_ context.Context, key string, w io.Writer) error {
	srcPath, err := v.objectPath(key)
	if err != nil {
		return err
	}
	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("object not found: %s", key)
		}
		return fmt.Errorf("failed to open object: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	return nil
}

// Exists reports whether an object is stored under key.
func (v *FileSystemShelf) Exists(_ context.Context, key string) (bool, error) {
	p, err := v.objectPath(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("statting object: %w", err)
	}
	return true, nil
}

// ValidateSetup verifies that the shelf root is an accessible directory.
func (v *FileSystemShelf) ValidateSetup(_ context.Context) error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("shelf root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("shelf root is not a directory: %s", v.root)
	}
	return nil
}

// Compile-time check that FileSystemShelf implements the Shelf interface
var _ Shelf = (*FileSystemShelf)(nil)
