package engine

import "io"

// WorkFile is one regular file found by a working-tree walk. Path is
// slash-separated and relative to the workspace root.
type WorkFile struct {
	Path string
	Mode int64
	Size int64
}

// Workspace abstracts the working tree. The filesystem implementation
// lives in internal/workspace.
type Workspace interface {
	// Root returns the absolute workspace root.
	Root() string

	// Walk lists every committable regular file, honoring ignore rules
	// and skipping the engine directory.
	Walk() ([]WorkFile, error)

	// Open opens a workspace file for streaming reads.
	Open(path string) (io.ReadCloser, error)

	// ReadFile returns the full content of a workspace file.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to path with the given permissions, creating
	// parent directories as needed.
	WriteFile(path string, data []byte, mode int64) error

	// Remove deletes a workspace file and prunes emptied parents.
	Remove(path string) error

	// HookLines returns the commands of the workspace hook file, one per
	// line, or nil when no hook file exists.
	HookLines() ([]string, error)
}
