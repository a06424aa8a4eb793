package shelf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryShelf is an in-memory implementation of the Shelf interface.
// It stores all objects in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryShelf struct {
	name    string
	objects map[string][]byte
	mu      sync.RWMutex
}

// NewMemoryShelf creates a new in-memory shelf with the given name.
func NewMemoryShelf(name string) *MemoryShelf {
	return &MemoryShelf{
		name:    name,
		objects: make(map[string][]byte),
	}
}

// Put stores an object under key.
func (m *MemoryShelf) Put(_ context.Context, key string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = data
	return nil
}

// Get retrieves an object by key.
func (m *MemoryShelf) Get(_ context.Context, key string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[key]
	if !ok {
		return fmt.Errorf("object not found: %s", key)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}

	return nil
}

// Exists reports whether an object is stored under key.
func (m *MemoryShelf) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.objects[key]
	return ok, nil
}

// ValidateSetup always succeeds for the in-memory shelf.
func (m *MemoryShelf) ValidateSetup(_ context.Context) error {
	return nil
}

// Compile-time check that MemoryShelf implements the Shelf interface
var _ Shelf = (*MemoryShelf)(nil)
