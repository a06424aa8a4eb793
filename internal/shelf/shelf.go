// Package shelf provides archive shelf backends for publishing and
// fetching signed package archives. A shelf is a flat key/value object
// store; keys are slash-separated (`<package>/<content_hash>.uvd` plus
// a `<package>/latest` marker).
package shelf

import (
	"context"
	"io"
)

// Shelf is the interface all shelf backends implement.
type Shelf interface {
	// Put stores an object under key. The operation is idempotent:
	// storing the same key multiple times is safe.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get retrieves the object stored under key and writes it to w.
	Get(ctx context.Context, key string, w io.Writer) error

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// ValidateSetup verifies that the shelf backend is reachable and
	// usable.
	ValidateSetup(ctx context.Context) error
}
