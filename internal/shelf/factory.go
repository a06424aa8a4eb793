package shelf

import (
	"context"
	"fmt"

	"github.com/hackia/lys-sub000/internal/config"
)

// NewShelfFromConfig creates a Shelf implementation based on the shelf config type.
func NewShelfFromConfig(ctx context.Context, cfg config.ShelfConfig) (Shelf, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryShelf(cfg.Name), nil
	case "s3":
		return NewS3Shelf(ctx, cfg)
	case "filesystem":
		if cfg.FSShelfRoot == "" {
			return nil, fmt.Errorf("filesystem shelf requires fs_shelf_root to be set")
		}
		return NewFileSystemShelf(cfg.Name, cfg.FSShelfRoot)
	default:
		return nil, fmt.Errorf("unknown shelf type: %s", cfg.Type)
	}
}
