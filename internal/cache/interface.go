// Package cache holds the tile cache variants a configuration can select and
// the factory that builds them from a cache sub-mapping.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Read when a tile is not cached.
var ErrMiss = errors.New("tile not in cache")

// TileKey identifies one cached tile rendering.
type TileKey struct {
	Layer  string
	Zoom   int
	Row    int
	Column int
	Format string
}

func (k TileKey) String() string {
	return fmt.Sprintf("%s/%d/%d/%d.%s", k.Layer, k.Zoom, k.Column, k.Row, k.Format)
}

// Cache persists and retrieves previously produced tile content. Save's
// lifespan comes from the owning layer's cache lifespan knob; zero means the
// tile never expires. Lock and Unlock guard against duplicate renders of the
// same tile; a lock older than staleAfter may be broken.
type Cache interface {
	Read(ctx context.Context, key TileKey) ([]byte, error)
	Save(ctx context.Context, key TileKey, body []byte, lifespan time.Duration) error
	Remove(ctx context.Context, key TileKey) error
	Lock(ctx context.Context, key TileKey, staleAfter time.Duration) error
	Unlock(ctx context.Context, key TileKey) error
}
