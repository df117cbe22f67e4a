package cache

import (
	"context"
	"time"
)

// Null ignores all saves and misses all reads; useful when tiles should
// always be rendered fresh.
type Null struct{}

func NewNull() *Null {
	return &Null{}
}

func (*Null) Read(context.Context, TileKey) ([]byte, error) {
	return nil, ErrMiss
}

func (*Null) Save(context.Context, TileKey, []byte, time.Duration) error {
	return nil
}

func (*Null) Remove(context.Context, TileKey) error {
	return nil
}

func (*Null) Lock(context.Context, TileKey, time.Duration) error {
	return nil
}

func (*Null) Unlock(context.Context, TileKey) error {
	return nil
}
