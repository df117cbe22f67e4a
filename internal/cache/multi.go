package cache

import (
	"context"
	"errors"
	"time"
)

// Multi chains caches into tiers, ordered fastest and smallest first. Reads
// try each tier in order and backfill earlier tiers on a hit; saves and
// removes hit every tier. Locking uses the last (most authoritative) tier.
type Multi struct {
	tiers []Cache
}

func NewMulti(tiers []Cache) *Multi {
	return &Multi{tiers: tiers}
}

// Tiers exposes the ordered tier chain.
func (c *Multi) Tiers() []Cache {
	return c.tiers
}

func (c *Multi) Read(ctx context.Context, key TileKey) ([]byte, error) {
	for i, tier := range c.tiers {
		body, err := tier.Read(ctx, key)
		if errors.Is(err, ErrMiss) {
			continue
		}
		if err != nil {
			return nil, err
		}
		// Found in a lower tier; backfill the ones we passed on the way.
		for _, upper := range c.tiers[:i] {
			if err := upper.Save(ctx, key, body, 0); err != nil {
				return nil, err
			}
		}
		return body, nil
	}
	return nil, ErrMiss
}

func (c *Multi) Save(ctx context.Context, key TileKey, body []byte, lifespan time.Duration) error {
	for _, tier := range c.tiers {
		if err := tier.Save(ctx, key, body, lifespan); err != nil {
			return err
		}
	}
	return nil
}

func (c *Multi) Remove(ctx context.Context, key TileKey) error {
	for _, tier := range c.tiers {
		if err := tier.Remove(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (c *Multi) Lock(ctx context.Context, key TileKey, staleAfter time.Duration) error {
	return c.tiers[len(c.tiers)-1].Lock(ctx, key, staleAfter)
}

func (c *Multi) Unlock(ctx context.Context, key TileKey) error {
	return c.tiers[len(c.tiers)-1].Unlock(ctx, key)
}
