package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TestCache keeps tiles in process memory; it exists for configuration
// testing and small local setups, not production use. With a log sink
// attached it reports every operation.
type TestCache struct {
	mu    sync.RWMutex
	tiles map[TileKey][]byte
	locks map[TileKey]time.Time
	log   *zap.Logger
}

// NewTestCache creates an in-memory cache. log may be nil for a quiet cache.
func NewTestCache(log *zap.Logger) *TestCache {
	return &TestCache{
		tiles: make(map[TileKey][]byte),
		locks: make(map[TileKey]time.Time),
		log:   log,
	}
}

func (c *TestCache) logf(msg string, key TileKey) {
	if c.log != nil {
		c.log.Info(msg, zap.String("tile", key.String()))
	}
}

func (c *TestCache) Read(_ context.Context, key TileKey) ([]byte, error) {
	c.mu.RLock()
	body, ok := c.tiles[key]
	c.mu.RUnlock()
	if !ok {
		c.logf("test cache miss", key)
		return nil, ErrMiss
	}
	c.logf("test cache read", key)
	return body, nil
}

func (c *TestCache) Save(_ context.Context, key TileKey, body []byte, _ time.Duration) error {
	c.mu.Lock()
	c.tiles[key] = body
	c.mu.Unlock()
	c.logf("test cache save", key)
	return nil
}

func (c *TestCache) Remove(_ context.Context, key TileKey) error {
	c.mu.Lock()
	delete(c.tiles, key)
	c.mu.Unlock()
	c.logf("test cache remove", key)
	return nil
}

func (c *TestCache) Lock(ctx context.Context, key TileKey, staleAfter time.Duration) error {
	for {
		c.mu.Lock()
		at, held := c.locks[key]
		stale := held && staleAfter > 0 && time.Since(at) > staleAfter
		if !held || stale {
			c.locks[key] = time.Now()
			c.mu.Unlock()
			c.logf("test cache lock", key)
			return nil
		}
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (c *TestCache) Unlock(_ context.Context, key TileKey) error {
	c.mu.Lock()
	delete(c.locks, key)
	c.mu.Unlock()
	c.logf("test cache unlock", key)
	return nil
}
