package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis caches tiles in a remote key-value store shared between tile servers.
// Keys carry a revision tag so bumping the revision in the configuration
// invalidates every previously cached tile at once.
type Redis struct {
	client   redis.UniversalClient
	lifespan time.Duration
	revision string
}

type RedisOptions struct {
	Servers  []string // host:port addresses; defaults to localhost:6379
	Lifespan int      // seconds; 0 means tiles never expire
	Revision string
}

func NewRedis(opts RedisOptions) *Redis {
	if len(opts.Servers) == 0 {
		opts.Servers = []string{"localhost:6379"}
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: opts.Servers})
	return &Redis{
		client:   client,
		lifespan: time.Duration(opts.Lifespan) * time.Second,
		revision: opts.Revision,
	}
}

func (c *Redis) key(key TileKey) string {
	return fmt.Sprintf("tile/%s/%s", c.revision, key)
}

func (c *Redis) Read(ctx context.Context, key TileKey) ([]byte, error) {
	body, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Redis) Save(ctx context.Context, key TileKey, body []byte, lifespan time.Duration) error {
	if lifespan == 0 {
		lifespan = c.lifespan
	}
	return c.client.Set(ctx, c.key(key), body, lifespan).Err()
}

func (c *Redis) Remove(ctx context.Context, key TileKey) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

func (c *Redis) Lock(ctx context.Context, key TileKey, staleAfter time.Duration) error {
	lockKey := c.key(key) + ".lock"
	if staleAfter <= 0 {
		staleAfter = time.Duration(DefaultStaleLockTimeout) * time.Second
	}
	for {
		ok, err := c.client.SetNX(ctx, lockKey, 1, staleAfter).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (c *Redis) Unlock(ctx context.Context, key TileKey) error {
	return c.client.Del(ctx, c.key(key)+".lock").Err()
}

// Close releases the client connections; the builder never reuses a cache
// across configurations, so a discarded configuration should close its cache.
func (c *Redis) Close() error {
	return c.client.Close()
}

// DefaultStaleLockTimeout mirrors the layer-level default, used when a lock
// is taken without a configured timeout.
const DefaultStaleLockTimeout = 15
