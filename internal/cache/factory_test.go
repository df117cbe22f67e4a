package cache

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilegarden/internal/core"
	"tilegarden/internal/plugin"
)

func TestFromConfig(t *testing.T) {
	t.Run("Should fail when neither name nor class is present", func(t *testing.T) {
		_, err := FromConfig(map[string]any{}, "/tmp")
		require.Error(t, err)
		var cfgErr *core.ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, core.ErrCodeMissingCacheSelector, cfgErr.Code)
	})

	t.Run("Should name the offending value for an unknown backend", func(t *testing.T) {
		_, err := FromConfig(map[string]any{"name": "Tape"}, "/tmp")
		require.Error(t, err)
		var cfgErr *core.ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, core.ErrCodeUnknownCacheBackend, cfgErr.Code)
		assert.Contains(t, cfgErr.Message, "Tape")
	})

	t.Run("Should build builtin backends case-insensitively", func(t *testing.T) {
		c, err := FromConfig(map[string]any{"name": "Null"}, "/tmp")
		require.NoError(t, err)
		assert.IsType(t, &Null{}, c)

		c, err = FromConfig(map[string]any{"name": "test"}, "/tmp")
		require.NoError(t, err)
		assert.IsType(t, &TestCache{}, c)
	})

	t.Run("Should resolve the disk cache path against the config directory", func(t *testing.T) {
		c, err := FromConfig(map[string]any{"name": "Disk", "path": "stache"}, "/cfg")
		require.NoError(t, err)
		disk := c.(*Disk)
		assert.Equal(t, "/cfg/stache", disk.path)
	})

	t.Run("Should accept every disk cache dirs scheme", func(t *testing.T) {
		for _, dirs := range []string{"safe", "portable", "quadtile"} {
			c, err := FromConfig(map[string]any{"name": "Disk", "path": "/tmp/stache", "dirs": dirs}, "/cfg")
			require.NoError(t, err, "dirs %s", dirs)
			assert.IsType(t, &Disk{}, c)
		}
	})

	t.Run("Should require a path for the disk cache", func(t *testing.T) {
		_, err := FromConfig(map[string]any{"name": "Disk"}, "/cfg")
		require.Error(t, err)
		var cfgErr *core.ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Contains(t, cfgErr.Message, `"name":"Disk"`)
	})

	t.Run("Should reject a disk cache path on a remote base without file scheme", func(t *testing.T) {
		_, err := FromConfig(map[string]any{"name": "Disk", "path": "stache"}, "http://example.com/cfg")
		require.Error(t, err)
		var cfgErr *core.ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, core.ErrCodeRemoteBaseDir, cfgErr.Code)
	})

	t.Run("Should parse the umask as octal", func(t *testing.T) {
		c, err := FromConfig(map[string]any{"name": "Disk", "path": "/tmp/stache", "umask": "0000"}, "/cfg")
		require.NoError(t, err)
		assert.EqualValues(t, 0666, c.(*Disk).fileMode())
	})

	t.Run("Should surface a bad umask as a raw parse error", func(t *testing.T) {
		_, err := FromConfig(map[string]any{"name": "Disk", "path": "/tmp/stache", "umask": "troll"}, "/cfg")
		require.Error(t, err)
		var numErr *strconv.NumError
		assert.True(t, errors.As(err, &numErr))
		var cfgErr *core.ConfigurationError
		assert.False(t, errors.As(err, &cfgErr))
	})

	t.Run("Should preserve tier order in a multi cache", func(t *testing.T) {
		c, err := FromConfig(map[string]any{
			"name": "Multi",
			"tiers": []any{
				map[string]any{"name": "Test"},
				map[string]any{"name": "Disk", "path": "/tmp/stache"},
			},
		}, "/cfg")
		require.NoError(t, err)
		multi := c.(*Multi)
		require.Len(t, multi.Tiers(), 2)
		assert.IsType(t, &TestCache{}, multi.Tiers()[0])
		assert.IsType(t, &Disk{}, multi.Tiers()[1])
	})

	t.Run("Should reject an empty tiers list", func(t *testing.T) {
		_, err := FromConfig(map[string]any{"name": "Multi", "tiers": []any{}}, "/cfg")
		require.Error(t, err)
	})

	t.Run("Should abort the whole build on a broken tier", func(t *testing.T) {
		_, err := FromConfig(map[string]any{
			"name":  "Multi",
			"tiers": []any{map[string]any{"name": "Test"}, map[string]any{}},
		}, "/cfg")
		require.Error(t, err)
		var cfgErr *core.ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, core.ErrCodeMissingCacheSelector, cfgErr.Code)
	})

	t.Run("Should pass redis knobs through", func(t *testing.T) {
		c, err := FromConfig(map[string]any{
			"name":     "Redis",
			"servers":  []any{"tilecache-1:6379", "tilecache-2:6379"},
			"lifespan": 300,
			"revision": "r7",
		}, "/cfg")
		require.NoError(t, err)
		r := c.(*Redis)
		assert.Equal(t, 5*time.Minute, r.lifespan)
		assert.Equal(t, "r7", r.revision)
	})

	t.Run("Should pass s3 knobs through", func(t *testing.T) {
		c, err := FromConfig(map[string]any{
			"name":   "S3",
			"bucket": "tiles",
			"access": "AKID",
			"secret": "shh",
		}, "/cfg")
		require.NoError(t, err)
		s := c.(*S3)
		assert.Equal(t, "tiles", s.bucket)
		assert.Equal(t, "https://tiles.s3.amazonaws.com", s.endpoint)
	})

	t.Run("Should build a dynamically registered backend by class", func(t *testing.T) {
		plugin.Register("backends.shim", map[string]plugin.Constructor{
			"New": func(args map[string]any) (any, error) {
				assert.Equal(t, "value", args["key"])
				return NewNull(), nil
			},
		})
		c, err := FromConfig(map[string]any{
			"class":  "backends.shim:New",
			"kwargs": map[string]any{"key": "value"},
		}, "/cfg")
		require.NoError(t, err)
		assert.IsType(t, &Null{}, c)
	})

	t.Run("Should wrap class resolution failures with the specifier", func(t *testing.T) {
		_, err := FromConfig(map[string]any{"class": "backends.missing:New"}, "/cfg")
		require.Error(t, err)
		var cfgErr *core.ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, core.ErrCodeClassLoad, cfgErr.Code)
		assert.Contains(t, cfgErr.Message, "backends.missing:New")
		var loadErr *plugin.LoadError
		assert.True(t, errors.As(err, &loadErr))
	})

	t.Run("Should reject a class that builds something other than a cache", func(t *testing.T) {
		plugin.Register("backends.bogus", map[string]plugin.Constructor{
			"New": func(map[string]any) (any, error) { return 42, nil },
		})
		_, err := FromConfig(map[string]any{"class": "backends.bogus:New"}, "/cfg")
		require.Error(t, err)
		var cfgErr *core.ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, core.ErrCodeBadPlugin, cfgErr.Code)
	})
}

func TestCacheBehavior(t *testing.T) {
	ctx := context.Background()
	key := TileKey{Layer: "osm", Zoom: 12, Row: 1582, Column: 656, Format: "png"}

	t.Run("Should miss then hit the test cache", func(t *testing.T) {
		c := NewTestCache(nil)
		_, err := c.Read(ctx, key)
		assert.ErrorIs(t, err, ErrMiss)

		require.NoError(t, c.Save(ctx, key, []byte("tile"), 0))
		body, err := c.Read(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("tile"), body)

		require.NoError(t, c.Remove(ctx, key))
		_, err = c.Read(ctx, key)
		assert.ErrorIs(t, err, ErrMiss)
	})

	t.Run("Should round-trip tiles through the disk cache", func(t *testing.T) {
		disk, err := NewDisk(t.TempDir(), DiskOptions{})
		require.NoError(t, err)

		_, err = disk.Read(ctx, key)
		assert.ErrorIs(t, err, ErrMiss)

		require.NoError(t, disk.Save(ctx, key, []byte("tile"), 0))
		body, err := disk.Read(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("tile"), body)
	})

	t.Run("Should round-trip gzipped tiles through the disk cache", func(t *testing.T) {
		disk, err := NewDisk(t.TempDir(), DiskOptions{Gzip: true})
		require.NoError(t, err)

		require.NoError(t, disk.Save(ctx, key, []byte("tile"), 0))
		body, err := disk.Read(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("tile"), body)
	})

	t.Run("Should reject an unknown dirs scheme", func(t *testing.T) {
		_, err := NewDisk("/tmp/stache", DiskOptions{Dirs: "heap"})
		assert.Error(t, err)
	})

	t.Run("Should interleave row and column bits in the quadtile layout", func(t *testing.T) {
		disk, err := NewDisk("/stache", DiskOptions{Dirs: "quadtile"})
		require.NoError(t, err)

		// row 3 is 011, column 5 is 101 over four bits at zoom 3, giving
		// quadkey digits 0123; the zoom is implied by the digit count.
		path := disk.tilePath(TileKey{Layer: "osm", Zoom: 3, Row: 3, Column: 5, Format: "png"})
		assert.Equal(t, "/stache/osm/012/3.png", path)

		path = disk.tilePath(TileKey{Layer: "osm", Zoom: 0, Row: 0, Column: 0, Format: "png"})
		assert.Equal(t, "/stache/osm/0.png", path)
	})

	t.Run("Should round-trip tiles through the quadtile layout", func(t *testing.T) {
		disk, err := NewDisk(t.TempDir(), DiskOptions{Dirs: "quadtile"})
		require.NoError(t, err)

		require.NoError(t, disk.Save(ctx, key, []byte("tile"), 0))
		body, err := disk.Read(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("tile"), body)
	})

	t.Run("Should stop waiting for a test cache lock when the context ends", func(t *testing.T) {
		c := NewTestCache(nil)
		require.NoError(t, c.Lock(ctx, key, 0))

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := c.Lock(cancelled, key, 0)
		assert.ErrorIs(t, err, context.Canceled)

		require.NoError(t, c.Unlock(ctx, key))
		require.NoError(t, c.Lock(ctx, key, 0))
	})

	t.Run("Should backfill earlier tiers on a multi cache hit", func(t *testing.T) {
		fast, slow := NewTestCache(nil), NewTestCache(nil)
		multi := NewMulti([]Cache{fast, slow})

		require.NoError(t, slow.Save(ctx, key, []byte("tile"), 0))

		body, err := multi.Read(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("tile"), body)

		cached, err := fast.Read(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("tile"), cached)
	})

	t.Run("Should write every tier on a multi cache save", func(t *testing.T) {
		fast, slow := NewTestCache(nil), NewTestCache(nil)
		multi := NewMulti([]Cache{fast, slow})

		require.NoError(t, multi.Save(ctx, key, []byte("tile"), 0))
		for _, tier := range []Cache{fast, slow} {
			body, err := tier.Read(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, []byte("tile"), body)
		}
	})
}
