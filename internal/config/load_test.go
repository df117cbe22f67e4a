package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"

	"tilegarden/internal/cache"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	t.Run("Should load a YAML configuration and anchor its base directory", func(t *testing.T) {
		path := writeConfig(t, "tiles.yaml", `
cache:
  name: Disk
  path: stache
layers:
  osm:
    provider:
      name: url template
      template: http://tile.example.com/{z}/{x}/{y}.png
`)
		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"osm"}, cfg.Layers.Names())
		assert.IsType(t, &cache.Disk{}, cfg.Cache)
		assert.Equal(t, filepath.Dir(path), cfg.BaseDir())
	})

	t.Run("Should load a JSON configuration through the same parser", func(t *testing.T) {
		path := writeConfig(t, "tiles.json", `{
  "cache": {"name": "Test"},
  "layers": {
    "example": {
      "provider": {"name": "proxy", "url": "http://example.com/{z}/{x}/{y}.png"}
    }
  }
}`)
		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.True(t, cfg.Layers.Has("example"))
	})

	t.Run("Should accept a file scheme path", func(t *testing.T) {
		path := writeConfig(t, "tiles.yaml", "cache: {name: Test}\nlayers: {}\n")
		cfg, err := LoadFile("file://" + path)
		require.NoError(t, err)
		assert.Empty(t, cfg.Layers.Names())
	})

	t.Run("Should fail on an unreadable file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("Should fail on unparseable content", func(t *testing.T) {
		path := writeConfig(t, "tiles.yaml", "{not yaml: [")
		_, err := LoadFile(path)
		assert.Error(t, err)
	})
}

func TestReloader(t *testing.T) {
	t.Run("Should serve the initially built configuration", func(t *testing.T) {
		path := writeConfig(t, "tiles.yaml", "cache: {name: Test}\nlayers: {}\n")
		r, err := NewReloader(path, zap.NewNop())
		require.NoError(t, err)
		assert.NotNil(t, r.Current())
		assert.Empty(t, r.Current().Layers.Names())
	})

	t.Run("Should refuse to start on a broken configuration", func(t *testing.T) {
		path := writeConfig(t, "tiles.yaml", "cache: {}\nlayers: {}\n")
		_, err := NewReloader(path, zap.NewNop())
		assert.Error(t, err)
	})
}
