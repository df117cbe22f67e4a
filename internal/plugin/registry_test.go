package plugin

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func widget(map[string]any) (any, error) {
	return "widget", nil
}

func TestRegistryResolve(t *testing.T) {
	t.Run("Should resolve both specifier forms to the same constructor", func(t *testing.T) {
		r := NewRegistry()
		r.Register("pkg.mod", map[string]Constructor{"Widget": widget})

		colon, err := r.Resolve("pkg.mod:Widget")
		require.NoError(t, err)
		dotted, err := r.Resolve("pkg.mod.Widget")
		require.NoError(t, err)

		assert.Equal(t, reflect.ValueOf(colon).Pointer(), reflect.ValueOf(dotted).Pointer())
	})

	t.Run("Should memoize resolutions idempotently", func(t *testing.T) {
		r := NewRegistry()
		r.Register("pkg.mod", map[string]Constructor{"Widget": widget})

		first, err := r.Resolve("pkg.mod:Widget")
		require.NoError(t, err)

		// A later re-registration must not disturb an already resolved specifier.
		r.Register("pkg.mod", map[string]Constructor{"Widget": func(map[string]any) (any, error) {
			return "other", nil
		}})

		second, err := r.Resolve("pkg.mod:Widget")
		require.NoError(t, err)
		assert.Equal(t, reflect.ValueOf(first).Pointer(), reflect.ValueOf(second).Pointer())
	})

	t.Run("Should fail with the specifier for an unknown module", func(t *testing.T) {
		r := NewRegistry()
		_, err := r.Resolve("no.such.module:Thing")
		require.Error(t, err)
		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr))
		assert.Equal(t, "no.such.module:Thing", loadErr.Specifier)
		assert.Contains(t, err.Error(), "no.such.module:Thing")
	})

	t.Run("Should fail for a missing symbol in a known module", func(t *testing.T) {
		r := NewRegistry()
		r.Register("pkg.mod", map[string]Constructor{"Widget": widget})
		_, err := r.Resolve("pkg.mod:Gadget")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Gadget")
	})

	t.Run("Should fail for a nil constructor", func(t *testing.T) {
		r := NewRegistry()
		r.Register("pkg.mod", map[string]Constructor{"Broken": nil})
		_, err := r.Resolve("pkg.mod:Broken")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nil")
	})

	t.Run("Should reject malformed specifiers", func(t *testing.T) {
		r := NewRegistry()
		for _, spec := range []string{"", "plain", ":Widget", "mod:", "mod.", ".Name"} {
			_, err := r.Resolve(spec)
			assert.Error(t, err, "specifier %q", spec)
		}
	})

	t.Run("Should start fresh after a reset", func(t *testing.T) {
		r := NewRegistry()
		r.Register("pkg.mod", map[string]Constructor{"Widget": widget})
		_, err := r.Resolve("pkg.mod:Widget")
		require.NoError(t, err)

		r.Reset()
		_, err = r.Resolve("pkg.mod:Widget")
		assert.Error(t, err)
	})
}
