// Package config turns a declarative tile-service description, a nested
// mapping with "cache" and "layers" sections, into a ready-to-serve object
// graph: one cache hierarchy and a named collection of layers. A build either
// produces a complete Configuration or fails; nothing is ever patched in
// place, a reload is a fresh build and a pointer swap.
package config

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cast"

	"tilegarden/internal/cache"
	"tilegarden/internal/core"
	"tilegarden/internal/geo"
	"tilegarden/internal/layer"
	"tilegarden/internal/provider"
)

// NamedLayer pairs a layer with its configuration key.
type NamedLayer struct {
	Name  string
	Layer *layer.Layer
}

// LayerCollection is the capability contract for a configuration's layer set.
// The default is a plain map, but a dynamically computed layer set can stand
// in as long as it supports lookup, membership, and enumeration.
type LayerCollection interface {
	Get(name string) (*layer.Layer, bool)
	Has(name string) bool
	Names() []string
	Items() []NamedLayer
}

// LayerMap is the map-backed LayerCollection built by Build.
type LayerMap map[string]*layer.Layer

func (m LayerMap) Get(name string) (*layer.Layer, bool) {
	l, ok := m[name]
	return l, ok
}

func (m LayerMap) Has(name string) bool {
	_, ok := m[name]
	return ok
}

func (m LayerMap) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m LayerMap) Items() []NamedLayer {
	items := make([]NamedLayer, 0, len(m))
	for _, name := range m.Names() {
		items = append(items, NamedLayer{Name: name, Layer: m[name]})
	}
	return items
}

// Configuration is a complete site configuration: a cache, a base directory
// for resolving relative paths, and the layer collection.
type Configuration struct {
	Cache  cache.Cache
	Layers LayerCollection

	dirpath string
}

// BaseDir is the directory the configuration was parsed from, local path or
// URL, used for expanding relative paths.
func (c *Configuration) BaseDir() string {
	return c.dirpath
}

// Layer looks a layer up by name.
func (c *Configuration) Layer(name string) (*layer.Layer, bool) {
	return c.Layers.Get(name)
}

// Build assembles a parsed configuration mapping into a Configuration.
// dirpath is where the mapping originated, so relative paths inside it can be
// resolved. Any failure aborts the whole build.
func Build(raw map[string]any, dirpath string) (*Configuration, error) {
	cacheSpec, _ := raw["cache"].(map[string]any)
	tileCache, err := cache.FromConfig(cacheSpec, dirpath)
	if err != nil {
		return nil, err
	}

	cfg := &Configuration{Cache: tileCache, dirpath: dirpath}

	layers := LayerMap{}
	layerSpecs, _ := raw["layers"].(map[string]any)
	for name, rawLayer := range layerSpecs {
		layerSpec, ok := rawLayer.(map[string]any)
		if !ok {
			return nil, core.NewErrorf(core.ErrCodeMissingField,
				"layer %q must be a mapping, not: %s", name, serialize(rawLayer))
		}
		l, err := buildLayer(name, layerSpec, cfg)
		if err != nil {
			return nil, err
		}
		layers[name] = l
	}
	cfg.Layers = layers

	return cfg, nil
}

func buildLayer(name string, spec map[string]any, cfg *Configuration) (*layer.Layer, error) {
	projectionName := "spherical mercator"
	if raw, ok := spec["projection"]; ok {
		projectionName = cast.ToString(raw)
	}
	projection, err := geo.GetProjectionByName(projectionName)
	if err != nil {
		return nil, core.NewErrorf(core.ErrCodeUnknownProjection, "layer %q: %v", name, err)
	}

	opts := layer.Options{WriteCache: true}

	if raw, ok := spec["cache lifespan"]; ok {
		if opts.CacheLifespan, err = cast.ToIntE(raw); err != nil {
			return nil, err
		}
	}
	if raw, ok := spec["stale lock timeout"]; ok {
		if opts.StaleLockTimeout, err = cast.ToIntE(raw); err != nil {
			return nil, err
		}
	}
	if raw, ok := spec["write cache"]; ok {
		if opts.WriteCache, err = cast.ToBoolE(raw); err != nil {
			return nil, err
		}
	}
	if raw, ok := spec["allowed origin"]; ok {
		opts.AllowedOrigin = cast.ToString(raw)
	}

	opts.Preview = layer.Preview{
		Lat:  layer.DefaultPreviewLat,
		Lon:  layer.DefaultPreviewLon,
		Zoom: layer.DefaultPreviewZoom,
		Ext:  layer.DefaultPreviewExt,
	}
	if previewSpec, ok := spec["preview"].(map[string]any); ok {
		if raw, ok := previewSpec["lat"]; ok {
			if opts.Preview.Lat, err = cast.ToFloat64E(raw); err != nil {
				return nil, err
			}
		}
		if raw, ok := previewSpec["lon"]; ok {
			if opts.Preview.Lon, err = cast.ToFloat64E(raw); err != nil {
				return nil, err
			}
		}
		if raw, ok := previewSpec["zoom"]; ok {
			if opts.Preview.Zoom, err = cast.ToIntE(raw); err != nil {
				return nil, err
			}
		}
		if raw, ok := previewSpec["ext"]; ok {
			opts.Preview.Ext = cast.ToString(raw)
		}
	}

	if rawBounds, ok := spec["bounds"]; ok {
		boundsSpec, ok := rawBounds.(map[string]any)
		if !ok {
			return nil, core.NewErrorf(core.ErrCodeMalformedBounds,
				"layer bounds must be a mapping, not: %s", serialize(rawBounds))
		}
		if opts.Bounds, err = buildBounds(boundsSpec, projection); err != nil {
			return nil, err
		}
	}

	metatile, err := buildMetatile(spec)
	if err != nil {
		return nil, err
	}

	var jpegOptions, pngOptions map[string]any
	if raw, ok := spec["jpeg options"]; ok {
		if jpegOptions, err = cast.ToStringMapE(raw); err != nil {
			return nil, err
		}
	}
	if raw, ok := spec["png options"]; ok {
		if pngOptions, err = cast.ToStringMapE(raw); err != nil {
			return nil, err
		}
	}

	providerSpec, ok := spec["provider"].(map[string]any)
	if !ok {
		return nil, core.NewErrorf(core.ErrCodeMissingProviderSelector,
			"layer %q requires a provider mapping: %s", name, serialize(spec["provider"]))
	}

	// The layer shell has to exist before the provider, which keeps a
	// back-reference to it.
	l := layer.New(name, cfg, projection, metatile, opts)

	p, err := provider.FromConfig(providerSpec, l)
	if err != nil {
		return nil, err
	}
	l.SetProvider(p)
	l.SetEncoderOptions(jpegOptions, pngOptions)

	return l, nil
}

// buildBounds resolves the north/west corner through the projection to the
// fine zoom and the south/east corner to the coarse zoom. All six parts are
// required; a bounds mapping is never silently defaulted.
func buildBounds(spec map[string]any, projection geo.Projection) (*layer.Bounds, error) {
	for _, field := range []string{"north", "south", "east", "west", "high", "low"} {
		if _, ok := spec[field]; !ok {
			return nil, core.NewErrorf(core.ErrCodeIncompleteBounds,
				"missing part of bounds for layer, need north, south, east, west, high, and low: %s",
				serialize(spec))
		}
	}

	north, err := cast.ToFloat64E(spec["north"])
	if err != nil {
		return nil, err
	}
	south, err := cast.ToFloat64E(spec["south"])
	if err != nil {
		return nil, err
	}
	east, err := cast.ToFloat64E(spec["east"])
	if err != nil {
		return nil, err
	}
	west, err := cast.ToFloat64E(spec["west"])
	if err != nil {
		return nil, err
	}
	high, err := cast.ToIntE(spec["high"])
	if err != nil {
		return nil, err
	}
	low, err := cast.ToIntE(spec["low"])
	if err != nil {
		return nil, err
	}

	return &layer.Bounds{
		UpperLeftHigh: projection.LocationCoordinate(geo.Location{Lat: north, Lon: west}).ZoomTo(high),
		LowerRightLow: projection.LocationCoordinate(geo.Location{Lat: south, Lon: east}).ZoomTo(low),
	}, nil
}

func buildMetatile(spec map[string]any) (layer.Metatile, error) {
	metaSpec, _ := spec["metatile"].(map[string]any)
	var buffer, rows, columns int
	var err error
	if raw, ok := metaSpec["buffer"]; ok {
		if buffer, err = cast.ToIntE(raw); err != nil {
			return layer.Metatile{}, err
		}
	}
	if raw, ok := metaSpec["rows"]; ok {
		if rows, err = cast.ToIntE(raw); err != nil {
			return layer.Metatile{}, err
		}
	}
	if raw, ok := metaSpec["columns"]; ok {
		if columns, err = cast.ToIntE(raw); err != nil {
			return layer.Metatile{}, err
		}
	}
	return layer.NewMetatile(buffer, rows, columns), nil
}

func serialize(v any) string {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(body)
}
