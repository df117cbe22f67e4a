package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"

	"tilegarden/internal/core"
	"tilegarden/internal/layer"
	"tilegarden/internal/plugin"
)

// FromConfig builds a layer's provider from its configuration sub-mapping.
// Dispatch mirrors the cache factory: builtin "name" or dynamic "class". The
// layer already exists and becomes the provider's back-reference; the caller
// attaches the result to the layer.
func FromConfig(spec map[string]any, l *layer.Layer) (layer.TileProvider, error) {
	if name, ok := spec["name"]; ok {
		return fromName(cast.ToString(name), spec, l)
	}
	if class, ok := spec["class"]; ok {
		return fromClass(cast.ToString(class), spec, l)
	}
	return nil, core.NewErrorf(core.ErrCodeMissingProviderSelector,
		"missing required provider name or class: %s", serialize(spec))
}

func fromName(name string, spec map[string]any, l *layer.Layer) (layer.TileProvider, error) {
	switch strings.ToLower(name) {
	case "mapnik":
		var params struct {
			Mapfile string `mapstructure:"mapfile"`
			Fonts   string `mapstructure:"fonts"`
		}
		if err := decode(spec, &params); err != nil {
			return nil, err
		}
		if params.Mapfile == "" {
			return nil, core.NewErrorf(core.ErrCodeMissingField,
				"mapnik provider requires a mapfile: %s", serialize(spec))
		}
		return NewMapnik(l, params.Mapfile, params.Fonts), nil

	case "proxy":
		var params struct {
			URL      string `mapstructure:"url"`
			Provider string `mapstructure:"provider"`
		}
		if err := decode(spec, &params); err != nil {
			return nil, err
		}
		return NewProxy(l, params.URL, params.Provider), nil

	case "url template":
		var params struct {
			Template string `mapstructure:"template"`
		}
		if err := decode(spec, &params); err != nil {
			return nil, err
		}
		if params.Template == "" {
			return nil, core.NewErrorf(core.ErrCodeMissingField,
				"url template provider requires a template: %s", serialize(spec))
		}
		return NewUrlTemplate(l, params.Template), nil

	case "vector":
		return vectorFromConfig(spec, l)

	case "mbtiles":
		var params struct {
			Tileset string `mapstructure:"tileset"`
		}
		if err := decode(spec, &params); err != nil {
			return nil, err
		}
		if params.Tileset == "" {
			return nil, core.NewErrorf(core.ErrCodeMissingField,
				"mbtiles provider requires a tileset: %s", serialize(spec))
		}
		return NewMBTiles(l, params.Tileset), nil

	default:
		return nil, core.NewErrorf(core.ErrCodeUnknownProviderBackend, "unknown provider: %s", name)
	}
}

func fromClass(class string, spec map[string]any, l *layer.Layer) (layer.TileProvider, error) {
	ctor, err := plugin.Resolve(class)
	if err != nil {
		return nil, core.WrapError(core.ErrCodeClassLoad, err, "%v", err)
	}
	raw, _ := spec["kwargs"].(map[string]any)
	kwargs := make(map[string]any, len(raw)+1)
	for k, v := range raw {
		kwargs[k] = v
	}
	kwargs["layer"] = l
	built, err := ctor(kwargs)
	if err != nil {
		return nil, core.WrapError(core.ErrCodeClassLoad, err, "constructing provider %s: %v", class, err)
	}
	p, ok := built.(layer.TileProvider)
	if !ok {
		return nil, core.NewErrorf(core.ErrCodeBadPlugin,
			"provider class %s built a %T, which is not a tile provider", class, built)
	}
	return p, nil
}

func vectorFromConfig(spec map[string]any, l *layer.Layer) (layer.TileProvider, error) {
	driver, ok := spec["driver"]
	if !ok {
		return nil, core.NewErrorf(core.ErrCodeMissingField,
			"vector provider requires a driver: %s", serialize(spec))
	}
	parameters, ok := spec["parameters"].(map[string]any)
	if !ok {
		return nil, core.NewErrorf(core.ErrCodeMissingField,
			"vector provider requires a parameters mapping: %s", serialize(spec))
	}

	p := &Vector{
		layer:      l,
		Driver:     cast.ToString(driver),
		Parameters: parameters,
		Properties: spec["properties"],
		Projected:  cast.ToBool(spec["projected"]),
		Verbose:    cast.ToBool(spec["verbose"]),
		Clipped:    ClipOn,
	}

	if raw, ok := spec["spacing"]; ok {
		spacing, err := cast.ToFloat64E(raw)
		if err != nil {
			return nil, err
		}
		p.Spacing = &spacing
	}

	// "padded" survives verbatim; any other present value is a boolean;
	// absent means clipped.
	if raw, ok := spec["clipped"]; ok {
		if s, isString := raw.(string); isString && s == "padded" {
			p.Clipped = ClipPadded
		} else if cast.ToBool(raw) {
			p.Clipped = ClipOn
		} else {
			p.Clipped = ClipOff
		}
	}

	return p, nil
}

func decode(spec map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(spec)
}

func serialize(v any) string {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(body)
}
