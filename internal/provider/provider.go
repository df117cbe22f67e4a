// Package provider holds the builtin tile content providers a layer can
// select and the factory that builds them from a provider sub-mapping. Each
// provider keeps a non-owning back-reference to its layer.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tilegarden/internal/geo"
	"tilegarden/internal/layer"
)

// ErrNoEngine is returned at render time by providers whose rendering engine
// ships out of process; the builder still constructs and validates them.
var ErrNoEngine = errors.New("rendering engine not available")

var httpClient = &http.Client{Timeout: 30 * time.Second}

func fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: %s", url, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func expandTemplate(template string, coord geo.Coordinate) string {
	return strings.NewReplacer(
		"{z}", strconv.Itoa(coord.Zoom),
		"{x}", strconv.FormatFloat(coord.Column, 'f', -1, 64),
		"{y}", strconv.FormatFloat(coord.Row, 'f', -1, 64),
	).Replace(template)
}

// Mapnik renders tiles from a map style file. The style path and font
// directory are validated at build time; the actual rasterizer is an external
// engine, so rendering through this builtin is a construction-only concern.
type Mapnik struct {
	layer   *layer.Layer
	Mapfile string
	Fonts   string
}

func NewMapnik(l *layer.Layer, mapfile, fonts string) *Mapnik {
	return &Mapnik{layer: l, Mapfile: mapfile, Fonts: fonts}
}

func (p *Mapnik) RenderTile(context.Context, geo.Coordinate, string) ([]byte, error) {
	return nil, fmt.Errorf("mapnik style %s: %w", p.Mapfile, ErrNoEngine)
}

// Proxy serves tiles fetched from another source: either a URL template or a
// named sibling layer's provider.
type Proxy struct {
	layer        *layer.Layer
	URL          string
	ProviderName string
}

func NewProxy(l *layer.Layer, url, providerName string) *Proxy {
	return &Proxy{layer: l, URL: url, ProviderName: providerName}
}

func (p *Proxy) RenderTile(ctx context.Context, coord geo.Coordinate, format string) ([]byte, error) {
	if p.ProviderName != "" {
		sibling, ok := p.layer.Config.Layer(p.ProviderName)
		if !ok || sibling.Provider == nil {
			return nil, fmt.Errorf("proxy layer %q has no provider to delegate to", p.ProviderName)
		}
		return sibling.Provider.RenderTile(ctx, coord, format)
	}
	if p.URL == "" {
		return nil, errors.New("proxy provider has neither a url template nor a provider name")
	}
	return fetch(ctx, expandTemplate(p.URL, coord))
}

// UrlTemplate serves tiles fetched from a templated URL with {z}, {x} and
// {y} placeholders.
type UrlTemplate struct {
	layer    *layer.Layer
	Template string
}

func NewUrlTemplate(l *layer.Layer, template string) *UrlTemplate {
	return &UrlTemplate{layer: l, Template: template}
}

func (p *UrlTemplate) RenderTile(ctx context.Context, coord geo.Coordinate, _ string) ([]byte, error) {
	return fetch(ctx, expandTemplate(p.Template, coord))
}

// ClipMode controls how vector features crossing a tile edge are cut.
type ClipMode int

const (
	ClipOff ClipMode = iota
	ClipOn
	ClipPadded
)

func (m ClipMode) String() string {
	switch m {
	case ClipOn:
		return "on"
	case ClipPadded:
		return "padded"
	default:
		return "off"
	}
}

// Vector reads features from a vector data driver. Drivers live behind
// external data libraries; the builtin carries the validated knobs.
type Vector struct {
	layer      *layer.Layer
	Driver     string
	Parameters map[string]any
	Properties any      // optional list or mapping of property names
	Projected  bool
	Verbose    bool
	Spacing    *float64 // nil means no point simplification
	Clipped    ClipMode
}

func (p *Vector) RenderTile(context.Context, geo.Coordinate, string) ([]byte, error) {
	return nil, fmt.Errorf("vector driver %s: %w", p.Driver, ErrNoEngine)
}

// MBTiles serves tiles out of a tile archive file.
type MBTiles struct {
	layer   *layer.Layer
	Tileset string
}

func NewMBTiles(l *layer.Layer, tileset string) *MBTiles {
	return &MBTiles{layer: l, Tileset: tileset}
}

func (p *MBTiles) RenderTile(context.Context, geo.Coordinate, string) ([]byte, error) {
	return nil, fmt.Errorf("tile archive %s: %w", p.Tileset, ErrNoEngine)
}
