// Package layer defines the named tile-serving unit assembled by the
// configuration builder: a projection, a provider, render batching parameters
// and cache-behavior knobs.
package layer

import (
	"context"

	"tilegarden/internal/geo"
)

// Default knob values, applied when the configuration leaves them out.
const (
	DefaultStaleLockTimeout = 15 // seconds

	DefaultPreviewLat  = 37.80
	DefaultPreviewLon  = -122.27
	DefaultPreviewZoom = 10
	DefaultPreviewExt  = "png"
)

// TileProvider produces tile content for a coordinate. Providers hold a
// non-owning back-reference to their layer for context access.
type TileProvider interface {
	RenderTile(ctx context.Context, coord geo.Coordinate, format string) ([]byte, error)
}

// Config is the owning configuration seen from a layer: enough to look up
// sibling layers and resolve relative paths.
type Config interface {
	Layer(name string) (*Layer, bool)
	BaseDir() string
}

// Metatile holds the parameters for render-time grouping of adjacent tiles:
// Rows by Columns tiles rendered together with Buffer pixels around the edge.
type Metatile struct {
	Buffer  int
	Rows    int
	Columns int
}

// NewMetatile applies defaults for absent (zero) fields.
func NewMetatile(buffer, rows, columns int) Metatile {
	if rows < 1 {
		rows = 1
	}
	if columns < 1 {
		columns = 1
	}
	if buffer < 0 {
		buffer = 0
	}
	return Metatile{Buffer: buffer, Rows: rows, Columns: columns}
}

// IsForReal reports whether the metatile actually groups more than one tile.
func (m Metatile) IsForReal() bool {
	return m.Rows > 1 || m.Columns > 1 || m.Buffer > 0
}

// Preview holds the parameters of the slippy-map preview page.
type Preview struct {
	Lat  float64
	Lon  float64
	Zoom int
	Ext  string
}

// Options carries the optional layer knobs extracted from a configuration.
type Options struct {
	CacheLifespan    int // seconds; 0 means cached tiles never expire
	StaleLockTimeout int // seconds
	WriteCache       bool
	AllowedOrigin    string
	Preview          Preview
	Bounds           *Bounds
}

// Layer is one named tile-serving unit. Immutable once the builder finishes
// with it, except for the provider and encoder options attached right after
// construction.
type Layer struct {
	Name       string
	Config     Config
	Projection geo.Projection
	Metatile   Metatile
	Provider   TileProvider

	Bounds           *Bounds
	CacheLifespan    int
	StaleLockTimeout int
	WriteCache       bool
	AllowedOrigin    string
	Preview          Preview

	JPEGOptions map[string]any
	PNGOptions  map[string]any
}

// New builds the layer shell; the provider and encoder options are attached
// by the builder afterwards, since the provider needs the layer to exist first.
func New(name string, config Config, projection geo.Projection, metatile Metatile, opts Options) *Layer {
	if opts.StaleLockTimeout == 0 {
		opts.StaleLockTimeout = DefaultStaleLockTimeout
	}
	if opts.Preview == (Preview{}) {
		opts.Preview = Preview{
			Lat:  DefaultPreviewLat,
			Lon:  DefaultPreviewLon,
			Zoom: DefaultPreviewZoom,
			Ext:  DefaultPreviewExt,
		}
	}
	return &Layer{
		Name:             name,
		Config:           config,
		Projection:       projection,
		Metatile:         metatile,
		Bounds:           opts.Bounds,
		CacheLifespan:    opts.CacheLifespan,
		StaleLockTimeout: opts.StaleLockTimeout,
		WriteCache:       opts.WriteCache,
		AllowedOrigin:    opts.AllowedOrigin,
		Preview:          opts.Preview,
	}
}

// SetProvider attaches the provider built for this layer.
func (l *Layer) SetProvider(p TileProvider) {
	l.Provider = p
}

// SetEncoderOptions attaches the opaque per-format encoder option mappings.
func (l *Layer) SetEncoderOptions(jpeg, png map[string]any) {
	l.JPEGOptions = jpeg
	l.PNGOptions = png
}

// Excludes reports whether the layer refuses to serve the given coordinate.
func (l *Layer) Excludes(coord geo.Coordinate) bool {
	return l.Bounds != nil && l.Bounds.Excludes(coord)
}
