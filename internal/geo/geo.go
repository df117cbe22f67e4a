// Package geo holds the tile-pyramid math shared by layers, bounds and
// providers: geographic locations, fractional tile coordinates, and the
// projections that map between the two.
package geo

import (
	"fmt"
	"math"
	"strings"
)

// Location is a geographic point in degrees.
type Location struct {
	Lat float64
	Lon float64
}

// Coordinate addresses a tile in the pyramid as (zoom, row, column). Row and
// Column are fractional so reprojected corners keep sub-tile precision; whole
// numbers address actual tiles.
type Coordinate struct {
	Row    float64
	Column float64
	Zoom   int
}

// ZoomTo reprojects the coordinate to another zoom level, halving or doubling
// row and column per zoom step.
func (c Coordinate) ZoomTo(zoom int) Coordinate {
	factor := math.Pow(2, float64(zoom-c.Zoom))
	return Coordinate{Row: c.Row * factor, Column: c.Column * factor, Zoom: zoom}
}

// Right is the neighboring coordinate one column over.
func (c Coordinate) Right() Coordinate {
	return Coordinate{Row: c.Row, Column: c.Column + 1, Zoom: c.Zoom}
}

// Down is the neighboring coordinate one row down.
func (c Coordinate) Down() Coordinate {
	return Coordinate{Row: c.Row + 1, Column: c.Column, Zoom: c.Zoom}
}

// Container returns the integer tile containing this coordinate.
func (c Coordinate) Container() Coordinate {
	return Coordinate{Row: math.Floor(c.Row), Column: math.Floor(c.Column), Zoom: c.Zoom}
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.3f, %.3f @%d)", c.Row, c.Column, c.Zoom)
}

// Projection converts between geographic locations and tile-pyramid
// coordinates.
type Projection interface {
	// Name returns the configuration name of the projection.
	Name() string
	// LocationCoordinate projects a location to a zoom-0 coordinate.
	LocationCoordinate(loc Location) Coordinate
	// CoordinateLocation unprojects a coordinate back to a location.
	CoordinateLocation(coord Coordinate) Location
}

// SphericalMercator is the usual web-map projection, one tile wide and one
// tile tall at zoom 0, latitude clamped to ±85.05113°.
type SphericalMercator struct{}

const mercatorLatLimit = 85.05112878

func (SphericalMercator) Name() string { return "spherical mercator" }

func (SphericalMercator) LocationCoordinate(loc Location) Coordinate {
	lat := math.Max(-mercatorLatLimit, math.Min(mercatorLatLimit, loc.Lat))
	rad := lat * math.Pi / 180
	col := (loc.Lon + 180) / 360
	row := (1 - math.Log(math.Tan(rad)+1/math.Cos(rad))/math.Pi) / 2
	// Latitudes at the clamp limit land a rounding error outside [0, 1];
	// pin the poles onto the pyramid edge.
	row = math.Max(0, math.Min(1, row))
	return Coordinate{Row: row, Column: col, Zoom: 0}
}

func (SphericalMercator) CoordinateLocation(coord Coordinate) Location {
	zeroed := coord.ZoomTo(0)
	lon := zeroed.Column*360 - 180
	n := math.Pi * (1 - 2*zeroed.Row)
	lat := 180 / math.Pi * math.Atan(math.Sinh(n))
	return Location{Lat: lat, Lon: lon}
}

// WGS84 is an unprojected plate carrée pyramid, two tiles wide and one tile
// tall at zoom 0.
type WGS84 struct{}

func (WGS84) Name() string { return "WGS84" }

func (WGS84) LocationCoordinate(loc Location) Coordinate {
	col := (loc.Lon + 180) / 180
	row := (90 - loc.Lat) / 180
	return Coordinate{Row: row, Column: col, Zoom: 0}
}

func (WGS84) CoordinateLocation(coord Coordinate) Location {
	zeroed := coord.ZoomTo(0)
	return Location{Lat: 90 - zeroed.Row*180, Lon: zeroed.Column*180 - 180}
}

// GetProjectionByName resolves a configuration projection name.
func GetProjectionByName(name string) (Projection, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "spherical mercator":
		return SphericalMercator{}, nil
	case "wgs84":
		return WGS84{}, nil
	default:
		return nil, fmt.Errorf("unknown projection: %s", name)
	}
}
