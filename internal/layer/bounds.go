package layer

import (
	"fmt"

	"tilegarden/internal/geo"
)

// Bounds is an inclusive coordinate bounding box for tiles: UpperLeftHigh is
// the left-most column, upper-most row and highest zoom level; LowerRightLow
// is the right-most column, furthest-down row and lowest zoom level.
type Bounds struct {
	UpperLeftHigh geo.Coordinate
	LowerRightLow geo.Coordinate
}

// Excludes reports whether the tile falls outside the bounds. Because a tile
// covers an area rather than a point, its own corner is checked against the
// coarse bound and its far corner against the fine bound, each reprojected to
// that bound's zoom level.
func (b *Bounds) Excludes(tile geo.Coordinate) bool {
	if tile.Zoom > b.UpperLeftHigh.Zoom {
		// too zoomed-in
		return true
	}
	if tile.Zoom < b.LowerRightLow.Zoom {
		// too zoomed-out
		return true
	}

	// check the top-left tile corner against the lower-right bound
	coarse := tile.ZoomTo(b.LowerRightLow.Zoom)
	if coarse.Column > b.LowerRightLow.Column {
		// too far right
		return true
	}
	if coarse.Row > b.LowerRightLow.Row {
		// too far down
		return true
	}

	// check the bottom-right tile corner against the upper-left bound
	fine := tile.Right().Down().ZoomTo(b.UpperLeftHigh.Zoom)
	if fine.Column < b.UpperLeftHigh.Column {
		// too far left
		return true
	}
	if fine.Row < b.UpperLeftHigh.Row {
		// too far up
		return true
	}

	return false
}

func (b *Bounds) String() string {
	return fmt.Sprintf("Bound %s - %s", b.UpperLeftHigh, b.LowerRightLow)
}
