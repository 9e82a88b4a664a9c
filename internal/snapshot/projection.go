package snapshot

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"github.com/MeKo-Tech/memorialmap/internal/mapview"
	"github.com/MeKo-Tech/memorialmap/internal/types"
)

const tileSize = 256

// projector maps WGS84 lon/lat to local pixel coordinates of a viewport:
// global pixel space at the zoom, shifted by the viewport's top-left corner.
type projector struct {
	zoom    int
	offsetX float64
	offsetY float64
}

func newProjector(center types.LatLng, zoom, width, height int) projector {
	p := projector{zoom: zoom}
	cx, cy := p.global(center.Lng, center.Lat)
	p.offsetX = cx - float64(width)/2
	p.offsetY = cy - float64(height)/2
	return p
}

// global returns WebMercator global pixel coordinates at the projector's zoom.
func (p projector) global(lon, lat float64) (float64, float64) {
	f := maptile.Fraction(orb.Point{lon, lat}, maptile.Zoom(p.zoom))
	return f.X() * tileSize, f.Y() * tileSize
}

func (p projector) toPx(lon, lat float64) (float64, float64) {
	x, y := p.global(lon, lat)
	return x - p.offsetX, y - p.offsetY
}

// metersToPx converts a ground distance at latitude lat to pixels.
func (p projector) metersToPx(meters, lat float64) float64 {
	mpp := mapview.MetersPerPixel(p.zoom) * math.Cos(lat*math.Pi/180.0)
	if mpp <= 0 {
		return 0
	}
	return meters / mpp
}
