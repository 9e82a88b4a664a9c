package mapview

import (
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/MeKo-Tech/memorialmap/internal/types"
)

const (
	earthRadius = 6378137.0 // meters
	tileSize    = 256.0

	DefaultWidth  = 1024
	DefaultHeight = 768
	DefaultZoom   = 7
	MinZoom       = 1
	MaxZoom       = 21
)

// DefaultCenter is roughly the middle of South Korea.
var DefaultCenter = types.LatLng{Lat: 36.5, Lng: 127.8}

// Move records one viewport change made through SetCenter or MorphTo.
type Move struct {
	Center   types.LatLng
	Zoom     int
	Animated bool
}

// Canvas is a headless Map. It keeps viewport state and the attached overlays
// in attach order, which is what the HTTP service and the snapshot renderer
// read back.
type Canvas struct {
	mu        sync.RWMutex
	center    types.LatLng
	zoom      int
	bounds    types.Bounds
	width     int
	height    int
	overlays  []Overlay
	index     map[Overlay]int
	moves     []Move
	ready     chan struct{}
	readyOnce sync.Once
}

// NewCanvas creates a canvas of width x height pixels centred on center.
// The canvas is not ready until MarkReady is called.
func NewCanvas(width, height int, center types.LatLng, zoom int) *Canvas {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	c := &Canvas{
		width:  width,
		height: height,
		index:  make(map[Overlay]int),
		ready:  make(chan struct{}),
	}
	c.setView(center, clampZoom(zoom))
	return c
}

// MarkReady resolves the readiness future. Safe to call more than once.
func (c *Canvas) MarkReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

func (c *Canvas) Ready() <-chan struct{} {
	return c.ready
}

func (c *Canvas) Bounds() types.Bounds {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bounds
}

func (c *Canvas) Zoom() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.zoom
}

func (c *Canvas) Center() types.LatLng {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.center
}

// Size returns the viewport size in pixels.
func (c *Canvas) Size() (width, height int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.width, c.height
}

func (c *Canvas) SetCenter(center types.LatLng, zoom int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setView(center, clampZoom(zoom))
	c.moves = append(c.moves, Move{Center: center, Zoom: c.zoom})
}

func (c *Canvas) MorphTo(center types.LatLng, zoom int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setView(center, clampZoom(zoom))
	c.moves = append(c.moves, Move{Center: center, Zoom: c.zoom, Animated: true})
}

// SetView applies a viewport reported by a client. The bounds are taken as-is;
// the center follows from them.
func (c *Canvas) SetView(b types.Bounds, zoom int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bounds = b
	c.center = b.Center()
	c.zoom = clampZoom(zoom)
}

// Moves returns the viewport changes made so far.
func (c *Canvas) Moves() []Move {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Move, len(c.moves))
	copy(out, c.moves)
	return out
}

func (c *Canvas) Attach(o Overlay) {
	if o == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.index[o]; ok {
		return
	}
	c.index[o] = len(c.overlays)
	c.overlays = append(c.overlays, o)
}

func (c *Canvas) Detach(o Overlay) {
	if o == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[o]
	if !ok {
		return
	}
	delete(c.index, o)
	c.overlays = append(c.overlays[:i], c.overlays[i+1:]...)
	for j := i; j < len(c.overlays); j++ {
		c.index[c.overlays[j]] = j
	}
}

// Overlays returns the attached overlays in attach order.
func (c *Canvas) Overlays() []Overlay {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Overlay, len(c.overlays))
	copy(out, c.overlays)
	return out
}

// OverlaysOf returns the attached overlays of one kind.
func (c *Canvas) OverlaysOf(kind Kind) []Overlay {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Overlay
	for _, o := range c.overlays {
		if o.Kind() == kind {
			out = append(out, o)
		}
	}
	return out
}

// Attached reports whether o is currently on the canvas.
func (c *Canvas) Attached(o Overlay) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.index[o]
	return ok
}

// setView recomputes bounds from center, zoom and pixel size. Caller holds mu.
func (c *Canvas) setView(center types.LatLng, zoom int) {
	c.center = center
	c.zoom = zoom
	c.bounds = ViewportBounds(center, zoom, c.width, c.height)
}

// MetersPerPixel returns the Web Mercator ground resolution at zoom (equator).
func MetersPerPixel(zoom int) float64 {
	return 2 * math.Pi * earthRadius / (tileSize * math.Exp2(float64(zoom)))
}

// ViewportBounds computes the lat/lng rectangle of a width x height pixel
// viewport centred on center at zoom.
func ViewportBounds(center types.LatLng, zoom, width, height int) types.Bounds {
	mpp := MetersPerPixel(zoom)
	mc := project.WGS84.ToMercator(center.Point())

	halfW := float64(width) / 2 * mpp
	halfH := float64(height) / 2 * mpp

	sw := project.Mercator.ToWGS84(orb.Point{mc.X() - halfW, mc.Y() - halfH})
	ne := project.Mercator.ToWGS84(orb.Point{mc.X() + halfW, mc.Y() + halfH})

	return types.Bounds{
		South: sw.Lat(),
		West:  sw.Lon(),
		North: ne.Lat(),
		East:  ne.Lon(),
	}
}

func clampZoom(z int) int {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}
