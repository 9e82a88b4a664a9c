package snapshot

import (
	"image"
	"image/color"
	"math"

	"github.com/paulmach/orb"
	"golang.org/x/image/vector"
)

type pt struct{ x, y float64 }

// fillRings fills the rings with the non-zero winding rule, so holes must be
// wound opposite to their outer ring.
func fillRings(dst *image.NRGBA, rings [][]pt, c color.NRGBA) {
	b := dst.Bounds()
	ras := vector.NewRasterizer(b.Dx(), b.Dy())
	drawn := false
	for _, ring := range rings {
		if len(ring) < 3 {
			continue
		}
		ras.MoveTo(float32(ring[0].x), float32(ring[0].y))
		for _, p := range ring[1:] {
			ras.LineTo(float32(p.x), float32(p.y))
		}
		ras.ClosePath()
		drawn = true
	}
	if drawn {
		ras.Draw(dst, b, image.NewUniform(c), image.Point{})
	}
}

// strokeRing traces a closed ring with discs of the given width.
func strokeRing(dst *image.NRGBA, ring []pt, width float64, c color.NRGBA) {
	if len(ring) < 2 {
		return
	}
	closed := append(append([]pt(nil), ring...), ring[0])
	strokeLine(dst, closed, width, c)
}

func strokeLine(dst *image.NRGBA, line []pt, width float64, c color.NRGBA) {
	radius := width / 2.0
	step := 0.75
	if width >= 5 {
		step = 0.9
	}

	for i := 0; i < len(line)-1; i++ {
		x0, y0 := line[i].x, line[i].y
		dx := line[i+1].x - x0
		dy := line[i+1].y - y0
		segLen := math.Hypot(dx, dy)
		if segLen == 0 {
			drawDisc(dst, x0, y0, radius, c)
			continue
		}

		steps := int(math.Ceil(segLen / step))
		for s := 0; s <= steps; s++ {
			t := float64(s) / float64(steps)
			drawDisc(dst, x0+dx*t, y0+dy*t, radius, c)
		}
	}
}

// drawDisc paints a solid disc. Pixels are replaced, not blended, so
// overlapping stamps of one stroke do not accumulate alpha.
func drawDisc(dst *image.NRGBA, cx, cy, radius float64, c color.NRGBA) {
	b := dst.Bounds()
	minX := max(int(math.Floor(cx-radius)), b.Min.X)
	maxX := min(int(math.Ceil(cx+radius)), b.Max.X-1)
	minY := max(int(math.Floor(cy-radius)), b.Min.Y)
	maxY := min(int(math.Ceil(cy+radius)), b.Max.Y-1)

	r2 := radius * radius
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			dx := (float64(x) + 0.5) - cx
			dy := (float64(y) + 0.5) - cy
			if dx*dx+dy*dy <= r2 {
				dst.SetNRGBA(x, y, c)
			}
		}
	}
}

// circleRing approximates a circle of radius r pixels.
func circleRing(cx, cy, r float64) []pt {
	n := 64
	if r < 8 {
		n = 24
	}
	ring := make([]pt, n)
	for i := range ring {
		a := 2 * math.Pi * float64(i) / float64(n)
		ring[i] = pt{cx + r*math.Cos(a), cy + r*math.Sin(a)}
	}
	return ring
}

func (p projector) ring(r orb.Ring) []pt {
	out := make([]pt, len(r))
	for i, q := range r {
		x, y := p.toPx(q.Lon(), q.Lat())
		out[i] = pt{x, y}
	}
	return out
}

// polygonRings projects a multipolygon, reversing holes so that non-zero
// filling leaves them open regardless of source winding.
func (p projector) polygonRings(mp orb.MultiPolygon) [][]pt {
	var rings [][]pt
	for _, poly := range mp {
		for i, r := range poly {
			if len(r) < 3 {
				continue
			}
			proj := p.ring(r)
			ccw := r.Orientation() == orb.CCW
			if (i == 0) != ccw {
				reverse(proj)
			}
			rings = append(rings, proj)
		}
	}
	return rings
}

func reverse(ring []pt) {
	for i, j := 0, len(ring)-1; i < j; i, j = i+1, j-1 {
		ring[i], ring[j] = ring[j], ring[i]
	}
}
