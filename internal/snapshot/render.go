// Package snapshot rasterises the overlays of a map view into an image.
package snapshot

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/gift"

	"github.com/MeKo-Tech/memorialmap/internal/engine"
	"github.com/MeKo-Tech/memorialmap/internal/mapview"
	"github.com/MeKo-Tech/memorialmap/internal/marker"
)

// Scene is one engine frame drawn at a pixel size.
type Scene struct {
	engine.Frame
	Width  int
	Height int
}

// Capture takes the current frame of e for a width x height viewport.
func Capture(e *engine.Engine, width, height int) (Scene, error) {
	f, err := e.Frame()
	if err != nil {
		return Scene{}, err
	}
	return Scene{Frame: f, Width: width, Height: height}, nil
}

// Options configures Render.
type Options struct {
	// Background is the paper colour under all overlays
	Background color.NRGBA
	// Scale resizes the output (default: 1)
	Scale float64
	// Glow is the blur sigma of the halo behind highlight outlines; 0 disables it
	Glow float32
	// MarkerRadius is the facility dot radius in pixels (default: 6)
	MarkerRadius float64
}

// DefaultOptions returns the default snapshot options.
func DefaultOptions() Options {
	return Options{
		Background:   color.NRGBA{R: 0xF4, G: 0xF1, B: 0xEA, A: 0xFF},
		Scale:        1,
		Glow:         2,
		MarkerRadius: 6,
	}
}

type layer int

const (
	layerFill layer = iota
	layerGlow
	layerStroke
	layerClusters
	layerMarkers
)

// layerOrder is the bottom-to-top compositing order.
var layerOrder = []layer{layerFill, layerGlow, layerStroke, layerClusters, layerMarkers}

var (
	clusterColor = color.NRGBA{R: 0x1E, G: 0x3A, B: 0x8A, A: 0xD9}
	white        = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
)

// Render draws the highlights, clusters and attached markers of s onto a
// background-filled image of the scene's size.
func Render(s Scene, opts Options) (*image.NRGBA, error) {
	w, h := s.Width, s.Height
	if w <= 0 || h <= 0 {
		return nil, errors.New("snapshot: scene has no size")
	}
	if opts.MarkerRadius <= 0 {
		opts.MarkerRadius = DefaultOptions().MarkerRadius
	}

	bounds := image.Rect(0, 0, w, h)
	proj := newProjector(s.Center, s.Zoom, w, h)

	layers := make(map[layer]*image.NRGBA)
	get := func(l layer) *image.NRGBA {
		if img, ok := layers[l]; ok {
			return img
		}
		img := image.NewNRGBA(bounds)
		layers[l] = img
		return img
	}

	for _, o := range s.Highlights {
		switch o := o.(type) {
		case *mapview.Polygon:
			drawShape(get, proj.polygonRings(o.Geometry), o.Style)
		case *mapview.Circle:
			cx, cy := proj.toPx(o.Center.Lng, o.Center.Lat)
			r := proj.metersToPx(o.RadiusMeters, o.Center.Lat)
			drawShape(get, [][]pt{circleRing(cx, cy, r)}, o.Style)
		}
	}

	for _, c := range s.Clusters {
		cx, cy := proj.toPx(c.Center.Lng, c.Center.Lat)
		r := 12 + 4*math.Log10(float64(max(c.Count, 1)))
		img := get(layerClusters)
		drawDisc(img, cx, cy, r+1.5, white)
		drawDisc(img, cx, cy, r, clusterColor)
	}

	for _, m := range s.Markers {
		if !m.Attached {
			continue
		}
		cx, cy := proj.toPx(m.Position.Lng, m.Position.Lat)
		img := get(layerMarkers)
		drawDisc(img, cx, cy, opts.MarkerRadius+1.5, white)
		drawDisc(img, cx, cy, opts.MarkerRadius, mustHex(marker.CategoryColor(m.Category), 1))
	}

	if stroke, ok := layers[layerStroke]; ok && opts.Glow > 0 {
		layers[layerGlow] = blur(stroke, opts.Glow)
	}

	dst := image.NewNRGBA(bounds)
	fill(dst, opts.Background)
	for _, l := range layerOrder {
		if img := layers[l]; img != nil {
			alphaOver(dst, img)
		}
	}

	if opts.Scale > 0 && opts.Scale != 1 {
		return resize(dst, opts.Scale), nil
	}
	return dst, nil
}

func drawShape(get func(layer) *image.NRGBA, rings [][]pt, style mapview.Style) {
	if len(rings) == 0 {
		return
	}
	if style.FillOpacity > 0 {
		fillRings(get(layerFill), rings, mustHex(style.FillColor, style.FillOpacity))
	}
	if style.StrokeWeight > 0 && style.StrokeOpacity > 0 {
		img := get(layerStroke)
		c := mustHex(style.StrokeColor, style.StrokeOpacity)
		for _, ring := range rings {
			strokeRing(img, ring, style.StrokeWeight, c)
		}
	}
}

func blur(src *image.NRGBA, sigma float32) *image.NRGBA {
	g := gift.New(gift.GaussianBlur(sigma))
	dst := image.NewNRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}

func resize(src *image.NRGBA, scale float64) *image.NRGBA {
	w := int(math.Round(float64(src.Bounds().Dx()) * scale))
	g := gift.New(gift.Resize(max(w, 1), 0, gift.LinearResampling))
	dst := image.NewNRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}

func fill(dst *image.NRGBA, c color.NRGBA) {
	for i := 0; i < len(dst.Pix); i += 4 {
		dst.Pix[i+0] = c.R
		dst.Pix[i+1] = c.G
		dst.Pix[i+2] = c.B
		dst.Pix[i+3] = c.A
	}
}

func alphaOver(dst, src *image.NRGBA) {
	bounds := dst.Bounds()

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			s := src.NRGBAAt(x, y)
			if s.A == 0 {
				continue
			}

			d := dst.NRGBAAt(x, y)

			sa := float64(s.A) / 255.0
			da := float64(d.A) / 255.0

			outA := sa + da*(1.0-sa)
			if outA == 0 {
				dst.SetNRGBA(x, y, color.NRGBA{})
				continue
			}

			blend := func(srcVal, dstVal uint8) uint8 {
				srcPremult := float64(srcVal) * sa
				dstPremult := float64(dstVal) * da
				outPremult := srcPremult + dstPremult*(1.0-sa)
				return uint8(math.Round(outPremult / outA))
			}

			dst.SetNRGBA(x, y, color.NRGBA{
				R: blend(s.R, d.R),
				G: blend(s.G, d.G),
				B: blend(s.B, d.B),
				A: uint8(math.Round(outA * 255.0)),
			})
		}
	}
}
