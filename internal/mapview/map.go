// Package mapview defines the map surface the engine draws on and a headless
// implementation of it.
package mapview

import (
	"github.com/paulmach/orb"

	"github.com/MeKo-Tech/memorialmap/internal/types"
)

// Map is the subset of a map provider the engine relies on.
type Map interface {
	// Ready is closed once the provider finished loading.
	Ready() <-chan struct{}
	Bounds() types.Bounds
	Zoom() int
	Center() types.LatLng
	// SetCenter moves the viewport immediately.
	SetCenter(c types.LatLng, zoom int)
	// MorphTo moves the viewport with an animated transition.
	MorphTo(c types.LatLng, zoom int)
	Attach(o Overlay)
	Detach(o Overlay)
}

// IsReady reports whether m is non-nil and has finished loading.
func IsReady(m Map) bool {
	if m == nil {
		return false
	}
	select {
	case <-m.Ready():
		return true
	default:
		return false
	}
}

// Kind identifies an overlay type
type Kind string

const (
	KindMarker  Kind = "marker"
	KindCluster Kind = "cluster"
	KindPolygon Kind = "polygon"
	KindCircle  Kind = "circle"
)

// Overlay is anything that can be attached to a Map.
type Overlay interface {
	Kind() Kind
}

// Clickable overlays dispatch click events to their listener.
type Clickable interface {
	Overlay
	Click() bool
}

// Style is the drawing style of a shape overlay.
type Style struct {
	FillColor     string  `json:"fillColor"`
	FillOpacity   float64 `json:"fillOpacity"`
	StrokeColor   string  `json:"strokeColor"`
	StrokeOpacity float64 `json:"strokeOpacity"`
	StrokeWeight  float64 `json:"strokeWeight"`
}

// Polygon is a filled area overlay.
type Polygon struct {
	Name     string
	Geometry orb.MultiPolygon
	Style    Style
}

func (*Polygon) Kind() Kind { return KindPolygon }

// Circle is a filled circle overlay with a radius in meters.
type Circle struct {
	Center       types.LatLng
	RadiusMeters float64
	Style        Style
}

func (*Circle) Kind() Kind { return KindCircle }
