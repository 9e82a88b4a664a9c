package region

import (
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/MeKo-Tech/memorialmap/internal/mapview"
	"github.com/MeKo-Tech/memorialmap/internal/types"
)

// HighlightStyle is the fixed style of every highlight overlay. The fill is
// nearly transparent so markers underneath stay legible.
var HighlightStyle = mapview.Style{
	FillColor:     "#3B82F6",
	FillOpacity:   0.08,
	StrokeColor:   "#2563EB",
	StrokeOpacity: 0.9,
	StrokeWeight:  2,
}

// HighlightConfig configures a Highlighter.
type HighlightConfig struct {
	// CityRadius is the fallback circle radius for city-level requests (default: 8000m)
	CityRadius float64
	// DistrictRadius is the fallback circle radius for districts (default: 3000m)
	DistrictRadius float64
	// SubdistrictRadius is the fallback circle radius for sub-districts (default: 1000m)
	SubdistrictRadius float64
	Style             mapview.Style
	Logger            *slog.Logger
}

// DefaultHighlightConfig returns the default highlight configuration.
func DefaultHighlightConfig() HighlightConfig {
	return HighlightConfig{
		CityRadius:        8000,
		DistrictRadius:    3000,
		SubdistrictRadius: 1000,
		Style:             HighlightStyle,
	}
}

// Highlighter draws region highlights. It owns its overlays exclusively and
// keeps at most one highlight set on the map.
type Highlighter struct {
	store    *Store
	cfg      HighlightConfig
	logger   *slog.Logger
	overlays []mapview.Overlay
}

// NewHighlighter creates a highlighter over store. A nil or empty store is
// valid: every request then draws the circle fallback.
func NewHighlighter(store *Store, cfg HighlightConfig) *Highlighter {
	def := DefaultHighlightConfig()
	if cfg.CityRadius <= 0 {
		cfg.CityRadius = def.CityRadius
	}
	if cfg.DistrictRadius <= 0 {
		cfg.DistrictRadius = def.DistrictRadius
	}
	if cfg.SubdistrictRadius <= 0 {
		cfg.SubdistrictRadius = def.SubdistrictRadius
	}
	if cfg.Style == (mapview.Style{}) {
		cfg.Style = def.Style
	}
	return &Highlighter{store: store, cfg: cfg, logger: cfg.Logger}
}

func (h *Highlighter) log() *slog.Logger {
	if h.logger != nil {
		return h.logger
	}
	return slog.Default()
}

// Highlight clears the previous highlight, morphs the map to the target and
// draws the best available overlay for the region. It returns the overlays it
// drew, which is never empty.
func (h *Highlighter) Highlight(m mapview.Map, lat, lng float64, zoom int, typ RegionType, name string) []mapview.Overlay {
	h.Clear(m)

	target := types.LatLng{Lat: lat, Lng: lng}
	m.MorphTo(target, zoom)

	p := target.Point()
	switch {
	case typ == TypeDistrict && name != "":
		if f, ok := Nearest(h.store.DistrictCandidates(name), p); ok {
			h.draw(m, &mapview.Polygon{Name: f.Name, Geometry: f.Geometry, Style: h.cfg.Style})
			return h.Overlays()
		}
	case typ == TypeSubdistrict && name != "":
		if candidates := h.store.SubdistrictCandidates(name); len(candidates) > 0 {
			if near := h.store.Near(candidates, p); len(near) > 0 {
				h.drawMerged(m, Normalize(name), near)
				return h.Overlays()
			}
			h.log().Debug("Subdistrict namesakes rejected by proximity",
				"name", name, "candidates", len(candidates))
		}
	}

	h.log().Debug("No boundary for region, drawing circle", "type", typ, "name", name)
	h.draw(m, &mapview.Circle{Center: target, RadiusMeters: h.radius(typ), Style: h.cfg.Style})
	return h.Overlays()
}

// drawMerged draws the union of features, or each feature on its own when
// the union fails.
func (h *Highlighter) drawMerged(m mapview.Map, name string, features []Feature) {
	if len(features) == 1 {
		f := features[0]
		h.draw(m, &mapview.Polygon{Name: f.Name, Geometry: f.Geometry, Style: h.cfg.Style})
		return
	}

	parts := make([]orb.MultiPolygon, len(features))
	for i, f := range features {
		parts[i] = f.Geometry
	}
	merged, err := Union(parts)
	if err == nil {
		h.draw(m, &mapview.Polygon{Name: name, Geometry: merged, Style: h.cfg.Style})
		return
	}

	h.log().Warn("Polygon union failed, drawing parts individually",
		"name", name, "parts", len(features), "error", err)
	for _, f := range features {
		h.draw(m, &mapview.Polygon{Name: f.Name, Geometry: f.Geometry, Style: h.cfg.Style})
	}
}

func (h *Highlighter) radius(typ RegionType) float64 {
	switch typ {
	case TypeCity:
		return h.cfg.CityRadius
	case TypeDistrict:
		return h.cfg.DistrictRadius
	default:
		return h.cfg.SubdistrictRadius
	}
}

func (h *Highlighter) draw(m mapview.Map, o mapview.Overlay) {
	m.Attach(o)
	h.overlays = append(h.overlays, o)
}

// Clear removes every overlay drawn by the last Highlight call. It is safe to
// call with nothing drawn.
func (h *Highlighter) Clear(m mapview.Map) {
	if m != nil {
		for _, o := range h.overlays {
			m.Detach(o)
		}
	}
	h.overlays = nil
}

// Overlays returns the currently drawn highlight overlays.
func (h *Highlighter) Overlays() []mapview.Overlay {
	out := make([]mapview.Overlay, len(h.overlays))
	copy(out, h.overlays)
	return out
}
