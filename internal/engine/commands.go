package engine

import (
	"github.com/MeKo-Tech/memorialmap/internal/mapview"
	"github.com/MeKo-Tech/memorialmap/internal/region"
	"github.com/MeKo-Tech/memorialmap/internal/types"
)

// Commands is the host-facing control surface of an engine. It is a small
// value and may be copied freely.
type Commands struct {
	e *Engine
}

// Commands returns the command handle of e.
func (e *Engine) Commands() Commands {
	return Commands{e: e}
}

// PanTo recenters the map. With a zoom the move is animated, without one the
// current zoom is kept. Markers follow the new viewport before it returns.
// It is a no-op until the map is ready.
func (c Commands) PanTo(lat, lng float64, zoom *int) error {
	e := c.e
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if !mapview.IsReady(e.m) {
		e.mu.Unlock()
		e.log().Debug("Map not ready, ignoring pan")
		return nil
	}

	target := types.LatLng{Lat: lat, Lng: lng}
	if zoom != nil {
		e.m.MorphTo(target, *zoom)
	} else {
		e.m.SetCenter(target, e.m.Zoom())
	}
	notify := e.settle()
	e.mu.Unlock()

	notify()
	return nil
}

// HighlightRegion replaces the current highlight with the region around
// (lat, lng) and re-renders markers for the viewport it moved to. It never
// fails on a lookup miss; the circle fallback is drawn instead. It returns
// the overlays drawn.
func (c Commands) HighlightRegion(lat, lng float64, zoom int, typ region.RegionType, name string) ([]mapview.Overlay, error) {
	e := c.e
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	if !mapview.IsReady(e.m) {
		e.mu.Unlock()
		e.log().Debug("Map not ready, ignoring highlight")
		return nil, nil
	}

	drawn := e.highlighter.Highlight(e.m, lat, lng, zoom, typ, name)
	if e.cfg.Observer != nil && len(drawn) > 0 {
		e.cfg.Observer.ObserveHighlight(drawn[0].Kind())
	}
	notify := e.settle()
	e.mu.Unlock()

	notify()
	return drawn, nil
}

// SearchRegion resolves keyword to a region without touching the map.
// region.ErrNoMatch reports a miss.
func (c Commands) SearchRegion(keyword string) (region.Match, error) {
	e := c.e
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return region.Match{}, ErrClosed
	}
	return e.regions.Search(keyword)
}
