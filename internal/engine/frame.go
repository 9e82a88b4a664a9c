package engine

import (
	"github.com/MeKo-Tech/memorialmap/internal/cluster"
	"github.com/MeKo-Tech/memorialmap/internal/mapview"
	"github.com/MeKo-Tech/memorialmap/internal/marker"
	"github.com/MeKo-Tech/memorialmap/internal/types"
)

// MarkerView is a copy of one rendered marker.
type MarkerView struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Address  string         `json:"address,omitempty"`
	Category types.Category `json:"category"`
	Position types.LatLng   `json:"position"`
	Label    string         `json:"label"`
	// Attached is false for markers folded into a cluster.
	Attached bool `json:"attached"`
}

// ClusterView is a copy of one cluster on the map.
type ClusterView struct {
	Center types.LatLng `json:"center"`
	Count  int          `json:"count"`
	Label  [2]string    `json:"label"`
}

// Frame is everything an engine shows at one instant. It shares no mutable
// state with the engine and may be read from any goroutine.
type Frame struct {
	Center    types.LatLng
	Zoom      int
	Bounds    types.Bounds
	Displayed int
	Markers   []MarkerView
	Clusters  []ClusterView
	// Highlights are never modified once drawn, so the overlays are shared.
	Highlights []mapview.Overlay
}

// Frame captures the current viewport, markers, clusters and highlights in
// one critical section.
func (e *Engine) Frame() (Frame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Frame{}, ErrClosed
	}

	f := Frame{
		Displayed:  e.displayIndex().Len(),
		Markers:    markerViews(e.markers.Rendered()),
		Clusters:   clusterViews(e.clusters.Clusters()),
		Highlights: e.highlighter.Overlays(),
	}
	if e.m != nil {
		f.Center = e.m.Center()
		f.Zoom = e.m.Zoom()
		f.Bounds = e.m.Bounds()
	}
	return f, nil
}

// Markers returns copies of the markers rendered by the last update.
func (e *Engine) Markers() []MarkerView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return markerViews(e.markers.Rendered())
}

// Clusters returns copies of the clusters currently on the map.
func (e *Engine) Clusters() []ClusterView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return clusterViews(e.clusters.Clusters())
}

func markerViews(handles []*marker.Handle) []MarkerView {
	out := make([]MarkerView, 0, len(handles))
	for _, h := range handles {
		out = append(out, MarkerView{
			ID:       h.Facility.ID,
			Name:     h.Facility.Name,
			Address:  h.Facility.Address,
			Category: h.Facility.Category,
			Position: h.Position,
			Label:    h.Label,
			Attached: h.Attached(),
		})
	}
	return out
}

func clusterViews(clusters []*cluster.Cluster) []ClusterView {
	out := make([]ClusterView, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, ClusterView{Center: c.Center, Count: c.Count(), Label: c.Label})
	}
	return out
}
