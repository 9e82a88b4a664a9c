package cluster

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/memorialmap/internal/mapview"
	"github.com/MeKo-Tech/memorialmap/internal/marker"
)

// Config configures the adapter.
type Config struct {
	// MaxZoom disengages clustering above this zoom (default: 15)
	MaxZoom int
	// MinClusterSize is the smallest group drawn as a cluster (default: 1)
	MinClusterSize int
	// Clusterer groups markers; nil attaches markers directly
	Clusterer Clusterer
	Logger    *slog.Logger
}

// DefaultMaxZoom is the zoom above which markers are shown individually.
const DefaultMaxZoom = 15

// Adapter rebuilds the clustering of a map on every Apply. It implements
// marker.Renderer.
type Adapter struct {
	cfg      Config
	clusters []*Cluster
	singles  []*marker.Handle
	logger   *slog.Logger
}

// NewAdapter creates an adapter.
func NewAdapter(cfg Config) *Adapter {
	if cfg.MaxZoom <= 0 {
		cfg.MaxZoom = DefaultMaxZoom
	}
	if cfg.MinClusterSize <= 0 {
		cfg.MinClusterSize = 1
	}
	return &Adapter{cfg: cfg, logger: cfg.Logger}
}

// Apply destroys the previous clustering and builds a new one for markers.
func (a *Adapter) Apply(m mapview.Map, markers []*marker.Handle) {
	a.Destroy(m)
	if m == nil {
		return
	}

	zoom := m.Zoom()
	if a.cfg.Clusterer == nil || zoom > a.cfg.MaxZoom {
		if a.cfg.Clusterer == nil {
			a.log().Debug("no clusterer configured, attaching markers directly", "markers", len(markers))
		}
		a.attachSingles(m, markers)
		return
	}

	for _, c := range a.cfg.Clusterer.Cluster(zoom, markers) {
		if len(c.Members) < a.cfg.MinClusterSize {
			a.attachSingles(m, c.Members)
			continue
		}
		c.Label = [2]string{
			PlaceName(c.Members[0].Facility.Address, zoom),
			fmt.Sprintf("%d곳", len(c.Members)),
		}
		c.Icon = ClusterIcon(c.Label, len(c.Members))
		m.Attach(c)
		a.clusters = append(a.clusters, c)
	}
}

func (a *Adapter) attachSingles(m mapview.Map, markers []*marker.Handle) {
	for _, h := range markers {
		h.AttachTo(m)
		a.singles = append(a.singles, h)
	}
}

// Destroy removes every overlay the adapter attached.
func (a *Adapter) Destroy(m mapview.Map) {
	if m != nil {
		for _, c := range a.clusters {
			m.Detach(c)
		}
	}
	for _, h := range a.singles {
		h.Detach()
	}
	a.clusters = nil
	a.singles = nil
}

// Clusters returns the clusters currently on the map.
func (a *Adapter) Clusters() []*Cluster {
	out := make([]*Cluster, len(a.clusters))
	copy(out, a.clusters)
	return out
}

func (a *Adapter) log() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return slog.Default()
}
