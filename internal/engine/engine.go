// Package engine composes coordinate de-duplication, viewport marker
// virtualisation, clustering and region highlighting into one map view engine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/memorialmap/internal/cluster"
	"github.com/MeKo-Tech/memorialmap/internal/dedup"
	"github.com/MeKo-Tech/memorialmap/internal/mapview"
	"github.com/MeKo-Tech/memorialmap/internal/marker"
	"github.com/MeKo-Tech/memorialmap/internal/region"
	"github.com/MeKo-Tech/memorialmap/internal/types"
)

// ErrClosed is returned by every call on a closed engine.
var ErrClosed = errors.New("engine: closed")

// Observer receives engine events, e.g. for metrics. Methods are called with
// the engine lock held and must not call back into the engine.
type Observer interface {
	ObserveUpdate(visible, clusters int, elapsed time.Duration)
	ObserveHighlight(kind mapview.Kind)
}

// Config configures an Engine.
type Config struct {
	// InitialRenderCap limits the first render to the head of the list (default: 30)
	InitialRenderCap int
	// WidenDelay is how long after Attach the cap is lifted (default: 500ms)
	WidenDelay time.Duration
	// BaseRadius is the first dedup ring radius in degrees (default: 0.0003)
	BaseRadius float64
	// MaxVisible caps markers per update (default: 500)
	MaxVisible int

	Clustering cluster.Config
	Highlight  region.HighlightConfig

	// OnMarkerClick is called with the facility behind a clicked marker.
	OnMarkerClick func(types.Facility)
	// OnBoundsChanged is called once per idle event with the viewport bounds.
	OnBoundsChanged func(types.Bounds)

	Observer Observer
	Logger   *slog.Logger
}

// DefaultConfig returns the default engine configuration with grid
// clustering enabled.
func DefaultConfig() Config {
	return Config{
		InitialRenderCap: 30,
		WidenDelay:       500 * time.Millisecond,
		BaseRadius:       dedup.DefaultBaseRadius,
		MaxVisible:       marker.DefaultMaxVisible,
		Clustering: cluster.Config{
			MaxZoom:        cluster.DefaultMaxZoom,
			MinClusterSize: 1,
			Clusterer:      cluster.GridClusterer{GridSize: cluster.DefaultGridSize},
		},
		Highlight: region.DefaultHighlightConfig(),
	}
}

// Engine is one map view. All methods serialise on a single lock, so the
// engine behaves like a single-threaded event loop from the caller's side.
type Engine struct {
	mu sync.Mutex

	cfg         Config
	logger      *slog.Logger
	registry    *dedup.Registry
	markers     *marker.Manager
	clusters    *cluster.Adapter
	regions     *region.Store
	highlighter *region.Highlighter

	m          mapview.Map
	facilities []types.Facility
	capped     bool
	widen      *time.Timer
	closed     bool

	// memoised display list for (facilities, capped)
	index *marker.Index

	clicked *types.Facility
}

// New creates an engine over the given boundary store. regions may be nil, in
// which case every highlight uses the circle fallback.
func New(regions *region.Store, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.InitialRenderCap <= 0 {
		cfg.InitialRenderCap = def.InitialRenderCap
	}
	if cfg.WidenDelay <= 0 {
		cfg.WidenDelay = def.WidenDelay
	}
	if cfg.Clustering.Logger == nil {
		cfg.Clustering.Logger = cfg.Logger
	}
	if cfg.Highlight.Logger == nil {
		cfg.Highlight.Logger = cfg.Logger
	}

	adapter := cluster.NewAdapter(cfg.Clustering)
	return &Engine{
		cfg:      cfg,
		logger:   cfg.Logger,
		registry: dedup.NewRegistry(cfg.BaseRadius),
		markers: marker.NewManager(marker.Config{
			MaxVisible: cfg.MaxVisible,
			Renderer:   adapter,
			Logger:     cfg.Logger,
		}),
		clusters:    adapter,
		regions:     regions,
		highlighter: region.NewHighlighter(regions, cfg.Highlight),
		capped:      true,
	}
}

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

// Attach waits until m is ready, binds the engine to it and renders. The
// initial render is limited to InitialRenderCap facilities; the full list
// follows after WidenDelay.
func (e *Engine) Attach(ctx context.Context, m mapview.Map) error {
	if m == nil {
		return errors.New("engine: nil map")
	}

	select {
	case <-m.Ready():
	case <-ctx.Done():
		return fmt.Errorf("waiting for map: %w", ctx.Err())
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	e.m = m
	if e.widen == nil && e.capped {
		e.widen = time.AfterFunc(e.cfg.WidenDelay, e.widenCap)
	}
	e.update()
	return nil
}

func (e *Engine) widenCap() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !e.capped {
		return
	}
	e.capped = false
	e.index = nil
	e.log().Debug("Render cap lifted", "facilities", len(e.facilities))
	e.update()
}

// SetFacilities replaces the facility list wholesale and re-renders.
func (e *Engine) SetFacilities(facilities []types.Facility) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	e.facilities = append([]types.Facility(nil), facilities...)
	e.index = nil
	e.update()
	return nil
}

// Idle handles a pan/zoom-settle event: markers are recomputed for the
// current bounds and OnBoundsChanged is notified.
func (e *Engine) Idle() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	notify := e.settle()
	e.mu.Unlock()

	notify()
	return nil
}

// settle re-renders for the current viewport. The returned func notifies
// OnBoundsChanged and must be called after e.mu is released.
func (e *Engine) settle() func() {
	e.update()
	cb := e.cfg.OnBoundsChanged
	if cb == nil || !mapview.IsReady(e.m) {
		return func() {}
	}
	bounds := e.m.Bounds()
	return func() { cb(bounds) }
}

// Click dispatches a click on the marker of facility id. It reports whether a
// rendered marker handled the click.
func (e *Engine) Click(id string) (types.Facility, bool, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return types.Facility{}, false, ErrClosed
	}
	e.clicked = nil
	if h, ok := e.markers.Lookup(id); ok {
		h.Click()
	}
	clicked := e.clicked
	e.clicked = nil
	e.mu.Unlock()

	if clicked == nil {
		return types.Facility{}, false, nil
	}
	if e.cfg.OnMarkerClick != nil {
		e.cfg.OnMarkerClick(*clicked)
	}
	return *clicked, true, nil
}

// onMarkerClick runs inside Click with the lock held; the host callback is
// invoked after the lock is released.
func (e *Engine) onMarkerClick(f types.Facility) {
	e.clicked = &f
}

// update runs one render cycle. Callers hold e.mu.
func (e *Engine) update() {
	if !mapview.IsReady(e.m) {
		e.log().Debug("Map not ready, deferring render")
		return
	}

	start := time.Now()
	rendered := e.markers.Update(e.m, e.displayIndex(), e.onMarkerClick)
	if e.cfg.Observer != nil {
		e.cfg.Observer.ObserveUpdate(len(rendered), len(e.clusters.Clusters()), time.Since(start))
	}
}

// displayIndex returns the memoised index of de-duplicated facilities,
// rebuilding it after the list or the render cap changed.
func (e *Engine) displayIndex() *marker.Index {
	if e.index != nil {
		return e.index
	}
	list := e.facilities
	if e.capped && len(list) > e.cfg.InitialRenderCap {
		list = list[:e.cfg.InitialRenderCap]
	}
	e.index = marker.NewIndex(e.registry.ResolveAll(list))
	return e.index
}

// Highlights returns the highlight overlays currently on the map.
func (e *Engine) Highlights() []mapview.Overlay {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.highlighter.Overlays()
}

// Displayed returns the number of facilities in the current display list.
func (e *Engine) Displayed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.displayIndex().Len()
}

// PoolStats returns the idle and ever-created marker handle counts.
func (e *Engine) PoolStats() (idle, created int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.markers.Pool()
	return p.Idle(), p.Created()
}

// Close stops the widen timer and removes everything the engine drew.
// The registry is discarded with the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	if e.widen != nil {
		e.widen.Stop()
	}
	e.clusters.Destroy(e.m)
	e.markers.Reset()
	e.markers.Pool().Drain()
	e.highlighter.Clear(e.m)
	e.m = nil
	return nil
}
