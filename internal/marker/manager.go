// Package marker materialises the facilities visible in a viewport as pooled
// map markers.
package marker

import (
	"log/slog"

	"github.com/MeKo-Tech/memorialmap/internal/mapview"
	"github.com/MeKo-Tech/memorialmap/internal/types"
)

// DefaultMaxVisible bounds per-update marker creation regardless of dataset size.
const DefaultMaxVisible = 500

// Renderer receives the markers of one update, e.g. a cluster adapter.
type Renderer interface {
	Apply(m mapview.Map, markers []*Handle)
}

// ClickFunc is invoked with the facility behind a clicked marker.
type ClickFunc func(types.Facility)

// Config configures the manager.
type Config struct {
	// MaxVisible caps the markers materialised per update (default: 500)
	MaxVisible int
	// Renderer receives the final marker list; nil attaches markers directly
	Renderer Renderer
	Logger   *slog.Logger
}

// Manager keeps the set of active markers in sync with the viewport.
// It is not reentrant; callers serialise Update.
type Manager struct {
	pool     *Pool
	active   map[string]*Handle
	rendered []*Handle
	cfg      Config
	logger   *slog.Logger
}

// NewManager creates a manager with its own pool.
func NewManager(cfg Config) *Manager {
	if cfg.MaxVisible <= 0 {
		cfg.MaxVisible = DefaultMaxVisible
	}
	return &Manager{
		pool:   NewPool(),
		active: make(map[string]*Handle),
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Update renders the facilities of idx that fall inside the current bounds of
// m. Calling it repeatedly with the same bounds and index yields the same
// marker set and does not grow the pool. A map that is nil or not ready turns
// the call into a no-op; the next idle event retries.
func (mg *Manager) Update(m mapview.Map, idx *Index, onClick ClickFunc) []*Handle {
	if !mapview.IsReady(m) {
		mg.log().Debug("map not ready, skipping marker update")
		return nil
	}

	visible := idx.Visible(m.Bounds(), mg.cfg.MaxVisible)

	wanted := make(map[string]struct{}, len(visible))
	for _, f := range visible {
		wanted[f.ID] = struct{}{}
	}

	// Release first so the pool can serve this cycle's new markers.
	for id, h := range mg.active {
		if _, keep := wanted[id]; keep {
			continue
		}
		delete(mg.active, id)
		mg.pool.Release(h)
	}

	rendered := make([]*Handle, 0, len(visible))
	for _, f := range visible {
		h, ok := mg.active[f.ID]
		if !ok {
			h = mg.pool.Acquire()
			mg.active[f.ID] = h
		}
		configure(h, f, onClick)
		rendered = append(rendered, h)
	}
	mg.rendered = rendered

	if mg.cfg.Renderer != nil {
		mg.cfg.Renderer.Apply(m, rendered)
	} else {
		for _, h := range rendered {
			h.AttachTo(m)
		}
	}

	mg.log().Debug("markers updated",
		"visible", len(rendered),
		"indexed", idx.Len(),
		"pool_idle", mg.pool.Idle(),
		"pool_created", mg.pool.Created(),
	)

	return rendered
}

func configure(h *Handle, f types.DisplayFacility, onClick ClickFunc) {
	h.Facility = f
	h.Position = f.Fixed
	h.Label = Label(f.Facility)
	h.Title = Title(f.Facility)
	h.Icon = Badge(h.Label, f.Category)

	h.ClearListener()
	if onClick != nil {
		facility := f.Facility
		h.SetListener(func() { onClick(facility) })
	}
}

// Rendered returns the markers of the last update in list order.
func (mg *Manager) Rendered() []*Handle {
	out := make([]*Handle, len(mg.rendered))
	copy(out, mg.rendered)
	return out
}

// Lookup returns the active marker for a facility id.
func (mg *Manager) Lookup(id string) (*Handle, bool) {
	h, ok := mg.active[id]
	return h, ok
}

// Pool exposes the handle pool for inspection.
func (mg *Manager) Pool() *Pool {
	return mg.pool
}

// Reset releases every active marker back into the pool.
func (mg *Manager) Reset() {
	for id, h := range mg.active {
		delete(mg.active, id)
		mg.pool.Release(h)
	}
	mg.rendered = nil
}

func (mg *Manager) log() *slog.Logger {
	if mg.logger != nil {
		return mg.logger
	}
	return slog.Default()
}
