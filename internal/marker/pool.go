package marker

import (
	"github.com/MeKo-Tech/memorialmap/internal/mapview"
	"github.com/MeKo-Tech/memorialmap/internal/types"
)

// Handle is one rendered facility marker.
//
// A handle is either active (owned by a Manager, possibly attached to a map,
// with at most one click listener) or idle in a Pool (no map, no listener).
type Handle struct {
	Position types.LatLng
	Icon     string
	Title    string
	Label    string
	Facility types.DisplayFacility

	serial   int
	m        mapview.Map
	listener func()
}

func (*Handle) Kind() mapview.Kind { return mapview.KindMarker }

// Serial is the construction number of the handle within its pool.
func (h *Handle) Serial() int { return h.serial }

// Click invokes the listener. It reports false when no listener is set.
func (h *Handle) Click() bool {
	if h.listener == nil {
		return false
	}
	h.listener()
	return true
}

// SetListener replaces the click listener.
func (h *Handle) SetListener(fn func()) {
	h.ClearListener()
	h.listener = fn
}

// ClearListener removes the click listener.
func (h *Handle) ClearListener() {
	h.listener = nil
}

// HasListener reports whether a click listener is set.
func (h *Handle) HasListener() bool {
	return h.listener != nil
}

// AttachTo puts the handle on m, detaching it from any previous map first.
func (h *Handle) AttachTo(m mapview.Map) {
	if h.m == m {
		return
	}
	h.Detach()
	if m == nil {
		return
	}
	m.Attach(h)
	h.m = m
}

// Detach removes the handle from its map. Safe when not attached.
func (h *Handle) Detach() {
	if h.m == nil {
		return
	}
	h.m.Detach(h)
	h.m = nil
}

// Attached reports whether the handle is on a map.
func (h *Handle) Attached() bool {
	return h.m != nil
}

// Pool recycles marker handles.
type Pool struct {
	idle    []*Handle
	created int
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// Acquire pops an idle handle or constructs a new one.
func (p *Pool) Acquire() *Handle {
	if n := len(p.idle); n > 0 {
		h := p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
		return h
	}
	p.created++
	return &Handle{serial: p.created}
}

// Release detaches h, drops its listener and puts it back in the pool.
func (p *Pool) Release(h *Handle) {
	if h == nil {
		return
	}
	h.Detach()
	h.ClearListener()
	h.Facility = types.DisplayFacility{}
	p.idle = append(p.idle, h)
}

// Idle returns the number of pooled handles.
func (p *Pool) Idle() int { return len(p.idle) }

// Created returns the number of handles ever constructed.
func (p *Pool) Created() int { return p.created }

// Drain drops all idle handles.
func (p *Pool) Drain() {
	p.idle = nil
}
