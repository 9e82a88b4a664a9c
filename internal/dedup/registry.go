// Package dedup spreads facilities that share a coordinate onto stable ring slots.
package dedup

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/memorialmap/internal/types"
)

const (
	// DefaultBaseRadius is the radius of the first ring in degrees (~30 m).
	DefaultBaseRadius = 0.0003

	// SlotsPerRing is the number of positions on each ring (45° apart).
	SlotsPerRing = 8

	keyPrecision = 1e5
)

// Registry maps a rounded coordinate to the ordered list of facility ids that
// ever claimed it. A position, once assigned, never changes for the lifetime
// of the registry, so a facility that disappears from a filtered list comes
// back at the same slot.
//
// Entries are never pruned. Registry is not safe for concurrent use; the
// owning engine serialises access.
type Registry struct {
	entries    map[string][]string
	positions  map[string]map[string]int
	baseRadius float64
}

// NewRegistry creates an empty registry. A non-positive baseRadius selects
// DefaultBaseRadius.
func NewRegistry(baseRadius float64) *Registry {
	if baseRadius <= 0 {
		baseRadius = DefaultBaseRadius
	}
	return &Registry{
		entries:    make(map[string][]string),
		positions:  make(map[string]map[string]int),
		baseRadius: baseRadius,
	}
}

// Key returns the registry key for p: both axes rounded to 5 decimals.
func Key(p types.LatLng) string {
	return fmt.Sprintf("%.5f,%.5f", round5(p.Lat), round5(p.Lng))
}

func round5(v float64) float64 {
	r := math.Round(v*keyPrecision) / keyPrecision
	if r == 0 {
		// avoid "-0.00000" keys
		return 0
	}
	return r
}

// Index returns the stable slot index of id at key, appending it on first sight.
func (r *Registry) Index(key, id string) int {
	pos, ok := r.positions[key]
	if !ok {
		pos = make(map[string]int)
		r.positions[key] = pos
	}
	if i, ok := pos[id]; ok {
		return i
	}
	i := len(r.entries[key])
	r.entries[key] = append(r.entries[key], id)
	pos[id] = i
	return i
}

// Offset returns the (dLat, dLng) displacement for slot index.
// Index 0 keeps the exact coordinate.
func (r *Registry) Offset(index int) (dLat, dLng float64) {
	if index <= 0 {
		return 0, 0
	}
	ring := (index - 1) / SlotsPerRing
	slot := (index - 1) % SlotsPerRing
	radius := r.baseRadius * float64(ring+1)
	angle := float64(slot) * (2 * math.Pi / SlotsPerRing)
	return radius * math.Sin(angle), radius * math.Cos(angle)
}

// Resolve returns the display coordinate for f. Facilities without
// coordinates get the (0,0) sentinel, which callers must not render.
func (r *Registry) Resolve(f types.Facility) types.LatLng {
	if f.Coordinates == nil {
		return types.LatLng{}
	}
	c := *f.Coordinates
	dLat, dLng := r.Offset(r.Index(Key(c), f.ID))
	return types.LatLng{Lat: c.Lat + dLat, Lng: c.Lng + dLng}
}

// ResolveAll resolves every facility in order.
func (r *Registry) ResolveAll(facilities []types.Facility) []types.DisplayFacility {
	out := make([]types.DisplayFacility, len(facilities))
	for i, f := range facilities {
		out[i] = types.DisplayFacility{Facility: f, Fixed: r.Resolve(f)}
	}
	return out
}

// Members returns a copy of the ids registered at key in claim order.
func (r *Registry) Members(key string) []string {
	ids := r.entries[key]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Len returns the number of distinct coordinate keys.
func (r *Registry) Len() int {
	return len(r.entries)
}
