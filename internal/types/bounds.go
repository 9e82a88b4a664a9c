package types

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Bounds represents the visible lat/lng rectangle of a map viewport (WGS84)
type Bounds struct {
	South float64 `json:"south"` // Southern edge (degrees)
	West  float64 `json:"west"`  // Western edge (degrees)
	North float64 `json:"north"` // Northern edge (degrees)
	East  float64 `json:"east"`  // Eastern edge (degrees)
}

// Contains reports whether p lies inside the bounds. Edges are inclusive.
func (b Bounds) Contains(p LatLng) bool {
	return p.Lat >= b.South && p.Lat <= b.North &&
		p.Lng >= b.West && p.Lng <= b.East
}

// Valid reports whether the bounds describe a non-empty rectangle.
func (b Bounds) Valid() bool {
	return b.South < b.North && b.West < b.East
}

// String returns a human-readable representation of the bounds
func (b Bounds) String() string {
	return fmt.Sprintf("bounds(%.6f,%.6f,%.6f,%.6f)", b.South, b.West, b.North, b.East)
}

// Center returns the center point of the bounds
func (b Bounds) Center() LatLng {
	return LatLng{Lat: (b.South + b.North) / 2, Lng: (b.West + b.East) / 2}
}

// Width returns the width of the bounds in degrees
func (b Bounds) Width() float64 {
	return b.East - b.West
}

// Height returns the height of the bounds in degrees
func (b Bounds) Height() float64 {
	return b.North - b.South
}

// ExpandByFraction grows the bounds by f of its width/height on each side.
func (b Bounds) ExpandByFraction(f float64) Bounds {
	if f <= 0 {
		return b
	}
	dx := b.Width() * f
	dy := b.Height() * f
	return Bounds{
		South: b.South - dy,
		West:  b.West - dx,
		North: b.North + dy,
		East:  b.East + dx,
	}
}

// Bound converts the bounds to an orb.Bound.
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West, b.South},
		Max: orb.Point{b.East, b.North},
	}
}

// BoundsFromOrb converts an orb.Bound to Bounds.
func BoundsFromOrb(ob orb.Bound) Bounds {
	return Bounds{
		South: ob.Min.Lat(),
		West:  ob.Min.Lon(),
		North: ob.Max.Lat(),
		East:  ob.Max.Lon(),
	}
}
