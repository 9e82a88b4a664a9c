package types

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestBoundsExpandByFraction(t *testing.T) {
	b := Bounds{South: 20, West: 10, North: 40, East: 30}

	expanded := b.ExpandByFraction(0.1)
	// width=20, height=20 => delta=2 on each side
	if expanded.West != 8 || expanded.East != 32 || expanded.South != 18 || expanded.North != 42 {
		t.Fatalf("unexpected expanded bounds: %+v", expanded)
	}

	unchanged := b.ExpandByFraction(0)
	if unchanged != b {
		t.Fatalf("expected unchanged bounds, got %+v", unchanged)
	}
}

func TestBoundsContainsIsInclusive(t *testing.T) {
	b := Bounds{South: 37.5, West: 126.9, North: 37.6, East: 127.0}

	tests := []struct {
		name string
		p    LatLng
		want bool
	}{
		{"inside", LatLng{Lat: 37.55, Lng: 126.95}, true},
		{"south-west corner", LatLng{Lat: 37.5, Lng: 126.9}, true},
		{"north-east corner", LatLng{Lat: 37.6, Lng: 127.0}, true},
		{"north of bounds", LatLng{Lat: 37.61, Lng: 126.95}, false},
		{"east of bounds", LatLng{Lat: 37.55, Lng: 127.01}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Contains(tt.p); got != tt.want {
				t.Errorf("Contains(%+v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestBoundsOrbRoundTrip(t *testing.T) {
	ob := orb.Bound{Min: orb.Point{126.9, 37.5}, Max: orb.Point{127.0, 37.6}}
	b := BoundsFromOrb(ob)
	if b.Bound() != ob {
		t.Fatalf("round trip mismatch: %+v", b.Bound())
	}
	if c := b.Center(); math.Abs(c.Lat-37.55) > 1e-9 || math.Abs(c.Lng-126.95) > 1e-9 {
		t.Fatalf("unexpected center %+v", c)
	}
}

func TestParseCategory(t *testing.T) {
	tests := map[string]Category{
		"봉안당":         CategoryColumbarium,
		"columbarium": CategoryColumbarium,
		" 자연장지 ":      CategoryNatural,
		"공원묘지":        CategoryCemetery,
		"화장시설":        CategoryCrematorium,
		"요양원":         CategoryUnknown,
	}
	for in, want := range tests {
		if got := ParseCategory(in); got != want {
			t.Errorf("ParseCategory(%q) = %q, want %q", in, got, want)
		}
	}
}
