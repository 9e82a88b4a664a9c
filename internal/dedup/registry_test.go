package dedup

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/memorialmap/internal/types"
)

func facilityAt(id string, lat, lng float64) types.Facility {
	return types.Facility{ID: id, Coordinates: &types.LatLng{Lat: lat, Lng: lng}}
}

func TestKeyRoundsToFiveDecimals(t *testing.T) {
	assert.Equal(t, "37.56654,126.97797", Key(types.LatLng{Lat: 37.5665351, Lng: 126.9779692}))
	assert.Equal(t, Key(types.LatLng{Lat: 37.1234549, Lng: 127.0}), Key(types.LatLng{Lat: 37.123451, Lng: 127.000001}))
	assert.Equal(t, "0.00000,0.00000", Key(types.LatLng{Lat: -0.000001, Lng: 0}))
}

func TestResolve_FirstClaimantKeepsExactCoordinate(t *testing.T) {
	r := NewRegistry(0)
	f := facilityAt("a", 37.5, 127.0)

	got := r.Resolve(f)
	assert.Equal(t, *f.Coordinates, got)
}

func TestResolve_NoCoordinatesGivesSentinel(t *testing.T) {
	r := NewRegistry(0)
	got := r.Resolve(types.Facility{ID: "x"})
	assert.True(t, got.IsZero())
	assert.Equal(t, 0, r.Len())
}

func TestResolve_StableAcrossRefilters(t *testing.T) {
	r := NewRegistry(0)
	a := facilityAt("a", 37.5, 127.0)
	b := facilityAt("b", 37.5, 127.0)
	c := facilityAt("c", 37.5, 127.0)

	first := r.ResolveAll([]types.Facility{a, b, c})

	// b hidden by a filter, others shuffled, then b re-shown
	_ = r.ResolveAll([]types.Facility{c, a})
	again := r.ResolveAll([]types.Facility{facilityAt("z", 37.5, 127.0), c, b, a})

	byID := map[string]types.LatLng{}
	for _, d := range again {
		byID[d.ID] = d.Fixed
	}
	for _, d := range first {
		assert.Equal(t, d.Fixed, byID[d.ID], "facility %s moved", d.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "z"}, r.Members(Key(*a.Coordinates)))
}

func TestResolve_NoCollisionWithinRingCapacity(t *testing.T) {
	r := NewRegistry(0)
	const n = 60

	seen := make(map[string]string, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("f%02d", i)
		p := r.Resolve(facilityAt(id, 35.1, 129.04))
		key := fmt.Sprintf("%.9f,%.9f", p.Lat, p.Lng)
		if other, dup := seen[key]; dup {
			t.Fatalf("%s collides with %s at %s", id, other, key)
		}
		seen[key] = id
	}
}

func TestOffset_RingGeometry(t *testing.T) {
	r := NewRegistry(0.001)

	tests := []struct {
		index      int
		wantRadius float64
		wantAngle  float64 // degrees, measured from +lng towards +lat
	}{
		{1, 0.001, 0},
		{3, 0.001, 90},
		{8, 0.001, 315},
		{9, 0.002, 0},
		{13, 0.002, 180},
		{17, 0.003, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("index_%d", tt.index), func(t *testing.T) {
			dLat, dLng := r.Offset(tt.index)
			require.InDelta(t, tt.wantRadius, math.Hypot(dLat, dLng), 1e-12)

			wantRad := tt.wantAngle * math.Pi / 180
			assert.InDelta(t, tt.wantRadius*math.Sin(wantRad), dLat, 1e-12)
			assert.InDelta(t, tt.wantRadius*math.Cos(wantRad), dLng, 1e-12)
		})
	}

	dLat, dLng := r.Offset(0)
	assert.Zero(t, dLat)
	assert.Zero(t, dLng)
}

func TestRegistriesAreIndependent(t *testing.T) {
	r1 := NewRegistry(0)
	r2 := NewRegistry(0)

	r1.Resolve(facilityAt("a", 37.5, 127.0))
	p := r2.Resolve(facilityAt("b", 37.5, 127.0))

	assert.Equal(t, types.LatLng{Lat: 37.5, Lng: 127.0}, p, "b is the first claimant in its own registry")
}
