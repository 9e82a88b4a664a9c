package datasource

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/MeKo-Christian/go-overpass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/memorialmap/internal/types"
)

type fakeQuerier struct {
	mu      sync.Mutex
	queries []string
	results map[string]overpass.Result
	err     error
}

func (f *fakeQuerier) Query(q string) (overpass.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return overpass.Result{}, f.err
	}
	for marker, res := range f.results {
		if strings.Contains(q, marker) {
			return res, nil
		}
	}
	return overpass.Result{}, nil
}

func squareRelation(id int64, name string, lng, lat float64) *overpass.Relation {
	w := way(id*10,
		[2]float64{lng, lat}, [2]float64{lng + 0.01, lat},
		[2]float64{lng + 0.01, lat + 0.01}, [2]float64{lng, lat + 0.01}, [2]float64{lng, lat})
	return &overpass.Relation{
		Meta:    overpass.Meta{ID: id, Tags: map[string]string{"name": name}},
		Members: []overpass.RelationMember{{Type: "way", Way: w, Role: "outer"}},
	}
}

var seoulNorth = types.Bounds{South: 37.6, West: 126.9, North: 37.7, East: 127.1}

func TestBuildBoundaryQuery(t *testing.T) {
	q := BuildBoundaryQuery(seoulNorth, AdminLevelSubdistrict)

	assert.Contains(t, q, `["admin_level"="8"]`)
	assert.Contains(t, q, `["boundary"="administrative"]`)
	assert.Contains(t, q, "(37.600000,126.900000,37.700000,127.100000)")
	assert.Contains(t, q, "out geom;")
}

func TestFetchSplitsLevels(t *testing.T) {
	q := &fakeQuerier{results: map[string]overpass.Result{
		`"admin_level"="6"`: {Relations: map[int64]*overpass.Relation{
			1: squareRelation(1, "강북구", 127.0, 37.62),
		}},
		`"admin_level"="8"`: {Relations: map[int64]*overpass.Relation{
			2: squareRelation(2, "수유1동", 127.0, 37.63),
			3: squareRelation(3, "인수동", 127.01, 37.63),
		}},
	}}

	ob := NewOverpassBoundariesWithQuerier(q, nil)
	districts, subdistricts, err := ob.Fetch(context.Background(), seoulNorth)
	require.NoError(t, err)

	require.Len(t, districts, 1)
	assert.Equal(t, "강북구", districts[0].Name)
	require.Len(t, subdistricts, 2)
	assert.Equal(t, "수유1동", subdistricts[0].Name)
	assert.Equal(t, "인수동", subdistricts[1].Name)

	assert.Len(t, q.queries, 2)
	assert.Equal(t, Status{TotalCompleted: 2, TotalFeatures: 3}, ob.Status())
}

func TestFetchFailure(t *testing.T) {
	q := &fakeQuerier{err: errors.New("429 too many requests")}
	ob := NewOverpassBoundariesWithQuerier(q, nil)

	_, _, err := ob.Fetch(context.Background(), seoulNorth)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Positive(t, ob.Status().TotalFailed)
}

func TestFetchRejectsInvalidBounds(t *testing.T) {
	ob := NewOverpassBoundariesWithQuerier(&fakeQuerier{}, nil)
	_, _, err := ob.Fetch(context.Background(), types.Bounds{South: 38, North: 37})
	assert.Error(t, err)
}

func TestUnmarshalOverpassJSON(t *testing.T) {
	_, err := UnmarshalOverpassJSON([]byte("{"))
	assert.Error(t, err)
}

func TestNewOverpassBoundariesDefaults(t *testing.T) {
	ob := NewOverpassBoundaries("", nil)
	require.NotNil(t, ob.q)
	assert.Equal(t, Status{}, ob.Status())
}
