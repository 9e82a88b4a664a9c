package region

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/memorialmap/internal/mapview"
	"github.com/MeKo-Tech/memorialmap/internal/types"
)

// square returns a counter-clockwise square with its south-west corner at
// (lng, lat).
func square(lng, lat, size float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{
		{lng, lat},
		{lng + size, lat},
		{lng + size, lat + size},
		{lng, lat + size},
		{lng, lat},
	}}}
}

func testStore() *Store {
	districts := []Feature{
		NewFeature("강북구", LevelDistrict, square(127.00, 37.62, 0.04)),
		NewFeature("중구", LevelDistrict, square(126.97, 37.55, 0.03)),
		NewFeature("중구", LevelDistrict, square(129.02, 35.09, 0.03)), // Busan namesake
	}
	subdistricts := []Feature{
		NewFeature("수유1동", LevelSubdistrict, square(127.000, 37.630, 0.011)),
		NewFeature("인수동", LevelSubdistrict, square(127.009, 37.631, 0.011)),
		NewFeature("수유2동", LevelSubdistrict, square(129.00, 35.10, 0.01)), // far namesake
		NewFeature("수원동", LevelSubdistrict, square(127.03, 37.63, 0.01)),
		NewFeature("번1동", LevelSubdistrict, square(127.02, 37.63, 0.01)),
	}
	return NewStore(StoreConfig{}, districts, subdistricts)
}

func readyCanvas() *mapview.Canvas {
	c := mapview.NewCanvas(800, 600, types.LatLng{Lat: 37.6, Lng: 127.0}, 11)
	c.MarkReady()
	return c
}

func TestNormalize(t *testing.T) {
	// decomposed Hangul as produced by macOS file exports
	nfd := "\u1109\u116e\u110b\u1172\u1103\u1169\u11bc"
	assert.Equal(t, "수유동", Normalize(nfd))
	assert.Equal(t, "강북구", Normalize(" 강북 구 "))
}

func TestSubdistrictMatching(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{name: "수유1동", query: "수유동", want: true},
		{name: "수유제1동", query: "수유", want: true},
		{name: "종로1.2.3.4가동", query: "종로", want: true},
		{name: "수원동", query: "수유동", want: false},
		{name: "수유리", query: "수유동", want: true},
		{name: "인수동", query: "수유동", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.query, func(t *testing.T) {
			terms := SubdistrictTerms(tt.query, nil)
			assert.Equal(t, tt.want, matchesSubdistrict(tt.name, terms))
		})
	}
}

func TestSubdistrictAliases(t *testing.T) {
	assert.Equal(t, []string{"수유", "인수"}, SubdistrictTerms("수유동", DefaultAliases))
	assert.Equal(t, []string{"번"}, SubdistrictTerms("번동", DefaultAliases))
	assert.Nil(t, SubdistrictTerms("  ", DefaultAliases))

	s := testStore()
	var names []string
	for _, f := range s.SubdistrictCandidates("수유동") {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"수유1동", "인수동", "수유2동"}, names)
}

func TestDistrictCandidatesPreferBestTier(t *testing.T) {
	s := testStore()

	c := s.DistrictCandidates("강북구")
	require.Len(t, c, 1)
	assert.Equal(t, "강북구", c[0].Name)

	// reverse containment: a longer query still finds the district
	c = s.DistrictCandidates("강북구청")
	require.Len(t, c, 1)
	assert.Equal(t, "강북구", c[0].Name)

	assert.Len(t, s.DistrictCandidates("중구"), 2)
	assert.Empty(t, s.DistrictCandidates("해운대구"))
}

func TestSearchRegionAliasReturnsCombinedCentroid(t *testing.T) {
	s := testStore()

	m, err := s.Search("수유동")
	require.NoError(t, err)

	// both halves of the legal dong, not just 수유1동; the Busan namesake is
	// rejected by proximity
	assert.Equal(t, TypeSubdistrict, m.Type)
	assert.Equal(t, SubdistrictZoom, m.Zoom)
	assert.Equal(t, "수유동", m.Name)
	assert.Equal(t, 2, m.Features)
	assert.InDelta(t, 127.01, m.Lng, 1e-9)
	assert.InDelta(t, 37.636, m.Lat, 1e-9)
}

func TestSearchRegionDistrictFirst(t *testing.T) {
	s := testStore()

	m, err := s.Search("강북구")
	require.NoError(t, err)
	assert.Equal(t, TypeDistrict, m.Type)
	assert.Equal(t, DistrictZoom, m.Zoom)
	assert.Equal(t, "강북구", m.Name)
	assert.InDelta(t, 127.02, m.Lng, 1e-9)
	assert.InDelta(t, 37.64, m.Lat, 1e-9)

	// namesakes in other cities are not merged into one centroid
	m, err = s.Search("중구")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Features)
}

func TestSearchRegionNoMatch(t *testing.T) {
	_, err := testStore().Search("없는동네")
	assert.ErrorIs(t, err, ErrNoMatch)

	var empty *Store
	_, err = empty.Search("강북구")
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = NewStore(StoreConfig{}, nil, nil).Search("강북구")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestNearestPrefersContainingFeature(t *testing.T) {
	s := testStore()
	c := s.DistrictCandidates("중구")

	f, ok := Nearest(c, orb.Point{129.03, 35.10})
	require.True(t, ok)
	assert.InDelta(t, 35.105, f.Centroid.Lat(), 1e-9)

	f, ok = Nearest(c, orb.Point{127.5, 37.0}) // inside neither
	require.True(t, ok)
	assert.InDelta(t, 37.565, f.Centroid.Lat(), 1e-9)

	_, ok = Nearest(nil, orb.Point{})
	assert.False(t, ok)
}

func TestUnionMergesOverlappingParts(t *testing.T) {
	merged, err := Union([]orb.MultiPolygon{
		square(0, 0, 2),
		square(1, 1, 2),
	})
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.InDelta(t, 7.0, math.Abs(planar.Area(merged)), 1e-9)
}

func TestUnionKeepsDisjointParts(t *testing.T) {
	merged, err := Union([]orb.MultiPolygon{
		square(0, 0, 1),
		square(5, 5, 1),
	})
	require.NoError(t, err)
	assert.Len(t, merged, 2)
}

func TestUnionRejectsMalformedRings(t *testing.T) {
	_, err := Union([]orb.MultiPolygon{
		square(0, 0, 1),
		{{{{0, 0}, {1, 1}, {0, 0}}}},
	})
	assert.ErrorIs(t, err, ErrMalformedGeometry)

	_, err = Union([]orb.MultiPolygon{{{{{0, 0}, {math.NaN(), 1}, {1, 1}, {0, 0}}}}})
	assert.ErrorIs(t, err, ErrMalformedGeometry)

	_, err = Union(nil)
	assert.ErrorIs(t, err, ErrMalformedGeometry)
}

func TestParseFeatureCollection(t *testing.T) {
	data := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"adm_nm":"서울특별시 강북구 수유1동"},
		 "geometry":{"type":"Polygon","coordinates":[[[127,37.63],[127.01,37.63],[127.01,37.64],[127,37.64],[127,37.63]]]}},
		{"type":"Feature","properties":{"SIG_KOR_NM":"강북구"},
		 "geometry":{"type":"MultiPolygon","coordinates":[[[[127,37.62],[127.04,37.62],[127.04,37.66],[127,37.66],[127,37.62]]]]}},
		{"type":"Feature","properties":{"name":"점"},"geometry":{"type":"Point","coordinates":[127,37]}},
		{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}
	]}`)

	features, err := ParseFeatureCollection(data, LevelSubdistrict)
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, "수유1동", features[0].Name)
	assert.Equal(t, "강북구", features[1].Name)
	assert.True(t, features[0].Contains(orb.Point{127.005, 37.635}))
	assert.False(t, features[0].Contains(orb.Point{127.02, 37.635}))

	_, err = ParseFeatureCollection([]byte("not json"), LevelDistrict)
	assert.Error(t, err)
}
