package engine

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/memorialmap/internal/mapview"
	"github.com/MeKo-Tech/memorialmap/internal/marker"
	"github.com/MeKo-Tech/memorialmap/internal/region"
	"github.com/MeKo-Tech/memorialmap/internal/types"
)

func square(lng, lat, size float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{
		{lng, lat}, {lng + size, lat}, {lng + size, lat + size}, {lng, lat + size}, {lng, lat},
	}}}
}

func regionStore() *region.Store {
	return region.NewStore(region.StoreConfig{},
		[]region.Feature{
			region.NewFeature("강북구", region.LevelDistrict, square(127.00, 37.62, 0.04)),
		},
		[]region.Feature{
			region.NewFeature("수유1동", region.LevelSubdistrict, square(127.000, 37.630, 0.011)),
			region.NewFeature("인수동", region.LevelSubdistrict, square(127.009, 37.631, 0.011)),
		},
	)
}

type recordingObserver struct {
	updates    int
	highlights []mapview.Kind
}

func (o *recordingObserver) ObserveUpdate(visible, clusters int, _ time.Duration) { o.updates++ }
func (o *recordingObserver) ObserveHighlight(kind mapview.Kind) {
	o.highlights = append(o.highlights, kind)
}

func TestPanTo(t *testing.T) {
	e, c := newAttached(t, unclustered(), nil)
	cmd := e.Commands()

	require.NoError(t, cmd.PanTo(35.1, 129.0, nil))
	zoom := 14
	require.NoError(t, cmd.PanTo(37.64, 127.02, &zoom))

	moves := c.Moves()
	require.Len(t, moves, 2)
	assert.Equal(t, mapview.Move{Center: types.LatLng{Lat: 35.1, Lng: 129.0}, Zoom: 11}, moves[0])
	assert.Equal(t, mapview.Move{Center: types.LatLng{Lat: 37.64, Lng: 127.02}, Zoom: 14, Animated: true}, moves[1])
}

func TestHighlightRegionReplacesPreviousSet(t *testing.T) {
	obs := &recordingObserver{}
	cfg := unclustered()
	cfg.Observer = obs
	e := New(regionStore(), cfg)
	defer e.Close()
	c := readyCanvas()
	require.NoError(t, e.Attach(t.Context(), c))
	cmd := e.Commands()

	first, err := cmd.HighlightRegion(37.636, 127.01, 14, region.TypeSubdistrict, "수유동")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, mapview.KindPolygon, first[0].Kind())

	second, err := cmd.HighlightRegion(33.5, 126.5, 12, region.TypeDistrict, "없는구")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, mapview.KindCircle, second[0].Kind())

	assert.Equal(t, second, c.Overlays())
	assert.Equal(t, second, e.Highlights())
	assert.Equal(t, []mapview.Kind{mapview.KindPolygon, mapview.KindCircle}, obs.highlights)
	assert.Equal(t, 3, obs.updates, "attach plus one render per highlight")
}

func TestHighlightKeepsMarkers(t *testing.T) {
	e, c := newAttached(t, unclustered(), grid(3))

	_, err := e.Commands().HighlightRegion(37.6, 127.0, 12, region.TypeCity, "서울")
	require.NoError(t, err)
	assert.Len(t, c.OverlaysOf(mapview.KindMarker), 3)
	assert.Len(t, c.OverlaysOf(mapview.KindCircle), 1)
}

func TestSearchRegion(t *testing.T) {
	e := New(regionStore(), unclustered())
	defer e.Close()
	cmd := e.Commands()

	m, err := cmd.SearchRegion("수유동")
	require.NoError(t, err)
	assert.Equal(t, region.TypeSubdistrict, m.Type)
	assert.Equal(t, 2, m.Features)

	_, err = cmd.SearchRegion("없는동네")
	assert.ErrorIs(t, err, region.ErrNoMatch)

	require.NoError(t, e.Close())
	_, err = cmd.SearchRegion("수유동")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestHighlightMovesMarkersWithViewport(t *testing.T) {
	var notified []types.Bounds
	cfg := unclustered()
	cfg.OnBoundsChanged = func(b types.Bounds) { notified = append(notified, b) }
	e, c := newAttached(t, cfg, append(grid(20), facilityAt("haeundae", 35.1, 129.0)))
	require.Len(t, e.Markers(), 20)

	_, err := e.Commands().HighlightRegion(35.1, 129.0, 14, region.TypeDistrict, "해운대구")
	require.NoError(t, err)

	b := c.Bounds()
	markers := e.Markers()
	require.Len(t, markers, 1)
	assert.Equal(t, "haeundae", markers[0].ID)
	attached := c.OverlaysOf(mapview.KindMarker)
	require.Len(t, attached, 1)
	assert.True(t, b.Contains(attached[0].(*marker.Handle).Position))
	require.Len(t, notified, 1)
	assert.Equal(t, b, notified[0])
}

func TestPanToRendersNewViewport(t *testing.T) {
	e, c := newAttached(t, unclustered(), append(grid(5), facilityAt("busan", 35.1, 129.0)))
	require.Len(t, e.Markers(), 5)

	require.NoError(t, e.Commands().PanTo(35.1, 129.0, nil))
	markers := e.Markers()
	require.Len(t, markers, 1)
	assert.True(t, c.Bounds().Contains(markers[0].Position))
	assert.Len(t, c.OverlaysOf(mapview.KindMarker), 1)
}
