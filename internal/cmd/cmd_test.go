package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/memorialmap/internal/engine"
	"github.com/MeKo-Tech/memorialmap/internal/mapview"
	"github.com/MeKo-Tech/memorialmap/internal/region"
	"github.com/MeKo-Tech/memorialmap/internal/snapshot"
	"github.com/MeKo-Tech/memorialmap/internal/store"
	"github.com/MeKo-Tech/memorialmap/internal/types"
)

func init() {
	logger = newLogger(io.Discard, "text", false)
}

func TestParseBBox(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    types.Bounds
		wantErr bool
	}{
		{
			name:  "valid bbox",
			input: "126.9,37.5,127.1,37.7",
			want:  types.Bounds{West: 126.9, South: 37.5, East: 127.1, North: 37.7},
		},
		{
			name:  "valid bbox with spaces",
			input: "126.9, 37.5, 127.1, 37.7",
			want:  types.Bounds{West: 126.9, South: 37.5, East: 127.1, North: 37.7},
		},
		{name: "too few values", input: "126.9,37.5,127.1", wantErr: true},
		{name: "too many values", input: "126.9,37.5,127.1,37.7,1", wantErr: true},
		{name: "invalid number", input: "abc,37.5,127.1,37.7", wantErr: true},
		{name: "minLon >= maxLon", input: "127.2,37.5,127.1,37.7", wantErr: true},
		{name: "minLat >= maxLat", input: "126.9,37.8,127.1,37.7", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBBox(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLatLng(t *testing.T) {
	got, err := parseLatLng("37.5665, 126.978")
	require.NoError(t, err)
	assert.Equal(t, types.LatLng{Lat: 37.5665, Lng: 126.978}, got)

	for _, bad := range []string{"", "37.5", "x,126", "37.5,y", "91,0", "0,181"} {
		_, err := parseLatLng(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "json", false)
	l.Debug("hidden")
	l.Info("shown", "k", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &rec))
	assert.Equal(t, "shown", rec["msg"])

	buf.Reset()
	newLogger(&buf, "text", true).Debug("visible")
	assert.Contains(t, buf.String(), "level=DEBUG")
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", `[
		{"id":"a1","name":"하늘공원","category":"봉안당","lat":37.60,"lng":127.00},
		{"id":"a2","name":"숲속쉼터","category":"수목장","coordinates":{"lat":37.61,"lng":127.01}}
	]`)
	b := writeFile(t, dir, "b.json", `{"facilities":[{"id":"b1","name":"추모원","category":"공원묘지"}]}`)
	bad := writeFile(t, dir, "bad.json", `[{"name":"no id"}]`)

	dbPath := filepath.Join(dir, "facilities.db")
	w, err := store.New(dbPath, store.Metadata{Name: "test"})
	require.NoError(t, err)

	written, failed, err := importFiles(context.Background(), w, []string{a, b, bad}, 2, false)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, 3, written)
	assert.Equal(t, 1, failed)

	all, meta, err := loadFacilities(context.Background(), dbPath, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "test", meta.Name)

	natural, _, err := loadFacilities(context.Background(), dbPath, []string{"natural"})
	require.NoError(t, err)
	require.Len(t, natural, 1)
	assert.Equal(t, "a2", natural[0].ID)
}

func TestLoadFacilities_MissingStore(t *testing.T) {
	_, _, err := loadFacilities(context.Background(), filepath.Join(t.TempDir(), "missing.db"), nil)
	assert.Error(t, err)
}

func TestRenderSnapshot(t *testing.T) {
	ring := orb.Ring{{126.99, 37.59}, {127.02, 37.59}, {127.02, 37.62}, {126.99, 37.62}, {126.99, 37.59}}
	regions := region.NewStore(region.StoreConfig{},
		[]region.Feature{region.NewFeature("강북구", region.LevelDistrict, orb.MultiPolygon{{ring}})}, nil)

	facilities := []types.Facility{
		{ID: "a", Category: types.CategoryColumbarium, Coordinates: &types.LatLng{Lat: 37.60, Lng: 127.00}},
		{ID: "b", Category: types.CategoryNatural, Coordinates: &types.LatLng{Lat: 37.61, Lng: 127.01}},
	}

	canvas := mapview.NewCanvas(200, 150, mapview.DefaultCenter, mapview.DefaultZoom)
	canvas.MarkReady()
	out := filepath.Join(t.TempDir(), "snap.png")

	cfg := engine.Config{}
	require.NoError(t, renderSnapshot(context.Background(), canvas, regions, cfg, facilities, "강북구", out, snapshot.DefaultOptions()))

	assert.Equal(t, region.DistrictZoom, canvas.Zoom())
	assert.Len(t, canvas.OverlaysOf(mapview.KindPolygon), 0, "engine closed after rendering")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())

	err = renderSnapshot(context.Background(), canvas, regions, cfg, facilities, "없는동", filepath.Join(t.TempDir(), "x.png"), snapshot.DefaultOptions())
	assert.ErrorContains(t, err, "no region matches")
}

func TestPrintMatch(t *testing.T) {
	m := region.Match{Lat: 37.64, Lng: 127.02, Zoom: 12, Type: region.TypeDistrict, Name: "강북구", Features: 1}

	var buf bytes.Buffer
	require.NoError(t, printMatch(&buf, m, false))
	assert.Contains(t, buf.String(), "강북구 (district, 1 boundaries)")
	assert.Contains(t, buf.String(), "zoom:   12")

	buf.Reset()
	require.NoError(t, printMatch(&buf, m, true))
	var decoded region.Match
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, m, decoded)
}

func TestImportFiles_InvalidFileLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.json", `[{"id":"g1","name":"하늘공원","category":"봉안당","lat":37.60,"lng":127.00}]`)
	mixed := writeFile(t, dir, "mixed.json", `[
		{"id":"m1","name":"추모원","category":"공원묘지","lat":37.61,"lng":127.01},
		{"name":"no id"}
	]`)

	dbPath := filepath.Join(dir, "facilities.db")
	w, err := store.New(dbPath, store.Metadata{Name: "test"})
	require.NoError(t, err)

	written, failed, err := importFiles(context.Background(), w, []string{good, mixed}, 1, false)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, 1, written)
	assert.Equal(t, 1, failed)

	all, _, err := loadFacilities(context.Background(), dbPath, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "g1", all[0].ID)
}
