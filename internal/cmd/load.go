package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/MeKo-Tech/memorialmap/internal/datasource"
	"github.com/MeKo-Tech/memorialmap/internal/region"
	"github.com/MeKo-Tech/memorialmap/internal/store"
	"github.com/MeKo-Tech/memorialmap/internal/types"
)

// loadFacilities reads the placed facilities of the store, optionally
// restricted to categories.
func loadFacilities(ctx context.Context, path string, categories []string) ([]types.Facility, store.Metadata, error) {
	r, err := store.OpenReader(path)
	if err != nil {
		return nil, store.Metadata{}, fmt.Errorf("failed to open facility store: %w", err)
	}
	defer r.Close()

	meta, err := r.Metadata()
	if err != nil {
		return nil, store.Metadata{}, err
	}

	filter := store.Filter{}
	for _, c := range categories {
		filter.Categories = append(filter.Categories, types.ParseCategory(c))
	}
	facilities, err := r.Facilities(ctx, filter)
	if err != nil {
		return nil, store.Metadata{}, err
	}
	return facilities, meta, nil
}

// loadRegions loads the configured boundary datasets. Levels that stay empty
// are fetched from Overpass when --overpass-bbox is set. The returned
// OverpassBoundaries is nil when Overpass was not used.
func loadRegions(ctx context.Context) (*region.Store, *datasource.OverpassBoundaries, error) {
	districts, subdistricts := region.Load(ctx, region.Sources{
		Districts:    viper.GetString("districts"),
		Subdistricts: viper.GetString("subdistricts"),
	}, region.LoaderConfig{Logger: logger})

	var ob *datasource.OverpassBoundaries
	if bbox := viper.GetString("overpass-bbox"); bbox != "" && (len(districts) == 0 || len(subdistricts) == 0) {
		bounds, err := parseBBox(bbox)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid overpass bbox: %w", err)
		}
		ob = datasource.NewOverpassBoundaries(viper.GetString("overpass-endpoint"), logger)
		d, s, err := ob.Fetch(ctx, bounds)
		if err != nil {
			logger.Warn("Overpass boundary fetch failed", "error", err)
		} else {
			if len(districts) == 0 {
				districts = d
			}
			if len(subdistricts) == 0 {
				subdistricts = s
			}
		}
	}

	regions := region.NewStore(region.StoreConfig{}, districts, subdistricts)
	nd, ns := regions.Counts()
	logger.Info("Boundaries ready", "districts", nd, "subdistricts", ns)
	return regions, ob, nil
}

// parseBBox parses a bounding box string "minLon,minLat,maxLon,maxLat".
func parseBBox(s string) (types.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return types.Bounds{}, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}

	var v [4]float64
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return types.Bounds{}, fmt.Errorf("invalid number at position %d: %w", i, err)
		}
		v[i] = val
	}

	if v[0] >= v[2] {
		return types.Bounds{}, fmt.Errorf("minLon (%.4f) must be < maxLon (%.4f)", v[0], v[2])
	}
	if v[1] >= v[3] {
		return types.Bounds{}, fmt.Errorf("minLat (%.4f) must be < maxLat (%.4f)", v[1], v[3])
	}

	return types.Bounds{West: v[0], South: v[1], East: v[2], North: v[3]}, nil
}

// parseLatLng parses "lat,lng".
func parseLatLng(s string) (types.LatLng, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return types.LatLng{}, fmt.Errorf("expected lat,lng, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return types.LatLng{}, fmt.Errorf("invalid latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return types.LatLng{}, fmt.Errorf("invalid longitude: %w", err)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return types.LatLng{}, fmt.Errorf("coordinate out of range: %q", s)
	}
	return types.LatLng{Lat: lat, Lng: lng}, nil
}
