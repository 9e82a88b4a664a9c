// Package region resolves Korean administrative area names to boundaries and
// draws region highlights.
package region

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Level is the administrative level of a boundary dataset.
type Level string

const (
	LevelDistrict    Level = "district"    // 시·군·구
	LevelSubdistrict Level = "subdistrict" // 읍·면·동
)

// Feature is one named administrative boundary.
type Feature struct {
	Name     string
	Level    Level
	Geometry orb.MultiPolygon
	Centroid orb.Point
	Bound    orb.Bound
}

// NewFeature builds a feature and precomputes its centroid and bound.
func NewFeature(name string, level Level, geom orb.MultiPolygon) Feature {
	centroid, _ := planar.CentroidArea(geom)
	return Feature{
		Name:     Normalize(name),
		Level:    level,
		Geometry: geom,
		Centroid: centroid,
		Bound:    geom.Bound(),
	}
}

// Contains reports whether p lies inside the feature.
func (f Feature) Contains(p orb.Point) bool {
	if !f.Bound.Contains(p) {
		return false
	}
	return planar.MultiPolygonContains(f.Geometry, p)
}

// nameKeys are the property names looked up, in order, for a feature name.
// Korean administrative datasets commonly carry the full path in adm_nm
// ("서울특별시 강북구 수유1동"); only its last part is used.
var nameKeys = []string{"name", "adm_nm", "SIG_KOR_NM", "EMD_KOR_NM"}

// ParseFeatureCollection decodes a GeoJSON FeatureCollection into features of
// the given level. Features without a name or without polygon geometry are
// skipped.
func ParseFeatureCollection(data []byte, level Level) ([]Feature, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse boundary geojson: %w", err)
	}
	return FromFeatureCollection(fc, level), nil
}

// FromFeatureCollection converts already decoded GeoJSON features.
func FromFeatureCollection(fc *geojson.FeatureCollection, level Level) []Feature {
	out := make([]Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		name := featureName(f)
		if name == "" {
			continue
		}

		var mp orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			mp = g
		default:
			continue
		}
		if len(mp) == 0 {
			continue
		}

		out = append(out, NewFeature(name, level, mp))
	}
	return out
}

func featureName(f *geojson.Feature) string {
	for _, key := range nameKeys {
		v := f.Properties.MustString(key, "")
		if v == "" {
			continue
		}
		parts := strings.Fields(v)
		if len(parts) == 0 {
			continue
		}
		return parts[len(parts)-1]
	}
	return ""
}
