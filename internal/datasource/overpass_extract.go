package datasource

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/MeKo-Christian/go-overpass"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/MeKo-Tech/memorialmap/internal/region"
)

// UnmarshalOverpassJSON decodes an Overpass API JSON response into an overpass.Result.
// This is used for responses saved to disk ahead of time.
func UnmarshalOverpassJSON(data []byte) (*overpass.Result, error) {
	var result overpass.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal overpass json: %w", err)
	}
	return &result, nil
}

// ExtractBoundaries converts the administrative boundary relations of an
// Overpass result into region features. Relations without a name or without
// a closed outer ring are skipped.
func ExtractBoundaries(result *overpass.Result, level region.Level) []region.Feature {
	if result == nil {
		return nil
	}

	var out []region.Feature
	for _, rel := range result.Relations {
		if rel == nil {
			continue
		}
		name := boundaryName(rel.Tags)
		if name == "" {
			continue
		}
		geom := assembleRelation(rel)
		if len(geom) == 0 {
			continue
		}
		out = append(out, region.NewFeature(name, level, geom))
	}
	// relations come from a map
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// boundaryName prefers the Korean name tag.
func boundaryName(tags map[string]string) string {
	for _, key := range []string{"name:ko", "name"} {
		if v := strings.TrimSpace(tags[key]); v != "" {
			return v
		}
	}
	return ""
}

// assembleRelation builds a multipolygon from the member ways of a boundary
// relation. Administrative boundaries are split into many open ways, so the
// segments of each role are stitched into closed rings first; every inner
// ring is then attached to the outer ring that contains it.
func assembleRelation(rel *overpass.Relation) orb.MultiPolygon {
	var outerParts, innerParts []orb.LineString

	for _, member := range rel.Members {
		if member.Type != "way" || member.Way == nil || len(member.Way.Geometry) < 2 {
			continue
		}

		line := make(orb.LineString, len(member.Way.Geometry))
		for i, point := range member.Way.Geometry {
			line[i] = orb.Point{point.Lon, point.Lat}
		}

		if member.Role == "inner" {
			innerParts = append(innerParts, line)
		} else {
			// Default to outer (role can be empty or "outer")
			outerParts = append(outerParts, line)
		}
	}

	outers := stitchRings(outerParts)
	if len(outers) == 0 {
		return nil
	}

	mp := make(orb.MultiPolygon, len(outers))
	for i, r := range outers {
		mp[i] = orb.Polygon{r}
	}
	for _, inner := range stitchRings(innerParts) {
		for i := range mp {
			if planar.RingContains(mp[i][0], inner[0]) {
				mp[i] = append(mp[i], inner)
				break
			}
		}
	}
	return mp
}

// stitchRings joins open line segments end to end until they close. Segments
// may be reversed. Chains that never close are dropped.
func stitchRings(parts []orb.LineString) []orb.Ring {
	var rings []orb.Ring
	used := make([]bool, len(parts))

	for i := range parts {
		if used[i] {
			continue
		}
		used[i] = true
		chain := append(orb.LineString(nil), parts[i]...)

		for !closed(chain) {
			extended := false
			for j := range parts {
				if used[j] {
					continue
				}
				seg := parts[j]
				tail := chain[len(chain)-1]
				switch {
				case seg[0] == tail:
					chain = append(chain, seg[1:]...)
				case seg[len(seg)-1] == tail:
					chain = append(chain, reversed(seg)[1:]...)
				default:
					continue
				}
				used[j] = true
				extended = true
				break
			}
			if !extended {
				break
			}
		}

		if closed(chain) && len(chain) >= 4 {
			rings = append(rings, orb.Ring(chain))
		}
	}
	return rings
}

func closed(ls orb.LineString) bool {
	return len(ls) > 2 && ls[0] == ls[len(ls)-1]
}

func reversed(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[len(ls)-1-i] = p
	}
	return out
}
