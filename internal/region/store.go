package region

import (
	"errors"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

// RegionType selects how a highlight request is resolved.
type RegionType string

const (
	TypeCity        RegionType = "city"
	TypeDistrict    RegionType = "district"
	TypeSubdistrict RegionType = "subdistrict"
)

// ParseRegionType maps a free-form type name onto a RegionType.
func ParseRegionType(s string) RegionType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "city", "sido", "시도":
		return TypeCity
	case "district", "sigungu", "시군구":
		return TypeDistrict
	case "subdistrict", "dong", "emd", "읍면동":
		return TypeSubdistrict
	default:
		return RegionType(s)
	}
}

// Suggested zoom levels for search results.
const (
	DistrictZoom    = 12
	SubdistrictZoom = 14
)

// DefaultProximityMeters rejects same-named areas further than this from the
// reference point.
const DefaultProximityMeters = 5000

// ErrNoMatch is returned when a keyword resolves to no boundary.
var ErrNoMatch = errors.New("region: no matching boundary")

// Match is the result of a region search.
type Match struct {
	Lat      float64    `json:"lat"`
	Lng      float64    `json:"lng"`
	Zoom     int        `json:"zoom"`
	Type     RegionType `json:"type"`
	Name     string     `json:"name"`
	Features int        `json:"features"`
}

// StoreConfig configures a Store.
type StoreConfig struct {
	// Aliases expands legal names into several administrative stems (default: DefaultAliases)
	Aliases map[string][]string
	// ProximityMeters is the namesake rejection radius (default: 5000)
	ProximityMeters float64
}

// Store holds the district and sub-district boundaries. It is read-only after
// construction and safe for concurrent use.
type Store struct {
	districts    []Feature
	subdistricts []Feature
	aliases      map[string][]string
	proximity    float64
}

// NewStore creates a store. Either level may be empty, e.g. after a failed
// dataset load; every lookup on an empty level is a miss.
func NewStore(cfg StoreConfig, districts, subdistricts []Feature) *Store {
	if cfg.Aliases == nil {
		cfg.Aliases = DefaultAliases
	}
	if cfg.ProximityMeters <= 0 {
		cfg.ProximityMeters = DefaultProximityMeters
	}
	return &Store{
		districts:    districts,
		subdistricts: subdistricts,
		aliases:      cfg.Aliases,
		proximity:    cfg.ProximityMeters,
	}
}

// Counts returns the number of district and sub-district features.
func (s *Store) Counts() (districts, subdistricts int) {
	if s == nil {
		return 0, 0
	}
	return len(s.districts), len(s.subdistricts)
}

// Proximity returns the namesake rejection radius in meters.
func (s *Store) Proximity() float64 {
	return s.proximity
}

// DistrictCandidates returns the districts matching name, best matches first:
// exact, prefix, containment, reverse containment.
func (s *Store) DistrictCandidates(name string) []Feature {
	if s == nil {
		return nil
	}
	q := Normalize(name)
	if q == "" {
		return nil
	}

	type scored struct {
		f     Feature
		score int
	}
	var hits []scored
	for _, f := range s.districts {
		if !matchesDistrict(f.Name, q) {
			continue
		}
		score := 3
		switch {
		case f.Name == q:
			score = 0
		case strings.HasPrefix(f.Name, q):
			score = 1
		case strings.Contains(f.Name, q):
			score = 2
		}
		hits = append(hits, scored{f: f, score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score < hits[j].score })

	out := make([]Feature, 0, len(hits))
	for _, h := range hits {
		if h.score != hits[0].score {
			break
		}
		out = append(out, h.f)
	}
	return out
}

// SubdistrictCandidates returns every sub-district matching name after alias
// expansion, in dataset order.
func (s *Store) SubdistrictCandidates(name string) []Feature {
	if s == nil {
		return nil
	}
	terms := SubdistrictTerms(name, s.aliases)
	if len(terms) == 0 {
		return nil
	}
	var out []Feature
	for _, f := range s.subdistricts {
		if matchesSubdistrict(f.Name, terms) {
			out = append(out, f)
		}
	}
	return out
}

// Near keeps the features within the proximity radius of p. A feature that
// contains p is always kept.
func (s *Store) Near(features []Feature, p orb.Point) []Feature {
	var out []Feature
	for _, f := range features {
		if f.Contains(p) || geo.Distance(f.Centroid, p) <= s.proximity {
			out = append(out, f)
		}
	}
	return out
}

// Nearest returns the feature containing p, or else the one whose centroid is
// closest to p.
func Nearest(features []Feature, p orb.Point) (Feature, bool) {
	if len(features) == 0 {
		return Feature{}, false
	}
	for _, f := range features {
		if f.Contains(p) {
			return f, true
		}
	}
	best := 0
	bestDist := geo.Distance(features[0].Centroid, p)
	for i := 1; i < len(features); i++ {
		if d := geo.Distance(features[i].Centroid, p); d < bestDist {
			best, bestDist = i, d
		}
	}
	return features[best], true
}

// Search resolves a keyword to a district first, then to a sub-district. It
// has no side effects.
func (s *Store) Search(keyword string) (Match, error) {
	if s == nil {
		return Match{}, ErrNoMatch
	}
	if c := s.DistrictCandidates(keyword); len(c) > 0 {
		group := s.Near(c, c[0].Centroid)
		return combined(group, TypeDistrict, DistrictZoom), nil
	}
	if c := s.SubdistrictCandidates(keyword); len(c) > 0 {
		group := s.Near(c, c[0].Centroid)
		m := combined(group, TypeSubdistrict, SubdistrictZoom)
		m.Name = Normalize(keyword)
		return m, nil
	}
	return Match{}, ErrNoMatch
}

// combined merges features into one match at their area-weighted centroid.
func combined(features []Feature, typ RegionType, zoom int) Match {
	var all orb.MultiPolygon
	for _, f := range features {
		all = append(all, f.Geometry...)
	}
	c, _ := planar.CentroidArea(all)
	return Match{
		Lat:      c.Lat(),
		Lng:      c.Lon(),
		Zoom:     zoom,
		Type:     typ,
		Name:     features[0].Name,
		Features: len(features),
	}
}
