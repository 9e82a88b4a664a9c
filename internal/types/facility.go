package types

import (
	"strings"

	"github.com/paulmach/orb"
)

// Category represents the kind of burial or memorial facility
type Category string

const (
	CategoryColumbarium Category = "columbarium" // 봉안당
	CategoryNatural     Category = "natural"     // 자연장지
	CategoryCemetery    Category = "cemetery"    // 공원묘지
	CategoryCrematorium Category = "crematorium" // 화장시설
	CategoryUnknown     Category = "unknown"
)

// Categories lists the known categories in display order.
var Categories = []Category{
	CategoryColumbarium,
	CategoryNatural,
	CategoryCemetery,
	CategoryCrematorium,
}

// ShortName returns the compact Korean label used on map badges.
func (c Category) ShortName() string {
	switch c {
	case CategoryColumbarium:
		return "봉안"
	case CategoryNatural:
		return "자연장"
	case CategoryCemetery:
		return "묘지"
	case CategoryCrematorium:
		return "화장"
	default:
		return "기타"
	}
}

// ParseCategory accepts either the English identifier or the usual Korean
// facility type names and returns CategoryUnknown for anything else.
func ParseCategory(s string) Category {
	s = strings.TrimSpace(strings.ToLower(s))
	switch s {
	case "columbarium", "봉안당", "봉안시설", "납골당":
		return CategoryColumbarium
	case "natural", "자연장지", "수목장", "수목장림", "자연장":
		return CategoryNatural
	case "cemetery", "공원묘지", "묘지", "공설묘지", "사설묘지":
		return CategoryCemetery
	case "crematorium", "화장시설", "화장장":
		return CategoryCrematorium
	default:
		return CategoryUnknown
	}
}

// LatLng is a WGS84 coordinate
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point returns the coordinate as an orb.Point (lon, lat order).
func (p LatLng) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// IsZero reports whether p is the (0,0) sentinel.
func (p LatLng) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}

// LatLngFromPoint converts an orb.Point (lon, lat) to LatLng.
func LatLngFromPoint(p orb.Point) LatLng {
	return LatLng{Lat: p.Lat(), Lng: p.Lon()}
}

// PriceRange is a price band in won. Zero values mean "unknown".
type PriceRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// HasPrice reports whether any bound of the range is known.
func (p PriceRange) HasPrice() bool {
	return p.Min > 0 || p.Max > 0
}

// Facility is one burial or memorial site record. The engine never mutates it.
type Facility struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Address     string     `json:"address"`
	Category    Category   `json:"category"`
	Coordinates *LatLng    `json:"coordinates,omitempty"`
	PriceRange  PriceRange `json:"priceRange"`
}

// HasCoordinates reports whether the facility can be placed on a map.
func (f Facility) HasCoordinates() bool {
	return f.Coordinates != nil
}

// DisplayFacility is a facility together with its de-overlapped position.
type DisplayFacility struct {
	Facility
	Fixed LatLng `json:"fixedCoordinates"`
}
