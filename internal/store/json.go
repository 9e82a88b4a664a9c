package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/MeKo-Tech/memorialmap/internal/types"
)

// record is the JSON shape of one facility. It accepts the camelCase field
// names of the web client and a bare lat/lng pair next to the coordinates
// object.
type record struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Address     string        `json:"address"`
	Category    string        `json:"category"`
	Coordinates *types.LatLng `json:"coordinates"`
	Lat         *float64      `json:"lat"`
	Lng         *float64      `json:"lng"`
	PriceRange  struct {
		Min int64 `json:"min"`
		Max int64 `json:"max"`
	} `json:"priceRange"`
}

func (r record) facility() types.Facility {
	f := types.Facility{
		ID:         r.ID,
		Name:       r.Name,
		Address:    r.Address,
		Category:   types.ParseCategory(r.Category),
		PriceRange: types.PriceRange{Min: r.PriceRange.Min, Max: r.PriceRange.Max},
	}
	switch {
	case r.Coordinates != nil && !r.Coordinates.IsZero():
		c := *r.Coordinates
		f.Coordinates = &c
	case r.Lat != nil && r.Lng != nil && (*r.Lat != 0 || *r.Lng != 0):
		f.Coordinates = &types.LatLng{Lat: *r.Lat, Lng: *r.Lng}
	}
	return f
}

// DecodeJSON reads facilities from either a JSON array or an object with a
// "facilities" array. Records without an id are rejected.
func DecodeJSON(r io.Reader) ([]types.Facility, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read facilities: %w", err)
	}

	var records []record
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Facilities []record `json:"facilities"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to parse facilities: %w", err)
		}
		records = wrapped.Facilities
	} else if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, fmt.Errorf("failed to parse facilities: %w", err)
	}

	out := make([]types.Facility, 0, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return nil, fmt.Errorf("facility %d (%q) has no id", i, rec.Name)
		}
		out = append(out, rec.facility())
	}
	return out, nil
}

// ReadJSONFile reads facilities from a JSON file.
func ReadJSONFile(path string) ([]types.Facility, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	facilities, err := DecodeJSON(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return facilities, nil
}
