// Package store persists facility lists in a SQLite database.
package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/memorialmap/internal/types"
)

// ErrNotFound is returned when a facility id is not in the store.
var ErrNotFound = errors.New("store: facility not found")

// Metadata contains descriptive fields of a facility database.
type Metadata struct {
	Name        string // Human-readable dataset name
	Source      string // Where the records were imported from
	Description string
	Version     string
	Bounds      types.Bounds // Extent of all placed facilities, written on Close
	Count       int          // Number of facilities, written on Close
}

// ToMap converts Metadata to a map for database insertion.
func (m Metadata) ToMap() map[string]string {
	result := make(map[string]string)

	if m.Name != "" {
		result["name"] = m.Name
	}
	if m.Source != "" {
		result["source"] = m.Source
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	if m.Version != "" {
		result["version"] = m.Version
	}
	if m.Bounds != (types.Bounds{}) {
		result["bounds"] = fmt.Sprintf("%.6f,%.6f,%.6f,%.6f",
			m.Bounds.West, m.Bounds.South, m.Bounds.East, m.Bounds.North)
	}
	if m.Count > 0 {
		result["count"] = strconv.Itoa(m.Count)
	}

	return result
}

// metadataFromMap is the inverse of ToMap. Unparseable values are ignored.
func metadataFromMap(values map[string]string) Metadata {
	meta := Metadata{
		Name:        values["name"],
		Source:      values["source"],
		Description: values["description"],
		Version:     values["version"],
	}

	if v, ok := values["count"]; ok {
		if i, err := strconv.Atoi(v); err == nil {
			meta.Count = i
		}
	}

	// "west,south,east,north"
	if v, ok := values["bounds"]; ok {
		parts := strings.Split(v, ",")
		if len(parts) == 4 {
			var f [4]float64
			valid := true
			for i, part := range parts {
				n, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
				if err != nil {
					valid = false
					break
				}
				f[i] = n
			}
			if valid {
				meta.Bounds = types.Bounds{West: f[0], South: f[1], East: f[2], North: f[3]}
			}
		}
	}

	return meta
}
