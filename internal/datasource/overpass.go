// Package datasource fetches administrative boundaries from the OSM Overpass API.
package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/MeKo-Christian/go-overpass"
	"golang.org/x/sync/errgroup"

	"github.com/MeKo-Tech/memorialmap/internal/region"
	"github.com/MeKo-Tech/memorialmap/internal/types"
)

// DefaultEndpoint is the public Overpass API interpreter.
const DefaultEndpoint = "https://overpass-api.de/api/interpreter"

// OSM admin_level values used in South Korea.
const (
	AdminLevelDistrict    = 6 // 시·군·구
	AdminLevelSubdistrict = 8 // 읍·면·동
)

// Querier runs an Overpass QL query. overpass.Client satisfies it.
type Querier interface {
	Query(query string) (overpass.Result, error)
}

// Status contains counters of the boundary fetches made so far.
type Status struct {
	ActiveFetches  int   `json:"active_fetches"`
	TotalCompleted int64 `json:"total_completed"`
	TotalFailed    int64 `json:"total_failed"`
	TotalFeatures  int64 `json:"total_features"`
}

// OverpassBoundaries fetches district and sub-district boundaries from Overpass.
type OverpassBoundaries struct {
	client overpass.Client
	q      Querier
	logger *slog.Logger

	activeFetches  atomic.Int32
	totalCompleted atomic.Int64
	totalFailed    atomic.Int64
	totalFeatures  atomic.Int64
}

// NewOverpassBoundaries creates a boundary source for endpoint. An empty
// endpoint selects DefaultEndpoint.
func NewOverpassBoundaries(endpoint string, logger *slog.Logger) *OverpassBoundaries {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	// Create client (rate limited to 1 concurrent request)
	client := overpass.NewWithSettings(
		endpoint,
		1, // Only 1 parallel request (API etiquette)
		http.DefaultClient,
	)

	ob := &OverpassBoundaries{client: client, logger: logger}
	ob.q = &ob.client
	return ob
}

// NewOverpassBoundariesWithQuerier creates a boundary source over q, e.g. a
// fake in tests or a caching querier.
func NewOverpassBoundariesWithQuerier(q Querier, logger *slog.Logger) *OverpassBoundaries {
	return &OverpassBoundaries{q: q, logger: logger}
}

func (ob *OverpassBoundaries) log() *slog.Logger {
	if ob.logger != nil {
		return ob.logger
	}
	return slog.Default()
}

// Fetch returns the district and sub-district boundaries intersecting b. The
// two levels are queried concurrently; the client keeps to one request at a
// time against the server.
func (ob *OverpassBoundaries) Fetch(ctx context.Context, b types.Bounds) (districts, subdistricts []region.Feature, err error) {
	if !b.Valid() {
		return nil, nil, fmt.Errorf("invalid bounds %s", b)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		districts, err = ob.fetchLevel(ctx, b, AdminLevelDistrict, region.LevelDistrict)
		return err
	})
	g.Go(func() error {
		var err error
		subdistricts, err = ob.fetchLevel(ctx, b, AdminLevelSubdistrict, region.LevelSubdistrict)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return districts, subdistricts, nil
}

func (ob *OverpassBoundaries) fetchLevel(ctx context.Context, b types.Bounds, adminLevel int, level region.Level) ([]region.Feature, error) {
	ob.activeFetches.Add(1)
	defer ob.activeFetches.Add(-1)

	log := ob.log().With("admin_level", adminLevel, "bounds", b.String())
	log.Info("Fetching boundaries from Overpass API")
	start := time.Now()

	// Execute query (note: this client version doesn't support context)
	result, err := ob.q.Query(BuildBoundaryQuery(b, adminLevel))
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		ob.totalFailed.Add(1)
		log.Error("Boundary fetch failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("overpass query for admin_level %d failed: %w", adminLevel, err)
	}

	features := ExtractBoundaries(&result, level)
	ob.totalCompleted.Add(1)
	ob.totalFeatures.Add(int64(len(features)))
	log.Info("Boundary fetch completed",
		"features", len(features),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return features, nil
}

// BuildBoundaryQuery creates the Overpass QL query for the administrative
// boundary relations of one admin level. Relations are fetched with their
// full geometry, not clipped to the bbox.
func BuildBoundaryQuery(b types.Bounds, adminLevel int) string {
	bbox := fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.South, b.West, b.North, b.East)
	return fmt.Sprintf(`
[out:json][timeout:120];
(
  relation["boundary"="administrative"]["admin_level"="%d"](%s);
);
out geom;
`, adminLevel, bbox)
}

// Status returns the fetch counters.
func (ob *OverpassBoundaries) Status() Status {
	return Status{
		ActiveFetches:  int(ob.activeFetches.Load()),
		TotalCompleted: ob.totalCompleted.Load(),
		TotalFailed:    ob.totalFailed.Load(),
		TotalFeatures:  ob.totalFeatures.Load(),
	}
}
