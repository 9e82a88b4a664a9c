package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MeKo-Tech/memorialmap/internal/region"
)

// DefaultRegionTTL is how long region search results are kept.
const DefaultRegionTTL = 24 * time.Hour

// SearchFunc resolves a keyword, e.g. (*region.Store).Search.
type SearchFunc func(keyword string) (region.Match, error)

// cachedMatch also records misses so repeated unknown keywords stay cheap.
type cachedMatch struct {
	Miss  bool          `json:"miss,omitempty"`
	Match *region.Match `json:"match,omitempty"`
}

// Regions caches region search results. Concurrent lookups of the same
// keyword share one search.
type Regions struct {
	cache  Cache
	search SearchFunc
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewRegions creates a region search cache over c.
func NewRegions(c Cache, search SearchFunc, ttl time.Duration, logger *slog.Logger) *Regions {
	if ttl <= 0 {
		ttl = DefaultRegionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Regions{cache: c, search: search, ttl: ttl, logger: logger}
}

// Search returns the match for keyword. The second result reports whether it
// was served from the cache. Cache failures are logged and bypassed.
func (r *Regions) Search(ctx context.Context, keyword string) (region.Match, bool, error) {
	key := "region:" + region.Normalize(keyword)

	if b, ok, err := r.cache.Get(ctx, key); err != nil {
		r.logger.Warn("Region cache read failed", "key", key, "error", err)
	} else if ok {
		var cm cachedMatch
		if err := json.Unmarshal(b, &cm); err == nil {
			if cm.Miss || cm.Match == nil {
				return region.Match{}, true, region.ErrNoMatch
			}
			return *cm.Match, true, nil
		}
		r.logger.Warn("Discarding corrupt region cache entry", "key", key)
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		m, err := r.search(keyword)
		var cm cachedMatch
		switch {
		case errors.Is(err, region.ErrNoMatch):
			cm.Miss = true
		case err != nil:
			return region.Match{}, err
		default:
			cm.Match = &m
		}
		if b, merr := json.Marshal(cm); merr == nil {
			if serr := r.cache.Set(ctx, key, b, r.ttl); serr != nil {
				r.logger.Warn("Region cache write failed", "key", key, "error", serr)
			}
		}
		return m, err
	})
	return v.(region.Match), false, err
}
