// Package server exposes map sessions over a JSON HTTP API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/memorialmap/internal/cache"
	"github.com/MeKo-Tech/memorialmap/internal/datasource"
	"github.com/MeKo-Tech/memorialmap/internal/engine"
	"github.com/MeKo-Tech/memorialmap/internal/metrics"
	"github.com/MeKo-Tech/memorialmap/internal/region"
	"github.com/MeKo-Tech/memorialmap/internal/snapshot"
	"github.com/MeKo-Tech/memorialmap/internal/types"
)

// BoundaryStatus reports boundary fetch counters, e.g. *datasource.OverpassBoundaries.
type BoundaryStatus interface {
	Status() datasource.Status
}

type Config struct {
	Facilities []types.Facility
	Regions    *region.Store
	// Cache stores region search results (default: in-memory)
	Cache cache.Cache
	// SearchTTL is the region search cache lifetime (default: 24h)
	SearchTTL time.Duration
	Engine    engine.Config
	Snapshot  snapshot.Options
	Metrics   *metrics.Collector
	// Boundaries is optional and only feeds /healthz
	Boundaries BoundaryStatus
	// MaxSessions limits open sessions; negative means unlimited (default: 256)
	MaxSessions int
	// SessionTTL closes sessions idle for longer (default: 30m)
	SessionTTL time.Duration
	// MaxBodyBytes limits JSON request bodies (default: 64 KiB)
	MaxBodyBytes int64
	CORSOrigin   string
}

type Server struct {
	cfg      Config
	logger   *slog.Logger
	sessions *sessions
	search   *cache.Regions
	metrics  *metrics.Collector
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a server and starts its idle-session reaper. Call Close to stop it.
func New(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewMemory(0)
	}
	if cfg.MaxSessions == 0 {
		cfg.MaxSessions = 256
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	if cfg.Snapshot == (snapshot.Options{}) {
		cfg.Snapshot = snapshot.DefaultOptions()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	cfg.Engine.Observer = cfg.Metrics

	regions := cfg.Regions
	if regions == nil {
		regions = region.NewStore(region.StoreConfig{}, nil, nil)
		cfg.Regions = regions
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		search:  cache.NewRegions(cfg.Cache, regions.Search, cfg.SearchTTL, logger),
		metrics: cfg.Metrics,
		done:    make(chan struct{}),
	}
	s.sessions = newSessions(cfg.MaxSessions, cfg.SessionTTL, logger, func(delta int) {
		s.metrics.SessionsActive.Add(float64(delta))
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer close(s.done)
		s.sessions.reap(ctx)
	}()
	return s
}

// Close stops the reaper and closes every session.
func (s *Server) Close() {
	s.cancel()
	<-s.done
	s.sessions.closeAll()
}

// Handler returns the HTTP handler of the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.metrics.Instrument(pattern, h))
	}

	route("POST /api/sessions", s.handleOpenSession)
	route("GET /api/sessions/{id}", s.handleView)
	route("DELETE /api/sessions/{id}", s.handleCloseSession)
	route("POST /api/sessions/{id}/viewport", s.handleViewport)
	route("POST /api/sessions/{id}/pan", s.handlePan)
	route("POST /api/sessions/{id}/highlight", s.handleHighlight)
	route("POST /api/sessions/{id}/click/{facilityID}", s.handleClick)
	route("GET /api/sessions/{id}/snapshot.png", s.handleSnapshot)
	route("GET /api/regions/search", s.handleSearch)
	route("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	return withCORS(s.cfg.CORSOrigin, mux)
}

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func withCORS(origin string, next http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
