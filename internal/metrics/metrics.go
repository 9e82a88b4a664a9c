// Package metrics exposes Prometheus metrics for map sessions and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/memorialmap/internal/mapview"
)

const namespace = "memorialmap"

// Collector holds all application metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	// Engine metrics
	ViewportUpdatesTotal prometheus.Counter
	ViewportUpdateTime   prometheus.Histogram
	VisibleMarkers       prometheus.Histogram
	ClustersOnMap        prometheus.Gauge
	HighlightsTotal      *prometheus.CounterVec

	// Region search metrics
	RegionSearchesTotal *prometheus.CounterVec

	// Session metrics
	SessionsActive prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates a collector with Go runtime and process collectors registered.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		ViewportUpdatesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "viewport_updates_total",
			Help:      "Total number of marker render cycles",
		}),
		ViewportUpdateTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "viewport_update_duration_seconds",
			Help:      "Duration of marker render cycles",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		VisibleMarkers: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "visible_markers",
			Help:      "Markers rendered per update",
			Buckets:   []float64{0, 10, 30, 100, 250, 500},
		}),
		ClustersOnMap: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clusters",
			Help:      "Clusters drawn by the most recent update",
		}),
		HighlightsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "highlights_total",
			Help:      "Region highlights by overlay kind",
		}, []string{"kind"}),
		RegionSearchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "region_searches_total",
			Help:      "Region searches by result",
		}, []string{"result"}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open map sessions",
		}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// ObserveUpdate records one render cycle.
func (c *Collector) ObserveUpdate(visible, clusters int, elapsed time.Duration) {
	c.ViewportUpdatesTotal.Inc()
	c.ViewportUpdateTime.Observe(elapsed.Seconds())
	c.VisibleMarkers.Observe(float64(visible))
	c.ClustersOnMap.Set(float64(clusters))
}

// ObserveHighlight records a highlight by the kind of its first overlay.
func (c *Collector) ObserveHighlight(kind mapview.Kind) {
	c.HighlightsTotal.WithLabelValues(string(kind)).Inc()
}

// Search results for RegionSearchesTotal.
const (
	SearchHit    = "hit"
	SearchCached = "cached"
	SearchMiss   = "miss"
	SearchError  = "error"
)

// ObserveSearch records a region search outcome.
func (c *Collector) ObserveSearch(result string) {
	c.RegionSearchesTotal.WithLabelValues(result).Inc()
}

// Instrument wraps next with request counting and timing under route.
func (c *Collector) Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		c.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		c.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
