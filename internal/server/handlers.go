package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"github.com/MeKo-Tech/memorialmap/internal/datasource"
	"github.com/MeKo-Tech/memorialmap/internal/engine"
	"github.com/MeKo-Tech/memorialmap/internal/mapview"
	"github.com/MeKo-Tech/memorialmap/internal/metrics"
	"github.com/MeKo-Tech/memorialmap/internal/region"
	"github.com/MeKo-Tech/memorialmap/internal/snapshot"
	"github.com/MeKo-Tech/memorialmap/internal/types"
)

type openRequest struct {
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Center     *types.LatLng `json:"center"`
	Zoom       int           `json:"zoom"`
	Categories []string      `json:"categories"`
}

type viewportRequest struct {
	types.Bounds
	Zoom int `json:"zoom"`
}

type panRequest struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Zoom *int    `json:"zoom"`
}

type highlightRequest struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Zoom int     `json:"zoom"`
	Type string  `json:"type"`
	Name string  `json:"name"`
}

type overlayJSON struct {
	Kind         mapview.Kind      `json:"kind"`
	Name         string            `json:"name,omitempty"`
	Center       *types.LatLng     `json:"center,omitempty"`
	RadiusMeters float64           `json:"radiusMeters,omitempty"`
	Geometry     *geojson.Geometry `json:"geometry,omitempty"`
	Style        mapview.Style     `json:"style"`
}

type viewResponse struct {
	ID         string               `json:"id"`
	Center     types.LatLng         `json:"center"`
	Zoom       int                  `json:"zoom"`
	Bounds     types.Bounds         `json:"bounds"`
	Displayed  int                  `json:"displayed"`
	Markers    []engine.MarkerView  `json:"markers"`
	Clusters   []engine.ClusterView `json:"clusters"`
	Highlights []overlayJSON        `json:"highlights"`
}

type searchResponse struct {
	Match  region.Match `json:"match"`
	Cached bool         `json:"cached"`
}

type healthResponse struct {
	Status       string             `json:"status"`
	Sessions     int                `json:"sessions"`
	Facilities   int                `json:"facilities"`
	Districts    int                `json:"districts"`
	Subdistricts int                `json:"subdistricts"`
	Boundaries   *datasource.Status `json:"boundaries,omitempty"`
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if !s.decode(w, r, &req, true) {
		return
	}

	opts := SessionOptions{
		Width:  req.Width,
		Height: req.Height,
		Center: mapview.DefaultCenter,
		Zoom:   req.Zoom,
	}
	if req.Center != nil {
		opts.Center = *req.Center
	}
	if opts.Zoom == 0 {
		opts.Zoom = mapview.DefaultZoom
	}
	for _, c := range req.Categories {
		opts.Categories = append(opts.Categories, types.ParseCategory(c))
	}

	sess, err := s.sessions.open(r.Context(), opts, s.cfg.Engine, s.cfg.Regions, filterCategories(s.cfg.Facilities, opts.Categories))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, http.StatusCreated, sess)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.writeView(w, http.StatusOK, sess)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.close(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req viewportRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	if !req.Bounds.Valid() {
		writeErrorMessage(w, http.StatusBadRequest, "invalid bounds")
		return
	}

	sess.Canvas.SetView(req.Bounds, req.Zoom)
	if err := sess.Engine.Idle(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, http.StatusOK, sess)
}

func (s *Server) handlePan(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req panRequest
	if !s.decode(w, r, &req, false) {
		return
	}

	if err := sess.Engine.Commands().PanTo(req.Lat, req.Lng, req.Zoom); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeView(w, http.StatusOK, sess)
}

func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req highlightRequest
	if !s.decode(w, r, &req, false) {
		return
	}

	drawn, err := sess.Engine.Commands().HighlightRegion(req.Lat, req.Lng, req.Zoom, region.ParseRegionType(req.Type), req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"overlays": overlaysJSON(drawn)})
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	f, handled, err := sess.Engine.Click(r.PathValue("facilityID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !handled {
		writeErrorMessage(w, http.StatusNotFound, "no rendered marker for facility")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"facility": f})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	opts := s.cfg.Snapshot
	if v := r.URL.Query().Get("scale"); v != "" {
		scale, err := strconv.ParseFloat(v, 64)
		if err != nil || scale < 0.25 || scale > 4 {
			writeErrorMessage(w, http.StatusBadRequest, "scale must be between 0.25 and 4")
			return
		}
		opts.Scale = scale
	}

	width, height := sess.Canvas.Size()
	scene, err := snapshot.Capture(sess.Engine, width, height)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := snapshot.WritePNG(w, scene, opts); err != nil {
		s.log().Error("Failed to render snapshot", "session", sess.ID, "error", err)
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeErrorMessage(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	m, cached, err := s.search.Search(r.Context(), q)
	switch {
	case errors.Is(err, region.ErrNoMatch):
		s.metrics.ObserveSearch(metrics.SearchMiss)
		writeErrorMessage(w, http.StatusNotFound, "no matching region")
		return
	case err != nil:
		s.metrics.ObserveSearch(metrics.SearchError)
		s.log().Error("Region search failed", "query", q, "error", err)
		writeErrorMessage(w, http.StatusInternalServerError, "region search failed")
		return
	case cached:
		s.metrics.ObserveSearch(metrics.SearchCached)
	default:
		s.metrics.ObserveSearch(metrics.SearchHit)
	}
	writeJSON(w, http.StatusOK, searchResponse{Match: m, Cached: cached})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	districts, subdistricts := s.cfg.Regions.Counts()
	resp := healthResponse{
		Status:       "ok",
		Sessions:     s.sessions.count(),
		Facilities:   len(s.cfg.Facilities),
		Districts:    districts,
		Subdistricts: subdistricts,
	}
	if s.cfg.Boundaries != nil {
		st := s.cfg.Boundaries.Status()
		resp.Boundaries = &st
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, err := s.sessions.get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return sess, true
}

// writeView writes the session's current frame.
func (s *Server) writeView(w http.ResponseWriter, status int, sess *Session) {
	f, err := sess.Engine.Frame()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, status, viewResponse{
		ID:         sess.ID,
		Center:     f.Center,
		Zoom:       f.Zoom,
		Bounds:     f.Bounds,
		Displayed:  f.Displayed,
		Markers:    f.Markers,
		Clusters:   f.Clusters,
		Highlights: overlaysJSON(f.Highlights),
	})
}

// decode reads a JSON body into v. An empty body is accepted when optional.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	writeErrorMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
	return false
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errSessionNotFound):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errTooManySessions):
		writeErrorMessage(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, engine.ErrClosed):
		writeErrorMessage(w, http.StatusGone, "session closed")
	default:
		s.log().Error("Request failed", "error", err)
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func filterCategories(facilities []types.Facility, categories []types.Category) []types.Facility {
	if len(categories) == 0 {
		return facilities
	}
	want := make(map[types.Category]bool, len(categories))
	for _, c := range categories {
		want[c] = true
	}
	out := make([]types.Facility, 0, len(facilities))
	for _, f := range facilities {
		if want[f.Category] {
			out = append(out, f)
		}
	}
	return out
}

func overlaysJSON(overlays []mapview.Overlay) []overlayJSON {
	out := make([]overlayJSON, 0, len(overlays))
	for _, o := range overlays {
		switch o := o.(type) {
		case *mapview.Polygon:
			out = append(out, overlayJSON{
				Kind:     o.Kind(),
				Name:     o.Name,
				Geometry: geojson.NewGeometry(o.Geometry),
				Style:    o.Style,
			})
		case *mapview.Circle:
			center := o.Center
			out = append(out, overlayJSON{
				Kind:         o.Kind(),
				Center:       &center,
				RadiusMeters: o.RadiusMeters,
				Style:        o.Style,
			})
		}
	}
	return out
}
