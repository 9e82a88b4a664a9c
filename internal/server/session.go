package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/memorialmap/internal/engine"
	"github.com/MeKo-Tech/memorialmap/internal/mapview"
	"github.com/MeKo-Tech/memorialmap/internal/region"
	"github.com/MeKo-Tech/memorialmap/internal/types"
)

var (
	errSessionNotFound = errors.New("session not found")
	errTooManySessions = errors.New("too many sessions")
)

// Session is one viewer: a headless canvas and the engine drawing on it.
type Session struct {
	ID      string
	Canvas  *mapview.Canvas
	Engine  *engine.Engine
	Created time.Time

	lastSeen atomic.Int64
	bounds   atomic.Pointer[types.Bounds]
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// LastSeen returns the time of the most recent request on the session.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// LastBounds returns the bounds reported by the most recent idle event.
func (s *Session) LastBounds() (types.Bounds, bool) {
	b := s.bounds.Load()
	if b == nil {
		return types.Bounds{}, false
	}
	return *b, true
}

// SessionOptions describes the viewport of a new session.
type SessionOptions struct {
	Width      int
	Height     int
	Center     types.LatLng
	Zoom       int
	Categories []types.Category
}

// sessions is the registry of open sessions. Idle sessions are reaped after ttl.
type sessions struct {
	mu     sync.Mutex
	byID   map[string]*Session
	// pending counts slots reserved by sessions still being opened
	pending int
	max     int
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
	onOpen func(delta int)
}

func newSessions(maxSessions int, ttl time.Duration, logger *slog.Logger, onOpen func(int)) *sessions {
	return &sessions{
		byID:   make(map[string]*Session),
		max:    maxSessions,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		onOpen: onOpen,
	}
}

// open creates a session around a ready canvas and attaches the engine to it.
func (ss *sessions) open(ctx context.Context, opts SessionOptions, cfg engine.Config, regions *region.Store, facilities []types.Facility) (*Session, error) {
	if !ss.reserve() {
		return nil, errTooManySessions
	}
	sess, err := ss.build(ctx, opts, cfg, regions, facilities)
	if err != nil {
		ss.release()
		return nil, err
	}

	ss.mu.Lock()
	ss.pending--
	ss.byID[sess.ID] = sess
	ss.mu.Unlock()
	if ss.onOpen != nil {
		ss.onOpen(1)
	}
	ss.logger.Info("Session opened", "session", sess.ID, "facilities", len(facilities))
	return sess, nil
}

// reserve claims a session slot. It reports false when the limit is reached.
func (ss *sessions) reserve() bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.max > 0 && len(ss.byID)+ss.pending >= ss.max {
		return false
	}
	ss.pending++
	return true
}

// release returns a slot claimed by reserve.
func (ss *sessions) release() {
	ss.mu.Lock()
	ss.pending--
	ss.mu.Unlock()
}

func (ss *sessions) build(ctx context.Context, opts SessionOptions, cfg engine.Config, regions *region.Store, facilities []types.Facility) (*Session, error) {
	sess := &Session{
		ID:      uuid.NewString(),
		Canvas:  mapview.NewCanvas(opts.Width, opts.Height, opts.Center, opts.Zoom),
		Created: ss.now(),
	}
	sess.touch(sess.Created)

	cfg.Logger = ss.logger.With("session", sess.ID)
	cfg.OnBoundsChanged = func(b types.Bounds) {
		sess.bounds.Store(&b)
	}
	sess.Engine = engine.New(regions, cfg)

	if err := sess.Engine.SetFacilities(facilities); err != nil {
		_ = sess.Engine.Close()
		return nil, err
	}
	sess.Canvas.MarkReady()
	if err := sess.Engine.Attach(ctx, sess.Canvas); err != nil {
		_ = sess.Engine.Close()
		return nil, fmt.Errorf("failed to attach engine: %w", err)
	}
	return sess, nil
}

func (ss *sessions) get(id string) (*Session, error) {
	ss.mu.Lock()
	sess, ok := ss.byID[id]
	ss.mu.Unlock()
	if !ok {
		return nil, errSessionNotFound
	}
	sess.touch(ss.now())
	return sess, nil
}

func (ss *sessions) close(id string) error {
	ss.mu.Lock()
	sess, ok := ss.byID[id]
	delete(ss.byID, id)
	ss.mu.Unlock()
	if !ok {
		return errSessionNotFound
	}
	if ss.onOpen != nil {
		ss.onOpen(-1)
	}
	ss.logger.Info("Session closed", "session", id)
	return sess.Engine.Close()
}

func (ss *sessions) count() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.byID)
}

// reapIdle closes sessions not seen within ttl and returns how many were closed.
func (ss *sessions) reapIdle() int {
	if ss.ttl <= 0 {
		return 0
	}
	cutoff := ss.now().Add(-ss.ttl)

	ss.mu.Lock()
	var stale []string
	for id, sess := range ss.byID {
		if sess.LastSeen().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	ss.mu.Unlock()

	for _, id := range stale {
		_ = ss.close(id)
	}
	return len(stale)
}

func (ss *sessions) reap(ctx context.Context) {
	interval := ss.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := ss.reapIdle(); n > 0 {
				ss.logger.Debug("Reaped idle sessions", "count", n)
			}
		}
	}
}

func (ss *sessions) closeAll() {
	ss.mu.Lock()
	ids := make([]string, 0, len(ss.byID))
	for id := range ss.byID {
		ids = append(ids, id)
	}
	ss.mu.Unlock()

	for _, id := range ids {
		_ = ss.close(id)
	}
}
