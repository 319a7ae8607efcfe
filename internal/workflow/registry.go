package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"kycbuster/internal/workflow/metrics"
	id "kycbuster/pkg/domain"
	dErrors "kycbuster/pkg/domain-errors"
)

// DefaultIdleTTL is how long an untouched session is kept.
const DefaultIdleTTL = 30 * time.Minute

// Registry holds live sessions for the HTTP surface. Sessions are only
// visible to their owner and are evicted once idle.
type Registry struct {
	engine  *Engine
	idleTTL time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	sessions map[id.SessionID]*Session
}

type RegistryOption func(*Registry)

func WithIdleTTL(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.idleTTL = d
		}
	}
}

func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

func WithRegistryMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

func NewRegistry(engine *Engine, opts ...RegistryOption) *Registry {
	r := &Registry{
		engine:   engine,
		idleTTL:  DefaultIdleTTL,
		now:      time.Now,
		logger:   slog.Default(),
		sessions: make(map[id.SessionID]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create starts and registers a new session for the user.
func (r *Registry) Create(userID id.UserID) (*Session, error) {
	s, err := r.engine.NewSession(userID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	r.metrics.SessionStarted()
	return s, nil
}

// Get returns the user's session. Sessions owned by someone else are
// reported as not found.
func (r *Registry) Get(userID id.UserID, sessionID id.SessionID) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok || s.UserID() != userID {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	return s, nil
}

// Start creates a session and returns its initial view.
func (r *Registry) Start(userID id.UserID) (View, error) {
	s, err := r.Create(userID)
	if err != nil {
		return View{}, err
	}
	return s.View(), nil
}

// View returns a snapshot of the user's session.
func (r *Registry) View(userID id.UserID, sessionID id.SessionID) (View, error) {
	s, err := r.Get(userID, sessionID)
	if err != nil {
		return View{}, err
	}
	return s.View(), nil
}

// Dispatch applies cmd to the user's session. The view is returned on
// failure too so callers can show the stage the session stayed in.
func (r *Registry) Dispatch(ctx context.Context, userID id.UserID, sessionID id.SessionID, cmd Command) (View, error) {
	s, err := r.Get(userID, sessionID)
	if err != nil {
		return View{}, err
	}
	return r.engine.Dispatch(ctx, s, cmd)
}

// Abandon cancels and removes the user's session.
func (r *Registry) Abandon(ctx context.Context, userID id.UserID, sessionID id.SessionID) error {
	s, err := r.Get(userID, sessionID)
	if err != nil {
		return err
	}
	if r.remove(sessionID) {
		r.engine.Abandon(ctx, s)
		r.metrics.SessionEnded("abandoned")
	}
	return nil
}

func (r *Registry) remove(sessionID id.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return false
	}
	delete(r.sessions, sessionID)
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// EvictIdle removes sessions untouched for longer than the idle TTL. Busy
// sessions are skipped. It returns how many sessions were removed.
func (r *Registry) EvictIdle(ctx context.Context) int {
	cutoff := r.now().Add(-r.idleTTL)
	var stale []*Session
	r.mu.Lock()
	for sid, s := range r.sessions {
		if s.Busy() || s.UpdatedAt().After(cutoff) {
			continue
		}
		delete(r.sessions, sid)
		stale = append(stale, s)
	}
	r.mu.Unlock()

	for _, s := range stale {
		r.engine.Abandon(ctx, s)
		r.metrics.SessionEnded("evicted")
	}
	if len(stale) > 0 {
		r.logger.InfoContext(ctx, "evicted idle verification sessions", "count", len(stale))
	}
	return len(stale)
}

// Run evicts idle sessions on every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.EvictIdle(ctx)
		}
	}
}
