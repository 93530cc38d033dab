package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/colloquy/internal/logging"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/observability"
	"github.com/aretw0/colloquy/pkg/ports"
	"github.com/sourcegraph/conc"
)

// Defaults used by NewRegistry when a non-positive duration is given.
const (
	DefaultIdleTimeout  = 30 * time.Minute
	DefaultSweepPeriod  = time.Minute
	DefaultLeaseTTL     = 5 * time.Minute
	DefaultDrainTimeout = 5 * time.Second
)

type entry struct {
	session    *Session
	lastAccess time.Time
}

// Registry owns the live sessions of one process and expires idle ones.
// Safe for concurrent use.
type Registry struct {
	idleTimeout time.Duration
	sweepPeriod time.Duration

	mu       sync.Mutex // guards sessions and closed
	sessions map[string]*entry
	closed   bool

	leaser       ports.Leaser // Optional cross-replica uniqueness
	leaseTTL     time.Duration
	drainTimeout time.Duration

	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time

	quit     chan struct{}
	swept    chan struct{}
	stopOnce sync.Once
}

// Option configures the Registry.
type Option func(*Registry)

// WithLogger configures a logger for the Registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithLeaser enables identifier leases with the given time-to-live. The ttl must
// outlast the sweep period, since leases are refreshed once per sweep.
func WithLeaser(leaser ports.Leaser, ttl time.Duration) Option {
	return func(r *Registry) {
		r.leaser = leaser
		if ttl > 0 {
			r.leaseTTL = ttl
		}
	}
}

// WithDrainTimeout bounds how long Stop waits for each execution to exit.
// Zero waits without bound.
func WithDrainTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.drainTimeout = max(d, 0)
	}
}

// NewRegistry creates a Registry and starts its sweep loop.
func NewRegistry(idleTimeout, sweepPeriod time.Duration, opts ...Option) *Registry {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if sweepPeriod <= 0 {
		sweepPeriod = DefaultSweepPeriod
	}
	r := &Registry{
		idleTimeout:  idleTimeout,
		sweepPeriod:  sweepPeriod,
		sessions:     make(map[string]*entry),
		leaseTTL:     DefaultLeaseTTL,
		drainTimeout: DefaultDrainTimeout,
		logger:       logging.NewNop(),
		now:          time.Now,
		quit:         make(chan struct{}),
		swept:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	go r.sweep()
	return r
}

// IdleTimeout returns the configured idle timeout.
func (r *Registry) IdleTimeout() time.Duration { return r.idleTimeout }

// Add starts tracking s. It fails with ErrSessionExists if the identifier is in use
// (locally or, with a leaser, on another replica) and with ErrRegistryStopped after Stop.
func (r *Registry) Add(ctx context.Context, s *Session) error {
	if s == nil || s.ID() == "" {
		return domain.IllegalUsage("adding a session without identifier")
	}
	if err := r.reserve(s.ID()); err != nil {
		return err
	}

	if r.leaser != nil {
		lease, err := r.leaser.Acquire(ctx, s.ID(), r.leaseTTL)
		if errors.Is(err, domain.ErrLeaseHeld) {
			return fmt.Errorf("%s: %w: %w", s.ID(), domain.ErrSessionExists, err)
		}
		if err != nil {
			return fmt.Errorf("failed to lease session %s: %w", s.ID(), err)
		}
		s.setLease(lease)
	}

	s.bind(r)
	r.mu.Lock()
	err := r.checkFree(s.ID())
	if err == nil {
		r.sessions[s.ID()] = &entry{session: s, lastAccess: r.now()}
	}
	r.mu.Unlock()

	if err != nil {
		s.releaseLease()
		return err
	}

	r.metrics.SessionAdded()
	r.logger.Debug("session added", "session_id", s.ID())
	return nil
}

// Get returns the session and marks it as accessed.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrSessionNotFound)
	}
	e.lastAccess = r.now()
	return e.session, nil
}

// GetOrAdd returns the session tracked under id, or adds a new one carrying data.
// The boolean reports whether the session was created.
func (r *Registry) GetOrAdd(ctx context.Context, id string, data any) (*Session, bool, error) {
	for {
		if s, err := r.Get(id); err == nil {
			return s, false, nil
		}

		s := New(id, data)
		err := r.Add(ctx, s)
		if err == nil {
			return s, true, nil
		}
		// Lost a race against a local Add: look it up again.
		if !errors.Is(err, domain.ErrSessionExists) || r.isRemote(id) {
			return nil, false, err
		}
	}
}

// Remove stops tracking the session under id without stopping it. Its lease is
// released, so the identifier can be reused at once.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return
	}
	r.metrics.SessionRemoved()
	r.logger.Debug("session removed", "session_id", id)
	e.session.releaseLease()
}

// IDs returns the tracked identifiers, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Expire stops every session last accessed before the given instant and returns how
// many were expired. The sweep loop calls it with now minus the idle timeout.
func (r *Registry) Expire(before time.Time) int {
	r.mu.Lock()
	var idle []*Session
	for id, e := range r.sessions {
		if e.lastAccess.Before(before) {
			idle = append(idle, e.session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		r.metrics.SessionRemoved()
		r.metrics.SessionExpired()
		r.logger.Info("session expired", "session_id", s.ID(), "idle_timeout", r.idleTimeout)
		s.Stop()
	}
	return len(idle)
}

// Stop ends the sweep loop and stops every remaining session, waiting for each
// execution up to the drain timeout. It is idempotent.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		remaining := make([]*Session, 0, len(r.sessions))
		for _, e := range r.sessions {
			remaining = append(remaining, e.session)
		}
		r.mu.Unlock()

		close(r.quit)
		<-r.swept

		r.logger.Info("draining sessions", "count", len(remaining))

		var wg conc.WaitGroup
		for _, s := range remaining {
			s := s
			wg.Go(func() {
				s.Stop()
				e := s.Execution()
				if e == nil {
					return
				}
				if err := e.Join(r.drainTimeout); err != nil {
					r.logger.Warn("session did not drain cleanly", "session_id", s.ID(), "err", err)
				}
			})
		}
		wg.Wait()
	})
}

func (r *Registry) sweep() {
	defer close(r.swept)

	ticker := time.NewTicker(r.sweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-r.quit:
			return
		case <-ticker.C:
			if n := r.Expire(r.now().Add(-r.idleTimeout)); n > 0 {
				r.logger.Debug("sweep expired sessions", "count", n)
			}
			r.refreshLeases()
		}
	}
}

func (r *Registry) refreshLeases() {
	if r.leaser == nil {
		return
	}

	r.mu.Lock()
	live := make([]*Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		live = append(live, e.session)
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.sweepPeriod)
	defer cancel()
	for _, s := range live {
		l := s.Lease()
		if l == nil {
			continue
		}
		if err := l.Refresh(ctx, r.leaseTTL); err != nil {
			r.logger.Warn("failed to refresh session lease", "session_id", s.ID(), "err", err)
		}
	}
}

func (r *Registry) reserve(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checkFree(id)
}

// checkFree must be called with r.mu held.
func (r *Registry) checkFree(id string) error {
	if r.closed {
		return domain.ErrRegistryStopped
	}
	if _, ok := r.sessions[id]; ok {
		return fmt.Errorf("%s: %w", id, domain.ErrSessionExists)
	}
	return nil
}

// isRemote reports whether id is missing locally, meaning a conflict came from the leaser.
func (r *Registry) isRemote(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	return !ok
}

// removeSession drops s only if it is still the session tracked under its id.
func (r *Registry) removeSession(s *Session) {
	r.mu.Lock()
	e, ok := r.sessions[s.ID()]
	if ok && e.session == s {
		delete(r.sessions, s.ID())
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		r.metrics.SessionRemoved()
		r.logger.Debug("session removed", "session_id", s.ID())
	}
}

func (s *Session) logger() *slog.Logger {
	if r := s.registry(); r != nil {
		return r.logger.With("session_id", s.id)
	}
	return logging.NewNop()
}
