package colloquy

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/colloquy/internal/logging"
	"github.com/aretw0/colloquy/pkg/catalog"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/execution"
	"github.com/aretw0/colloquy/pkg/observability"
	"github.com/aretw0/colloquy/pkg/ports"
	"github.com/aretw0/colloquy/pkg/session"
	"github.com/google/uuid"
)

// DefaultStartupTimeout bounds the wait for a dialogue's first step.
const DefaultStartupTimeout = 30 * time.Second

// Host is the high-level entry point for the Colloquy library.
// It wires executions to a session registry and a procedure catalog, so a controller
// only deals with identifiers and turns.
type Host struct {
	registry *session.Registry
	catalog  *catalog.Catalog

	timeouts       execution.Timeouts
	startupTimeout time.Duration
	idleTimeout    time.Duration
	sweepPeriod    time.Duration
	registryOpts   []session.Option

	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option defines a functional option for configuring the Host.
type Option func(*Host)

// WithLogger sets a custom structured logger for the host and everything it creates.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Host) {
		h.metrics = m
	}
}

// WithTimeouts sets the protocol timeouts of every execution.
func WithTimeouts(t execution.Timeouts) Option {
	return func(h *Host) {
		h.timeouts = t
	}
}

// WithStartupTimeout bounds how long Open waits for the first step.
func WithStartupTimeout(d time.Duration) Option {
	return func(h *Host) {
		h.startupTimeout = d
	}
}

// WithExpiry configures the idle timeout and sweep period of the session registry.
func WithExpiry(idleTimeout, sweepPeriod time.Duration) Option {
	return func(h *Host) {
		h.idleTimeout = idleTimeout
		h.sweepPeriod = sweepPeriod
	}
}

// WithLeaser makes session identifiers unique across replicas.
func WithLeaser(leaser ports.Leaser, ttl time.Duration) Option {
	return func(h *Host) {
		h.registryOpts = append(h.registryOpts, session.WithLeaser(leaser, ttl))
	}
}

// WithDrainTimeout bounds the per-session wait during Shutdown.
func WithDrainTimeout(d time.Duration) Option {
	return func(h *Host) {
		h.registryOpts = append(h.registryOpts, session.WithDrainTimeout(d))
	}
}

// WithCatalog replaces the (empty) default procedure catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(h *Host) {
		if c != nil {
			h.catalog = c
		}
	}
}

// New creates a Host and starts its session registry.
func New(opts ...Option) *Host {
	h := &Host{
		catalog:        catalog.New(),
		timeouts:       execution.DefaultTimeouts(),
		startupTimeout: DefaultStartupTimeout,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}

	regOpts := append([]session.Option{
		session.WithLogger(h.logger),
		session.WithMetrics(h.metrics),
	}, h.registryOpts...)
	h.registry = session.NewRegistry(h.idleTimeout, h.sweepPeriod, regOpts...)
	return h
}

// Registry exposes the underlying session registry.
func (h *Host) Registry() *session.Registry { return h.registry }

// Catalog exposes the procedure catalog.
func (h *Host) Catalog() *catalog.Catalog { return h.catalog }

// Open creates a session under id (a new uuid when empty), launches proc with param
// and returns the first step. If the dialogue does not produce it within the startup
// timeout the session is stopped and the timeout returned.
func (h *Host) Open(ctx context.Context, id string, proc execution.Procedure, param any) (*session.Session, domain.Step, error) {
	if proc == nil {
		return nil, domain.Step{}, domain.IllegalUsage("opening a session without procedure")
	}
	if id == "" {
		id = uuid.NewString()
	}

	s := session.New(id, param)
	if err := h.registry.Add(ctx, s); err != nil {
		return nil, domain.Step{}, err
	}

	e := execution.New(id, proc,
		execution.WithTimeouts(h.timeouts),
		execution.WithLogger(h.logger.With("session_id", id)),
		execution.WithMetrics(h.metrics),
	)
	if err := s.Attach(e); err != nil {
		s.Stop()
		return nil, domain.Step{}, err
	}

	step, err := e.Start(ctx, param, h.startupTimeout)
	if err != nil {
		h.logger.Warn("session failed to start", "session_id", id, "err", err)
		s.Stop()
		return nil, domain.Step{}, err
	}
	return s, step, nil
}

// OpenNamed is Open with a procedure looked up in the catalog.
func (h *Host) OpenNamed(ctx context.Context, id, name string, param any) (*session.Session, domain.Step, error) {
	proc, err := h.catalog.Lookup(name)
	if err != nil {
		return nil, domain.Step{}, err
	}
	return h.Open(ctx, id, proc, param)
}

// Turn sends input to the session's dialogue and returns the next step. A
// non-positive timeout selects the receive-from-dialogue default. When the receive
// times out the session stays active; call Await, not Turn, to collect the step.
func (h *Host) Turn(ctx context.Context, id string, input domain.Turn, timeout time.Duration) (domain.Step, error) {
	e, err := h.execution(id)
	if err != nil {
		return domain.Step{}, err
	}
	return e.Exchange(ctx, input, timeout)
}

// Await collects the step the session's dialogue still owes after a Turn whose
// receive timed out. It sends nothing. A non-positive timeout selects the
// receive-from-dialogue default.
func (h *Host) Await(ctx context.Context, id string, timeout time.Duration) (domain.Step, error) {
	e, err := h.execution(id)
	if err != nil {
		return domain.Step{}, err
	}
	return e.Await(ctx, timeout)
}

// Close stops the session and waits at most wait for its dialogue to exit
// (0 waits without bound).
func (h *Host) Close(id string, wait time.Duration) error {
	s, err := h.registry.Get(id)
	if err != nil {
		return err
	}
	s.Stop()
	if e := s.Execution(); e != nil {
		return e.Join(wait)
	}
	return nil
}

func (h *Host) execution(id string) (*execution.Execution, error) {
	s, err := h.registry.Get(id)
	if err != nil {
		return nil, err
	}
	e := s.Execution()
	if e == nil {
		return nil, domain.IllegalUsage("session " + id + " has no execution")
	}
	return e, nil
}

// Shutdown stops the registry and drains every session.
func (h *Host) Shutdown() {
	h.logger.Info("shutting down", "sessions", h.registry.Len())
	h.registry.Stop()
}
