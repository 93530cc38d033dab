package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/execution"
	"github.com/aretw0/colloquy/pkg/ports"
)

// releaseTimeout bounds a lease release triggered from a listener, which has no context.
const releaseTimeout = 5 * time.Second

// Session binds an identifier to an execution and arbitrary data.
type Session struct {
	id   string
	data any

	mu    sync.Mutex
	owner *Registry // non-owning; set by Registry.Add
	exec  *execution.Execution
	lease ports.Lease
}

// New creates a detached session. It becomes live once added to a Registry.
func New(id string, data any) *Session {
	return &Session{id: id, data: data}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Data returns the caller-supplied context object.
func (s *Session) Data() any { return s.data }

// Execution returns the attached execution, or nil.
func (s *Session) Execution() *execution.Execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exec
}

// Lease returns the external lease held for this session, or nil.
func (s *Session) Lease() ports.Lease {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lease
}

// Attach assigns the session's execution and subscribes to its lifecycle.
// It can be called once.
func (s *Session) Attach(e *execution.Execution) error {
	if e == nil {
		return domain.IllegalUsage("attaching a nil execution")
	}

	s.mu.Lock()
	if s.exec != nil {
		s.mu.Unlock()
		return domain.IllegalUsage("session " + s.id + " already has an execution")
	}
	s.exec = e
	s.mu.Unlock()

	e.AddListener(s)
	if e.IsDone() {
		// Finished before the listener was in place.
		s.detach()
	}
	return nil
}

// Stop cancels the execution, if any, removes the session from its registry and
// releases its lease. It does not wait; join the execution for that.
func (s *Session) Stop() {
	if e := s.Execution(); e != nil {
		e.Stop()
	}
	s.detach()
}

// OnStart implements execution.Listener.
func (s *Session) OnStart(e *execution.Execution) {
	s.logger().Debug("session execution started", "execution_id", e.ID())
}

// OnStop implements execution.Listener. The session leaves its registry once the
// execution is done.
func (s *Session) OnStop(e *execution.Execution) {
	s.logger().Debug("session execution stopped", "execution_id", e.ID(), "stopped", e.IsStopped())
	s.detach()
}

func (s *Session) setLease(l ports.Lease) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lease = l
}

func (s *Session) bind(r *Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = r
}

func (s *Session) registry() *Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// detach removes the session from its owner and releases the lease. Safe to repeat.
func (s *Session) detach() {
	if r := s.registry(); r != nil {
		r.removeSession(s)
	}
	s.releaseLease()
}

func (s *Session) releaseLease() {
	s.mu.Lock()
	l := s.lease
	s.lease = nil
	r := s.owner
	s.mu.Unlock()

	if l == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := l.Release(ctx); err != nil && !errors.Is(err, domain.ErrLeaseLost) {
		if r != nil {
			r.metrics.LeaseReleaseFailed()
		}
		s.logger().Warn("failed to release session lease", "err", err)
	}
}
