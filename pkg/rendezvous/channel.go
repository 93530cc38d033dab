// Package rendezvous provides a capacity-zero, blocking hand-off point between two goroutines.
//
// A Send only succeeds when a Receive takes the value (and vice versa); nothing is ever
// buffered. Both operations are bounded by a timeout and by a context, and both fail with
// domain.ErrChannelClosed once the channel has been closed.
package rendezvous

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/colloquy/pkg/domain"
)

// Channel is a named rendezvous point for values of type T. Safe for concurrent use.
type Channel[T any] struct {
	name   string
	ch     chan T
	closed chan struct{}
	once   sync.Once
}

// New creates an open channel. The name is only used for diagnostics.
func New[T any](name string) *Channel[T] {
	return &Channel[T]{
		name:   name,
		ch:     make(chan T),
		closed: make(chan struct{}),
	}
}

// Name returns the diagnostic name.
func (c *Channel[T]) Name() string { return c.name }

// Send hands v to a concurrent Receive. It waits at most timeout (0 means no bound).
//
// Errors: domain.ErrTimedOut if no receiver claimed v in time, domain.ErrChannelClosed if
// the channel is or becomes closed, ctx.Err() if ctx is cancelled first.
func (c *Channel[T]) Send(ctx context.Context, v T, timeout time.Duration) error {
	if c.Closed() {
		return domain.ErrChannelClosed
	}

	expired, stop := deadline(timeout)
	defer stop()

	select {
	case c.ch <- v:
		return nil
	case <-c.closed:
		return domain.ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-expired:
		return domain.ErrTimedOut
	}
}

// Receive takes the value of a concurrent Send. It waits at most timeout (0 means no bound).
// Errors mirror Send.
func (c *Channel[T]) Receive(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T
	if c.Closed() {
		return zero, domain.ErrChannelClosed
	}

	expired, stop := deadline(timeout)
	defer stop()

	select {
	case v := <-c.ch:
		return v, nil
	case <-c.closed:
		return zero, domain.ErrChannelClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-expired:
		return zero, domain.ErrTimedOut
	}
}

// Close makes the channel permanently unusable and wakes every blocked caller.
// It is idempotent.
func (c *Channel[T]) Close() {
	c.once.Do(func() { close(c.closed) })
}

// Closed reports whether Close has been called.
func (c *Channel[T]) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// deadline returns a channel that fires after d, or nil (never fires) when d <= 0.
func deadline(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTimer(d)
	return t.C, func() { t.Stop() }
}
