package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/ports"
)

type holder struct {
	token   uint64
	expires time.Time
}

// Leaser implements ports.Leaser in memory.
// Safe for concurrent use. Leases are only exclusive within one process.
type Leaser struct {
	mu      sync.Mutex
	held    map[string]holder
	counter uint64
	now     func() time.Time
}

// NewLeaser creates a new in-memory leaser.
func NewLeaser() *Leaser {
	return &Leaser{
		held: make(map[string]holder),
		now:  time.Now,
	}
}

// Acquire takes the lease for key if it is free or expired.
func (l *Leaser) Acquire(ctx context.Context, key string, ttl time.Duration) (ports.Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if h, ok := l.held[key]; ok && now.Before(h.expires) {
		return nil, fmt.Errorf("%s: %w", key, domain.ErrLeaseHeld)
	}

	l.counter++
	l.held[key] = holder{token: l.counter, expires: now.Add(ttl)}
	return &lease{owner: l, key: key, token: l.counter}, nil
}

// Held returns the keys with an unexpired lease.
func (l *Leaser) Held() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	keys := make([]string, 0, len(l.held))
	for k, h := range l.held {
		if now.Before(h.expires) {
			keys = append(keys, k)
		}
	}
	return keys
}

type lease struct {
	owner *Leaser
	key   string
	token uint64
}

func (s *lease) Key() string { return s.key }

func (s *lease) Refresh(ctx context.Context, ttl time.Duration) error {
	l := s.owner
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	h, ok := l.held[s.key]
	if !ok || h.token != s.token || !now.Before(h.expires) {
		return fmt.Errorf("%s: %w", s.key, domain.ErrLeaseLost)
	}
	h.expires = now.Add(ttl)
	l.held[s.key] = h
	return nil
}

func (s *lease) Release(ctx context.Context) error {
	l := s.owner
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.held[s.key]; ok && h.token == s.token {
		delete(l.held, s.key)
	}
	return nil
}
