package ports

import (
	"context"
	"time"
)

// Lease is an external handle proving ownership of a session identifier.
type Lease interface {
	// Key returns the leased key (the session identifier).
	Key() string

	// Refresh extends the lease by ttl. It returns domain.ErrLeaseLost if the lease
	// expired or now belongs to someone else.
	Refresh(ctx context.Context, ttl time.Duration) error

	// Release gives the key up. Releasing an already released or expired lease is a no-op.
	Release(ctx context.Context) error
}

// Leaser hands out exclusive, expiring leases on keys.
// It lets the session registry keep identifiers unique across several replicas.
type Leaser interface {
	// Acquire takes the lease for key without waiting. It returns domain.ErrLeaseHeld
	// if another holder owns it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}
