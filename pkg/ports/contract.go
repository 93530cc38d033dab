package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunLeaserContract runs a suite of tests to verify that a Leaser implementation
// adheres to the defined interface contract.
func RunLeaserContract(t *testing.T, leaser Leaser) {
	ctx := context.Background()
	prefix := "contract-test-" + time.Now().Format("20060102150405")
	ttl := time.Minute

	t.Run("Acquire and Release", func(t *testing.T) {
		key := prefix + "-acquire"

		lease, err := leaser.Acquire(ctx, key, ttl)
		require.NoError(t, err, "Acquire should not return error")
		assert.Equal(t, key, lease.Key())

		_, err = leaser.Acquire(ctx, key, ttl)
		assert.ErrorIs(t, err, domain.ErrLeaseHeld, "second Acquire should report the key as held")

		require.NoError(t, lease.Release(ctx))

		again, err := leaser.Acquire(ctx, key, ttl)
		require.NoError(t, err, "Acquire after Release should succeed")
		require.NoError(t, again.Release(ctx))
	})

	t.Run("Release Is Idempotent", func(t *testing.T) {
		lease, err := leaser.Acquire(ctx, prefix+"-idempotent", ttl)
		require.NoError(t, err)

		require.NoError(t, lease.Release(ctx))
		assert.NoError(t, lease.Release(ctx), "second Release should be a no-op")
	})

	t.Run("Refresh", func(t *testing.T) {
		lease, err := leaser.Acquire(ctx, prefix+"-refresh", ttl)
		require.NoError(t, err)
		defer func() { _ = lease.Release(ctx) }()

		assert.NoError(t, lease.Refresh(ctx, ttl))
	})

	t.Run("Refresh After Release", func(t *testing.T) {
		lease, err := leaser.Acquire(ctx, prefix+"-lost", ttl)
		require.NoError(t, err)
		require.NoError(t, lease.Release(ctx))

		assert.ErrorIs(t, lease.Refresh(ctx, ttl), domain.ErrLeaseLost)
	})

	t.Run("Stale Release Keeps New Holder", func(t *testing.T) {
		key := prefix + "-stale"
		first, err := leaser.Acquire(ctx, key, ttl)
		require.NoError(t, err)
		require.NoError(t, first.Release(ctx))

		second, err := leaser.Acquire(ctx, key, ttl)
		require.NoError(t, err)
		defer func() { _ = second.Release(ctx) }()

		require.NoError(t, first.Release(ctx))
		_, err = leaser.Acquire(ctx, key, ttl)
		assert.ErrorIs(t, err, domain.ErrLeaseHeld, "a stale holder must not release the new lease")
	})
}
