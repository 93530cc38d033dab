package memory

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaser_Contract(t *testing.T) {
	ports.RunLeaserContract(t, NewLeaser())
}

func TestLeaser_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLeaser()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	old, err := l.Acquire(ctx, "s1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, l.Held())

	now = now.Add(2 * time.Minute)
	assert.Empty(t, l.Held())
	assert.ErrorIs(t, old.Refresh(ctx, time.Minute), domain.ErrLeaseLost)

	fresh, err := l.Acquire(ctx, "s1", time.Minute)
	require.NoError(t, err, "an expired lease can be taken over")

	require.NoError(t, old.Release(ctx))
	assert.NoError(t, fresh.Refresh(ctx, time.Minute), "the stale holder must not release the new lease")
}

func TestLeaser_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLeaser().Acquire(ctx, "s1", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
