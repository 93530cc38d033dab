package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/colloquy/pkg/adapters/memory"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/execution"
	"github.com/aretw0/colloquy/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// prompter keeps asking until it is stopped.
func prompter(ctx context.Context, d execution.Dialogue, _ any) (domain.Turn, error) {
	for {
		if _, err := d.Exchange("again?"); err != nil {
			return nil, err
		}
	}
}

func newRegistry(t *testing.T, idle, period time.Duration, opts ...session.Option) *session.Registry {
	t.Helper()
	r := session.NewRegistry(idle, period, opts...)
	t.Cleanup(r.Stop)
	return r
}

// startSession adds a session running proc and returns it after the first step.
func startSession(t *testing.T, r *session.Registry, id string, proc execution.Procedure) *session.Session {
	t.Helper()
	s := session.New(id, nil)
	require.NoError(t, r.Add(context.Background(), s))

	e := execution.New(id, proc, execution.WithTimeouts(execution.Timeouts{
		Send:                  time.Second,
		ReceiveFromDialogue:   time.Second,
		ReceiveFromController: 10 * time.Second,
	}))
	require.NoError(t, s.Attach(e))

	_, err := e.Start(context.Background(), nil, time.Second)
	require.NoError(t, err)
	return s
}

func TestRegistry_AddGetRemove(t *testing.T) {
	r := newRegistry(t, time.Hour, time.Hour)
	ctx := context.Background()

	s := session.New("s1", map[string]string{"user": "ada"})
	require.NoError(t, r.Add(ctx, s))

	got, err := r.Get("s1")
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, map[string]string{"user": "ada"}, got.Data())
	assert.Equal(t, []string{"s1"}, r.IDs())
	assert.Equal(t, 1, r.Len())

	r.Remove("s1")
	_, err = r.Get("s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Equal(t, 0, r.Len())

	// The identifier is free again once removed.
	assert.NoError(t, r.Add(ctx, session.New("s1", nil)))
}

func TestRegistry_DuplicateID(t *testing.T) {
	r := newRegistry(t, time.Hour, time.Hour)
	ctx := context.Background()

	require.NoError(t, r.Add(ctx, session.New("dup", nil)))
	err := r.Add(ctx, session.New("dup", nil))
	assert.ErrorIs(t, err, domain.ErrSessionExists)

	assert.ErrorIs(t, r.Add(ctx, session.New("", nil)), domain.ErrIllegalUsage)
}

func TestRegistry_SelfRemovalOnDone(t *testing.T) {
	r := newRegistry(t, time.Hour, time.Hour)

	s := startSession(t, r, "short", func(ctx context.Context, d execution.Dialogue, _ any) (domain.Turn, error) {
		if _, err := d.Exchange("name?"); err != nil {
			return nil, err
		}
		return "bye", nil
	})

	step, err := s.Execution().Exchange(context.Background(), "ada", time.Second)
	require.NoError(t, err)
	assert.Equal(t, domain.LastTurn("bye"), step)

	assert.Eventually(t, func() bool {
		_, err := r.Get("short")
		return err != nil
	}, time.Second, 5*time.Millisecond)
}

func TestRegistry_IdleSessionExpires(t *testing.T) {
	r := newRegistry(t, 50*time.Millisecond, 10*time.Millisecond)

	s := startSession(t, r, "idle", prompter)

	assert.Eventually(t, func() bool {
		return r.Len() == 0
	}, time.Second, 5*time.Millisecond, "idle session should be swept")

	e := s.Execution()
	assert.True(t, e.IsStopped())
	require.NoError(t, e.Join(time.Second))
	assert.True(t, e.IsDone())
}

func TestRegistry_AccessKeepsSessionAlive(t *testing.T) {
	idle := 100 * time.Millisecond
	r := newRegistry(t, idle, 5*time.Millisecond)

	startSession(t, r, "busy", prompter)

	deadline := time.Now().Add(5 * idle)
	for time.Now().Before(deadline) {
		_, err := r.Get("busy")
		require.NoError(t, err, "a recently accessed session must not be expired")
		_, err = r.Get("busy")
		require.NoError(t, err)
		time.Sleep(idle / 4)
	}
}

func TestRegistry_Expire(t *testing.T) {
	r := newRegistry(t, time.Hour, time.Hour)
	ctx := context.Background()

	bare := session.New("bare", nil)
	require.NoError(t, r.Add(ctx, bare))
	running := startSession(t, r, "running", prompter)

	assert.Equal(t, 0, r.Expire(time.Now().Add(-time.Minute)))
	assert.Equal(t, 2, r.Expire(time.Now().Add(time.Minute)))
	assert.Equal(t, 0, r.Len())

	require.NoError(t, running.Execution().Join(time.Second))
	assert.True(t, running.Execution().IsStopped())
}

func TestRegistry_StopDrains(t *testing.T) {
	r := session.NewRegistry(time.Hour, time.Hour, session.WithDrainTimeout(time.Second))

	var sessions []*session.Session
	for _, id := range []string{"a", "b", "c"} {
		sessions = append(sessions, startSession(t, r, id, prompter))
	}
	require.NoError(t, r.Add(context.Background(), session.New("idle", nil)))

	r.Stop()
	r.Stop()

	for _, s := range sessions {
		assert.True(t, s.Execution().IsDone(), s.ID())
	}
	assert.Equal(t, 0, r.Len())
	assert.ErrorIs(t, r.Add(context.Background(), session.New("late", nil)), domain.ErrRegistryStopped)
}

func TestRegistry_GetOrAdd(t *testing.T) {
	r := newRegistry(t, time.Hour, time.Hour)
	ctx := context.Background()

	first, created, err := r.GetOrAdd(ctx, "x", "data")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "data", first.Data())

	second, created, err := r.GetOrAdd(ctx, "x", "other")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, first, second)
}

func TestRegistry_GetOrAddConcurrent(t *testing.T) {
	r := newRegistry(t, time.Hour, time.Hour)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		seen    = map[*session.Session]bool{}
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, ok, err := r.GetOrAdd(ctx, "shared", nil)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			seen[s] = true
			if ok {
				created++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, seen, 1)
}

func TestRegistry_Leases(t *testing.T) {
	leaser := memory.NewLeaser()
	a := newRegistry(t, time.Hour, time.Hour, session.WithLeaser(leaser, time.Minute))
	b := newRegistry(t, time.Hour, time.Hour, session.WithLeaser(leaser, time.Minute))
	ctx := context.Background()

	s := startSession(t, a, "leased", prompter)
	assert.NotNil(t, s.Lease())
	assert.Equal(t, []string{"leased"}, leaser.Held())

	err := b.Add(ctx, session.New("leased", nil))
	assert.ErrorIs(t, err, domain.ErrSessionExists, "another replica must not reuse a leased identifier")
	assert.ErrorIs(t, err, domain.ErrLeaseHeld)

	s.Stop()
	require.NoError(t, s.Execution().Join(time.Second))

	assert.Eventually(t, func() bool {
		return len(leaser.Held()) == 0
	}, time.Second, 5*time.Millisecond)
	assert.Nil(t, s.Lease())

	assert.NoError(t, b.Add(ctx, session.New("leased", nil)))
}

func TestRegistry_RemoveReleasesLease(t *testing.T) {
	leaser := memory.NewLeaser()
	r := newRegistry(t, time.Hour, time.Hour, session.WithLeaser(leaser, time.Minute))
	ctx := context.Background()

	first := session.New("s1", nil)
	require.NoError(t, r.Add(ctx, first))
	require.Equal(t, []string{"s1"}, leaser.Held())

	r.Remove("s1")
	assert.Empty(t, leaser.Held())
	assert.Nil(t, first.Lease())

	second := session.New("s1", nil)
	require.NoError(t, r.Add(ctx, second), "a removed identifier is free again")
	assert.NotNil(t, second.Lease())

	// Stopping the removed session must not disturb its replacement.
	first.Stop()
	got, err := r.Get("s1")
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.Equal(t, []string{"s1"}, leaser.Held())
}

func TestRegistry_SweepRefreshesLeases(t *testing.T) {
	leaser := memory.NewLeaser()
	r := newRegistry(t, time.Hour, 10*time.Millisecond, session.WithLeaser(leaser, 40*time.Millisecond))

	require.NoError(t, r.Add(context.Background(), session.New("kept", nil)))

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, []string{"kept"}, leaser.Held(), "live sessions keep their lease")
}
