package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/colloquy"
	"github.com/aretw0/colloquy/internal/config"
	"github.com/aretw0/colloquy/internal/dialogues"
	"github.com/aretw0/colloquy/pkg/adapters/memory"
	"github.com/aretw0/colloquy/pkg/adapters/redis"
	"github.com/aretw0/colloquy/pkg/catalog"
	"github.com/aretw0/colloquy/pkg/observability"
	"github.com/aretw0/colloquy/pkg/ports"
)

// newHost wires a Host from the configuration. The returned closer releases the
// lease backend after the host has been shut down.
func newHost(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics *observability.Metrics) (*colloquy.Host, io.Closer, error) {
	leaser, closer, err := newLeaser(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	c := catalog.New()
	dialogues.Register(c)

	host := colloquy.New(
		colloquy.WithLogger(logger),
		colloquy.WithMetrics(metrics),
		colloquy.WithCatalog(c),
		colloquy.WithTimeouts(cfg.ExecutionTimeouts()),
		colloquy.WithStartupTimeout(cfg.Timeouts.Startup),
		colloquy.WithExpiry(cfg.Sessions.IdleTimeout, cfg.Sessions.SweepPeriod),
		colloquy.WithDrainTimeout(cfg.Timeouts.StopWait),
		colloquy.WithLeaser(leaser, cfg.Sessions.LeaseTTL),
	)
	return host, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newLeaser picks Redis when an address is configured, memory otherwise.
func newLeaser(ctx context.Context, cfg config.Config, logger *slog.Logger) (ports.Leaser, io.Closer, error) {
	if cfg.Redis.Addr == "" {
		logger.Debug("using in-memory session leases")
		return memory.NewLeaser(), nopCloser{}, nil
	}

	leaser := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, redis.WithPrefix(cfg.Redis.Prefix))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := leaser.Ping(pingCtx); err != nil {
		_ = leaser.Close()
		return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
	}

	logger.Info("using redis session leases", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
	return leaser, leaser, nil
}
