package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/colloquy"
	"github.com/aretw0/colloquy/internal/config"
	"github.com/aretw0/colloquy/internal/logging"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FlagOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colloquy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o644))

	cmd := &cobra.Command{}
	cmd.Flags().String("config", path, "")
	cmd.Flags().String("log-level", "", "")

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)

	require.NoError(t, cmd.Flags().Set("log-level", "debug"))
	cfg, err = loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)

	require.NoError(t, cmd.Flags().Set("log-level", "loud"))
	cfg, err = loadConfig(cmd)
	require.NoError(t, err)
	_, err = newLogger(cfg)
	assert.Error(t, err)
}

func TestNewHost_RedisLeases(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Redis.Addr = mr.Addr()
	ctx := context.Background()

	first, closer, err := newHost(ctx, cfg, logging.NewNop(), nil)
	require.NoError(t, err)
	defer closer.Close()
	defer first.Shutdown()

	second, closer2, err := newHost(ctx, cfg, logging.NewNop(), nil)
	require.NoError(t, err)
	defer closer2.Close()
	defer second.Shutdown()

	_, step, err := first.OpenNamed(ctx, "shared", "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.KindOutput, step.Kind())
	assert.True(t, mr.Exists(cfg.Redis.Prefix+"shared"))

	_, _, err = second.OpenNamed(ctx, "shared", "echo", nil)
	assert.ErrorIs(t, err, domain.ErrSessionExists, "replicas sharing redis must not reuse an identifier")

	require.NoError(t, first.Close("shared", time.Second))
	assert.False(t, mr.Exists(cfg.Redis.Prefix+"shared"))
}

func TestNewHost_UnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default()
	cfg.Redis.Addr = addr

	_, _, err := newHost(context.Background(), cfg, logging.NewNop(), nil)
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "colloquy version "+colloquy.Version+"\n", out.String())
}
