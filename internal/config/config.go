// Package config loads the colloquy configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/colloquy/pkg/execution"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is the root of colloquy.yaml.
type Config struct {
	Timeouts Timeouts `mapstructure:"timeouts" yaml:"timeouts"`
	Sessions Sessions `mapstructure:"sessions" yaml:"sessions"`
	Server   Server   `mapstructure:"server" yaml:"server"`
	Redis    Redis    `mapstructure:"redis" yaml:"redis"`
	Log      Log      `mapstructure:"log" yaml:"log"`
}

// Timeouts bounds every wait of the turn protocol.
type Timeouts struct {
	Send                  time.Duration `mapstructure:"send" yaml:"send"`
	ReceiveFromDialogue   time.Duration `mapstructure:"receive_from_dialogue" yaml:"receive_from_dialogue"`
	ReceiveFromController time.Duration `mapstructure:"receive_from_controller" yaml:"receive_from_controller"`
	Startup               time.Duration `mapstructure:"startup" yaml:"startup"`
	StopWait              time.Duration `mapstructure:"stop_wait" yaml:"stop_wait"`
}

// Sessions configures the registry.
type Sessions struct {
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	SweepPeriod time.Duration `mapstructure:"sweep_period" yaml:"sweep_period"`
	LeaseTTL    time.Duration `mapstructure:"lease_ttl" yaml:"lease_ttl"`
}

// Server configures the HTTP controller.
type Server struct {
	Addr        string `mapstructure:"addr" yaml:"addr"`
	MetricsPath string `mapstructure:"metrics_path" yaml:"metrics_path"`
}

// Redis enables cross-replica leases when Addr is set.
type Redis struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
}

// Log configures the diagnostic sink.
type Log struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Timeouts: Timeouts{
			Send:                  execution.DefaultSendTimeout,
			ReceiveFromDialogue:   execution.DefaultReceiveFromDialogueTimeout,
			ReceiveFromController: execution.DefaultReceiveFromControllerTimeout,
			Startup:               30 * time.Second,
			StopWait:              5 * time.Second,
		},
		Sessions: Sessions{
			IdleTimeout: 30 * time.Minute,
			SweepPeriod: time.Minute,
			LeaseTTL:    5 * time.Minute,
		},
		Server: Server{
			Addr:        ":8080",
			MetricsPath: "/metrics",
		},
		Redis: Redis{
			Prefix: "colloquy:lease:",
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
		ErrorUnused: true,
		Result:      &cfg,
	})
	if err != nil {
		return cfg, err
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the registry and executions cannot run with.
func (c Config) Validate() error {
	var errs []error
	for _, d := range []struct {
		key   string
		value time.Duration
	}{
		{"timeouts.send", c.Timeouts.Send},
		{"timeouts.receive_from_dialogue", c.Timeouts.ReceiveFromDialogue},
		{"timeouts.receive_from_controller", c.Timeouts.ReceiveFromController},
		{"timeouts.startup", c.Timeouts.Startup},
		{"timeouts.stop_wait", c.Timeouts.StopWait},
		{"sessions.idle_timeout", c.Sessions.IdleTimeout},
		{"sessions.sweep_period", c.Sessions.SweepPeriod},
		{"sessions.lease_ttl", c.Sessions.LeaseTTL},
	} {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.key, d.value))
		}
	}
	if c.Sessions.LeaseTTL <= c.Sessions.SweepPeriod {
		errs = append(errs, fmt.Errorf("sessions.lease_ttl (%s) must exceed sessions.sweep_period (%s)",
			c.Sessions.LeaseTTL, c.Sessions.SweepPeriod))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ExecutionTimeouts converts the protocol bounds for execution.WithTimeouts.
func (c Config) ExecutionTimeouts() execution.Timeouts {
	return execution.Timeouts{
		Send:                  c.Timeouts.Send,
		ReceiveFromDialogue:   c.Timeouts.ReceiveFromDialogue,
		ReceiveFromController: c.Timeouts.ReceiveFromController,
	}
}
