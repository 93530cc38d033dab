package execution

import (
	"log/slog"
	"time"

	"github.com/aretw0/colloquy/pkg/observability"
)

// Default timeouts used when none are configured.
const (
	DefaultSendTimeout                  = 10 * time.Second
	DefaultReceiveFromDialogueTimeout   = 30 * time.Second
	DefaultReceiveFromControllerTimeout = 10 * time.Minute
)

// Timeouts groups the three independently configurable bounds of the protocol.
// A zero field means "no bound".
type Timeouts struct {
	// Send bounds every send, on both sides.
	Send time.Duration
	// ReceiveFromDialogue is the controller's default wait for the next Step.
	ReceiveFromDialogue time.Duration
	// ReceiveFromController is the dialogue's default wait for the next input turn.
	ReceiveFromController time.Duration
}

// DefaultTimeouts returns the package defaults.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Send:                  DefaultSendTimeout,
		ReceiveFromDialogue:   DefaultReceiveFromDialogueTimeout,
		ReceiveFromController: DefaultReceiveFromControllerTimeout,
	}
}

// Option configures an Execution.
type Option func(*Execution)

// WithTimeouts replaces the protocol timeouts.
func WithTimeouts(t Timeouts) Option {
	return func(e *Execution) {
		e.timeouts = t
	}
}

// WithLogger configures the diagnostic sink.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Execution) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Execution) {
		e.metrics = m
	}
}

// WithListener registers a listener before the execution starts.
func WithListener(l Listener) Option {
	return func(e *Execution) {
		e.listeners = append(e.listeners, l)
	}
}
