package execution

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/colloquy/pkg/domain"
)

// Dialogue is the handle a Procedure uses to talk to its controller.
type Dialogue interface {
	// ID returns the execution identifier.
	ID() string

	// Logger returns the execution's diagnostic sink.
	Logger() *slog.Logger

	// Exchange sends an output turn and blocks for the controller's next input, waiting
	// at most the receive-from-controller default.
	Exchange(output domain.Turn) (domain.Turn, error)

	// ExchangeTimeout is Exchange with an explicit receive bound (non-positive selects
	// the default).
	ExchangeTimeout(output domain.Turn, timeout time.Duration) (domain.Turn, error)
}

type dialogue struct {
	e *Execution
}

func (d dialogue) ID() string { return d.e.id }

func (d dialogue) Logger() *slog.Logger { return d.e.logger }

func (d dialogue) Exchange(output domain.Turn) (domain.Turn, error) {
	return d.ExchangeTimeout(output, 0)
}

// ExchangeTimeout fails with domain.ErrExecutionStopped once Stop was requested, so the
// procedure can tell deliberate cancellation apart from a *domain.TurnTimeoutError.
func (d dialogue) ExchangeTimeout(output domain.Turn, timeout time.Duration) (domain.Turn, error) {
	e := d.e
	if timeout <= 0 {
		timeout = e.timeouts.ReceiveFromController
	}

	// The dialogue's own context is not a caller context: its cancellation means stop.
	caller := context.Background()

	if err := e.toController.Send(e.ctx, domain.OutputTurn(output), e.timeouts.Send); err != nil {
		return nil, e.translate(caller, err, domain.SideDialogue, domain.OpSend, e.toController.Name(), e.timeouts.Send)
	}
	input, err := e.toDialogue.Receive(e.ctx, timeout)
	if err != nil {
		return nil, e.translate(caller, err, domain.SideDialogue, domain.OpReceive, e.toDialogue.Name(), timeout)
	}
	return input, nil
}
