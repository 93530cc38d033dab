package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/colloquy"
	"github.com/aretw0/colloquy/internal/logging"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/muesli/termenv"
)

// Demo drives a catalog dialogue from a line-oriented terminal.
type Demo struct {
	Host        *colloquy.Host
	In          io.Reader
	Out         io.Writer
	Logger      *slog.Logger
	TurnTimeout time.Duration
	StopWait    time.Duration
}

// Run opens the named dialogue and relays lines between In and the dialogue until it
// ends, the input is exhausted, or ctx is cancelled.
func (d *Demo) Run(ctx context.Context, name string, param any) error {
	logger := d.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	out := termenv.NewOutput(d.Out)

	sess, step, err := d.Host.OpenNamed(ctx, "", name, param)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	id := sess.ID()
	logger.Info("demo session opened", "session_id", id, "dialogue", name)

	lines := bufio.NewScanner(NewInterruptibleReader(d.In, ctx.Done()))
	for {
		d.render(out, step)
		if step.Terminal() {
			return step.Err()
		}

		fmt.Fprint(d.Out, out.String("> ").Faint())
		if !lines.Scan() {
			err := lines.Err()
			if err == nil || isInterrupted(err) || ctx.Err() != nil {
				d.printSystemMessage(out, "Leaving %s.", name)
				return d.close(id, logger)
			}
			_ = d.close(id, logger)
			return fmt.Errorf("reading input: %w", err)
		}

		step, err = d.Host.Turn(ctx, id, strings.TrimSpace(lines.Text()), d.TurnTimeout)
		for timeout := pendingTimeout(err); timeout > 0; timeout = pendingTimeout(err) {
			d.printSystemMessage(out, "The dialogue did not answer within %s, still waiting.", timeout)
			step, err = d.Host.Await(ctx, id, d.TurnTimeout)
		}
		if err != nil {
			_ = d.close(id, logger)
			return err
		}
	}
}

// pendingTimeout returns the elapsed bound when err is a controller receive timeout,
// meaning the dialogue still owes a step. It returns 0 otherwise.
func pendingTimeout(err error) time.Duration {
	var timeout *domain.TurnTimeoutError
	if errors.As(err, &timeout) && timeout.Side == domain.SideController && timeout.Op == domain.OpReceive {
		return timeout.Timeout
	}
	return 0
}

func (d *Demo) render(out *termenv.Output, step domain.Step) {
	switch step.Kind() {
	case domain.KindOutput:
		fmt.Fprintln(d.Out, out.String(fmt.Sprint(step.Turn())).Foreground(out.Color("#a78bfa")))
	case domain.KindLast:
		fmt.Fprintln(d.Out, out.String(fmt.Sprint(step.Turn())).Bold())
	case domain.KindError:
		fmt.Fprintln(d.Out, out.String("error: "+step.Err().Error()).Foreground(out.Color("#fb7185")))
	}
}

// printSystemMessage prints a standardized system message.
func (d *Demo) printSystemMessage(out *termenv.Output, format string, args ...any) {
	fmt.Fprintf(d.Out, "\n%s\n", out.String(">>> "+fmt.Sprintf(format, args...)).Faint())
}

func (d *Demo) close(id string, logger *slog.Logger) error {
	err := d.Host.Close(id, d.StopWait)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		logger.Warn("demo session did not close cleanly", "session_id", id, "err", err)
	}
	return err
}
