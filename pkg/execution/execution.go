package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/colloquy/internal/logging"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/observability"
	"github.com/aretw0/colloquy/pkg/rendezvous"
	"github.com/rs/xid"
)

// Diagnostic channel names.
const (
	ToControllerChannel = "dialogue->controller"
	ToDialogueChannel   = "controller->dialogue"
)

// Procedure is the sequential dialogue logic. It runs exactly once, on its own goroutine.
//
// ctx is cancelled when the execution is stopped (context.Cause reports
// domain.ErrExecutionStopped). Returning a turn ends the dialogue with a LastTurn step;
// returning an error, or panicking, ends it with an ErrorStep.
type Procedure func(ctx context.Context, d Dialogue, param any) (domain.Turn, error)

// Execution is one running instance of a dialogue procedure, its two rendezvous
// channels and its lifecycle flags.
//
// Controller-side calls (Start, Exchange, Await) must not overlap; this is a usage
// contract, not something the execution serializes.
type Execution struct {
	id   string
	proc Procedure

	toController *rendezvous.Channel[domain.Step]
	toDialogue   *rendezvous.Channel[domain.Turn]

	timeouts Timeouts
	logger   *slog.Logger
	metrics  *observability.Metrics

	launched atomic.Bool
	started  atomic.Bool
	done     atomic.Bool
	stopped  atomic.Bool

	mu        sync.Mutex // guards listeners and the done/closed transition
	listeners []Listener

	ctx      context.Context
	cancel   context.CancelCauseFunc
	finished chan struct{}
	err      error // written before finished is closed
}

// New creates an execution in the Created state. An empty id is replaced by a generated one.
func New(id string, proc Procedure, opts ...Option) *Execution {
	if id == "" {
		id = xid.New().String()
	}
	ctx, cancel := context.WithCancelCause(context.Background())
	e := &Execution{
		id:           id,
		proc:         proc,
		toController: rendezvous.New[domain.Step](ToControllerChannel),
		toDialogue:   rendezvous.New[domain.Turn](ToDialogueChannel),
		timeouts:     DefaultTimeouts(),
		logger:       logging.NewNop(),
		ctx:          ctx,
		cancel:       cancel,
		finished:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("execution_id", id)
	return e
}

// ID returns the execution identifier.
func (e *Execution) ID() string { return e.id }

// Timeouts returns the configured protocol timeouts.
func (e *Execution) Timeouts() Timeouts { return e.timeouts }

// State reports Created, Active or Done.
func (e *Execution) State() domain.State {
	switch {
	case e.done.Load():
		return domain.StateDone
	case e.launched.Load():
		return domain.StateActive
	default:
		return domain.StateCreated
	}
}

// IsStarted reports whether the dialogue goroutine has begun running.
func (e *Execution) IsStarted() bool { return e.started.Load() }

// IsDone reports whether the dialogue has terminated and its channels are closed.
func (e *Execution) IsDone() bool { return e.done.Load() }

// IsStopped reports whether cancellation was requested.
func (e *Execution) IsStopped() bool { return e.stopped.Load() }

// Finished is closed once the dialogue goroutine has exited.
func (e *Execution) Finished() <-chan struct{} { return e.finished }

// Err returns the result-delivery failure of a finished execution, if any.
func (e *Execution) Err() error {
	select {
	case <-e.finished:
		return e.err
	default:
		return nil
	}
}

// Start launches the dialogue goroutine with param and waits at most timeout for the
// first Step (a non-positive timeout selects the receive-from-dialogue default).
//
// On timeout the execution stays Active; the controller may Await the step or Stop.
func (e *Execution) Start(ctx context.Context, param any, timeout time.Duration) (domain.Step, error) {
	if e == nil {
		return domain.Step{}, domain.IllegalUsage("execution is nil")
	}
	if e.proc == nil {
		return domain.Step{}, domain.IllegalUsage("execution has no dialogue procedure")
	}
	if !e.launched.CompareAndSwap(false, true) {
		return domain.Step{}, domain.IllegalUsage("execution already started or stopped")
	}

	go e.run(param)

	cctx, release := e.controllerContext(ctx)
	defer release()
	return e.receiveStep(ctx, cctx, timeout)
}

// Exchange sends an input turn to the dialogue and waits at most timeout for the Step it
// produces next (a non-positive timeout selects the receive-from-dialogue default).
//
// Guard violations fail immediately with domain.ErrIllegalUsage. A timeout returns a
// *domain.TurnTimeoutError and leaves the execution Active. A concurrent Stop returns
// domain.ErrExecutionStopped.
func (e *Execution) Exchange(ctx context.Context, input domain.Turn, timeout time.Duration) (domain.Step, error) {
	if err := e.checkActive(); err != nil {
		return domain.Step{}, err
	}

	began := time.Now()
	defer func() { e.metrics.ObserveExchange(time.Since(began)) }()

	cctx, release := e.controllerContext(ctx)
	defer release()

	if err := e.toDialogue.Send(cctx, input, e.timeouts.Send); err != nil {
		return domain.Step{}, e.translate(ctx, err, domain.SideController, domain.OpSend, e.toDialogue.Name(), e.timeouts.Send)
	}
	return e.receiveStep(ctx, cctx, timeout)
}

// Await waits for the next Step without sending anything. It is how a controller
// resumes after Start or Exchange returned a receive timeout.
func (e *Execution) Await(ctx context.Context, timeout time.Duration) (domain.Step, error) {
	if err := e.checkActive(); err != nil {
		return domain.Step{}, err
	}
	cctx, release := e.controllerContext(ctx)
	defer release()
	return e.receiveStep(ctx, cctx, timeout)
}

// Stop requests cancellation. It is idempotent and does not wait; use Join or Wait.
// Stopping an execution that was never started finishes it immediately.
func (e *Execution) Stop() {
	if e == nil || !e.stopped.CompareAndSwap(false, true) {
		return
	}
	e.logger.Info("stop requested")
	e.cancel(domain.ErrExecutionStopped)

	if e.launched.CompareAndSwap(false, true) {
		e.finish()
		close(e.finished)
	}
}

// Join waits at most timeout (0 means no bound) for the dialogue goroutine to exit.
// It returns the execution's result-delivery failure, if any.
func (e *Execution) Join(timeout time.Duration) error {
	if e == nil {
		return domain.IllegalUsage("execution is nil")
	}
	if !e.launched.Load() {
		return domain.IllegalUsage("execution not started")
	}
	if timeout <= 0 {
		<-e.finished
		return e.err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-e.finished:
		return e.err
	case <-timer.C:
		return fmt.Errorf("execution %s still running after %s: %w", e.id, timeout, domain.ErrTimedOut)
	}
}

// Wait is Join bounded by a context instead of a duration.
func (e *Execution) Wait(ctx context.Context) error {
	if e == nil {
		return domain.IllegalUsage("execution is nil")
	}
	if !e.launched.Load() {
		return domain.IllegalUsage("execution not started")
	}
	select {
	case <-e.finished:
		return e.err
	case <-ctx.Done():
		return fmt.Errorf("waiting for execution %s: %w", e.id, ctx.Err())
	}
}

// StopAndWait requests cancellation and joins with the given bound.
func (e *Execution) StopAndWait(timeout time.Duration) error {
	e.Stop()
	return e.Join(timeout)
}

func (e *Execution) checkActive() error {
	switch {
	case e == nil:
		return domain.IllegalUsage("execution is nil")
	case !e.started.Load():
		return domain.IllegalUsage("execution not started")
	case e.done.Load():
		return domain.IllegalUsage("execution is done", domain.ErrChannelClosed)
	case e.stopped.Load():
		return domain.IllegalUsage("execution is stopped", domain.ErrExecutionStopped)
	}
	return nil
}

// controllerContext derives a context that is also cancelled when the execution is.
func (e *Execution) controllerContext(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(e.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (e *Execution) receiveStep(caller, ctx context.Context, timeout time.Duration) (domain.Step, error) {
	if timeout <= 0 {
		timeout = e.timeouts.ReceiveFromDialogue
	}
	step, err := e.toController.Receive(ctx, timeout)
	if err != nil {
		return domain.Step{}, e.translate(caller, err, domain.SideController, domain.OpReceive, e.toController.Name(), timeout)
	}
	if step.Terminal() {
		e.markDone()
	}
	e.metrics.StepObserved(step.Kind())
	return step, nil
}

// translate maps a rendezvous failure onto the error taxonomy. caller is the context
// supplied by whoever invoked the exchange; its own cancellation is reported as such.
func (e *Execution) translate(caller context.Context, err error, side domain.Side, op domain.Op, channel string, timeout time.Duration) error {
	switch {
	case errors.Is(err, domain.ErrTimedOut):
		e.metrics.TurnTimedOut(side, op)
		e.logger.Debug("turn exchange timed out", "side", side, "op", op, "channel", channel, "timeout", timeout)
		return &domain.TurnTimeoutError{Side: side, Channel: channel, Op: op, Timeout: timeout}
	case caller.Err() != nil:
		return fmt.Errorf("%s %s on %q: %w", side, op, channel, caller.Err())
	case e.stopped.Load():
		return fmt.Errorf("%s %s on %q: %w", side, op, channel, domain.ErrExecutionStopped)
	case errors.Is(err, domain.ErrChannelClosed):
		return fmt.Errorf("%s %s on %q: %w", side, op, channel, err)
	default:
		return fmt.Errorf("%s %s on %q interrupted: %w", side, op, channel, err)
	}
}

// run is the body of the dialogue goroutine.
func (e *Execution) run(param any) {
	defer close(e.finished)

	e.started.Store(true)
	e.metrics.ExecutionStarted()
	e.logger.Debug("dialogue started")
	e.notifyStart()

	step := e.invoke(param)
	outcome := e.deliver(step)

	e.finish()
	e.metrics.ExecutionFinished(outcome)
}

func (e *Execution) invoke(param any) (step domain.Step) {
	defer func() {
		if r := recover(); r != nil {
			err := &domain.PanicError{Value: r, Stack: debug.Stack()}
			e.logger.Error("dialogue panicked", "err", err, "stack", string(err.Stack))
			step = domain.ErrorStep(err)
		}
	}()

	turn, err := e.proc(e.ctx, dialogue{e: e}, param)
	if err != nil {
		if errors.Is(err, domain.ErrExecutionStopped) && e.stopped.Load() {
			e.logger.Debug("dialogue ended by stop", "err", err)
		} else {
			e.logger.Error("dialogue failed", "err", err)
		}
		return domain.ErrorStep(err)
	}
	return domain.LastTurn(turn)
}

// deliver hands the terminal step to the controller. A failure here is not an ordinary
// timeout: it is recorded as the execution's own error and surfaced by Join/Wait.
func (e *Execution) deliver(step domain.Step) string {
	err := e.toController.Send(e.ctx, step, e.timeouts.Send)
	switch {
	case err == nil:
		return step.Kind().String()
	case e.stopped.Load():
		e.logger.Debug("final step discarded", "step", step.String())
		return "stopped"
	default:
		cause := e.translate(context.Background(), err, domain.SideDialogue, domain.OpSend, e.toController.Name(), e.timeouts.Send)
		e.err = &domain.ResultDeliveryError{ExecutionID: e.id, Step: step, Err: cause}
		e.metrics.ResultDeliveryFailed()
		e.logger.Error("dialogue could not deliver its result", "err", e.err, "escalated", true)
		return "undelivered"
	}
}

// markDone closes both channels and flips done in one critical section.
func (e *Execution) markDone() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done.Load() {
		return
	}
	e.toController.Close()
	e.toDialogue.Close()
	e.done.Store(true)
}

func (e *Execution) finish() {
	e.markDone()
	e.logger.Debug("dialogue finished", "stopped", e.stopped.Load())
	e.notifyStop()
	e.cancel(nil)
}
