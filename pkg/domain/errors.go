package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimedOut is returned when a bounded wait (send, receive or join) elapsed.
	ErrTimedOut = errors.New("turn exchange timed out")

	// ErrChannelClosed is returned when an exchange is attempted after the execution is done.
	ErrChannelClosed = errors.New("channel closed")

	// ErrExecutionStopped is returned when an exchange was aborted by a stop request.
	ErrExecutionStopped = errors.New("execution stopped")

	// ErrIllegalUsage marks a guard violation. It is always a caller bug.
	ErrIllegalUsage = errors.New("illegal usage")

	// ErrResultDelivery is returned when the final step could not be handed to the controller.
	ErrResultDelivery = errors.New("result delivery failed")

	// ErrSessionNotFound is returned when an identifier is not tracked by the registry.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists is returned when an identifier is already in use.
	ErrSessionExists = errors.New("session already exists")

	// ErrRegistryStopped is returned when adding to a registry that has been shut down.
	ErrRegistryStopped = errors.New("registry stopped")

	// ErrLeaseHeld is returned when another holder owns the lease for a key.
	ErrLeaseHeld = errors.New("lease held by another owner")

	// ErrLeaseLost is returned when refreshing a lease that expired or was taken over.
	ErrLeaseLost = errors.New("lease lost")

	// ErrProcedureNotFound is returned when a dialogue procedure name is not registered.
	ErrProcedureNotFound = errors.New("procedure not found")
)

// TurnTimeoutError reports which side timed out on which channel.
type TurnTimeoutError struct {
	Side    Side          // party that was waiting
	Channel string        // diagnostic channel name
	Op      Op            // send or receive
	Timeout time.Duration // the bound that elapsed
}

func (e *TurnTimeoutError) Error() string {
	return fmt.Sprintf("%s %s on %q timed out after %s", e.Side, e.Op, e.Channel, e.Timeout)
}

func (e *TurnTimeoutError) Unwrap() error { return ErrTimedOut }

// ResultDeliveryError reports that a terminal Step could not be delivered within the send
// timeout. It never travels through the Step channel; it is surfaced by Join/Wait.
type ResultDeliveryError struct {
	ExecutionID string
	Step        Step
	Err         error
}

func (e *ResultDeliveryError) Error() string {
	return fmt.Sprintf("execution %s: delivering %s: %v", e.ExecutionID, e.Step, e.Err)
}

func (e *ResultDeliveryError) Unwrap() []error { return []error{ErrResultDelivery, e.Err} }

// PanicError carries a value recovered from a panicking dialogue procedure.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("dialogue panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IllegalUsage builds a guard-violation error. Extra sentinels are wrapped as well,
// so an exchange on a finished execution matches both ErrIllegalUsage and ErrChannelClosed.
func IllegalUsage(msg string, also ...error) error {
	if len(also) == 0 {
		return fmt.Errorf("%w: %s", ErrIllegalUsage, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrIllegalUsage, msg, errors.Join(also...))
}
