/*
Package domain contains the core value types shared by every Colloquy component.

It defines what travels between a dialogue and its controller, and the error taxonomy
used to report why an exchange did not complete. The package is kept pure and free of
concurrency or I/O, following the Hexagonal Architecture split used across the module.

# Key Entities

  - Turn: An opaque payload exchanged in one direction.
  - Step: The outcome of one exchange as seen by the controller (output turn, last turn, or error).
  - Side / Op: Diagnostic labels describing who waited on which channel, and for what.
  - Errors: Sentinels (ErrTimedOut, ErrExecutionStopped, ...) plus structured errors
    (TurnTimeoutError, ResultDeliveryError, PanicError) that unwrap to them.
*/
package domain
