/*
Package execution runs a sequential dialogue procedure on its own goroutine and lets a
controller exchange turns with it one at a time.

Two rendezvous channels connect the sides: dialogue->controller carries Steps and
controller->dialogue carries input turns. Turns strictly alternate: the dialogue's first
output reaches whoever called Start, every Exchange sends one input and receives the next
Step, and the dialogue's return value (or failure) is delivered as the terminal Step.

# Lifecycle

	Created --Start--> Active --(LastTurn | ErrorStep | Stop)--> Done

Timeouts never tear an execution down; Stop always does. Listeners are told about start
and stop on the dialogue goroutine, in registration order.
*/
package execution
