/*
Package colloquy lets sequential, blocking dialogue code talk to a controller that
handles one request at a time.

A dialogue is written as an ordinary function. Whenever it needs the controller's next
input it calls Exchange, which hands an output turn over and blocks until the input
arrives. Underneath, the dialogue runs on its own goroutine and the two sides meet
through capacity-zero rendezvous channels, so turns strictly alternate.

# Concept

The controller never blocks waiting for the dialogue to decide: it sends one input and
receives one Step, which is either an intermediate output turn, the last turn, or the
failure that ended the dialogue. Sessions bind identifiers to running dialogues and are
expired once idle for too long.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/colloquy"
		"github.com/aretw0/colloquy/pkg/domain"
		"github.com/aretw0/colloquy/pkg/execution"
	)

	func greet(ctx context.Context, d execution.Dialogue, _ any) (domain.Turn, error) {
		name, err := d.Exchange("What is your name?")
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf("Hello, %v!", name), nil
	}

	func main() {
		host := colloquy.New()
		defer host.Shutdown()

		ctx := context.Background()
		s, step, err := host.Open(ctx, "", greet, nil)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(step.Turn()) // What is your name?

		step, err = host.Turn(ctx, s.ID(), "Ada", 0)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(step.Turn()) // Hello, Ada!
	}

# Architecture

  - pkg/rendezvous: capacity-zero channel with send and receive timeouts.
  - pkg/execution: one running dialogue, its protocol and lifecycle.
  - pkg/session: identifiers, idle expiry and optional cross-replica leases.
  - pkg/adapters: memory and Redis leasers, HTTP controller.
*/
package colloquy
