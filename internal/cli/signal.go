package cli

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// SignalContext is cancelled by the first SIGINT or SIGTERM and remembers which one arrived.
type SignalContext struct {
	context.Context
	cancel context.CancelFunc
	sig    atomic.Pointer[os.Signal]
}

// NewSignalContext derives a SignalContext from parent. Call Stop to release it.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{Context: ctx, cancel: cancel}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			sc.sig.Store(&sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return sc
}

// Stop cancels the context and stops listening for signals.
func (sc *SignalContext) Stop() { sc.cancel() }

// Signal returns the signal that cancelled the context, or nil.
func (sc *SignalContext) Signal() os.Signal {
	if p := sc.sig.Load(); p != nil {
		return *p
	}
	return nil
}
