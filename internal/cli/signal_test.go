//go:build unix

package cli

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignalContext_CapturesSignal(t *testing.T) {
	ctx := NewSignalContext(context.Background())
	defer ctx.Stop()

	assert.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled by SIGTERM")
	}
	assert.Equal(t, syscall.SIGTERM, ctx.Signal())
}

func TestSignalContext_StopWithoutSignal(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx := NewSignalContext(parent)
	defer ctx.Stop()

	cancel()
	<-ctx.Done()
	assert.Nil(t, ctx.Signal())
}
