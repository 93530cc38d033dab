package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/colloquy"
	"github.com/aretw0/colloquy/internal/dialogues"
	"github.com/aretw0/colloquy/pkg/catalog"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/execution"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDemo(t *testing.T, input string) (*Demo, *bytes.Buffer) {
	t.Helper()
	c := catalog.New()
	dialogues.Register(c)
	host := colloquy.New(colloquy.WithCatalog(c))
	t.Cleanup(host.Shutdown)

	var out bytes.Buffer
	return &Demo{
		Host:        host,
		In:          strings.NewReader(input),
		Out:         &out,
		TurnTimeout: time.Second,
		StopWait:    time.Second,
	}, &out
}

func TestDemo_RunsToLastTurn(t *testing.T) {
	demo, out := newDemo(t, "hi\nbye\n")

	require.NoError(t, demo.Run(context.Background(), "echo", nil))

	text := out.String()
	assert.Contains(t, text, "Say something (bye to quit).")
	assert.Contains(t, text, "> hi\n")
	assert.Contains(t, text, "Goodbye after 1 turns.")
	assert.Eventually(t, func() bool {
		return demo.Host.Registry().Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestDemo_EndOfInputClosesSession(t *testing.T) {
	demo, out := newDemo(t, "12\n")

	require.NoError(t, demo.Run(context.Background(), "guess", map[string]any{"max": 20, "secret": 5}))

	assert.Contains(t, out.String(), "12 is too high.")
	assert.Contains(t, out.String(), ">>> Leaving guess.")
	assert.Equal(t, 0, demo.Host.Registry().Len())
}

func TestDemo_WaitsForSlowDialogue(t *testing.T) {
	demo, out := newDemo(t, "hi\n")
	demo.TurnTimeout = 20 * time.Millisecond
	demo.Host.Catalog().Register("slow", "answers late", func(ctx context.Context, d execution.Dialogue, _ any) (domain.Turn, error) {
		in, err := d.Exchange("ready")
		if err != nil {
			return nil, err
		}
		time.Sleep(100 * time.Millisecond)
		return "done " + in.(string), nil
	})

	require.NoError(t, demo.Run(context.Background(), "slow", nil))

	assert.Contains(t, out.String(), "did not answer within 20ms, still waiting.")
	assert.Contains(t, out.String(), "done hi")
}

func TestDemo_UnknownDialogue(t *testing.T) {
	demo, _ := newDemo(t, "")
	assert.Error(t, demo.Run(context.Background(), "nope", nil))
}

func TestPrintBanner_PlainWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3")

	assert.Contains(t, buf.String(), "v1.2.3")
	assert.NotContains(t, buf.String(), "\x1b[", "no escape sequences outside a terminal")
}
