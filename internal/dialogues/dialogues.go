// Package dialogues holds the sample procedures served by the colloquy binary.
package dialogues

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/aretw0/colloquy/pkg/catalog"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/execution"
)

// Register adds every sample dialogue to c.
func Register(c *catalog.Catalog) {
	c.Register("echo", "repeats every input until you say bye", Echo)
	c.Register("guess", "guess a number between 1 and 100 (param: {\"max\": n, \"secret\": n})", Guess)
}

// Echo repeats its input back until it receives "bye".
func Echo(ctx context.Context, d execution.Dialogue, param any) (domain.Turn, error) {
	prompt := "Say something (bye to quit)."
	if p, ok := param.(string); ok && p != "" {
		prompt = p
	}

	turns := 0
	out := prompt
	for {
		in, err := d.Exchange(out)
		if err != nil {
			return nil, err
		}
		text := strings.TrimSpace(fmt.Sprint(in))
		if strings.EqualFold(text, "bye") {
			return fmt.Sprintf("Goodbye after %d turns.", turns), nil
		}
		turns++
		out = text
	}
}

// Guess asks for numbers until the secret is found.
func Guess(ctx context.Context, d execution.Dialogue, param any) (domain.Turn, error) {
	upper, secret := 100, 0
	if opts, ok := param.(map[string]any); ok {
		if v, ok := asInt(opts["max"]); ok && v > 0 {
			upper = v
		}
		if v, ok := asInt(opts["secret"]); ok {
			secret = v
		}
	}
	if secret < 1 || secret > upper {
		secret = rand.Intn(upper) + 1
	}
	d.Logger().Debug("guess dialogue started", "max", upper)

	out := fmt.Sprintf("I am thinking of a number between 1 and %d.", upper)
	for attempts := 1; ; attempts++ {
		in, err := d.Exchange(out)
		if err != nil {
			return nil, err
		}

		n, ok := asInt(in)
		switch {
		case !ok:
			out = fmt.Sprintf("%v is not a number.", in)
		case n < secret:
			out = fmt.Sprintf("%d is too low.", n)
		case n > secret:
			out = fmt.Sprintf("%d is too high.", n)
		default:
			return fmt.Sprintf("%d is right! You needed %d guesses.", n, attempts), nil
		}
	}
}

// asInt accepts the shapes a turn can arrive in: Go ints, JSON numbers and text.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}
