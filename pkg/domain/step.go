package domain

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Turn is one opaque message of the exchange protocol, in either direction.
// The core never inspects it.
type Turn = any

// Kind discriminates the three variants of a Step.
type Kind uint8

const (
	// KindOutput: the dialogue produced an intermediate turn and awaits input.
	KindOutput Kind = iota + 1
	// KindLast: the dialogue completed normally.
	KindLast
	// KindError: the dialogue terminated with an unhandled failure.
	KindError
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindOutput:
		return "output"
	case KindLast:
		return "last"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Step is the outcome of a turn exchange as seen by the controller.
// It is immutable; the zero value is not a valid Step.
//
// Steps are produced by the execution package. Use Equal to compare them: == panics
// when the wrapped turn is a map, slice or other non-comparable value.
type Step struct {
	kind Kind
	turn Turn
	err  error
}

// OutputTurn wraps an intermediate turn; more exchanges are expected.
func OutputTurn(turn Turn) Step {
	return Step{kind: KindOutput, turn: turn}
}

// LastTurn wraps the final turn of a dialogue that finished normally.
func LastTurn(turn Turn) Step {
	return Step{kind: KindLast, turn: turn}
}

// ErrorStep wraps the failure that terminated a dialogue.
func ErrorStep(cause error) Step {
	return Step{kind: KindError, err: cause}
}

// Kind reports which variant the Step is.
func (s Step) Kind() Kind { return s.kind }

// Turn returns the wrapped turn. It is nil for error steps.
func (s Step) Turn() Turn { return s.turn }

// Err returns the wrapped failure of an error step, nil otherwise.
func (s Step) Err() error { return s.err }

// IsZero reports whether s is the zero Step (returned alongside errors).
func (s Step) IsZero() bool { return s.kind == 0 }

// Equal reports whether s and o have the same kind and structurally equal contents.
func (s Step) Equal(o Step) bool {
	return s.kind == o.kind && reflect.DeepEqual(s.turn, o.turn) && reflect.DeepEqual(s.err, o.err)
}

// Terminal reports whether no further exchange is possible after s.
func (s Step) Terminal() bool {
	return s.kind == KindLast || s.kind == KindError
}

func (s Step) String() string {
	switch s.kind {
	case KindOutput, KindLast:
		return fmt.Sprintf("%s(%v)", s.kind, s.turn)
	case KindError:
		return fmt.Sprintf("error(%v)", s.err)
	default:
		return "step(<zero>)"
	}
}

// stepJSON is the wire shape used by adapters.
type stepJSON struct {
	Kind  string `json:"kind"`
	Turn  Turn   `json:"turn,omitempty"`
	Error string `json:"error,omitempty"`
}

// MarshalJSON encodes the step as {"kind": ..., "turn": ...} or {"kind": "error", "error": ...}.
func (s Step) MarshalJSON() ([]byte, error) {
	if s.kind == 0 {
		return nil, fmt.Errorf("cannot marshal zero step")
	}
	out := stepJSON{Kind: s.kind.String(), Turn: s.turn}
	if s.err != nil {
		out.Error = s.err.Error()
	}
	return json.Marshal(out)
}
