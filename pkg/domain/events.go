package domain

// Side names a party of the exchange protocol.
type Side string

const (
	SideController Side = "controller"
	SideDialogue   Side = "dialogue"
)

// Op names the channel operation a party was blocked in.
type Op string

const (
	OpSend    Op = "send"
	OpReceive Op = "receive"
)

// State is the lifecycle state of a dialogue execution.
type State string

const (
	StateCreated State = "created"
	StateActive  State = "active"
	StateDone    State = "done"
)
