package client

import (
	"errors"
	"fmt"
	"slices"
)

// State is a step of the sign-in handshake
type State int

const (
	Idle State = iota
	Connecting
	NonceRequested
	AwaitingSignature
	Verifying
	Authenticated
	Failed
)

var stateNames = [...]string{
	Idle:              "idle",
	Connecting:        "connecting",
	NonceRequested:    "nonce_requested",
	AwaitingSignature: "awaiting_signature",
	Verifying:         "verifying",
	Authenticated:     "authenticated",
	Failed:            "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// ErrIllegalTransition means the orchestrator tried to skip or reverse a step
var ErrIllegalTransition = errors.New("illegal state transition")

// Every state may also move to Failed.
var transitions = map[State][]State{
	Idle:              {Connecting},
	Connecting:        {NonceRequested},
	NonceRequested:    {AwaitingSignature},
	AwaitingSignature: {Verifying},
	Verifying:         {Authenticated},
	Authenticated:     {Idle},
	Failed:            {Idle},
}

// CanTransition reports whether from may move to to
func CanTransition(from, to State) bool {
	if to == Failed {
		return from != Failed
	}
	return slices.Contains(transitions[from], to)
}
