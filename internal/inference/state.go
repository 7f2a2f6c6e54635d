// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package inference

// State is the lifecycle state of the inference session.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// validTransitions defines allowed state transitions as an adjacency list.
//
// Initializing falls back to whichever state the load started from, so a
// failed first load is retryable from Uninitialized and a failed reinit stays
// Invalid. Ready and Invalid return to Uninitialized only on Close.
var validTransitions = map[State]map[State]bool{
	StateUninitialized: {
		StateInitializing: true,
	},
	StateInitializing: {
		StateReady:         true,
		StateUninitialized: true,
		StateInvalid:       true,
	},
	StateReady: {
		StateInvalid:       true,
		StateUninitialized: true,
	},
	StateInvalid: {
		StateInitializing:  true,
		StateUninitialized: true,
	},
}

// ValidTransition returns true if transitioning from one state to another is allowed.
func ValidTransition(from, to State) bool {
	allowed, exists := validTransitions[from][to]
	return exists && allowed
}
