// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import "fmt"

// SessionState is the lifecycle position of the on-device session tracker.
// States are totally ordered by lifecycle progress.
type SessionState string

const (
	StateIdle          SessionState = "IDLE"
	StateNearCharger   SessionState = "NEAR_CHARGER"
	StateAnchored      SessionState = "ANCHORED"
	StateSessionActive SessionState = "SESSION_ACTIVE"
	StateInTransit     SessionState = "IN_TRANSIT"
	StateAtMerchant    SessionState = "AT_MERCHANT"
	StateSessionEnded  SessionState = "SESSION_ENDED"
)

var stateRank = map[SessionState]int{
	StateIdle:          0,
	StateNearCharger:   1,
	StateAnchored:      2,
	StateSessionActive: 3,
	StateInTransit:     4,
	StateAtMerchant:    5,
	StateSessionEnded:  6,
}

// AllStates lists every state in lifecycle order.
func AllStates() []SessionState {
	return []SessionState{
		StateIdle,
		StateNearCharger,
		StateAnchored,
		StateSessionActive,
		StateInTransit,
		StateAtMerchant,
		StateSessionEnded,
	}
}

// Rank returns the lifecycle position, or -1 for an unknown state.
func (s SessionState) Rank() int {
	r, ok := stateRank[s]
	if !ok {
		return -1
	}
	return r
}

// Valid reports whether s is a known state.
func (s SessionState) Valid() bool { return s.Rank() >= 0 }

// IsTerminal returns true if the state is the final state.
func (s SessionState) IsTerminal() bool { return s == StateSessionEnded }

// HasSession reports whether a backend-tracked session exists in this state.
func (s SessionState) HasSession() bool {
	return s.Rank() >= StateSessionActive.Rank() && !s.IsTerminal()
}

// AtLeast reports whether s is at or past other in the lifecycle.
func (s SessionState) AtLeast(other SessionState) bool {
	return s.Rank() >= other.Rank()
}

// ParseSessionState validates a persisted or wire state name.
func ParseSessionState(raw string) (SessionState, error) {
	s := SessionState(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown session state %q", raw)
	}
	return s, nil
}
