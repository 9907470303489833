// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/chargewalk/internal/session/model"

// Dispatch resolves the transition for ev from the current state. It is the
// only way the engine moves between states.
func Dispatch(from model.SessionState, ev EventKind) (Transition, error) {
	decision, ok := DecisionFor(from, ev)
	if !ok {
		return Transition{}, &IllegalTransitionError{From: from, Event: ev, Reason: "unknown state or event"}
	}
	if !decision.Allowed {
		return Transition{}, &IllegalTransitionError{From: from, Event: ev, Reason: decision.Reason}
	}
	tr, _ := TransitionFor(from, ev)
	return tr, nil
}
