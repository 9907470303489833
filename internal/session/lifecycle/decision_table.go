// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"fmt"

	"github.com/ManuGH/chargewalk/internal/session/model"
)

// Decision records whether a transition is allowed and why it is forbidden.
type Decision struct {
	Allowed bool
	Reason  string
}

// DecisionFor returns the decision for every known state+event pair. The
// second result is false only for unknown states or events.
func DecisionFor(from model.SessionState, ev EventKind) (Decision, bool) {
	if !from.Valid() || ev == EvUnknown {
		return Decision{}, false
	}
	if _, ok := TransitionFor(from, ev); ok {
		return Decision{Allowed: true}, true
	}
	return Decision{Allowed: false, Reason: forbiddenReason(from, ev)}, true
}

func forbiddenReason(from model.SessionState, ev EventKind) string {
	if from.IsTerminal() {
		return "session already ended"
	}
	switch ev {
	case EvExclusiveActivated:
		if from.HasSession() {
			return "session already active"
		}
		return fmt.Sprintf("vehicle not anchored at charger (state %s)", from)
	case EvVisitVerified:
		return fmt.Sprintf("visit can only be verified at the merchant (state %s)", from)
	case EvHardTimeout:
		return "no session deadline armed while idle"
	case EvGraceExpired:
		return "grace period only runs while in transit"
	case EvMerchantReached:
		return "merchant proximity only counts while in transit"
	case EvChargerDeparted:
		return "departure only counts while a session is active"
	default:
		return fmt.Sprintf("event %s not valid in state %s", ev, from)
	}
}

// ForbiddenTransitionReason documents why a transition is disallowed.
func ForbiddenTransitionReason(from model.SessionState, ev EventKind) string {
	decision, ok := DecisionFor(from, ev)
	if !ok || decision.Allowed {
		return ""
	}
	return decision.Reason
}
