// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

// EventKind is a domain event that may move the session state machine.
type EventKind int

const (
	EvUnknown EventKind = iota
	EvIntentEntered
	EvAnchorConfirmed
	EvIntentLeft
	EvAnchorLost
	EvExclusiveActivated
	EvChargerDeparted
	EvMerchantReached
	EvGraceExpired
	EvVisitVerified
	EvEndRequested
	EvHardTimeout
)

var eventNames = map[EventKind]string{
	EvUnknown:            "unknown",
	EvIntentEntered:      "intent_entered",
	EvAnchorConfirmed:    "anchor_confirmed",
	EvIntentLeft:         "intent_left",
	EvAnchorLost:         "anchor_lost",
	EvExclusiveActivated: "exclusive_activated",
	EvChargerDeparted:    "charger_departed",
	EvMerchantReached:    "merchant_reached",
	EvGraceExpired:       "grace_expired",
	EvVisitVerified:      "visit_verified",
	EvEndRequested:       "end_requested",
	EvHardTimeout:        "hard_timeout",
}

func (e EventKind) String() string {
	if n, ok := eventNames[e]; ok {
		return n
	}
	return "unknown"
}

// AllEvents lists every event kind that appears in the transition table.
func AllEvents() []EventKind {
	return []EventKind{
		EvIntentEntered,
		EvAnchorConfirmed,
		EvIntentLeft,
		EvAnchorLost,
		EvExclusiveActivated,
		EvChargerDeparted,
		EvMerchantReached,
		EvGraceExpired,
		EvVisitVerified,
		EvEndRequested,
		EvHardTimeout,
	}
}
