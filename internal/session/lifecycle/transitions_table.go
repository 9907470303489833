// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import "github.com/ManuGH/chargewalk/internal/session/model"

// Transition is a single allowed edge in the session state machine.
type Transition struct {
	From  model.SessionState
	To    model.SessionState
	Event EventKind
	// Emit is the wire name of the event reported to the collector.
	Emit model.EventName
}

// Regression reports whether the edge moves backwards in the lifecycle.
func (t Transition) Regression() bool { return t.To.Rank() < t.From.Rank() }

// Ends reports whether the edge terminates the session.
func (t Transition) Ends() bool { return t.To.IsTerminal() }

var transitionsTable = []Transition{
	// Approach
	{From: model.StateIdle, To: model.StateNearCharger, Event: EvIntentEntered, Emit: model.EventIntentEntered},
	{From: model.StateNearCharger, To: model.StateAnchored, Event: EvAnchorConfirmed, Emit: model.EventAnchored},

	// Explicit regressions
	{From: model.StateNearCharger, To: model.StateIdle, Event: EvIntentLeft, Emit: model.EventIntentLeft},
	{From: model.StateAnchored, To: model.StateNearCharger, Event: EvAnchorLost, Emit: model.EventAnchorLost},

	// Session path
	{From: model.StateAnchored, To: model.StateSessionActive, Event: EvExclusiveActivated, Emit: model.EventExclusiveActivated},
	{From: model.StateSessionActive, To: model.StateInTransit, Event: EvChargerDeparted, Emit: model.EventChargerDeparted},
	{From: model.StateInTransit, To: model.StateAtMerchant, Event: EvMerchantReached, Emit: model.EventMerchantArrived},
	{From: model.StateInTransit, To: model.StateSessionEnded, Event: EvGraceExpired, Emit: model.EventGraceExpired},
	{From: model.StateAtMerchant, To: model.StateSessionEnded, Event: EvVisitVerified, Emit: model.EventVisitVerified},

	// Web-requested end from any non-terminal state
	{From: model.StateIdle, To: model.StateSessionEnded, Event: EvEndRequested, Emit: model.EventWebRequestedEnd},
	{From: model.StateNearCharger, To: model.StateSessionEnded, Event: EvEndRequested, Emit: model.EventWebRequestedEnd},
	{From: model.StateAnchored, To: model.StateSessionEnded, Event: EvEndRequested, Emit: model.EventWebRequestedEnd},
	{From: model.StateSessionActive, To: model.StateSessionEnded, Event: EvEndRequested, Emit: model.EventWebRequestedEnd},
	{From: model.StateInTransit, To: model.StateSessionEnded, Event: EvEndRequested, Emit: model.EventWebRequestedEnd},
	{From: model.StateAtMerchant, To: model.StateSessionEnded, Event: EvEndRequested, Emit: model.EventWebRequestedEnd},

	// Hard timeout from any non-idle, non-terminal state
	{From: model.StateNearCharger, To: model.StateSessionEnded, Event: EvHardTimeout, Emit: model.EventHardTimeout},
	{From: model.StateAnchored, To: model.StateSessionEnded, Event: EvHardTimeout, Emit: model.EventHardTimeout},
	{From: model.StateSessionActive, To: model.StateSessionEnded, Event: EvHardTimeout, Emit: model.EventHardTimeout},
	{From: model.StateInTransit, To: model.StateSessionEnded, Event: EvHardTimeout, Emit: model.EventHardTimeout},
	{From: model.StateAtMerchant, To: model.StateSessionEnded, Event: EvHardTimeout, Emit: model.EventHardTimeout},
}

// TransitionFor returns the allowed transition for a given state+event.
func TransitionFor(from model.SessionState, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

// Transitions returns a copy of the full table.
func Transitions() []Transition {
	return append([]Transition(nil), transitionsTable...)
}
