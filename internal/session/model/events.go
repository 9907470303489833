// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

// EventName is the wire name of an event emitted to the remote collector.
// Keep these stable: the server-side ledger keys on them.
type EventName string

const (
	EventIntentEntered      EventName = "charger_intent_entered"
	EventIntentLeft         EventName = "charger_intent_left"
	EventAnchored           EventName = "charger_anchored"
	EventAnchorLost         EventName = "charger_anchor_lost"
	EventExclusiveActivated EventName = "exclusive_activated"
	EventChargerDeparted    EventName = "charger_departed"
	EventMerchantArrived    EventName = "merchant_arrived"
	EventGraceExpired       EventName = "grace_period_expired"
	EventVisitVerified      EventName = "visit_verified"
	EventWebRequestedEnd    EventName = "web_requested_end"
	EventHardTimeout        EventName = "hard_timeout_expired"
	EventSessionRestored    EventName = "session_restored"
)

// Metadata keys attached to every transition event.
const (
	MetaPreviousState = "previous_state"
	MetaNewState      = "new_state"
	MetaTrigger       = "trigger"
	MetaDistanceM     = "distance_m"
	MetaRestoredAgeMs = "restored_age_ms"
	MetaVerification  = "verification_code"
	MetaMerchantID    = "merchant_id"
)

// AppState describes whether the host app was in the foreground when an event
// was produced.
type AppState string

const (
	AppForeground AppState = "foreground"
	AppBackground AppState = "background"
)

// Trigger records what drove a transition.
type Trigger string

const (
	TriggerLocation Trigger = "location"
	TriggerGeofence Trigger = "geofence"
	TriggerCommand  Trigger = "command"
	TriggerTimer    Trigger = "timer"
	TriggerRestore  Trigger = "restore"
)
