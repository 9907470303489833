// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID  = "session_id"
	FieldChargerID  = "charger_id"
	FieldMerchantID = "merchant_id"
	FieldRequestID  = "request_id"
	FieldEventID    = "event_id"
	FieldRegionID   = "region_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldCommand   = "command"
	FieldAction    = "action"
	FieldOrigin    = "origin"
	FieldBackend   = "backend"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Location fields
	FieldDistance = "distance_m"
	FieldAccuracy = "accuracy_m"
	FieldSpeed    = "speed_mps"
)
