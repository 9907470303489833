// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	SessionIDKey     = "chargewalk.session_id"
	ChargerIDKey     = "chargewalk.charger_id"
	EventNameKey     = "chargewalk.event"
	EventIDKey       = "chargewalk.event_id"
	FromStateKey     = "chargewalk.from_state"
	ToStateKey       = "chargewalk.to_state"
	TriggerKey       = "chargewalk.trigger"
	BridgeCommandKey = "chargewalk.bridge.command"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// TransitionAttributes describes a state transition.
func TransitionAttributes(from, to, event, trigger string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(FromStateKey, from),
		attribute.String(ToStateKey, to),
		attribute.String(EventNameKey, event),
		attribute.String(TriggerKey, trigger),
	}
}

// EventAttributes describes an emitted remote event. Empty ids are omitted.
func EventAttributes(event, eventID, sessionID, chargerID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(EventNameKey, event),
		attribute.String(EventIDKey, eventID),
	}
	if sessionID != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, sessionID))
	}
	if chargerID != "" {
		attrs = append(attrs, attribute.String(ChargerIDKey, chargerID))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
