// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import "encoding/json"

// Outbound action names.
const (
	ActionReady                = "NATIVE_READY"
	ActionSessionStateChanged  = "SESSION_STATE_CHANGED"
	ActionSessionStartRejected = "SESSION_START_REJECTED"
	ActionLocationResponse     = "LOCATION_RESPONSE"
	ActionPermissionStatus     = "PERMISSION_STATUS"
	ActionAuthTokenResponse    = "AUTH_TOKEN_RESPONSE"
	ActionAuthRequired         = "AUTH_REQUIRED"
	ActionEventEmissionFailed  = "EVENT_EMISSION_FAILED"
	ActionError                = "ERROR"
)

// Notification is one outbound message to the web layer.
type Notification struct {
	Action  string `json:"action"`
	Payload any    `json:"payload"`
}

// Encode renders the frame delivered to the web content callback.
func (n Notification) Encode() ([]byte, error) {
	if n.Payload == nil {
		n.Payload = struct{}{}
	}
	return json.Marshal(n)
}

// RequestID returns the echoed request id, if the payload carries one.
func (n Notification) RequestID() string {
	switch p := n.Payload.(type) {
	case LocationPayload:
		return p.RequestID
	case PermissionPayload:
		return p.RequestID
	case AuthTokenPayload:
		return p.RequestID
	case ErrorPayload:
		return p.RequestID
	}
	return ""
}

type StatePayload struct {
	State string `json:"state"`
}

type ReasonPayload struct {
	Reason string `json:"reason"`
}

type LocationPayload struct {
	RequestID string  `json:"requestId,omitempty"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Accuracy  float64 `json:"accuracy"`
}

type PermissionPayload struct {
	RequestID     string `json:"requestId,omitempty"`
	Status        string `json:"status"`
	AlwaysGranted bool   `json:"alwaysGranted"`
}

type AuthTokenPayload struct {
	RequestID string `json:"requestId,omitempty"`
	Token     string `json:"token"`
}

type EmissionFailedPayload struct {
	Event  string `json:"event"`
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	RequestID string `json:"requestId,omitempty"`
	Message   string `json:"message"`
}

func Ready() Notification {
	return Notification{Action: ActionReady}
}

func SessionStateChanged(state string) Notification {
	return Notification{Action: ActionSessionStateChanged, Payload: StatePayload{State: state}}
}

func SessionStartRejected(reason string) Notification {
	return Notification{Action: ActionSessionStartRejected, Payload: ReasonPayload{Reason: reason}}
}

func LocationResponse(requestID string, lat, lng, accuracy float64) Notification {
	return Notification{Action: ActionLocationResponse, Payload: LocationPayload{
		RequestID: requestID, Lat: lat, Lng: lng, Accuracy: accuracy,
	}}
}

func PermissionStatus(requestID, status string, alwaysGranted bool) Notification {
	return Notification{Action: ActionPermissionStatus, Payload: PermissionPayload{
		RequestID: requestID, Status: status, AlwaysGranted: alwaysGranted,
	}}
}

func AuthTokenResponse(requestID, token string) Notification {
	return Notification{Action: ActionAuthTokenResponse, Payload: AuthTokenPayload{RequestID: requestID, Token: token}}
}

func AuthRequired() Notification {
	return Notification{Action: ActionAuthRequired}
}

func EventEmissionFailed(event, reason string) Notification {
	return Notification{Action: ActionEventEmissionFailed, Payload: EmissionFailedPayload{Event: event, Reason: reason}}
}

func Error(requestID, message string) Notification {
	return Notification{Action: ActionError, Payload: ErrorPayload{RequestID: requestID, Message: message}}
}
