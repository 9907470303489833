// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package emitter

import (
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/chargewalk/internal/session/model"
)

// SessionEvent is emitted once a backend session exists.
type SessionEvent struct {
	SessionID string
	Name      model.EventName
	EventID   string
	Timestamp time.Time
	AppState  model.AppState
	Metadata  map[string]string
}

// PreSessionEvent is emitted before a session exists and is keyed by the
// charger instead.
type PreSessionEvent struct {
	Name      model.EventName
	ChargerID string
	EventID   string
	Timestamp time.Time
	Metadata  map[string]string
}

// NewEventID returns a client-generated id used by the collector for
// idempotent dedup.
func NewEventID() string {
	return uuid.NewString()
}

type sessionEventBody struct {
	EventName  string            `json:"event_name"`
	EventID    string            `json:"event_id"`
	OccurredAt string            `json:"occurred_at"`
	AppState   string            `json:"app_state"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type preSessionEventBody struct {
	EventName  string            `json:"event_name"`
	ChargerID  string            `json:"charger_id"`
	EventID    string            `json:"event_id"`
	OccurredAt string            `json:"occurred_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func (e SessionEvent) body() sessionEventBody {
	appState := e.AppState
	if appState == "" {
		appState = model.AppBackground
	}
	return sessionEventBody{
		EventName:  string(e.Name),
		EventID:    e.EventID,
		OccurredAt: formatTimestamp(e.Timestamp),
		AppState:   string(appState),
		Metadata:   e.Metadata,
	}
}

func (e PreSessionEvent) body() preSessionEventBody {
	return preSessionEventBody{
		EventName:  string(e.Name),
		ChargerID:  e.ChargerID,
		EventID:    e.EventID,
		OccurredAt: formatTimestamp(e.Timestamp),
		Metadata:   e.Metadata,
	}
}
