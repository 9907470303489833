// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import "time"

// Snapshot is the full recoverable state of a session. Deadlines are absolute
// epoch milliseconds so they survive process death unchanged.
type Snapshot struct {
	State           SessionState       `json:"state"`
	SavedAtMs       int64              `json:"savedAtMs"`
	Charger         *ChargerTarget     `json:"charger,omitempty"`
	Merchant        *MerchantTarget    `json:"merchant,omitempty"`
	ActiveSession   *ActiveSessionInfo `json:"activeSession,omitempty"`
	GraceDeadlineMs *int64             `json:"graceDeadlineMs,omitempty"`
	HardDeadlineMs  *int64             `json:"hardDeadlineMs,omitempty"`
}

// SavedAt returns the save timestamp.
func (s *Snapshot) SavedAt() time.Time { return time.UnixMilli(s.SavedAtMs) }

// Age returns how long ago the snapshot was written.
func (s *Snapshot) Age(now time.Time) time.Duration { return now.Sub(s.SavedAt()) }

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	if s.Charger != nil {
		c := *s.Charger
		out.Charger = &c
	}
	if s.Merchant != nil {
		m := *s.Merchant
		out.Merchant = &m
	}
	if s.ActiveSession != nil {
		a := *s.ActiveSession
		out.ActiveSession = &a
	}
	if s.GraceDeadlineMs != nil {
		g := *s.GraceDeadlineMs
		out.GraceDeadlineMs = &g
	}
	if s.HardDeadlineMs != nil {
		h := *s.HardDeadlineMs
		out.HardDeadlineMs = &h
	}
	return &out
}

// DeadlineMs converts an optional deadline into the persisted representation.
func DeadlineMs(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

// DeadlineTime converts a persisted deadline back into a time.
func DeadlineTime(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms)
	return &t
}
