// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package model

import (
	"time"

	"github.com/ManuGH/chargewalk/internal/geo"
)

// ChargerTarget is the point the driver is expected to charge at.
type ChargerTarget struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Point returns the charger coordinate.
func (c ChargerTarget) Point() geo.Point { return geo.Point{Lat: c.Latitude, Lng: c.Longitude} }

// MerchantTarget is the merchant whose offer was activated.
type MerchantTarget struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Point returns the merchant coordinate.
func (m MerchantTarget) Point() geo.Point { return geo.Point{Lat: m.Latitude, Lng: m.Longitude} }

// ActiveSessionInfo identifies the backend-tracked session.
type ActiveSessionInfo struct {
	SessionID        string `json:"sessionId"`
	ChargerID        string `json:"chargerId"`
	MerchantID       string `json:"merchantId"`
	StartedAtEpochMs int64  `json:"startedAtEpochMs"`
}

// StartedAt returns the session start as a time.
func (a ActiveSessionInfo) StartedAt() time.Time { return time.UnixMilli(a.StartedAtEpochMs) }

// Location is one fix delivered by the OS location provider.
// Speed is nil when the platform did not report it.
type Location struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	AccuracyM float64   `json:"accuracy"`
	SpeedMps  *float64  `json:"speed,omitempty"`
	At        time.Time `json:"at"`
}

// Point returns the fix coordinate.
func (l Location) Point() geo.Point { return geo.Point{Lat: l.Lat, Lng: l.Lng} }
