// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package geofence manages the small set of circular regions registered with
// the platform geofencing provider.
package geofence

import (
	"context"
	"strings"
	"time"

	"github.com/ManuGH/chargewalk/internal/geo"
)

const (
	// MaxRadiusMeters is the largest radius the platform provider accepts.
	MaxRadiusMeters = 1000.0
	// MinRadiusMeters is the smallest radius registered.
	MinRadiusMeters = 1.0
	// DefaultCapacity is the platform ceiling on concurrently registered regions.
	DefaultCapacity = 2
)

// Transition is a bitmask of region transitions.
type Transition uint8

const (
	TransitionEnter Transition = 1 << iota
	TransitionExit
	TransitionDwell
)

// Has reports whether t includes other.
func (t Transition) Has(other Transition) bool { return t&other != 0 }

func (t Transition) String() string {
	var parts []string
	if t.Has(TransitionEnter) {
		parts = append(parts, "enter")
	}
	if t.Has(TransitionExit) {
		parts = append(parts, "exit")
	}
	if t.Has(TransitionDwell) {
		parts = append(parts, "dwell")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Kind identifies what a region is centered on.
type Kind string

const (
	KindCharger  Kind = "charger"
	KindMerchant Kind = "merchant"
)

// Region is a circular geofence.
type Region struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	TargetID    string     `json:"targetId"`
	Center      geo.Point  `json:"center"`
	RadiusM     float64    `json:"radiusM"`
	Transitions Transition `json:"transitions"`
}

// Event is a single transition delivered by the provider.
type Event struct {
	RegionID   string
	Transition Transition
	At         time.Time
}

// Kind returns the region kind encoded in the event's region id.
func (e Event) Kind() (Kind, string, bool) { return ParseRegionID(e.RegionID) }

// Sink is the platform geofencing provider.
type Sink interface {
	Register(ctx context.Context, r Region) error
	Unregister(ctx context.Context, id string) error
}

// ChargerRegionID returns the region id used for a charger target.
func ChargerRegionID(chargerID string) string { return string(KindCharger) + "_" + chargerID }

// MerchantRegionID returns the region id used for a merchant target.
func MerchantRegionID(merchantID string) string { return string(KindMerchant) + "_" + merchantID }

// ParseRegionID splits a region id into its kind and target id.
func ParseRegionID(regionID string) (Kind, string, bool) {
	for _, k := range []Kind{KindCharger, KindMerchant} {
		prefix := string(k) + "_"
		if rest, ok := strings.CutPrefix(regionID, prefix); ok && rest != "" {
			return k, rest, true
		}
	}
	return "", "", false
}

// ClampRadius bounds r to [MinRadiusMeters, MaxRadiusMeters].
func ClampRadius(r float64) float64 {
	switch {
	case r > MaxRadiusMeters:
		return MaxRadiusMeters
	case !(r >= MinRadiusMeters):
		return MinRadiusMeters
	default:
		return r
	}
}
