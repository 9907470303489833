// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"time"

	"github.com/ManuGH/chargewalk/internal/validate"
)

// SessionConfigVersion is the version of the compiled-in defaults.
const SessionConfigVersion = 1

// Session holds the tunables of the session state machine. It is treated as an
// immutable value: the engine receives copies and never mutates them.
//
// JSON tags match the remote config document; YAML tags follow the file layout.
type Session struct {
	Version                       int     `json:"version" yaml:"version,omitempty" env:"VERSION"`
	ChargerIntentRadiusM          float64 `json:"charger_intent_radius_m" yaml:"chargerIntentRadiusM,omitempty" env:"CHARGER_INTENT_RADIUS_M"`
	ChargerAnchorRadiusM          float64 `json:"charger_anchor_radius_m" yaml:"chargerAnchorRadiusM,omitempty" env:"CHARGER_ANCHOR_RADIUS_M"`
	AnchorDwellSeconds            int     `json:"anchor_dwell_seconds" yaml:"anchorDwellSeconds,omitempty" env:"ANCHOR_DWELL_SECONDS"`
	MerchantUnlockRadiusM         float64 `json:"merchant_unlock_radius_m" yaml:"merchantUnlockRadiusM,omitempty" env:"MERCHANT_UNLOCK_RADIUS_M"`
	GracePeriodSeconds            int     `json:"grace_period_seconds" yaml:"gracePeriodSeconds,omitempty" env:"GRACE_PERIOD_SECONDS"`
	HardTimeoutSeconds            int     `json:"hard_timeout_seconds" yaml:"hardTimeoutSeconds,omitempty" env:"HARD_TIMEOUT_SECONDS"`
	LocationAccuracyRejectM       float64 `json:"location_accuracy_reject_m" yaml:"locationAccuracyRejectM,omitempty" env:"LOCATION_ACCURACY_REJECT_M"`
	DwellSpeedThresholdMps        float64 `json:"dwell_speed_threshold_mps" yaml:"dwellSpeedThresholdMps,omitempty" env:"DWELL_SPEED_THRESHOLD_MPS"`
	TreatUnknownSpeedAsStationary bool    `json:"treat_unknown_speed_as_stationary" yaml:"treatUnknownSpeedAsStationary" env:"TREAT_UNKNOWN_SPEED_AS_STATIONARY"`
}

// DefaultSession returns the compiled-in tunables.
func DefaultSession() Session {
	return Session{
		Version:                       SessionConfigVersion,
		ChargerIntentRadiusM:          400,
		ChargerAnchorRadiusM:          60,
		AnchorDwellSeconds:            120,
		MerchantUnlockRadiusM:         40,
		GracePeriodSeconds:            900,
		HardTimeoutSeconds:            7200,
		LocationAccuracyRejectM:       50,
		DwellSpeedThresholdMps:        1.5,
		TreatUnknownSpeedAsStationary: true,
	}
}

// AnchorDwell returns the dwell duration required to anchor.
func (s Session) AnchorDwell() time.Duration {
	return time.Duration(s.AnchorDwellSeconds) * time.Second
}

// GracePeriod returns the post-departure grace window.
func (s Session) GracePeriod() time.Duration {
	return time.Duration(s.GracePeriodSeconds) * time.Second
}

// HardTimeout returns the absolute session ceiling.
func (s Session) HardTimeout() time.Duration {
	return time.Duration(s.HardTimeoutSeconds) * time.Second
}

// Validate checks that every tunable is positive and that the anchor radius
// does not exceed the intent radius.
func (s Session) Validate() error {
	v := validate.New()
	v.Positive("charger_intent_radius_m", s.ChargerIntentRadiusM)
	v.Positive("charger_anchor_radius_m", s.ChargerAnchorRadiusM)
	v.Positive("merchant_unlock_radius_m", s.MerchantUnlockRadiusM)
	v.Positive("location_accuracy_reject_m", s.LocationAccuracyRejectM)
	v.Positive("dwell_speed_threshold_mps", s.DwellSpeedThresholdMps)
	v.Range("anchor_dwell_seconds", s.AnchorDwellSeconds, 1, 86400)
	v.Range("grace_period_seconds", s.GracePeriodSeconds, 1, 86400)
	v.Range("hard_timeout_seconds", s.HardTimeoutSeconds, 1, 7*86400)
	if s.ChargerAnchorRadiusM > s.ChargerIntentRadiusM {
		v.AddError("charger_anchor_radius_m",
			fmt.Sprintf("must not exceed charger_intent_radius_m (%v)", s.ChargerIntentRadiusM),
			s.ChargerAnchorRadiusM)
	}
	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	return nil
}
