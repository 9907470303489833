// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package dwell decides whether a device has stayed near a point, slowly
// enough, for long enough to count as anchored there.
package dwell

import "time"

// Detector accumulates continuous qualifying time. It is not safe for
// concurrent use; the session engine owns it on its loop goroutine.
type Detector struct {
	anchorRadiusM     float64
	speedThresholdMps float64
	duration          time.Duration
	unknownIsSlow     bool

	start    time.Time
	started  bool
	anchored bool
}

// Option adjusts a Detector.
type Option func(*Detector)

// WithUnknownSpeedQualifying controls whether a sample without speed counts as
// stationary. Defaults to true: some platforms omit speed on stationary fixes.
func WithUnknownSpeedQualifying(v bool) Option {
	return func(d *Detector) { d.unknownIsSlow = v }
}

// New returns a Detector for the given anchor radius, speed ceiling and dwell
// duration.
func New(anchorRadiusM, speedThresholdMps float64, duration time.Duration, opts ...Option) *Detector {
	d := &Detector{
		anchorRadiusM:     anchorRadiusM,
		speedThresholdMps: speedThresholdMps,
		duration:          duration,
		unknownIsSlow:     true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Qualifies reports whether a sample would extend the current dwell.
func (d *Detector) Qualifies(distanceM float64, speed *float64) bool {
	if distanceM > d.anchorRadiusM {
		return false
	}
	if speed == nil {
		return d.unknownIsSlow
	}
	return *speed < d.speedThresholdMps
}

// RecordSample feeds one sample taken at the given time and returns the
// anchored status after it. A disqualifying sample discards all accrued time.
func (d *Detector) RecordSample(distanceM float64, speed *float64, at time.Time) bool {
	if !d.Qualifies(distanceM, speed) {
		d.Reset()
		return false
	}
	if !d.started {
		d.start = at
		d.started = true
	}
	if !d.anchored && at.Sub(d.start) >= d.duration {
		d.anchored = true
	}
	return d.anchored
}

// IsAnchored reports whether the dwell threshold has been reached.
func (d *Detector) IsAnchored() bool { return d.anchored }

// DwellStart returns the start of the current qualifying run, if any.
func (d *Detector) DwellStart() (time.Time, bool) { return d.start, d.started }

// Reset clears the dwell start and anchored flag.
func (d *Detector) Reset() {
	d.start = time.Time{}
	d.started = false
	d.anchored = false
}
