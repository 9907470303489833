// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package dwell

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func speed(v float64) *float64 { return &v }

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestDetector_AnchorsExactlyAtThreshold(t *testing.T) {
	d := New(60, 1.5, 120*time.Second)

	for s := 0; s < 120; s += 10 {
		anchored := d.RecordSample(50, speed(0.3), t0.Add(time.Duration(s)*time.Second))
		require.False(t, anchored, "anchored early at %ds", s)
	}
	require.True(t, d.RecordSample(50, speed(0.3), t0.Add(120*time.Second)))
	require.True(t, d.IsAnchored())
}

func TestDetector_DisqualifyingSampleResetsAccruedTime(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		speed    *float64
	}{
		{name: "outside radius", distance: 61, speed: speed(0)},
		{name: "too fast", distance: 10, speed: speed(1.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(60, 1.5, 120*time.Second)
			d.RecordSample(20, speed(0), t0)
			d.RecordSample(20, speed(0), t0.Add(110*time.Second))

			require.False(t, d.RecordSample(tt.distance, tt.speed, t0.Add(115*time.Second)))
			_, started := d.DwellStart()
			require.False(t, started)

			// The dwell restarts from the next qualifying sample.
			require.False(t, d.RecordSample(20, speed(0), t0.Add(116*time.Second)))
			require.False(t, d.RecordSample(20, speed(0), t0.Add(235*time.Second)))
			require.True(t, d.RecordSample(20, speed(0), t0.Add(236*time.Second)))
		})
	}
}

func TestDetector_DisqualifyingSampleClearsAnchored(t *testing.T) {
	d := New(60, 1.5, 10*time.Second)
	d.RecordSample(0, speed(0), t0)
	require.True(t, d.RecordSample(0, speed(0), t0.Add(10*time.Second)))

	require.False(t, d.RecordSample(100, speed(0), t0.Add(11*time.Second)))
	assert.False(t, d.IsAnchored())
}

func TestDetector_UnknownSpeed(t *testing.T) {
	d := New(60, 1.5, 5*time.Second)
	d.RecordSample(10, nil, t0)
	require.True(t, d.RecordSample(10, nil, t0.Add(5*time.Second)))

	strict := New(60, 1.5, 5*time.Second, WithUnknownSpeedQualifying(false))
	strict.RecordSample(10, nil, t0)
	require.False(t, strict.RecordSample(10, nil, t0.Add(5*time.Second)))
}

func TestDetector_Reset(t *testing.T) {
	d := New(60, 1.5, time.Second)
	d.RecordSample(0, speed(0), t0)
	d.RecordSample(0, speed(0), t0.Add(time.Second))
	require.True(t, d.IsAnchored())

	d.Reset()
	require.False(t, d.IsAnchored())
	_, started := d.DwellStart()
	require.False(t, started)
}

func TestDetector_RadiusBoundaryIsInclusive(t *testing.T) {
	d := New(60, 1.5, 0)
	require.True(t, d.RecordSample(60, speed(1.49), t0))
}
