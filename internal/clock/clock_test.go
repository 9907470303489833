// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFake_AdvanceFiresDueTimersInOrder(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewFake(start)

	var fired []string
	c.AfterFunc(3*time.Second, func() { fired = append(fired, "b") })
	c.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	c.AfterFunc(10*time.Second, func() { fired = append(fired, "c") })

	c.Advance(5 * time.Second)
	require.Equal(t, []string{"a", "b"}, fired)
	require.Equal(t, start.Add(5*time.Second), c.Now())
	require.Equal(t, 1, c.Pending())
}

func TestFake_StopPreventsFire(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	fired := false
	tm := c.AfterFunc(time.Second, func() { fired = true })
	require.True(t, tm.Stop())
	require.False(t, tm.Stop())

	c.Advance(2 * time.Second)
	require.False(t, fired)
	require.Zero(t, c.Pending())
}

func TestFake_CallbackSeesDeadlineTime(t *testing.T) {
	start := time.Unix(1000, 0)
	c := NewFake(start)
	var seen time.Time
	c.AfterFunc(2*time.Second, func() { seen = c.Now() })
	c.Advance(time.Minute)
	require.Equal(t, start.Add(2*time.Second), seen)
	require.Equal(t, start.Add(time.Minute), c.Now())
}

func TestFake_TimerScheduledFromCallbackFires(t *testing.T) {
	c := NewFake(time.Unix(0, 0))
	count := 0
	c.AfterFunc(time.Second, func() {
		count++
		c.AfterFunc(time.Second, func() { count++ })
	})
	c.Advance(5 * time.Second)
	require.Equal(t, 2, count)
}

func TestFake_SetNeverMovesBackwards(t *testing.T) {
	start := time.Unix(100, 0)
	c := NewFake(start)
	c.Set(time.Unix(50, 0))
	require.Equal(t, start, c.Now())
}
