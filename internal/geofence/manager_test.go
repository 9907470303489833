// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package geofence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(regions []Region) []string {
	out := make([]string, len(regions))
	for i, r := range regions {
		out[i] = r.ID
	}
	return out
}

func TestManager_NeverExceedsCapacity(t *testing.T) {
	ctx := context.Background()
	sink := NewSimulatedOS(nil)
	m := NewManager(sink)

	for i, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, m.AddCharger(ctx, id, 30, -97, 100))
		assert.LessOrEqual(t, len(m.Active()), DefaultCapacity, "after %d additions", i+1)
		assert.LessOrEqual(t, len(sink.Registered()), DefaultCapacity)
	}
	assert.Equal(t, []string{"charger_d", "charger_e"}, ids(m.Active()))
	assert.Equal(t, []string{"charger_d", "charger_e"}, ids(sink.Registered()))
}

func TestManager_EvictsOldestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewSimulatedOS(nil))

	require.NoError(t, m.AddCharger(ctx, "c1", 30.268, -97.7435, 400))
	require.NoError(t, m.AddMerchant(ctx, "m1", 30.269, -97.744, 40))
	require.NoError(t, m.AddMerchant(ctx, "m2", 30.270, -97.745, 40))

	assert.Equal(t, []string{"merchant_m1", "merchant_m2"}, ids(m.Active()))
}

func TestManager_ReaddMovesToTail(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewSimulatedOS(nil))

	require.NoError(t, m.AddCharger(ctx, "c1", 30, -97, 400))
	require.NoError(t, m.AddMerchant(ctx, "m1", 30, -97, 40))
	require.NoError(t, m.AddCharger(ctx, "c1", 30, -97, 200))
	assert.Equal(t, []string{"merchant_m1", "charger_c1"}, ids(m.Active()))
	assert.Equal(t, 200.0, m.Active()[1].RadiusM)

	// c1 is now newest, so m1 is evicted
	require.NoError(t, m.AddMerchant(ctx, "m2", 30, -97, 40))
	assert.Equal(t, []string{"charger_c1", "merchant_m2"}, ids(m.Active()))
}

func TestManager_TransitionMasks(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewSimulatedOS(nil))
	require.NoError(t, m.AddCharger(ctx, "c1", 30, -97, 400))
	require.NoError(t, m.AddMerchant(ctx, "m1", 30, -97, 40))

	active := m.Active()
	assert.Equal(t, TransitionEnter|TransitionExit, active[0].Transitions)
	assert.Equal(t, TransitionEnter, active[1].Transitions)
	assert.False(t, active[1].Transitions.Has(TransitionExit))
}

func TestManager_ClampsRadius(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewSimulatedOS(nil))
	require.NoError(t, m.AddCharger(ctx, "big", 30, -97, 5000))
	require.NoError(t, m.AddMerchant(ctx, "tiny", 30, -97, 0))

	active := m.Active()
	assert.Equal(t, MaxRadiusMeters, active[0].RadiusM)
	assert.Equal(t, MinRadiusMeters, active[1].RadiusM)
}

func TestManager_RegistrationFailureNotTracked(t *testing.T) {
	ctx := context.Background()
	sink := NewSimulatedOS(nil)
	m := NewManager(sink)

	denied := errors.New("permission denied")
	sink.FailRegistrations(denied)
	err := m.AddCharger(ctx, "c1", 30, -97, 400)
	require.ErrorIs(t, err, denied)
	assert.Empty(t, m.Active())

	sink.FailRegistrations(nil)
	require.NoError(t, m.AddCharger(ctx, "c1", 30, -97, 400))
	assert.True(t, m.Has("charger_c1"))
}

func TestManager_FailedReaddDropsOldRegistration(t *testing.T) {
	ctx := context.Background()
	sink := NewSimulatedOS(nil)
	m := NewManager(sink)
	require.NoError(t, m.AddCharger(ctx, "c1", 30, -97, 400))

	sink.FailRegistrations(errors.New("permission denied"))
	require.Error(t, m.AddCharger(ctx, "c1", 30, -97, 200))
	assert.Empty(t, m.Active())
	assert.Empty(t, sink.Registered(), "untracked region must not linger in the OS")

	sink.FailRegistrations(nil)
	m.RemoveAll(ctx)
	require.NoError(t, m.AddCharger(ctx, "c2", 30, -97, 400))
	require.NoError(t, m.AddMerchant(ctx, "m1", 30, -97, 40))
	assert.Equal(t, []string{"charger_c2", "merchant_m1"}, ids(sink.Registered()))
	assert.LessOrEqual(t, len(sink.Registered()), DefaultCapacity)
}

func TestManager_RemoveAndRemoveAll(t *testing.T) {
	ctx := context.Background()
	sink := NewSimulatedOS(nil)
	m := NewManager(sink)
	require.NoError(t, m.AddCharger(ctx, "c1", 30, -97, 400))
	require.NoError(t, m.AddMerchant(ctx, "m1", 30, -97, 40))

	m.Remove(ctx, "charger_c1")
	assert.Equal(t, []string{"merchant_m1"}, ids(m.Active()))
	m.Remove(ctx, "missing")

	m.RemoveAll(ctx)
	assert.Empty(t, m.Active())
	assert.Empty(t, sink.Registered())
}

func TestManager_WithCapacity(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewSimulatedOS(nil), WithCapacity(1))
	require.NoError(t, m.AddCharger(ctx, "c1", 30, -97, 400))
	require.NoError(t, m.AddMerchant(ctx, "m1", 30, -97, 40))
	assert.Equal(t, []string{"merchant_m1"}, ids(m.Active()))
}

func TestParseRegionID(t *testing.T) {
	k, id, ok := ParseRegionID(ChargerRegionID("abc_1"))
	require.True(t, ok)
	assert.Equal(t, KindCharger, k)
	assert.Equal(t, "abc_1", id)

	k, id, ok = ParseRegionID(MerchantRegionID("m"))
	require.True(t, ok)
	assert.Equal(t, KindMerchant, k)
	assert.Equal(t, "m", id)

	_, _, ok = ParseRegionID("charger_")
	assert.False(t, ok)
	_, _, ok = ParseRegionID("parking_1")
	assert.False(t, ok)
}
