// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/chargewalk/internal/bridge"
	"github.com/ManuGH/chargewalk/internal/config"
	"github.com/ManuGH/chargewalk/internal/emitter"
	"github.com/ManuGH/chargewalk/internal/geo"
	"github.com/ManuGH/chargewalk/internal/geofence"
	"github.com/ManuGH/chargewalk/internal/session/model"
)

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)

	h := newHarness(t)
	assert.Equal(t, config.DefaultSession(), h.eng.cfg)
}

func TestEngine_FullSessionToVisitVerified(t *testing.T) {
	h := newHarness(t)
	h.start()
	assert.Equal(t, []string{bridge.ActionReady}, h.notes.actions())

	h.setCharger()
	assert.Equal(t, model.StateIdle, h.state())
	assert.True(t, h.fences.Has(geofence.ChargerRegionID("c1")))

	h.anchor()
	assert.Equal(t, model.StateAnchored, h.state())
	assert.Equal(t, []model.EventName{model.EventIntentEntered, model.EventAnchored}, h.events.preNames())
	for _, ev := range h.events.pre {
		assert.Equal(t, "c1", ev.ChargerID)
	}

	h.activate()
	assert.Equal(t, model.StateSessionActive, h.state())
	mode, bg := h.loc.state()
	assert.Equal(t, ModeHighAccuracy, mode)
	assert.True(t, bg)
	assert.True(t, h.fences.Has(geofence.MerchantRegionID("m1")))
	assert.Equal(t, 1, h.clock.Pending(), "hard timeout armed")

	st := h.status()
	require.NotNil(t, st.Snapshot.ActiveSession)
	assert.Equal(t, "s1", st.Snapshot.ActiveSession.SessionID)
	assert.Equal(t, "c1", st.Snapshot.ActiveSession.ChargerID)
	require.NotNil(t, st.Snapshot.HardDeadlineMs)
	assert.Equal(t, testStart.Add(2*time.Minute+2*time.Hour).UnixMilli(), *st.Snapshot.HardDeadlineMs)

	h.depart()
	assert.Equal(t, model.StateInTransit, h.state())
	assert.Equal(t, 2, h.clock.Pending(), "grace and hard timers armed")

	h.feed(merchantPoint)
	assert.Equal(t, model.StateAtMerchant, h.state())
	assert.Equal(t, 1, h.clock.Pending(), "grace stopped on arrival")

	h.command(bridge.Command{
		Type:  bridge.CmdVisitVerified,
		Visit: &bridge.VisitVerification{SessionID: "s1", Code: "123456"},
	})
	assert.Equal(t, model.StateSessionEnded, h.state())

	assert.Equal(t, []model.EventName{
		model.EventExclusiveActivated,
		model.EventChargerDeparted,
		model.EventMerchantArrived,
		model.EventVisitVerified,
	}, h.events.sessionNames())

	last := h.events.lastSession()
	assert.Equal(t, "s1", last.SessionID)
	assert.Equal(t, model.AppForeground, last.AppState)
	assert.Equal(t, "123456", last.Metadata[model.MetaVerification])
	assert.Equal(t, string(model.StateAtMerchant), last.Metadata[model.MetaPreviousState])
	assert.Equal(t, string(model.StateSessionEnded), last.Metadata[model.MetaNewState])

	st = h.status()
	assert.Nil(t, st.Snapshot.Charger)
	assert.Nil(t, st.Snapshot.Merchant)
	assert.Nil(t, st.Snapshot.ActiveSession)
	assert.Empty(t, st.Geofences)
	assert.Empty(t, h.os.Registered())
	assert.Nil(t, h.snaps.current())
	assert.Zero(t, h.clock.Pending())

	mode, bg = h.loc.state()
	assert.Equal(t, ModeLowPower, mode)
	assert.False(t, bg)
}

func TestEngine_NewTargetAfterEndResetsToIdle(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.setCharger()
	h.anchor()
	h.command(bridge.Command{Type: bridge.CmdEndSession, RequestID: "end-1"})
	require.Equal(t, model.StateSessionEnded, h.state())

	h.setCharger()
	assert.Equal(t, model.StateIdle, h.state())
	assert.True(t, h.fences.Has(geofence.ChargerRegionID("c1")))
}

func TestEngine_SetChargerTargetRejectedMidSession(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.setCharger()
	h.feed(geo.Destination(chargerPoint, 0, 100))
	require.Equal(t, model.StateNearCharger, h.state())

	h.setCharger()
	n, ok := h.notes.last(bridge.ActionError)
	require.True(t, ok)
	assert.Equal(t, "set-1", n.RequestID())
	assert.Equal(t, model.StateNearCharger, h.state())
}

func TestEngine_IntentHysteresis(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.setCharger()

	h.feed(geo.Destination(chargerPoint, 0, 410))
	assert.Equal(t, model.StateIdle, h.state(), "outside the intent radius")

	h.feed(geo.Destination(chargerPoint, 0, 390))
	assert.Equal(t, model.StateNearCharger, h.state())

	h.feed(geo.Destination(chargerPoint, 0, 430))
	assert.Equal(t, model.StateNearCharger, h.state(), "inside the exit margin")

	h.feed(geo.Destination(chargerPoint, 0, 470))
	assert.Equal(t, model.StateIdle, h.state())
	assert.Equal(t, []model.EventName{model.EventIntentEntered, model.EventIntentLeft}, h.events.preNames())
}

func TestEngine_AnchorLost(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.setCharger()
	h.anchor()
	require.Equal(t, model.StateAnchored, h.state())

	h.feed(geo.Destination(chargerPoint, 90, 100))
	assert.Equal(t, model.StateAnchored, h.state())

	h.feed(geo.Destination(chargerPoint, 90, 130))
	assert.Equal(t, model.StateNearCharger, h.state())
	assert.Contains(t, h.events.preNames(), model.EventAnchorLost)
}

func TestEngine_FastMovementDoesNotAnchor(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.setCharger()

	near := geo.Destination(chargerPoint, 90, 50)
	for i := 0; i < 20; i++ {
		loc := h.fix(near)
		loc.SpeedMps = speed(3)
		require.NoError(t, h.eng.OnLocation(h.ctx(), loc))
		h.clock.Advance(10 * time.Second)
	}
	assert.Equal(t, model.StateNearCharger, h.state())
}

func TestEngine_InaccurateFixIgnored(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.setCharger()

	loc := h.fix(chargerPoint)
	loc.AccuracyM = 80
	require.NoError(t, h.eng.OnLocation(h.ctx(), loc))
	assert.Equal(t, model.StateIdle, h.state())

	h.command(bridge.Command{Type: bridge.CmdGetLocation, RequestID: "loc-1"})
	n, ok := h.notes.last(bridge.ActionError)
	require.True(t, ok)
	assert.Equal(t, "loc-1", n.RequestID())

	loc = h.fix(geo.Destination(chargerPoint, 0, 100))
	loc.AccuracyM = math.NaN()
	require.NoError(t, h.eng.OnLocation(h.ctx(), loc))
	assert.Equal(t, model.StateIdle, h.state(), "unknown accuracy must not drive transitions")

	h.feed(chargerPoint)
	h.command(bridge.Command{Type: bridge.CmdGetLocation, RequestID: "loc-2"})
	n, ok = h.notes.last(bridge.ActionLocationResponse)
	require.True(t, ok)
	assert.Equal(t, "loc-2", n.RequestID())
}

func TestEngine_ExclusiveActivationRejectedOutsideAnchored(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
		want  model.SessionState
	}{
		{
			name:  "idle",
			setup: func(h *harness) { h.setCharger() },
			want:  model.StateIdle,
		},
		{
			name: "near charger",
			setup: func(h *harness) {
				h.setCharger()
				h.feed(geo.Destination(chargerPoint, 0, 100))
			},
			want: model.StateNearCharger,
		},
		{
			name: "session active",
			setup: func(h *harness) {
				h.setCharger()
				h.anchor()
				h.activate()
			},
			want: model.StateSessionActive,
		},
		{
			name:  "in transit",
			setup: func(h *harness) { h.driveToInTransit() },
			want:  model.StateInTransit,
		},
		{
			name: "at merchant",
			setup: func(h *harness) {
				h.driveToInTransit()
				h.feed(merchantPoint)
			},
			want: model.StateAtMerchant,
		},
		{
			name: "session ended",
			setup: func(h *harness) {
				h.setCharger()
				h.anchor()
				h.command(bridge.Command{Type: bridge.CmdEndSession, RequestID: "end-1"})
			},
			want: model.StateSessionEnded,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.start()
			tt.setup(h)
			require.Equal(t, tt.want, h.state())

			before := h.status()
			rejections := countActions(h.notes.actions(), bridge.ActionSessionStartRejected)
			sessionEvents, preEvents := len(h.events.sessionNames()), len(h.events.preNames())
			timers := h.clock.Pending()

			h.command(bridge.Command{
				Type:      bridge.CmdExclusiveActivated,
				RequestID: "dup-1",
				Exclusive: &bridge.ExclusiveActivation{
					SessionID:   "s2",
					MerchantID:  "m2",
					MerchantLat: 30.3,
					MerchantLng: -97.8,
				},
			})

			assert.Equal(t, before, h.status(), "rejected activation must not touch the session")
			assert.Equal(t, rejections+1, countActions(h.notes.actions(), bridge.ActionSessionStartRejected))
			assert.Len(t, h.events.sessionNames(), sessionEvents)
			assert.Len(t, h.events.preNames(), preEvents)
			assert.Equal(t, timers, h.clock.Pending())
		})
	}
}

func countActions(actions []string, action string) int {
	n := 0
	for _, a := range actions {
		if a == action {
			n++
		}
	}
	return n
}

func TestEngine_VisitVerifiedWrongSession(t *testing.T) {
	h := newHarness(t)
	h.driveToInTransit()
	h.feed(merchantPoint)
	require.Equal(t, model.StateAtMerchant, h.state())

	h.command(bridge.Command{
		Type:      bridge.CmdVisitVerified,
		RequestID: "v-1",
		Visit:     &bridge.VisitVerification{SessionID: "other", Code: "1"},
	})
	assert.Equal(t, model.StateAtMerchant, h.state())
	n, ok := h.notes.last(bridge.ActionError)
	require.True(t, ok)
	assert.Equal(t, "v-1", n.RequestID())
}

func TestEngine_GracePeriodExpires(t *testing.T) {
	h := newHarness(t)
	h.driveToInTransit()

	h.clock.Advance(14 * time.Minute)
	assert.Equal(t, model.StateInTransit, h.state())

	h.clock.Advance(time.Minute)
	assert.Equal(t, model.StateSessionEnded, h.state())

	last := h.events.lastSession()
	assert.Equal(t, model.EventGraceExpired, last.Name)
	assert.Equal(t, string(model.TriggerTimer), last.Metadata[model.MetaTrigger])
	assert.Equal(t, model.AppBackground, last.AppState)
	assert.Zero(t, h.clock.Pending())
	assert.Nil(t, h.snaps.current())
}

func TestEngine_HardTimeoutAtMerchant(t *testing.T) {
	h := newHarness(t)
	h.driveToInTransit()
	h.feed(merchantPoint)
	require.Equal(t, model.StateAtMerchant, h.state())

	h.clock.Advance(2 * time.Hour)
	assert.Equal(t, model.StateSessionEnded, h.state())
	assert.Equal(t, model.EventHardTimeout, h.events.lastSession().Name)
}

func TestEngine_StaleGraceCallbackIgnored(t *testing.T) {
	h := newHarness(t)
	h.driveToInTransit()
	h.feed(merchantPoint)
	require.Equal(t, model.StateAtMerchant, h.state())

	require.NoError(t, h.eng.do(h.ctx(), func() { h.eng.onGraceFired(0) }))
	assert.Equal(t, model.StateAtMerchant, h.state())
}

func TestEngine_GeofenceDrivesTransitions(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.setCharger()

	enter := geofence.Event{RegionID: geofence.ChargerRegionID("c1"), Transition: geofence.TransitionEnter, At: h.clock.Now()}
	require.NoError(t, h.eng.OnGeofence(h.ctx(), enter))
	assert.Equal(t, model.StateNearCharger, h.state())

	other := geofence.Event{RegionID: geofence.ChargerRegionID("c2"), Transition: geofence.TransitionExit, At: h.clock.Now()}
	require.NoError(t, h.eng.OnGeofence(h.ctx(), other))
	assert.Equal(t, model.StateNearCharger, h.state())

	for _, ev := range h.os.Evaluate(geo.Destination(chargerPoint, 0, 1000), h.clock.Now()) {
		require.NoError(t, h.eng.OnGeofence(h.ctx(), ev))
	}
	assert.Equal(t, model.StateNearCharger, h.state(), "exit only matters during an active session")
}

func TestEngine_MerchantGeofenceArrival(t *testing.T) {
	h := newHarness(t)
	h.driveToInTransit()

	ev := geofence.Event{RegionID: geofence.MerchantRegionID("m1"), Transition: geofence.TransitionEnter, At: h.clock.Now()}
	require.NoError(t, h.eng.OnGeofence(h.ctx(), ev))
	assert.Equal(t, model.StateAtMerchant, h.state())
	assert.Equal(t, string(model.TriggerGeofence), h.events.lastSession().Metadata[model.MetaTrigger])
}

func TestEngine_EmissionFailuresReachBridge(t *testing.T) {
	h := newHarness(t)
	h.start()

	h.events.fail(emitter.Failure{
		Event: model.EventAnchored,
		Err:   fmt.Errorf("send: %w", emitter.ErrAuthRequired),
	})
	_, ok := h.notes.last(bridge.ActionAuthRequired)
	assert.True(t, ok)

	h.events.fail(emitter.Failure{Event: model.EventAnchored, Err: emitter.ErrQueueFull})
	n, ok := h.notes.last(bridge.ActionEventEmissionFailed)
	require.True(t, ok)
	p, ok := n.Payload.(bridge.EmissionFailedPayload)
	require.True(t, ok)
	assert.Equal(t, string(model.EventAnchored), p.Event)
	assert.Equal(t, model.StateIdle, h.state())
}

func TestEngine_AuthAndPermissionCommands(t *testing.T) {
	h := newHarness(t)
	h.start()

	h.command(bridge.Command{Type: bridge.CmdSetAuthToken, Token: "  tok-1 "})
	h.command(bridge.Command{Type: bridge.CmdGetAuthToken, RequestID: "a-1"})
	n, ok := h.notes.last(bridge.ActionAuthTokenResponse)
	require.True(t, ok)
	assert.Equal(t, "tok-1", n.Payload.(bridge.AuthTokenPayload).Token)

	h.command(bridge.Command{Type: bridge.CmdGetPermissionStatus, RequestID: "p-1"})
	n, ok = h.notes.last(bridge.ActionPermissionStatus)
	require.True(t, ok)
	assert.False(t, n.Payload.(bridge.PermissionPayload).AlwaysGranted)

	h.command(bridge.Command{Type: bridge.CmdRequestAlwaysLocation, RequestID: "p-2"})
	n, _ = h.notes.last(bridge.ActionPermissionStatus)
	assert.True(t, n.Payload.(bridge.PermissionPayload).AlwaysGranted)
	assert.Equal(t, 1, h.loc.requested)

	h.command(bridge.Command{Type: bridge.CmdGetSessionState})
	n, _ = h.notes.last(bridge.ActionSessionStateChanged)
	assert.Equal(t, string(model.StateIdle), n.Payload.(bridge.StatePayload).State)
}

func TestEngine_ConfigDeferredUntilSessionEnds(t *testing.T) {
	h := newHarness(t)
	h.start()

	cfg := config.DefaultSession()
	cfg.ChargerIntentRadiusM = 300
	require.NoError(t, h.eng.UpdateConfig(h.ctx(), cfg))
	assert.Equal(t, 300.0, h.status().Config.ChargerIntentRadiusM, "idle applies immediately")

	h.setCharger()
	h.feed(geo.Destination(chargerPoint, 0, 100))
	require.Equal(t, model.StateNearCharger, h.state())

	cfg.ChargerIntentRadiusM = 500
	require.NoError(t, h.eng.UpdateConfig(h.ctx(), cfg))
	st := h.status()
	assert.True(t, st.PendingConfig)
	assert.Equal(t, 300.0, st.Config.ChargerIntentRadiusM)

	h.command(bridge.Command{Type: bridge.CmdEndSession})
	st = h.status()
	assert.Equal(t, model.StateSessionEnded, st.Snapshot.State)
	assert.False(t, st.PendingConfig)
	assert.Equal(t, 500.0, st.Config.ChargerIntentRadiusM)
}

func TestEngine_UpdateConfigValidates(t *testing.T) {
	h := newHarness(t)
	h.start()

	cfg := config.DefaultSession()
	cfg.ChargerAnchorRadiusM = -1
	require.Error(t, h.eng.UpdateConfig(h.ctx(), cfg))
}

type staticRemote struct {
	cfg config.Session
	err error
}

func (s staticRemote) Fetch(context.Context) (config.Session, error) { return s.cfg, s.err }

func TestEngine_RemoteConfigApplied(t *testing.T) {
	remote := config.DefaultSession()
	remote.ChargerAnchorRadiusM = 80
	h := newHarness(t, func(d *Deps) { d.Remote = staticRemote{cfg: remote} })
	h.start()

	assert.Eventually(t, func() bool {
		return h.status().Config.ChargerAnchorRadiusM == 80
	}, time.Second, 10*time.Millisecond)
}

func TestEngine_RemoteConfigFailureKeepsDefaults(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Remote = staticRemote{err: errors.New("offline")} })
	h.start()
	assert.Equal(t, config.DefaultSession(), h.status().Config)
}

func TestEngine_StoppedRejectsInput(t *testing.T) {
	h := newHarness(t)
	h.start()
	h.stop()

	err := h.eng.OnLocation(context.Background(), h.fix(chargerPoint))
	assert.ErrorIs(t, err, ErrStopped)
	assert.Error(t, h.eng.Run(context.Background()), "second run")
}

func savedSnapshot(state model.SessionState, savedAt time.Time) *model.Snapshot {
	return &model.Snapshot{
		State:         state,
		SavedAtMs:     savedAt.UnixMilli(),
		Charger:       &model.ChargerTarget{ID: "c1", Latitude: chargerPoint.Lat, Longitude: chargerPoint.Lng},
		Merchant:      &model.MerchantTarget{ID: "m1", Latitude: merchantPoint.Lat, Longitude: merchantPoint.Lng},
		ActiveSession: &model.ActiveSessionInfo{SessionID: "s1", ChargerID: "c1", MerchantID: "m1", StartedAtEpochMs: savedAt.Add(-time.Minute).UnixMilli()},
	}
}

func TestEngine_RestoreResumesTimers(t *testing.T) {
	h := newHarness(t)
	snap := savedSnapshot(model.StateInTransit, testStart.Add(-5*time.Minute))
	grace := testStart.Add(4 * time.Minute)
	hard := testStart.Add(time.Hour)
	snap.GraceDeadlineMs = model.DeadlineMs(&grace)
	snap.HardDeadlineMs = model.DeadlineMs(&hard)
	require.NoError(t, h.store.Save(context.Background(), snap))

	h.start()
	assert.Equal(t, model.StateInTransit, h.state())
	assert.Equal(t, 2, h.clock.Pending())
	assert.True(t, h.fences.Has(geofence.ChargerRegionID("c1")))
	assert.True(t, h.fences.Has(geofence.MerchantRegionID("m1")))

	restored := h.events.lastSession()
	assert.Equal(t, model.EventSessionRestored, restored.Name)
	assert.Equal(t, "300000", restored.Metadata[model.MetaRestoredAgeMs])
	mode, bg := h.loc.state()
	assert.Equal(t, ModeHighAccuracy, mode)
	assert.True(t, bg)

	h.clock.Advance(4 * time.Minute)
	assert.Equal(t, model.StateSessionEnded, h.state())
	assert.Equal(t, model.EventGraceExpired, h.events.lastSession().Name)
}

func TestEngine_RestoreFiresExpiredDeadline(t *testing.T) {
	tests := []struct {
		name  string
		grace time.Duration
		hard  time.Duration
		want  model.EventName
	}{
		{name: "grace expired", grace: -time.Minute, hard: time.Hour, want: model.EventGraceExpired},
		{name: "hard expired", grace: time.Minute, hard: -time.Minute, want: model.EventHardTimeout},
		{name: "both expired, hard first", grace: -time.Minute, hard: -2 * time.Minute, want: model.EventHardTimeout},
		{name: "both expired, grace first", grace: -2 * time.Minute, hard: -time.Minute, want: model.EventGraceExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			snap := savedSnapshot(model.StateInTransit, testStart.Add(-10*time.Minute))
			grace := testStart.Add(tt.grace)
			hard := testStart.Add(tt.hard)
			snap.GraceDeadlineMs = model.DeadlineMs(&grace)
			snap.HardDeadlineMs = model.DeadlineMs(&hard)
			require.NoError(t, h.store.Save(context.Background(), snap))

			h.start()
			assert.Equal(t, model.StateSessionEnded, h.state())
			assert.Equal(t, []model.EventName{tt.want}, h.events.sessionNames())
			assert.Equal(t, string(model.TriggerRestore), h.events.lastSession().Metadata[model.MetaTrigger])
			assert.Empty(t, h.os.Registered())
			assert.Zero(t, h.clock.Pending())
			assert.Equal(t, 1, h.snaps.cleared)
		})
	}
}

func TestEngine_RestoreDiscards(t *testing.T) {
	t.Run("stale", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.store.Save(context.Background(), savedSnapshot(model.StateSessionActive, testStart.Add(-3*time.Hour))))
		h.start()
		assert.Equal(t, model.StateIdle, h.state())
		assert.Nil(t, h.store.Raw())
		assert.Empty(t, h.events.sessionNames())
	})

	t.Run("corrupt", func(t *testing.T) {
		h := newHarness(t)
		h.store.SetRaw([]byte("{not json"))
		h.start()
		assert.Equal(t, model.StateIdle, h.state())
		assert.Nil(t, h.store.Raw())
	})

	t.Run("terminal", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.store.Save(context.Background(), savedSnapshot(model.StateSessionEnded, testStart.Add(-time.Minute))))
		h.start()
		assert.Equal(t, model.StateIdle, h.state())
		assert.Equal(t, 1, h.snaps.cleared)
	})

	t.Run("session state without identity", func(t *testing.T) {
		h := newHarness(t)
		snap := savedSnapshot(model.StateAtMerchant, testStart.Add(-time.Minute))
		snap.ActiveSession = nil
		require.NoError(t, h.store.Save(context.Background(), snap))
		h.start()
		assert.Equal(t, model.StateIdle, h.state())
		assert.Nil(t, h.status().Snapshot.Charger)
	})
}

func TestEngine_RestoreNearChargerKeepsLowPower(t *testing.T) {
	h := newHarness(t)
	snap := savedSnapshot(model.StateNearCharger, testStart.Add(-time.Minute))
	snap.Merchant, snap.ActiveSession = nil, nil
	require.NoError(t, h.store.Save(context.Background(), snap))

	h.start()
	assert.Equal(t, model.StateNearCharger, h.state())
	assert.Equal(t, []model.EventName{model.EventSessionRestored}, h.events.preNames())
	mode, _ := h.loc.state()
	assert.Equal(t, ModeLowPower, mode)
	assert.False(t, h.fences.Has(geofence.MerchantRegionID("m1")))
}
