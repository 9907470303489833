// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/chargewalk/internal/bridge"
	"github.com/ManuGH/chargewalk/internal/clock"
	"github.com/ManuGH/chargewalk/internal/config"
	"github.com/ManuGH/chargewalk/internal/emitter"
	"github.com/ManuGH/chargewalk/internal/geo"
	"github.com/ManuGH/chargewalk/internal/geofence"
	"github.com/ManuGH/chargewalk/internal/session/model"
	"github.com/ManuGH/chargewalk/internal/snapshot"
)

var (
	chargerPoint  = geo.Point{Lat: 30.268, Lng: -97.7435}
	merchantPoint = geo.Point{Lat: 30.269, Lng: -97.744}
	testStart     = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
)

type fakeLocation struct {
	mu         sync.Mutex
	mode       LocationMode
	background bool
	perm       Permission
	requested  int
}

func (f *fakeLocation) SetMode(m LocationMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = m
}

func (f *fakeLocation) SetBackgroundEnabled(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.background = v
}

func (f *fakeLocation) Permission() Permission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.perm
}

func (f *fakeLocation) RequestAlwaysPermission() Permission {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested++
	f.perm = Permission{Status: PermissionGranted, AlwaysGranted: true}
	return f.perm
}

func (f *fakeLocation) state() (LocationMode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode, f.background
}

type fakeEvents struct {
	mu        sync.Mutex
	sessions  []emitter.SessionEvent
	pre       []emitter.PreSessionEvent
	onFailure func(emitter.Failure)
}

func (f *fakeEvents) EmitSession(ev emitter.SessionEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, ev)
}

func (f *fakeEvents) EmitPreSession(ev emitter.PreSessionEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pre = append(f.pre, ev)
}

func (f *fakeEvents) SetFailureHandler(fn func(emitter.Failure)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onFailure = fn
}

func (f *fakeEvents) fail(fl emitter.Failure) {
	f.mu.Lock()
	fn := f.onFailure
	f.mu.Unlock()
	fn(fl)
}

func (f *fakeEvents) sessionNames() []model.EventName {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.EventName
	for _, ev := range f.sessions {
		out = append(out, ev.Name)
	}
	return out
}

func (f *fakeEvents) preNames() []model.EventName {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.EventName
	for _, ev := range f.pre {
		out = append(out, ev.Name)
	}
	return out
}

func (f *fakeEvents) lastSession() emitter.SessionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[len(f.sessions)-1]
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []bridge.Notification
}

func (f *fakeNotifier) Notify(n bridge.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, n)
}

func (f *fakeNotifier) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, n := range f.notes {
		out = append(out, n.Action)
	}
	return out
}

func (f *fakeNotifier) last(action string) (bridge.Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.notes) - 1; i >= 0; i-- {
		if f.notes[i].Action == action {
			return f.notes[i], true
		}
	}
	return bridge.Notification{}, false
}

type fakeSnapshots struct {
	mu      sync.Mutex
	last    *model.Snapshot
	saves   int
	cleared int
}

func (f *fakeSnapshots) Save(s *model.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = s.Clone()
	f.saves++
}

func (f *fakeSnapshots) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = nil
	f.cleared++
}

func (f *fakeSnapshots) current() *model.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last.Clone()
}

type harness struct {
	t      *testing.T
	eng    *Engine
	clock  *clock.Fake
	os     *geofence.SimulatedOS
	fences *geofence.Manager
	loc    *fakeLocation
	events *fakeEvents
	notes  *fakeNotifier
	snaps  *fakeSnapshots
	store  *snapshot.MemoryStore

	cancel context.CancelFunc
	done   chan error
}

func newHarness(t *testing.T, mutate ...func(*Deps)) *harness {
	t.Helper()
	ignore := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, ignore) })

	h := &harness{
		t:      t,
		clock:  clock.NewFake(testStart),
		os:     geofence.NewSimulatedOS(nil),
		loc:    &fakeLocation{perm: Permission{Status: PermissionGranted}},
		events: &fakeEvents{},
		notes:  &fakeNotifier{},
		snaps:  &fakeSnapshots{},
		store:  snapshot.NewMemoryStore(),
	}
	h.fences = geofence.NewManager(h.os)

	deps := Deps{
		Config:    config.DefaultSession(),
		Clock:     h.clock,
		Geofences: h.fences,
		Location:  h.loc,
		Store:     h.store,
		Snapshots: h.snaps,
		Events:    h.events,
		Notifier:  h.notes,
	}
	for _, m := range mutate {
		m(&deps)
	}
	eng, err := New(deps)
	require.NoError(t, err)
	h.eng = eng
	return h
}

// start runs the engine loop. Calling it again is a no-op.
func (h *harness) start() {
	h.t.Helper()
	if h.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan error, 1)
	go func() { h.done <- h.eng.Run(ctx) }()
	h.t.Cleanup(h.stop)
	// State round-trips through the loop, so it returns once restore is done.
	_ = h.state()
}

func (h *harness) stop() {
	if h.cancel == nil {
		return
	}
	h.cancel()
	h.cancel = nil
	require.NoError(h.t, <-h.done)
}

func (h *harness) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	h.t.Cleanup(cancel)
	return ctx
}

func (h *harness) state() model.SessionState {
	h.t.Helper()
	s, err := h.eng.State(h.ctx())
	require.NoError(h.t, err)
	return s
}

func (h *harness) status() Status {
	h.t.Helper()
	st, err := h.eng.Status(h.ctx())
	require.NoError(h.t, err)
	return st
}

func (h *harness) command(cmd bridge.Command) {
	h.t.Helper()
	require.NoError(h.t, h.eng.HandleCommand(h.ctx(), cmd))
}

func speed(v float64) *float64 { return &v }

// fix builds an accurate, slow sample at p stamped with the fake clock.
func (h *harness) fix(p geo.Point) model.Location {
	return model.Location{Lat: p.Lat, Lng: p.Lng, AccuracyM: 10, SpeedMps: speed(0.5), At: h.clock.Now()}
}

func (h *harness) feed(p geo.Point) {
	h.t.Helper()
	require.NoError(h.t, h.eng.OnLocation(h.ctx(), h.fix(p)))
}

func (h *harness) setCharger() {
	h.t.Helper()
	h.command(bridge.Command{
		Type:      bridge.CmdSetChargerTarget,
		RequestID: "set-1",
		Charger:   &model.ChargerTarget{ID: "c1", Latitude: chargerPoint.Lat, Longitude: chargerPoint.Lng},
	})
}

// anchor feeds a stationary sample 50 m from the charger every 10 s until the
// dwell duration has elapsed.
func (h *harness) anchor() {
	h.t.Helper()
	near := geo.Destination(chargerPoint, 90, 50)
	dwellSteps := int(config.DefaultSession().AnchorDwell() / (10 * time.Second))
	for i := 0; i <= dwellSteps; i++ {
		h.feed(near)
		if i < dwellSteps {
			h.clock.Advance(10 * time.Second)
		}
	}
}

func (h *harness) activate() {
	h.t.Helper()
	h.command(bridge.Command{
		Type: bridge.CmdExclusiveActivated,
		Exclusive: &bridge.ExclusiveActivation{
			SessionID:   "s1",
			MerchantID:  "m1",
			MerchantLat: merchantPoint.Lat,
			MerchantLng: merchantPoint.Lng,
		},
	})
}

func (h *harness) depart() {
	h.t.Helper()
	h.feed(geo.Destination(chargerPoint, 180, 200))
}

func (h *harness) driveToInTransit() {
	h.t.Helper()
	h.start()
	h.setCharger()
	h.anchor()
	h.activate()
	h.depart()
	require.Equal(h.t, model.StateInTransit, h.state())
}
