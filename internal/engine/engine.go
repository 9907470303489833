// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package engine implements the session state machine. All state lives on a
// single loop goroutine; every input is a closure submitted to that loop.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/chargewalk/internal/bridge"
	"github.com/ManuGH/chargewalk/internal/clock"
	"github.com/ManuGH/chargewalk/internal/config"
	"github.com/ManuGH/chargewalk/internal/dwell"
	"github.com/ManuGH/chargewalk/internal/emitter"
	"github.com/ManuGH/chargewalk/internal/geofence"
	xglog "github.com/ManuGH/chargewalk/internal/log"
	"github.com/ManuGH/chargewalk/internal/session/model"
	"github.com/ManuGH/chargewalk/internal/snapshot"
)

// ErrStopped is returned by inputs submitted after Run has returned.
var ErrStopped = errors.New("engine: stopped")

const inboxSize = 64

// Deps are the capabilities the engine runs against.
type Deps struct {
	Config      config.Session
	Clock       clock.Clock
	Geofences   *geofence.Manager
	Location    LocationSource
	Store       snapshot.Store
	Snapshots   SnapshotWriter
	Events      EventSink
	Notifier    Notifier
	Credentials *emitter.Credentials
	// Remote is optional. When set, Run fetches tunables in the background.
	Remote ConfigSource
	// MaxSnapshotAge defaults to snapshot.DefaultMaxAge.
	MaxSnapshotAge time.Duration
}

func (d Deps) validate() error {
	switch {
	case d.Clock == nil:
		return errors.New("engine: clock is required")
	case d.Geofences == nil:
		return errors.New("engine: geofence manager is required")
	case d.Location == nil:
		return errors.New("engine: location source is required")
	case d.Store == nil:
		return errors.New("engine: snapshot store is required")
	case d.Snapshots == nil:
		return errors.New("engine: snapshot writer is required")
	case d.Events == nil:
		return errors.New("engine: event sink is required")
	case d.Notifier == nil:
		return errors.New("engine: notifier is required")
	}
	return d.Config.Validate()
}

// Engine is the session state machine.
type Engine struct {
	clock     clock.Clock
	geofences *geofence.Manager
	location  LocationSource
	store     snapshot.Store
	snapshots SnapshotWriter
	events    EventSink
	notifier  Notifier
	creds     *emitter.Credentials
	remote    ConfigSource
	maxAge    time.Duration
	logger    zerolog.Logger

	inbox   chan func()
	stopped chan struct{}
	running atomic.Bool

	// Owned by the loop goroutine.
	ctx           context.Context
	cfg           config.Session
	pendingCfg    *config.Session
	state         model.SessionState
	charger       *model.ChargerTarget
	merchant      *model.MerchantTarget
	active        *model.ActiveSessionInfo
	dwell         *dwell.Detector
	lastFix       *model.Location
	graceDeadline *time.Time
	hardDeadline  *time.Time
	graceTimer    clock.Timer
	hardTimer     clock.Timer
	graceGen      uint64
	hardGen       uint64
}

// New validates deps and returns an engine in IDLE. Run must be called for
// inputs to be processed.
func New(d Deps) (*Engine, error) {
	if d.Config == (config.Session{}) {
		d.Config = config.DefaultSession()
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	if d.Credentials == nil {
		d.Credentials = emitter.NewCredentials()
	}
	if d.MaxSnapshotAge <= 0 {
		d.MaxSnapshotAge = snapshot.DefaultMaxAge
	}

	e := &Engine{
		clock:     d.Clock,
		geofences: d.Geofences,
		location:  d.Location,
		store:     d.Store,
		snapshots: d.Snapshots,
		events:    d.Events,
		notifier:  d.Notifier,
		creds:     d.Credentials,
		remote:    d.Remote,
		maxAge:    d.MaxSnapshotAge,
		logger:    xglog.WithComponent("engine"),
		inbox:     make(chan func(), inboxSize),
		stopped:   make(chan struct{}),
		ctx:       context.Background(),
		cfg:       d.Config,
		state:     model.StateIdle,
	}
	e.dwell = e.newDetector()
	e.events.SetFailureHandler(e.onEmissionFailure)
	return e, nil
}

func (e *Engine) newDetector() *dwell.Detector {
	return dwell.New(
		e.cfg.ChargerAnchorRadiusM,
		e.cfg.DwellSpeedThresholdMps,
		e.cfg.AnchorDwell(),
		dwell.WithUnknownSpeedQualifying(e.cfg.TreatUnknownSpeedAsStationary),
	)
}

// Run restores persisted state, announces readiness and serves inputs until
// ctx is done. It may be called once.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine: already running")
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	defer close(e.stopped)

	e.ctx = ctx
	if e.remote != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.fetchRemoteConfig(ctx)
		}()
	}

	e.safely("restore", func() { e.restore() })
	e.notifier.Notify(bridge.Ready())
	e.logger.Info().
		Str("event", "engine.started").
		Str(xglog.FieldNewState, string(e.state)).
		Msg("session engine ready")

	for {
		select {
		case <-ctx.Done():
			e.stopTimers()
			e.logger.Info().
				Str("event", "engine.stopped").
				Str("state", string(e.state)).
				Msg("session engine stopped")
			return nil
		case fn := <-e.inbox:
			e.safely("input", fn)
		}
	}
}

func (e *Engine) fetchRemoteConfig(ctx context.Context) {
	cfg, err := e.remote.Fetch(ctx)
	if err != nil {
		// Fetch already logged the fallback; the compiled-in tunables stay.
		return
	}
	if err := e.UpdateConfig(ctx, cfg); err != nil && !errors.Is(err, ErrStopped) && ctx.Err() == nil {
		e.logger.Warn().Err(err).Str("event", "engine.remote_config_rejected").Msg("remote config not applied")
	}
}

func (e *Engine) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str("event", "engine.panic").
				Str("phase", what).
				Interface("panic", r).
				Msg("engine input panicked, state kept")
		}
	}()
	fn()
}

// do runs fn on the loop and waits for it to finish.
func (e *Engine) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	select {
	case e.inbox <- wrapped:
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post queues fn without waiting. Used by timer callbacks.
func (e *Engine) post(fn func()) {
	select {
	case e.inbox <- fn:
	case <-e.stopped:
	}
}

// OnLocation feeds one OS location fix.
func (e *Engine) OnLocation(ctx context.Context, loc model.Location) error {
	return e.do(ctx, func() { e.handleLocation(loc) })
}

// OnGeofence feeds one OS geofence transition.
func (e *Engine) OnGeofence(ctx context.Context, ev geofence.Event) error {
	return e.do(ctx, func() { e.handleGeofence(ev) })
}

// UpdateConfig installs new tunables. They apply immediately when no session
// is in progress and at the next session boundary otherwise.
func (e *Engine) UpdateConfig(ctx context.Context, cfg config.Session) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return e.do(ctx, func() { e.applyConfig(cfg) })
}

// State returns the current lifecycle state.
func (e *Engine) State(ctx context.Context) (model.SessionState, error) {
	var s model.SessionState
	err := e.do(ctx, func() { s = e.state })
	return s, err
}

// Status is a read-only view of the engine for diagnostics.
type Status struct {
	Snapshot      *model.Snapshot `json:"snapshot"`
	Config        config.Session  `json:"config"`
	PendingConfig bool            `json:"pendingConfig"`
	Geofences     []string        `json:"geofences"`
	LastFix       *model.Location `json:"lastFix,omitempty"`
}

// Status returns the current state, targets, deadlines and tunables.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	var st Status
	err := e.do(ctx, func() {
		st.Snapshot = e.buildSnapshot()
		st.Config = e.cfg
		st.PendingConfig = e.pendingCfg != nil
		for _, r := range e.geofences.Active() {
			st.Geofences = append(st.Geofences, r.ID)
		}
		if e.lastFix != nil {
			fix := *e.lastFix
			st.LastFix = &fix
		}
	})
	return st, err
}

func (e *Engine) onEmissionFailure(f emitter.Failure) {
	if f.AuthRequired() {
		e.notifier.Notify(bridge.AuthRequired())
		return
	}
	reason := "unknown"
	if f.Err != nil {
		reason = f.Err.Error()
	}
	e.notifier.Notify(bridge.EventEmissionFailed(string(f.Event), reason))
}

