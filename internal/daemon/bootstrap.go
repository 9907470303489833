// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon wires the session engine to its host: snapshot storage,
// event emission, the web bridge, simulated location and the HTTP surface.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ManuGH/chargewalk/internal/bridge"
	"github.com/ManuGH/chargewalk/internal/bus"
	"github.com/ManuGH/chargewalk/internal/clock"
	"github.com/ManuGH/chargewalk/internal/config"
	"github.com/ManuGH/chargewalk/internal/emitter"
	"github.com/ManuGH/chargewalk/internal/engine"
	"github.com/ManuGH/chargewalk/internal/geofence"
	"github.com/ManuGH/chargewalk/internal/health"
	xglog "github.com/ManuGH/chargewalk/internal/log"
	"github.com/ManuGH/chargewalk/internal/replay"
	"github.com/ManuGH/chargewalk/internal/session/model"
	"github.com/ManuGH/chargewalk/internal/snapshot"
)

// Runtime holds every long-lived component of one daemon instance.
type Runtime struct {
	Config      config.AppConfig
	Store       snapshot.Store
	Persister   *snapshot.Persister
	Credentials *emitter.Credentials
	Dispatcher  *emitter.Dispatcher
	Bus         *bus.MemoryBus
	Bridge      *bridge.Bridge
	WS          *bridge.WSServer
	OS          *geofence.SimulatedOS
	Geofences   *geofence.Manager
	Location    *replay.Provider
	Engine      *engine.Engine
	Probes      *health.Manager
	Handler     http.Handler

	// playTrack is false when no track file is configured; the provider then
	// only answers mode and permission calls.
	playTrack bool
	logger    zerolog.Logger
}

// Build constructs the runtime from cfg. Nothing is started.
func Build(cfg config.AppConfig) (*Runtime, error) {
	rt := &Runtime{
		Config:      cfg,
		Credentials: emitter.NewCredentials(),
		Bus:         bus.NewMemoryBus(),
		OS:          geofence.NewSimulatedOS(nil),
		logger:      xglog.WithComponent("daemon"),
	}
	rt.Geofences = geofence.NewManager(rt.OS)

	store, err := snapshot.Open(cfg.Store)
	if err != nil {
		return nil, err
	}
	rt.Store = store
	rt.Persister = snapshot.NewPersister(store)

	var sink emitter.Sink
	if cfg.Collector.BaseURL != "" {
		sink = emitter.NewClient(cfg.Collector.BaseURL, rt.Credentials, emitter.Options{
			Timeout:          cfg.Collector.Timeout,
			RatePerSecond:    cfg.Collector.RatePerSecond,
			Burst:            cfg.Collector.Burst,
			BreakerThreshold: cfg.Collector.BreakerThreshold,
			BreakerCooldown:  cfg.Collector.BreakerCooldown,
			UserAgent:        "chargewalkd/" + cfg.Version,
		})
	} else {
		rt.logger.Warn().Str("event", "daemon.collector_disabled").Msg("no collector URL configured, events are logged only")
		sink = emitter.NewLogSink()
	}
	rt.Dispatcher = emitter.NewDispatcher(sink, emitter.DispatcherOptions{
		Workers:   cfg.Collector.Workers,
		QueueSize: cfg.Collector.QueueSize,
	})

	devOrigins := cfg.Bridge.DevOrigins
	if len(devOrigins) == 0 {
		devOrigins = bridge.DefaultDevOrigins
	}
	origins, err := bridge.NewOrigins(cfg.Production, cfg.Bridge.ProductionOrigin, devOrigins)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("bridge origins: %w", err)
	}
	rt.Bridge = bridge.New(bridge.Options{
		Origins:    origins,
		QueueSize:  cfg.Bridge.OutboundQueue,
		RecentSize: cfg.Bridge.RecentSize,
	})
	rt.WS = bridge.NewWSServer(rt.Bridge, rt.Bus)

	track := &replay.Track{Name: "none"}
	if cfg.Replay.TrackPath != "" {
		track, err = replay.LoadTrack(cfg.Replay.TrackPath)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		rt.playTrack = true
	}
	rt.Location = replay.New(track, replay.Options{
		LowPowerInterval:     cfg.Replay.LowPowerInterval,
		HighAccuracyInterval: cfg.Replay.HighAccuracyInterval,
		Loop:                 cfg.Replay.Loop,
	})

	deps := engine.Deps{
		Config:         cfg.Session,
		Clock:          clock.Real{},
		Geofences:      rt.Geofences,
		Location:       rt.Location,
		Store:          store,
		Snapshots:      rt.Persister,
		Events:         rt.Dispatcher,
		Notifier:       rt.Bridge,
		Credentials:    rt.Credentials,
		MaxSnapshotAge: cfg.Store.MaxAge,
	}
	if cfg.RemoteConfig.URL != "" {
		deps.Remote = config.NewRemoteSource(cfg.RemoteConfig.URL, cfg.RemoteConfig.Timeout)
	}
	rt.Engine, err = engine.New(deps)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("engine: %w", err)
	}
	rt.Bridge.SetHandler(rt.Engine)

	rt.Probes = health.NewManager(cfg.Version, statusTimeout)
	rt.Probes.RegisterChecker(EngineChecker(rt.Engine))
	rt.Probes.RegisterChecker(health.NewDirChecker("snapshot_dir", health.StateDir(cfg.Store)))
	rt.Probes.RegisterChecker(health.CheckFunc("bridge", func(context.Context) health.CheckResult {
		if !rt.Bridge.Ready() {
			return health.CheckResult{Status: health.StatusDegraded, Message: "web content has not signalled ready"}
		}
		return health.CheckResult{Status: health.StatusHealthy}
	}))

	rt.Handler = NewRouter(RouterDeps{
		Engine:            rt.Engine,
		Bridge:            rt.Bridge,
		BridgeWS:          rt.WS,
		Probes:            rt.Probes,
		RequestsPerMinute: cfg.Bridge.RequestsPerMinute,
	})
	return rt, nil
}

// feedFix hands one replayed fix to the engine and to the simulated geofence
// provider, whose transitions go to the engine as well.
func (rt *Runtime) feedFix(ctx context.Context, loc model.Location) error {
	var errs []error
	if err := rt.Engine.OnLocation(ctx, loc); err != nil {
		errs = append(errs, err)
	}
	for _, ev := range rt.OS.Evaluate(loc.Point(), loc.At) {
		if err := rt.Engine.OnGeofence(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// applyReload pushes reloaded tunables into the engine. The engine defers
// them to the next session boundary when a session is running.
func (rt *Runtime) applyReload(ctx context.Context, cfg config.AppConfig) {
	if cfg.LogLevel != rt.Config.LogLevel {
		xglog.Configure(xglog.Config{Level: cfg.LogLevel, Service: "chargewalkd", Version: cfg.Version})
	}
	rt.Config = cfg
	if err := rt.Engine.UpdateConfig(ctx, cfg.Session); err != nil {
		rt.logger.Warn().Err(err).Str("event", "daemon.reload_rejected").Msg("reloaded session config not applied")
	}
}

// Close releases the snapshot store.
func (rt *Runtime) Close() error {
	return rt.Store.Close()
}
