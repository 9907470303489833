// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"github.com/ManuGH/chargewalk/internal/config"
	"github.com/ManuGH/chargewalk/internal/metrics"
	"github.com/ManuGH/chargewalk/internal/session/model"
)

// atBoundary reports whether new tunables can take effect without changing
// the rules under a session in progress.
func (e *Engine) atBoundary() bool {
	return e.state == model.StateIdle || e.state.IsTerminal()
}

func (e *Engine) applyConfig(cfg config.Session) {
	if cfg == e.cfg {
		e.pendingCfg = nil
		return
	}
	if !e.atBoundary() {
		c := cfg
		e.pendingCfg = &c
		metrics.RecordConfigUpdate("engine", "deferred")
		e.logger.Info().
			Str("event", "engine.config_deferred").
			Str("state", string(e.state)).
			Msg("session config update deferred to session end")
		return
	}
	e.install(cfg)
}

func (e *Engine) applyPendingConfig() {
	if e.pendingCfg == nil {
		return
	}
	cfg := *e.pendingCfg
	e.pendingCfg = nil
	e.install(cfg)
}

func (e *Engine) install(cfg config.Session) {
	old := e.cfg
	e.cfg = cfg
	e.dwell = e.newDetector()
	if e.charger != nil && old.ChargerIntentRadiusM != cfg.ChargerIntentRadiusM {
		_ = e.geofences.AddCharger(e.ctx, e.charger.ID, e.charger.Latitude, e.charger.Longitude, cfg.ChargerIntentRadiusM)
	}
	metrics.RecordConfigUpdate("engine", "applied")
	e.logger.Info().
		Str("event", "engine.config_applied").
		Int("version", cfg.Version).
		Float64("intent_radius_m", cfg.ChargerIntentRadiusM).
		Float64("anchor_radius_m", cfg.ChargerAnchorRadiusM).
		Int("anchor_dwell_s", cfg.AnchorDwellSeconds).
		Msg("session config applied")
}
