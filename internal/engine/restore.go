// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"errors"
	"strconv"
	"time"

	"github.com/ManuGH/chargewalk/internal/bridge"
	xglog "github.com/ManuGH/chargewalk/internal/log"
	"github.com/ManuGH/chargewalk/internal/metrics"
	"github.com/ManuGH/chargewalk/internal/session/lifecycle"
	"github.com/ManuGH/chargewalk/internal/session/model"
	"github.com/ManuGH/chargewalk/internal/snapshot"
)

// restore rebuilds state from the persisted snapshot. Deadlines that passed
// while the process was dead fire before anything else happens.
func (e *Engine) restore() {
	now := e.clock.Now()
	snap, err := snapshot.Restore(e.ctx, e.store, now, e.maxAge)
	switch {
	case errors.Is(err, snapshot.ErrStale):
		metrics.RecordRestore("stale")
		return
	case errors.Is(err, snapshot.ErrCorrupt):
		metrics.RecordRestore("corrupt")
		return
	case err != nil:
		metrics.RecordRestore("error")
		e.logger.Warn().Err(err).Str("event", "engine.restore_failed").Msg("snapshot unreadable, starting fresh")
		return
	case snap == nil:
		metrics.RecordRestore("empty")
		return
	}

	if snap.State.IsTerminal() || (snap.State != model.StateIdle && snap.Charger == nil) {
		metrics.RecordRestore("discarded")
		e.snapshots.Clear()
		return
	}

	e.state = snap.State
	e.charger = snap.Charger
	e.merchant = snap.Merchant
	e.active = snap.ActiveSession
	if e.state.HasSession() && e.active == nil {
		// A session state without identity cannot emit anything; drop it.
		e.state, e.charger, e.merchant = model.StateIdle, nil, nil
		metrics.RecordRestore("discarded")
		e.snapshots.Clear()
		return
	}
	metrics.RecordRestore("restored")
	metrics.SetSessionState(string(e.state), stateNames)

	e.logger.Info().
		Str("event", "engine.restored").
		Str(xglog.FieldNewState, string(e.state)).
		Dur("age", snap.Age(now)).
		Msg("session restored from snapshot")

	if e.fireExpired(snap, now) {
		return
	}
	if t := model.DeadlineTime(snap.GraceDeadlineMs); t != nil && e.state == model.StateInTransit {
		e.armGrace(*t)
	}
	if t := model.DeadlineTime(snap.HardDeadlineMs); t != nil && e.state.HasSession() {
		e.armHard(*t)
	}

	if e.charger != nil {
		_ = e.geofences.AddCharger(e.ctx, e.charger.ID, e.charger.Latitude, e.charger.Longitude, e.cfg.ChargerIntentRadiusM)
	}
	if e.merchant != nil && e.state.HasSession() {
		_ = e.geofences.AddMerchant(e.ctx, e.merchant.ID, e.merchant.Latitude, e.merchant.Longitude, e.cfg.MerchantUnlockRadiusM)
	}

	if e.state != model.StateIdle {
		e.emit(model.EventSessionRestored, e.state, e.state, model.TriggerRestore, map[string]string{
			model.MetaRestoredAgeMs: strconv.FormatInt(snap.Age(now).Milliseconds(), 10),
		})
		e.notifier.Notify(bridge.SessionStateChanged(string(e.state)))
	}
	if e.state.HasSession() {
		e.location.SetMode(ModeHighAccuracy)
		e.location.SetBackgroundEnabled(true)
	} else {
		e.location.SetMode(ModeLowPower)
	}
	e.persist()
}

// fireExpired ends the session if a persisted deadline already passed. The
// earliest expired deadline decides which expiry is reported.
func (e *Engine) fireExpired(snap *model.Snapshot, now time.Time) bool {
	grace := model.DeadlineTime(snap.GraceDeadlineMs)
	hard := model.DeadlineTime(snap.HardDeadlineMs)

	graceExpired := grace != nil && !grace.After(now) && e.state == model.StateInTransit
	hardExpired := hard != nil && !hard.After(now) && e.state.HasSession()

	var ev lifecycle.EventKind
	switch {
	case graceExpired && hardExpired:
		ev = lifecycle.EvGraceExpired
		if hard.Before(*grace) {
			ev = lifecycle.EvHardTimeout
		}
	case graceExpired:
		ev = lifecycle.EvGraceExpired
	case hardExpired:
		ev = lifecycle.EvHardTimeout
	default:
		return false
	}

	kind := "grace"
	if ev == lifecycle.EvHardTimeout {
		kind = "hard"
	}
	metrics.RecordTimerFired(kind, "expired_on_restore")
	return e.transition(ev, model.TriggerRestore, nil)
}
