// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"time"

	"github.com/ManuGH/chargewalk/internal/bridge"
	"github.com/ManuGH/chargewalk/internal/emitter"
	xglog "github.com/ManuGH/chargewalk/internal/log"
	"github.com/ManuGH/chargewalk/internal/metrics"
	"github.com/ManuGH/chargewalk/internal/session/lifecycle"
	"github.com/ManuGH/chargewalk/internal/session/model"
	"github.com/ManuGH/chargewalk/internal/telemetry"
)

var stateNames = func() []string {
	out := make([]string, 0, len(model.AllStates()))
	for _, s := range model.AllStates() {
		out = append(out, string(s))
	}
	return out
}()

// transition moves the machine along the lifecycle table. It reports false,
// leaving everything untouched, when the table forbids the move.
func (e *Engine) transition(ev lifecycle.EventKind, trigger model.Trigger, meta map[string]string) bool {
	tr, err := lifecycle.Dispatch(e.state, ev)
	if err != nil {
		e.logger.Debug().
			Err(err).
			Str("event", "engine.transition_ignored").
			Str("state", string(e.state)).
			Msg("transition not allowed")
		return false
	}

	prev := e.state
	e.state = tr.To

	e.logger.Info().
		Str("event", "engine.transition").
		Str(xglog.FieldOldState, string(prev)).
		Str(xglog.FieldNewState, string(tr.To)).
		Str("emit", string(tr.Emit)).
		Str("trigger", string(trigger)).
		Msg("session state changed")
	metrics.RecordTransition(string(prev), string(tr.To), string(tr.Emit))
	metrics.SetSessionState(string(tr.To), stateNames)
	telemetry.RecordTransition(e.ctx, string(prev), string(tr.To), string(tr.Emit))

	e.enter(tr)
	e.notifier.Notify(bridge.SessionStateChanged(string(tr.To)))
	e.emit(tr.Emit, prev, tr.To, trigger, meta)

	if tr.Ends() {
		e.cleanup()
	} else {
		e.persist()
	}
	return true
}

// enter applies the side effects of arriving in tr.To.
func (e *Engine) enter(tr lifecycle.Transition) {
	switch tr.To {
	case model.StateIdle, model.StateNearCharger:
		e.dwell.Reset()
	case model.StateSessionActive:
		if e.merchant != nil {
			_ = e.geofences.AddMerchant(e.ctx, e.merchant.ID, e.merchant.Latitude, e.merchant.Longitude, e.cfg.MerchantUnlockRadiusM)
		}
		e.armHard(e.clock.Now().Add(e.cfg.HardTimeout()))
		e.location.SetMode(ModeHighAccuracy)
		e.location.SetBackgroundEnabled(true)
	case model.StateInTransit:
		e.armGrace(e.clock.Now().Add(e.cfg.GracePeriod()))
	case model.StateAtMerchant:
		e.stopGrace()
	}
}

// emit queues the remote event for a transition. Session identity is used
// once it exists; before that events are keyed by the charger.
func (e *Engine) emit(name model.EventName, prev, next model.SessionState, trigger model.Trigger, extra map[string]string) {
	meta := map[string]string{
		model.MetaPreviousState: string(prev),
		model.MetaNewState:      string(next),
		model.MetaTrigger:       string(trigger),
	}
	for k, v := range extra {
		meta[k] = v
	}

	now := e.clock.Now()
	if e.active != nil {
		appState := model.AppBackground
		if trigger == model.TriggerCommand {
			appState = model.AppForeground
		}
		e.events.EmitSession(emitter.SessionEvent{
			SessionID: e.active.SessionID,
			Name:      name,
			EventID:   emitter.NewEventID(),
			Timestamp: now,
			AppState:  appState,
			Metadata:  meta,
		})
		return
	}

	chargerID := ""
	if e.charger != nil {
		chargerID = e.charger.ID
	}
	e.events.EmitPreSession(emitter.PreSessionEvent{
		Name:      name,
		ChargerID: chargerID,
		EventID:   emitter.NewEventID(),
		Timestamp: now,
		Metadata:  meta,
	})
}

// cleanup tears down everything a finished session owned. The state stays
// SESSION_ENDED until a new charger target arrives.
func (e *Engine) cleanup() {
	e.stopTimers()
	e.geofences.RemoveAll(e.ctx)
	e.charger = nil
	e.merchant = nil
	e.active = nil
	e.dwell.Reset()
	e.location.SetMode(ModeLowPower)
	e.location.SetBackgroundEnabled(false)
	e.snapshots.Clear()
	e.applyPendingConfig()
}

func (e *Engine) buildSnapshot() *model.Snapshot {
	s := &model.Snapshot{
		State:           e.state,
		SavedAtMs:       e.clock.Now().UnixMilli(),
		GraceDeadlineMs: model.DeadlineMs(e.graceDeadline),
		HardDeadlineMs:  model.DeadlineMs(e.hardDeadline),
	}
	if e.charger != nil {
		c := *e.charger
		s.Charger = &c
	}
	if e.merchant != nil {
		m := *e.merchant
		s.Merchant = &m
	}
	if e.active != nil {
		a := *e.active
		s.ActiveSession = &a
	}
	return s
}

func (e *Engine) persist() {
	e.snapshots.Save(e.buildSnapshot())
}

func (e *Engine) armGrace(deadline time.Time) {
	e.stopGrace()
	e.graceDeadline = &deadline
	gen := e.graceGen
	e.graceTimer = e.clock.AfterFunc(until(e.clock.Now(), deadline), func() {
		e.post(func() { e.onGraceFired(gen) })
	})
}

func (e *Engine) armHard(deadline time.Time) {
	e.stopHard()
	e.hardDeadline = &deadline
	gen := e.hardGen
	e.hardTimer = e.clock.AfterFunc(until(e.clock.Now(), deadline), func() {
		e.post(func() { e.onHardFired(gen) })
	})
}

// stopGrace cancels the grace timer. Bumping the generation makes a callback
// that already queued itself a no-op.
func (e *Engine) stopGrace() {
	if e.graceTimer != nil {
		e.graceTimer.Stop()
		e.graceTimer = nil
	}
	e.graceGen++
	e.graceDeadline = nil
}

func (e *Engine) stopHard() {
	if e.hardTimer != nil {
		e.hardTimer.Stop()
		e.hardTimer = nil
	}
	e.hardGen++
	e.hardDeadline = nil
}

func (e *Engine) stopTimers() {
	e.stopGrace()
	e.stopHard()
}

func (e *Engine) onGraceFired(gen uint64) {
	if gen != e.graceGen {
		metrics.RecordTimerFired("grace", "stale")
		return
	}
	e.graceTimer = nil
	metrics.RecordTimerFired("grace", "fired")
	e.transition(lifecycle.EvGraceExpired, model.TriggerTimer, nil)
}

func (e *Engine) onHardFired(gen uint64) {
	if gen != e.hardGen {
		metrics.RecordTimerFired("hard", "stale")
		return
	}
	e.hardTimer = nil
	metrics.RecordTimerFired("hard", "fired")
	e.transition(lifecycle.EvHardTimeout, model.TriggerTimer, nil)
}

func until(now, deadline time.Time) time.Duration {
	d := deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
