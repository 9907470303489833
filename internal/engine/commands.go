// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/chargewalk/internal/bridge"
	xglog "github.com/ManuGH/chargewalk/internal/log"
	"github.com/ManuGH/chargewalk/internal/metrics"
	"github.com/ManuGH/chargewalk/internal/session/lifecycle"
	"github.com/ManuGH/chargewalk/internal/session/model"
	"github.com/ManuGH/chargewalk/internal/telemetry"
)

// HandleCommand applies one parsed bridge command. Rejections are answered
// on the bridge; the returned error only reports that the engine is gone.
func (e *Engine) HandleCommand(ctx context.Context, cmd bridge.Command) error {
	ctx, span := telemetry.Tracer("chargewalk.engine").Start(ctx, "engine.command",
		trace.WithAttributes(attribute.String(telemetry.BridgeCommandKey, string(cmd.Type))))
	defer span.End()

	var result string
	err := e.do(ctx, func() { result = e.handleCommand(cmd) })
	if err != nil {
		return err
	}
	metrics.RecordCommand(string(cmd.Type), result)
	return nil
}

func (e *Engine) handleCommand(cmd bridge.Command) string {
	switch cmd.Type {
	case bridge.CmdSetChargerTarget:
		return e.setChargerTarget(cmd)
	case bridge.CmdExclusiveActivated:
		return e.exclusiveActivated(cmd)
	case bridge.CmdVisitVerified:
		return e.visitVerified(cmd)
	case bridge.CmdEndSession:
		return e.endSession(cmd)

	case bridge.CmdGetSessionState:
		e.notifier.Notify(bridge.SessionStateChanged(string(e.state)))
	case bridge.CmdGetLocation:
		if e.lastFix == nil {
			e.notifier.Notify(bridge.Error(cmd.RequestID, "no location fix available"))
			return "unavailable"
		}
		e.notifier.Notify(bridge.LocationResponse(cmd.RequestID, e.lastFix.Lat, e.lastFix.Lng, e.lastFix.AccuracyM))
	case bridge.CmdGetPermissionStatus:
		p := e.location.Permission()
		e.notifier.Notify(bridge.PermissionStatus(cmd.RequestID, p.Status, p.AlwaysGranted))
	case bridge.CmdRequestAlwaysLocation:
		p := e.location.RequestAlwaysPermission()
		e.notifier.Notify(bridge.PermissionStatus(cmd.RequestID, p.Status, p.AlwaysGranted))
	case bridge.CmdSetAuthToken:
		e.creds.Set(cmd.Token)
	case bridge.CmdGetAuthToken:
		e.notifier.Notify(bridge.AuthTokenResponse(cmd.RequestID, e.creds.Token()))

	default:
		e.notifier.Notify(bridge.Error(cmd.RequestID, fmt.Sprintf("unsupported command %q", cmd.Type)))
		return "unsupported"
	}
	return "ok"
}

func (e *Engine) reject(cmd bridge.Command, msg string) string {
	e.logger.Info().
		Str("event", "engine.command_rejected").
		Str(xglog.FieldCommand, string(cmd.Type)).
		Str(xglog.FieldRequestID, cmd.RequestID).
		Str("state", string(e.state)).
		Str("reason", msg).
		Msg("command rejected")
	e.notifier.Notify(bridge.Error(cmd.RequestID, msg))
	return "rejected"
}

func (e *Engine) setChargerTarget(cmd bridge.Command) string {
	if cmd.Charger == nil {
		return e.reject(cmd, "charger target missing")
	}
	if e.state.IsTerminal() {
		e.resetToIdle()
	}
	if e.state != model.StateIdle {
		return e.reject(cmd, fmt.Sprintf("session in progress (state %s)", e.state))
	}

	if e.charger != nil && e.charger.ID != cmd.Charger.ID {
		e.geofences.RemoveAll(e.ctx)
	}
	target := *cmd.Charger
	e.charger = &target
	e.dwell.Reset()
	_ = e.geofences.AddCharger(e.ctx, target.ID, target.Latitude, target.Longitude, e.cfg.ChargerIntentRadiusM)
	e.location.SetMode(ModeLowPower)

	e.logger.Info().
		Str("event", "engine.charger_target").
		Str(xglog.FieldChargerID, target.ID).
		Msg("charger target set")
	e.persist()
	e.notifier.Notify(bridge.SessionStateChanged(string(e.state)))
	return "ok"
}

// resetToIdle leaves SESSION_ENDED so a new session can start. Everything
// else was already torn down when the session ended.
func (e *Engine) resetToIdle() {
	e.logger.Info().
		Str("event", "engine.reset").
		Str(xglog.FieldOldState, string(e.state)).
		Str(xglog.FieldNewState, string(model.StateIdle)).
		Msg("starting new session from idle")
	e.state = model.StateIdle
	metrics.SetSessionState(string(e.state), stateNames)
}

func (e *Engine) exclusiveActivated(cmd bridge.Command) string {
	if reason := lifecycle.ForbiddenTransitionReason(e.state, lifecycle.EvExclusiveActivated); reason != "" {
		e.logger.Info().
			Str("event", "engine.session_start_rejected").
			Str(xglog.FieldRequestID, cmd.RequestID).
			Str("state", string(e.state)).
			Str("reason", reason).
			Msg("exclusive activation rejected")
		e.notifier.Notify(bridge.SessionStartRejected(reason))
		return "rejected"
	}
	if cmd.Exclusive == nil || e.charger == nil {
		e.notifier.Notify(bridge.SessionStartRejected("missing session or charger"))
		return "rejected"
	}

	x := cmd.Exclusive
	e.merchant = &model.MerchantTarget{ID: x.MerchantID, Latitude: x.MerchantLat, Longitude: x.MerchantLng}
	e.active = &model.ActiveSessionInfo{
		SessionID:        x.SessionID,
		ChargerID:        e.charger.ID,
		MerchantID:       x.MerchantID,
		StartedAtEpochMs: e.clock.Now().UnixMilli(),
	}
	if !e.transition(lifecycle.EvExclusiveActivated, model.TriggerCommand, map[string]string{
		model.MetaMerchantID: x.MerchantID,
	}) {
		e.merchant, e.active = nil, nil
		e.notifier.Notify(bridge.SessionStartRejected("transition not allowed"))
		return "rejected"
	}
	return "ok"
}

func (e *Engine) visitVerified(cmd bridge.Command) string {
	if reason := lifecycle.ForbiddenTransitionReason(e.state, lifecycle.EvVisitVerified); reason != "" {
		return e.reject(cmd, reason)
	}
	if cmd.Visit == nil || e.active == nil || cmd.Visit.SessionID != e.active.SessionID {
		return e.reject(cmd, "session id does not match the active session")
	}
	e.transition(lifecycle.EvVisitVerified, model.TriggerCommand, map[string]string{
		model.MetaVerification: cmd.Visit.Code,
	})
	return "ok"
}

func (e *Engine) endSession(cmd bridge.Command) string {
	if e.charger == nil || e.state.IsTerminal() {
		return e.reject(cmd, "no session to end")
	}
	e.transition(lifecycle.EvEndRequested, model.TriggerCommand, nil)
	return "ok"
}
