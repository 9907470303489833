// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"strconv"

	"github.com/ManuGH/chargewalk/internal/geo"
	"github.com/ManuGH/chargewalk/internal/geofence"
	xglog "github.com/ManuGH/chargewalk/internal/log"
	"github.com/ManuGH/chargewalk/internal/metrics"
	"github.com/ManuGH/chargewalk/internal/session/lifecycle"
	"github.com/ManuGH/chargewalk/internal/session/model"
)

func (e *Engine) handleLocation(loc model.Location) {
	if !loc.Point().Valid() {
		metrics.RecordLocationSample("invalid")
		return
	}
	// NaN accuracy fails the comparison and is dropped as well.
	if !(loc.AccuracyM <= e.cfg.LocationAccuracyRejectM) {
		metrics.RecordLocationSample("rejected_accuracy")
		e.logger.Debug().
			Str("event", "engine.fix_rejected").
			Float64(xglog.FieldAccuracy, loc.AccuracyM).
			Msg("location fix too inaccurate, dropped")
		return
	}
	if loc.At.IsZero() {
		loc.At = e.clock.Now()
	}
	fix := loc
	e.lastFix = &fix
	metrics.RecordLocationSample("accepted")

	if e.charger == nil || e.state.IsTerminal() {
		return
	}

	e.evaluate(loc)
	if !e.state.IsTerminal() {
		e.persist()
	}
}

// evaluate runs the distance rules for the current state. A single fix may
// move the machine more than one step (for example IDLE straight into a
// dwell that starts with the same sample).
func (e *Engine) evaluate(loc model.Location) {
	hysteresis := e.cfg.LocationAccuracyRejectM
	d := geo.DistanceMeters(loc.Point(), e.charger.Point())
	meta := map[string]string{model.MetaDistanceM: strconv.FormatFloat(d, 'f', 1, 64)}

	if e.state == model.StateIdle {
		if d > e.cfg.ChargerIntentRadiusM {
			return
		}
		e.transition(lifecycle.EvIntentEntered, model.TriggerLocation, meta)
	}

	switch e.state {
	case model.StateNearCharger:
		if d > e.cfg.ChargerIntentRadiusM+hysteresis {
			e.transition(lifecycle.EvIntentLeft, model.TriggerLocation, meta)
			return
		}
		if e.dwell.RecordSample(d, loc.SpeedMps, loc.At) {
			e.transition(lifecycle.EvAnchorConfirmed, model.TriggerLocation, meta)
		}

	case model.StateAnchored:
		if d > e.cfg.ChargerAnchorRadiusM+hysteresis {
			e.transition(lifecycle.EvAnchorLost, model.TriggerLocation, meta)
		}

	case model.StateSessionActive:
		if d > e.cfg.ChargerAnchorRadiusM+hysteresis {
			e.transition(lifecycle.EvChargerDeparted, model.TriggerLocation, meta)
			e.checkMerchant(loc)
		}

	case model.StateInTransit:
		e.checkMerchant(loc)
	}
}

func (e *Engine) checkMerchant(loc model.Location) {
	if e.state != model.StateInTransit || e.merchant == nil {
		return
	}
	dm := geo.DistanceMeters(loc.Point(), e.merchant.Point())
	if dm <= e.cfg.MerchantUnlockRadiusM {
		e.transition(lifecycle.EvMerchantReached, model.TriggerLocation, map[string]string{
			model.MetaDistanceM: strconv.FormatFloat(dm, 'f', 1, 64),
		})
	}
}

func (e *Engine) handleGeofence(ev geofence.Event) {
	kind, targetID, ok := ev.Kind()
	if !ok {
		metrics.RecordGeofenceOp("event", "unknown_region")
		return
	}

	var handled bool
	switch {
	case kind == geofence.KindCharger && e.charger != nil && targetID == e.charger.ID:
		switch {
		case ev.Transition.Has(geofence.TransitionEnter) && e.state == model.StateIdle:
			handled = e.transition(lifecycle.EvIntentEntered, model.TriggerGeofence, nil)
		case ev.Transition.Has(geofence.TransitionExit) && e.state == model.StateSessionActive:
			handled = e.transition(lifecycle.EvChargerDeparted, model.TriggerGeofence, nil)
		}
	case kind == geofence.KindMerchant && e.merchant != nil && targetID == e.merchant.ID:
		if ev.Transition.Has(geofence.TransitionEnter) && e.state == model.StateInTransit {
			handled = e.transition(lifecycle.EvMerchantReached, model.TriggerGeofence, nil)
		}
	}

	result := "ignored"
	if handled {
		result = "applied"
	}
	metrics.RecordGeofenceOp("event", result)
	e.logger.Debug().
		Str("event", "engine.geofence").
		Str(xglog.FieldRegionID, ev.RegionID).
		Stringer("transition", ev.Transition).
		Str("result", result).
		Msg("geofence transition")
}
