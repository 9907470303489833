// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics holds the prometheus instruments of every subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransitionsTotal counts state machine transitions.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chargewalk_session_transitions_total",
		Help: "Session state transitions by source state, target state and event",
	}, []string{"from", "to", "event"})

	// LocationSamplesTotal counts location fixes by outcome.
	LocationSamplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chargewalk_location_samples_total",
		Help: "Location samples by outcome (accepted, rejected_accuracy, invalid)",
	}, []string{"result"})

	// CommandsTotal counts bridge commands handled by the engine.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chargewalk_commands_total",
		Help: "Bridge commands by type and outcome",
	}, []string{"command", "result"})

	// RestoreTotal counts snapshot restore outcomes at startup.
	RestoreTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chargewalk_session_restore_total",
		Help: "Snapshot restore outcomes (none, restored, stale, corrupt, error)",
	}, []string{"result"})

	// SessionState is 1 for the current engine state and 0 otherwise.
	SessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chargewalk_session_state",
		Help: "Current session state (active state=1; others 0)",
	}, []string{"state"})

	// TimersFiredTotal counts expiry timers delivered to the engine.
	TimersFiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chargewalk_session_timers_fired_total",
		Help: "Session timers fired by kind and whether the firing was still current",
	}, []string{"kind", "result"})

	// ConfigUpdatesTotal counts remote fetch and reload outcomes.
	ConfigUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chargewalk_config_updates_total",
		Help: "Session config updates by source (remote, reload) and outcome",
	}, []string{"source", "result"})
)

// RecordTransition increments the transition counter.
func RecordTransition(from, to, event string) {
	TransitionsTotal.WithLabelValues(from, to, event).Inc()
}

// RecordLocationSample increments the location sample counter.
func RecordLocationSample(result string) {
	LocationSamplesTotal.WithLabelValues(result).Inc()
}

// RecordCommand increments the command counter.
func RecordCommand(command, result string) {
	CommandsTotal.WithLabelValues(command, result).Inc()
}

// RecordRestore increments the restore counter.
func RecordRestore(result string) {
	RestoreTotal.WithLabelValues(result).Inc()
}

// RecordTimerFired increments the timer counter.
func RecordTimerFired(kind, result string) {
	TimersFiredTotal.WithLabelValues(kind, result).Inc()
}

// RecordConfigUpdate increments the config update counter.
func RecordConfigUpdate(source, result string) {
	ConfigUpdatesTotal.WithLabelValues(source, result).Inc()
}

// SetSessionState marks state as the current one among states.
func SetSessionState(state string, states []string) {
	for _, s := range states {
		value := 0.0
		if s == state {
			value = 1.0
		}
		SessionState.WithLabelValues(s).Set(value)
	}
}
