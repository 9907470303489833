// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	geofenceOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chargewalk_geofence_operations_total",
		Help: "Geofence operations by type (register, unregister, evict) and outcome",
	}, []string{"op", "result"})

	geofenceActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chargewalk_geofence_active",
		Help: "Number of currently registered geofence regions",
	})

	snapshotOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chargewalk_snapshot_operations_total",
		Help: "Snapshot store operations by backend, type and outcome",
	}, []string{"backend", "op", "result"})

	snapshotCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chargewalk_snapshot_coalesced_total",
		Help: "Snapshot writes superseded by a newer write before reaching the store",
	})

	eventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chargewalk_events_emitted_total",
		Help: "Remote events by kind (session, pre_session) and outcome",
	}, []string{"kind", "result"})

	emitterQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chargewalk_emitter_queue_depth",
		Help: "Events waiting for a dispatcher worker",
	})

	bridgeMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chargewalk_bridge_messages_total",
		Help: "Bridge messages by direction, type and outcome",
	}, []string{"direction", "type", "result"})

	bridgeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chargewalk_bridge_connections",
		Help: "Open bridge websocket connections",
	})
)

// RecordGeofenceOp increments the geofence operation counter.
func RecordGeofenceOp(op, result string) {
	geofenceOps.WithLabelValues(op, result).Inc()
}

// SetGeofenceActive sets the registered region gauge.
func SetGeofenceActive(n int) {
	geofenceActive.Set(float64(n))
}

// RecordSnapshotOp increments the snapshot operation counter.
func RecordSnapshotOp(backend, op, result string) {
	snapshotOps.WithLabelValues(backend, op, result).Inc()
}

// RecordSnapshotCoalesced counts a superseded snapshot write.
func RecordSnapshotCoalesced() {
	snapshotCoalesced.Inc()
}

// RecordEventEmission increments the event emission counter.
func RecordEventEmission(kind, result string) {
	eventsEmitted.WithLabelValues(kind, result).Inc()
}

// SetEmitterQueueDepth sets the dispatcher backlog gauge.
func SetEmitterQueueDepth(n int) {
	emitterQueueDepth.Set(float64(n))
}

// RecordBridgeMessage increments the bridge message counter.
func RecordBridgeMessage(direction, msgType, result string) {
	bridgeMessages.WithLabelValues(direction, msgType, result).Inc()
}

// IncBridgeConnections tracks an opened websocket.
func IncBridgeConnections() { bridgeConnections.Inc() }

// DecBridgeConnections tracks a closed websocket.
func DecBridgeConnections() { bridgeConnections.Dec() }
