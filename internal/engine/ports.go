// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"context"

	"github.com/ManuGH/chargewalk/internal/bridge"
	"github.com/ManuGH/chargewalk/internal/config"
	"github.com/ManuGH/chargewalk/internal/emitter"
	"github.com/ManuGH/chargewalk/internal/session/model"
	"github.com/ManuGH/chargewalk/internal/snapshot"
)

// LocationMode selects the OS location provider profile.
type LocationMode int

const (
	// ModeLowPower uses a large distance filter and a long interval.
	ModeLowPower LocationMode = iota
	// ModeHighAccuracy uses a tight filter and a short interval.
	ModeHighAccuracy
)

func (m LocationMode) String() string {
	if m == ModeHighAccuracy {
		return "high_accuracy"
	}
	return "low_power"
}

// Location permission states reported to the web layer.
const (
	PermissionGranted       = "granted"
	PermissionDenied        = "denied"
	PermissionNotDetermined = "not_determined"
)

// Permission is the OS location permission as seen by the web layer.
type Permission struct {
	Status        string
	AlwaysGranted bool
}

// LocationSource is the OS location provider. Calls are made from the
// engine loop and must not block.
type LocationSource interface {
	SetMode(mode LocationMode)
	SetBackgroundEnabled(enabled bool)
	Permission() Permission
	RequestAlwaysPermission() Permission
}

// EventSink queues remote events without blocking. Delivery failures are
// reported through the handler installed with SetFailureHandler.
type EventSink interface {
	EmitSession(ev emitter.SessionEvent)
	EmitPreSession(ev emitter.PreSessionEvent)
	SetFailureHandler(fn func(emitter.Failure))
}

// Notifier delivers outbound bridge notifications without blocking.
type Notifier interface {
	Notify(n bridge.Notification)
}

// SnapshotWriter persists snapshots off the engine loop.
type SnapshotWriter interface {
	Save(s *model.Snapshot)
	Clear()
}

// ConfigSource fetches session tunables. On failure it returns defaults
// together with the error.
type ConfigSource interface {
	Fetch(ctx context.Context) (config.Session, error)
}

var (
	_ EventSink      = (*emitter.Dispatcher)(nil)
	_ Notifier       = (*bridge.Bridge)(nil)
	_ ConfigSource   = (*config.RemoteSource)(nil)
	_ SnapshotWriter = (*snapshot.Persister)(nil)
	_ bridge.Handler = (*Engine)(nil)
)
