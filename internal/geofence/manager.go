// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package geofence

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/chargewalk/internal/geo"
	xglog "github.com/ManuGH/chargewalk/internal/log"
	"github.com/ManuGH/chargewalk/internal/metrics"
)

// Manager mirrors the regions registered with a Sink. It never holds more
// than its capacity; adding beyond that evicts the oldest region first.
type Manager struct {
	mu       sync.Mutex
	sink     Sink
	capacity int
	regions  []Region // registration order, oldest first
	logger   zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithCapacity overrides DefaultCapacity.
func WithCapacity(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.capacity = n
		}
	}
}

// NewManager creates a Manager backed by sink.
func NewManager(sink Sink, opts ...Option) *Manager {
	m := &Manager{
		sink:     sink,
		capacity: DefaultCapacity,
		logger:   xglog.WithComponent("geofence"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddCharger registers an enter/exit region around a charger.
func (m *Manager) AddCharger(ctx context.Context, chargerID string, lat, lng, radiusM float64) error {
	return m.add(ctx, Region{
		ID:          ChargerRegionID(chargerID),
		Kind:        KindCharger,
		TargetID:    chargerID,
		Center:      geo.Point{Lat: lat, Lng: lng},
		RadiusM:     ClampRadius(radiusM),
		Transitions: TransitionEnter | TransitionExit,
	})
}

// AddMerchant registers an enter-only region around a merchant.
func (m *Manager) AddMerchant(ctx context.Context, merchantID string, lat, lng, radiusM float64) error {
	return m.add(ctx, Region{
		ID:          MerchantRegionID(merchantID),
		Kind:        KindMerchant,
		TargetID:    merchantID,
		Center:      geo.Point{Lat: lat, Lng: lng},
		RadiusM:     ClampRadius(radiusM),
		Transitions: TransitionEnter,
	})
}

func (m *Manager) add(ctx context.Context, r Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	replacing := false
	if idx := m.indexLocked(r.ID); idx >= 0 {
		m.regions = append(m.regions[:idx], m.regions[idx+1:]...)
		replacing = true
	} else if len(m.regions) >= m.capacity {
		oldest := m.regions[0]
		m.regions = m.regions[1:]
		m.unregisterLocked(ctx, oldest.ID, "evict")
	}

	if err := m.sink.Register(ctx, r); err != nil {
		metrics.RecordGeofenceOp("register", "failed")
		m.logger.Warn().
			Err(err).
			Str("event", "geofence.register_failed").
			Str(xglog.FieldRegionID, r.ID).
			Msg("geofence registration failed, relying on location polling")
		if replacing {
			// The previous registration under this id is no longer tracked.
			m.unregisterLocked(ctx, r.ID, "unregister")
		}
		metrics.SetGeofenceActive(len(m.regions))
		return fmt.Errorf("register %s: %w", r.ID, err)
	}

	m.regions = append(m.regions, r)
	metrics.RecordGeofenceOp("register", "ok")
	metrics.SetGeofenceActive(len(m.regions))
	m.logger.Debug().
		Str("event", "geofence.registered").
		Str(xglog.FieldRegionID, r.ID).
		Float64("radius_m", r.RadiusM).
		Stringer("transitions", r.Transitions).
		Msg("geofence registered")
	return nil
}

// Remove unregisters the region with the given id, if tracked.
func (m *Manager) Remove(ctx context.Context, regionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexLocked(regionID)
	if idx < 0 {
		return
	}
	m.regions = append(m.regions[:idx], m.regions[idx+1:]...)
	m.unregisterLocked(ctx, regionID, "unregister")
	metrics.SetGeofenceActive(len(m.regions))
}

// RemoveAll unregisters every tracked region.
func (m *Manager) RemoveAll(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.regions {
		m.unregisterLocked(ctx, r.ID, "unregister")
	}
	m.regions = nil
	metrics.SetGeofenceActive(0)
}

// Active returns the tracked regions, oldest first.
func (m *Manager) Active() []Region {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Region, len(m.regions))
	copy(out, m.regions)
	return out
}

// Has reports whether a region with the given id is tracked.
func (m *Manager) Has(regionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexLocked(regionID) >= 0
}

func (m *Manager) indexLocked(id string) int {
	for i, r := range m.regions {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) unregisterLocked(ctx context.Context, id, op string) {
	if err := m.sink.Unregister(ctx, id); err != nil {
		metrics.RecordGeofenceOp(op, "failed")
		m.logger.Warn().
			Err(err).
			Str("event", "geofence."+op+"_failed").
			Str(xglog.FieldRegionID, id).
			Msg("geofence unregister failed")
		return
	}
	metrics.RecordGeofenceOp(op, "ok")
	m.logger.Debug().
		Str("event", "geofence."+op).
		Str(xglog.FieldRegionID, id).
		Msg("geofence removed")
}
