// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package geofence

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/chargewalk/internal/geo"
)

// SimulatedOS is an in-process Sink that evaluates registered regions against
// location fixes and reports transitions the way a platform provider would.
type SimulatedOS struct {
	mu       sync.Mutex
	regions  map[string]*simRegion
	order    []string
	handler  func(Event)
	failWith error
}

type simRegion struct {
	Region
	known  bool
	inside bool
}

// NewSimulatedOS creates an empty provider. handler may be nil and set later.
func NewSimulatedOS(handler func(Event)) *SimulatedOS {
	return &SimulatedOS{regions: make(map[string]*simRegion), handler: handler}
}

// SetHandler sets the transition callback.
func (s *SimulatedOS) SetHandler(handler func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// FailRegistrations makes subsequent Register calls fail with err (nil restores).
func (s *SimulatedOS) FailRegistrations(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

// Register implements Sink. Registering an existing id replaces it.
func (s *SimulatedOS) Register(_ context.Context, r Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if _, ok := s.regions[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.regions[r.ID] = &simRegion{Region: r}
	return nil
}

// Unregister implements Sink.
func (s *SimulatedOS) Unregister(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.regions[id]; !ok {
		return nil
	}
	delete(s.regions, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Registered returns the currently registered regions in registration order.
func (s *SimulatedOS) Registered() []Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Region, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.regions[id].Region)
	}
	return out
}

// Evaluate feeds a fix to the provider. A region seen for the first time
// reports Enter if the fix is already inside it.
func (s *SimulatedOS) Evaluate(p geo.Point, at time.Time) []Event {
	s.mu.Lock()
	var events []Event
	for _, id := range s.order {
		r := s.regions[id]
		inside := geo.DistanceMeters(p, r.Center) <= r.RadiusM
		wasKnown, wasInside := r.known, r.inside
		r.known, r.inside = true, inside

		switch {
		case inside && (!wasKnown || !wasInside):
			if r.Transitions.Has(TransitionEnter) {
				events = append(events, Event{RegionID: id, Transition: TransitionEnter, At: at})
			}
		case !inside && wasKnown && wasInside:
			if r.Transitions.Has(TransitionExit) {
				events = append(events, Event{RegionID: id, Transition: TransitionExit, At: at})
			}
		}
	}
	handler := s.handler
	s.mu.Unlock()

	if handler != nil {
		for _, ev := range events {
			handler(ev)
		}
	}
	return events
}
