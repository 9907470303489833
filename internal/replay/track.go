// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package replay provides a simulated OS location provider that plays back a
// recorded track of fixes.
package replay

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/chargewalk/internal/engine"
	"github.com/ManuGH/chargewalk/internal/geo"
)

// ErrEmptyTrack is returned for a track without fixes.
var ErrEmptyTrack = errors.New("replay: track has no fixes")

// Fix is one recorded position. The device stays at the fix for Hold and
// reports it once per provider interval while it does.
type Fix struct {
	Lat       float64       `yaml:"lat" json:"lat"`
	Lng       float64       `yaml:"lng" json:"lng"`
	AccuracyM float64       `yaml:"accuracy" json:"accuracy"`
	SpeedMps  *float64      `yaml:"speed,omitempty" json:"speed,omitempty"`
	Hold      time.Duration `yaml:"hold,omitempty" json:"hold,omitempty"`
}

// Point returns the fix coordinate.
func (f Fix) Point() geo.Point { return geo.Point{Lat: f.Lat, Lng: f.Lng} }

// Track is a named sequence of fixes plus the permission state the simulated
// device starts with.
type Track struct {
	Name          string `yaml:"name,omitempty"`
	Permission    string `yaml:"permission,omitempty"`
	AlwaysGranted bool   `yaml:"alwaysGranted,omitempty"`
	Fixes         []Fix  `yaml:"fixes"`
}

// LoadTrack reads a track file. JSON tracks are accepted since JSON is valid
// YAML.
func LoadTrack(path string) (*Track, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open track: %w", err)
	}
	defer func() { _ = f.Close() }()

	t, err := ParseTrack(f)
	if err != nil {
		return nil, fmt.Errorf("track %s: %w", path, err)
	}
	return t, nil
}

// ParseTrack decodes a single strict YAML document.
func ParseTrack(r io.Reader) (*Track, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var t Track
	if err := dec.Decode(&t); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyTrack
		}
		return nil, fmt.Errorf("decode track: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode track: multiple documents are not supported")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks every fix.
func (t *Track) Validate() error {
	if len(t.Fixes) == 0 {
		return ErrEmptyTrack
	}
	for i, f := range t.Fixes {
		if !f.Point().Valid() {
			return fmt.Errorf("fix %d: invalid coordinate %.6f,%.6f", i, f.Lat, f.Lng)
		}
		if f.AccuracyM < 0 {
			return fmt.Errorf("fix %d: negative accuracy", i)
		}
		if f.Hold < 0 {
			return fmt.Errorf("fix %d: negative hold", i)
		}
	}
	switch t.Permission {
	case "", engine.PermissionGranted, engine.PermissionDenied, engine.PermissionNotDetermined:
	default:
		return fmt.Errorf("unknown permission %q", t.Permission)
	}
	return nil
}
