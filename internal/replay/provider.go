// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package replay

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/chargewalk/internal/clock"
	"github.com/ManuGH/chargewalk/internal/engine"
	xglog "github.com/ManuGH/chargewalk/internal/log"
	"github.com/ManuGH/chargewalk/internal/session/model"
)

const (
	DefaultLowPowerInterval     = 30 * time.Second
	DefaultHighAccuracyInterval = 5 * time.Second
)

// Options tune playback.
type Options struct {
	LowPowerInterval     time.Duration
	HighAccuracyInterval time.Duration
	// Loop restarts the track after the last fix.
	Loop  bool
	Clock clock.Clock
}

// Sink receives each played fix.
type Sink func(ctx context.Context, loc model.Location) error

// Provider plays a track and implements engine.LocationSource. The engine's
// mode selects the interval between reported fixes.
type Provider struct {
	track  *Track
	opts   Options
	logger zerolog.Logger

	mu         sync.Mutex
	mode       engine.LocationMode
	background bool
	perm       engine.Permission
	wake       chan struct{}
}

// New returns a provider in low-power mode.
func New(track *Track, opts Options) *Provider {
	if opts.LowPowerInterval <= 0 {
		opts.LowPowerInterval = DefaultLowPowerInterval
	}
	if opts.HighAccuracyInterval <= 0 {
		opts.HighAccuracyInterval = DefaultHighAccuracyInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	status := track.Permission
	if status == "" {
		status = engine.PermissionGranted
	}
	return &Provider{
		track:  track,
		opts:   opts,
		logger: xglog.WithComponent("replay"),
		mode:   engine.ModeLowPower,
		perm:   engine.Permission{Status: status, AlwaysGranted: track.AlwaysGranted && status == engine.PermissionGranted},
		wake:   make(chan struct{}, 1),
	}
}

// SetMode switches the reporting interval. A pending wait is cut short so a
// switch to high accuracy takes effect right away.
func (p *Provider) SetMode(m engine.LocationMode) {
	p.mu.Lock()
	changed := p.mode != m
	p.mode = m
	p.mu.Unlock()
	if !changed {
		return
	}
	p.logger.Info().Str("event", "replay.mode").Stringer("mode", m).Msg("location mode changed")
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Provider) SetBackgroundEnabled(v bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.background = v
}

// BackgroundEnabled reports whether background updates are on.
func (p *Provider) BackgroundEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.background
}

func (p *Provider) Mode() engine.LocationMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

func (p *Provider) Permission() engine.Permission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.perm
}

// RequestAlwaysPermission upgrades a grant to always. A denial sticks, as it
// does on a real device once the user said no.
func (p *Provider) RequestAlwaysPermission() engine.Permission {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.perm.Status != engine.PermissionDenied {
		p.perm = engine.Permission{Status: engine.PermissionGranted, AlwaysGranted: true}
	}
	return p.perm
}

func (p *Provider) interval() time.Duration {
	if p.Mode() == engine.ModeHighAccuracy {
		return p.opts.HighAccuracyInterval
	}
	return p.opts.LowPowerInterval
}

// Run plays the track into sink until the track ends (without Loop) or ctx
// is done. Sink errors are logged and playback continues.
func (p *Provider) Run(ctx context.Context, sink Sink) error {
	if len(p.track.Fixes) == 0 {
		return ErrEmptyTrack
	}
	p.logger.Info().
		Str("event", "replay.started").
		Str("track", p.track.Name).
		Int("fixes", len(p.track.Fixes)).
		Bool("loop", p.opts.Loop).
		Msg("replay started")

	for {
		for i, fix := range p.track.Fixes {
			if err := p.play(ctx, i, fix, sink); err != nil {
				return err
			}
		}
		if !p.opts.Loop {
			p.logger.Info().Str("event", "replay.finished").Msg("replay track finished")
			return nil
		}
	}
}

// play reports one fix once per interval for as long as it is held.
func (p *Provider) play(ctx context.Context, idx int, fix Fix, sink Sink) error {
	start := p.opts.Clock.Now()
	for {
		loc := model.Location{
			Lat:       fix.Lat,
			Lng:       fix.Lng,
			AccuracyM: fix.AccuracyM,
			SpeedMps:  fix.SpeedMps,
			At:        p.opts.Clock.Now(),
		}
		if err := sink(ctx, loc); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn().Err(err).Str("event", "replay.sink_failed").Int("fix", idx).Msg("fix not delivered")
		}

		if err := p.wait(ctx, p.interval()); err != nil {
			return err
		}
		if p.opts.Clock.Now().Sub(start) >= fix.Hold {
			return nil
		}
	}
}

func (p *Provider) wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	case <-p.wake:
	}
	return nil
}
