// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/chargewalk/internal/bridge"
	"github.com/ManuGH/chargewalk/internal/config"
	xglog "github.com/ManuGH/chargewalk/internal/log"
)

const flushTimeout = 5 * time.Second

// App owns the long-lived runtime lifecycle (engine, workers, watchers,
// reload wiring) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	runtime      *Runtime
	cfgHolder    *config.Holder
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. cfgHolder may be nil.
func NewApp(manager Manager, rt *Runtime, cfgHolder *config.Holder) *App {
	return &App{
		logger:       xglog.WithComponent("daemon"),
		manager:      manager,
		runtime:      rt,
		cfgHolder:    cfgHolder,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned subsystems and blocks until ctx is cancelled or a
// fatal error occurs. The engine stops before the workers it feeds, so its
// last snapshot and events are still written.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	if a.runtime == nil {
		return ErrMissingRuntime
	}
	rt := a.runtime

	workersCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorkers()
	workers, workersCtx := errgroup.WithContext(workersCtx)
	workers.Go(func() error { return rt.Persister.Run(workersCtx) })
	workers.Go(func() error { return rt.Dispatcher.Run(workersCtx) })
	workers.Go(func() error { return rt.Bridge.Run(workersCtx, bridge.NewBusTransport(rt.Bus)) })

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return rt.Engine.Run(gctx) })

	if rt.playTrack {
		g.Go(func() error {
			err := rt.Location.Run(gctx, rt.feedFix)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().Err(err).Str("event", "replay.failed").Msg("location replay stopped")
			}
			return nil
		})
	}

	if a.cfgHolder != nil {
		a.cfgHolder.OnReload(func(cfg config.AppConfig) { rt.applyReload(gctx, cfg) })

		// Config watcher is best-effort: startup should not fail if watcher cannot be started.
		g.Go(func() error {
			if err := a.cfgHolder.Watch(gctx); err != nil {
				a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
			}
			return nil
		})

		if a.reloadSignal != nil {
			g.Go(func() error {
				hupChan := make(chan os.Signal, 1)
				signal.Notify(hupChan, a.reloadSignal)
				defer signal.Stop(hupChan)

				for {
					select {
					case <-gctx.Done():
						return nil
					case <-hupChan:
						a.logger.Info().
							Str("event", "config.reload_signal").
							Str("signal", a.reloadSignal.String()).
							Msg("received reload signal, reloading config")
						if err := a.cfgHolder.Reload(gctx); err != nil {
							a.logger.Warn().
								Err(err).
								Str("event", "config.reload_failed").
								Msg("config reload failed")
						}
					}
				}
			})
		}
	}

	g.Go(func() error { return a.manager.Start(gctx) })

	err := g.Wait()
	rt.WS.Close()

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	if ferr := rt.Persister.Flush(flushCtx); ferr != nil {
		a.logger.Warn().Err(ferr).Str("event", "snapshot.flush_failed").Msg("final snapshot write failed")
	}
	cancel()

	stopWorkers()
	if werr := workers.Wait(); werr != nil && err == nil {
		err = werr
	}
	if cerr := rt.Close(); cerr != nil {
		a.logger.Warn().Err(cerr).Str("event", "snapshot.close_failed").Msg("snapshot store close failed")
	}
	a.logger.Info().Str("event", "daemon.stopped").Msg("daemon stopped")
	return err
}

// WaitForShutdown returns a context cancelled on interrupt or termination.
func WaitForShutdown() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
