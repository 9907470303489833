// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command chargewalkd hosts the charger-to-merchant session engine: it
// restores the last session, serves the web bridge and replays location.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/ManuGH/chargewalk/internal/config"
	"github.com/ManuGH/chargewalk/internal/daemon"
	"github.com/ManuGH/chargewalk/internal/health"
	xglog "github.com/ManuGH/chargewalk/internal/log"
	"github.com/ManuGH/chargewalk/internal/telemetry"
	"github.com/ManuGH/chargewalk/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fset := flag.NewFlagSet("chargewalkd", flag.ContinueOnError)
	showVersion := fset.Bool("version", false, "print version and exit")
	configPath := fset.String("config", "", "path to config file (YAML)")
	envFile := fset.String("env-file", ".env", "optional dotenv file loaded before the environment is read")
	if err := fset.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Println(version.String())
		return 0
	}

	// Configure logger with safe defaults until config is loaded
	xglog.Configure(xglog.Config{Level: "info", Service: "chargewalkd", Version: version.Version})
	logger := xglog.WithComponent("daemon")

	if err := loadEnvFile(*envFile); err != nil {
		logger.Error().Err(err).Str("event", "config.env_file_failed").Str("path", *envFile).Msg("failed to load env file")
		return 1
	}

	loader := config.NewLoader(strings.TrimSpace(*configPath), version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
		return 1
	}

	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Service: "chargewalkd", Version: cfg.Version})
	source := "env+defaults"
	if loader.Path() != "" {
		source = "file"
	}
	logger.Info().
		Str("event", "config.loaded").
		Str("source", source).
		Str("path", loader.Path()).
		Str("store", cfg.Store.Backend).
		Bool("production", cfg.Production).
		Msg("configuration loaded")

	ctx, stop := daemon.WaitForShutdown()
	defer stop()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.ExporterType,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
		StoreBackend:   cfg.Store.Backend,
		Production:     cfg.Production,
		ReplayTrack:    cfg.Replay.TrackPath,
	})
	if err != nil {
		logger.Warn().Err(err).Str("event", "telemetry.init_failed").Msg("telemetry initialization failed, continuing without tracing")
	} else {
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Warn().Err(err).Str("event", "telemetry.shutdown_failed").Msg("telemetry shutdown failed")
			}
		}()
	}

	if err := health.PerformStartupChecks(cfg); err != nil {
		logger.Error().Err(err).Str("event", "startup.checks_failed").Msg("startup checks failed")
		return 1
	}

	rt, err := daemon.Build(cfg)
	if err != nil {
		logger.Error().Err(err).Str("event", "daemon.build_failed").Msg("failed to build runtime")
		return 1
	}

	mgr, err := daemon.NewManager(daemon.DefaultServerConfig(cfg.ListenAddr), daemon.Deps{Handler: rt.Handler})
	if err != nil {
		_ = rt.Close()
		logger.Error().Err(err).Str("event", "daemon.manager_failed").Msg("failed to create server manager")
		return 1
	}

	logger.Info().
		Str("event", "daemon.starting").
		Str("version", version.Version).
		Str("listen", cfg.ListenAddr).
		Msg("starting chargewalkd")

	if err := daemon.NewApp(mgr, rt, config.NewHolder(cfg, loader)).Run(ctx); err != nil {
		logger.Error().Err(err).Str("event", "daemon.failed").Msg("daemon exited with error")
		return 1
	}
	return 0
}

// loadEnvFile loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
