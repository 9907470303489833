// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/chargewalk/internal/validate"
)

// EnvPrefix is prepended to every environment variable the loader reads.
const EnvPrefix = "CHARGEWALK_"

// Loader handles configuration loading with precedence
type Loader struct {
	configPath string
	version    string
	environ    map[string]string
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// WithEnvironment makes the loader read variables from m instead of the
// process environment.
func (l *Loader) WithEnvironment(m map[string]string) *Loader {
	l.environ = m
	return l
}

// Path returns the config file path (may be empty).
func (l *Loader) Path() string { return l.configPath }

// Load loads configuration with precedence: ENV > File > Defaults.
// Order: defaults -> strict file parse -> env overlay -> validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	opts := env.Options{Prefix: EnvPrefix}
	if l.environ != nil {
		opts.Environment = l.environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}

	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return ErrMultipleDocuments
	}
	return nil
}

// Defaults returns the configuration used when neither file nor environment
// override a value.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel:   "info",
		ListenAddr: ":8088",
		Bridge: BridgeConfig{
			ProductionOrigin:  "https://app.chargewalk.io",
			RecentSize:        20,
			OutboundQueue:     64,
			RequestsPerMinute: 600,
		},
		Store: StoreConfig{
			Backend: StoreFile,
			Path:    "data",
			MaxAge:  2 * time.Hour,
		},
		Collector: CollectorConfig{
			Timeout:          10 * time.Second,
			RatePerSecond:    5,
			Burst:            10,
			Workers:          2,
			QueueSize:        256,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		RemoteConfig: RemoteConfig{
			Timeout: 5 * time.Second,
		},
		Replay: ReplayConfig{
			LowPowerInterval:     30 * time.Second,
			HighAccuracyInterval: 2 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "development",
		},
		Session: DefaultSession(),
	}
}

// Validate checks the daemon configuration.
func Validate(cfg AppConfig) error {
	v := validate.New()

	if _, err := validate.ParseLogLevel(cfg.LogLevel); err != nil {
		v.AddError("logLevel", err.Error(), cfg.LogLevel)
	}
	v.NotEmpty("listenAddr", cfg.ListenAddr)

	if cfg.Production {
		v.URL("bridge.productionOrigin", cfg.Bridge.ProductionOrigin, []string{"https"})
	} else if cfg.Bridge.ProductionOrigin != "" {
		v.URL("bridge.productionOrigin", cfg.Bridge.ProductionOrigin, []string{"http", "https"})
	}
	v.Range("bridge.recentSize", cfg.Bridge.RecentSize, 1, 1000)
	v.Range("bridge.outboundQueue", cfg.Bridge.OutboundQueue, 1, 65536)
	v.Range("bridge.requestsPerMinute", cfg.Bridge.RequestsPerMinute, 1, 1_000_000)

	v.OneOf("store.backend", cfg.Store.Backend,
		[]string{StoreMemory, StoreFile, StoreBadger, StoreSQLite, StoreRedis})
	switch cfg.Store.Backend {
	case StoreFile, StoreBadger, StoreSQLite:
		v.NotEmpty("store.path", cfg.Store.Path)
	case StoreRedis:
		v.NotEmpty("store.redisAddr", cfg.Store.RedisAddr)
	}
	if cfg.Store.MaxAge <= 0 {
		v.AddError("store.maxAge", "must be > 0", cfg.Store.MaxAge)
	}

	if cfg.Collector.BaseURL != "" {
		v.URL("collector.baseUrl", cfg.Collector.BaseURL, []string{"http", "https"})
	}
	v.Positive("collector.ratePerSecond", cfg.Collector.RatePerSecond)
	v.Range("collector.burst", cfg.Collector.Burst, 1, 10000)
	v.Range("collector.workers", cfg.Collector.Workers, 1, 64)
	v.Range("collector.queueSize", cfg.Collector.QueueSize, 1, 65536)
	v.Range("collector.breakerThreshold", cfg.Collector.BreakerThreshold, 1, 1000)

	if cfg.RemoteConfig.URL != "" {
		v.URL("remoteConfig.url", cfg.RemoteConfig.URL, []string{"http", "https"})
	}

	if cfg.Replay.LowPowerInterval <= 0 {
		v.AddError("replay.lowPowerInterval", "must be > 0", cfg.Replay.LowPowerInterval)
	}
	if cfg.Replay.HighAccuracyInterval <= 0 {
		v.AddError("replay.highAccuracyInterval", "must be > 0", cfg.Replay.HighAccuracyInterval)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.ExporterType, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
	}

	if err := cfg.Session.Validate(); err != nil {
		v.AddError("session", err.Error(), cfg.Session)
	}

	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
