// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// Store backends understood by the snapshot package.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreBadger = "badger"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// AppConfig is the daemon configuration. Precedence: ENV > file > defaults.
type AppConfig struct {
	Version    string `yaml:"-"`
	LogLevel   string `yaml:"logLevel,omitempty" env:"LOG_LEVEL"`
	ListenAddr string `yaml:"listenAddr,omitempty" env:"LISTEN_ADDR"`
	Production bool   `yaml:"production" env:"PRODUCTION"`

	Bridge       BridgeConfig    `yaml:"bridge" envPrefix:"BRIDGE_"`
	Store        StoreConfig     `yaml:"store" envPrefix:"STORE_"`
	Collector    CollectorConfig `yaml:"collector" envPrefix:"COLLECTOR_"`
	RemoteConfig RemoteConfig    `yaml:"remoteConfig" envPrefix:"REMOTE_CONFIG_"`
	Replay       ReplayConfig    `yaml:"replay" envPrefix:"REPLAY_"`
	Telemetry    TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
	Session      Session         `yaml:"session" envPrefix:"SESSION_"`
}

// BridgeConfig configures the web-content bridge.
type BridgeConfig struct {
	ProductionOrigin  string   `yaml:"productionOrigin,omitempty" env:"PRODUCTION_ORIGIN"`
	DevOrigins        []string `yaml:"devOrigins,omitempty" env:"DEV_ORIGINS" envSeparator:","`
	RecentSize        int      `yaml:"recentSize,omitempty" env:"RECENT_SIZE"`
	OutboundQueue     int      `yaml:"outboundQueue,omitempty" env:"OUTBOUND_QUEUE"`
	RequestsPerMinute int      `yaml:"requestsPerMinute,omitempty" env:"REQUESTS_PER_MINUTE"`
}

// StoreConfig selects and configures the snapshot backend.
type StoreConfig struct {
	Backend       string        `yaml:"backend,omitempty" env:"BACKEND"`
	Path          string        `yaml:"path,omitempty" env:"PATH"`
	RedisAddr     string        `yaml:"redisAddr,omitempty" env:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redisPassword,omitempty" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redisDb,omitempty" env:"REDIS_DB"`
	MaxAge        time.Duration `yaml:"maxAge,omitempty" env:"MAX_AGE"`
}

// CollectorConfig configures the remote event-emission client.
type CollectorConfig struct {
	BaseURL          string        `yaml:"baseUrl,omitempty" env:"BASE_URL"`
	Timeout          time.Duration `yaml:"timeout,omitempty" env:"TIMEOUT"`
	RatePerSecond    float64       `yaml:"ratePerSecond,omitempty" env:"RATE_PER_SECOND"`
	Burst            int           `yaml:"burst,omitempty" env:"BURST"`
	Workers          int           `yaml:"workers,omitempty" env:"WORKERS"`
	QueueSize        int           `yaml:"queueSize,omitempty" env:"QUEUE_SIZE"`
	BreakerThreshold int           `yaml:"breakerThreshold,omitempty" env:"BREAKER_THRESHOLD"`
	BreakerCooldown  time.Duration `yaml:"breakerCooldown,omitempty" env:"BREAKER_COOLDOWN"`
}

// RemoteConfig points at the remote session tunables document.
type RemoteConfig struct {
	URL     string        `yaml:"url,omitempty" env:"URL"`
	Timeout time.Duration `yaml:"timeout,omitempty" env:"TIMEOUT"`
}

// ReplayConfig drives the simulated location provider.
type ReplayConfig struct {
	TrackPath            string        `yaml:"trackPath,omitempty" env:"TRACK_PATH"`
	LowPowerInterval     time.Duration `yaml:"lowPowerInterval,omitempty" env:"LOW_POWER_INTERVAL"`
	HighAccuracyInterval time.Duration `yaml:"highAccuracyInterval,omitempty" env:"HIGH_ACCURACY_INTERVAL"`
	Loop                 bool          `yaml:"loop" env:"LOOP"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	ExporterType string  `yaml:"exporter,omitempty" env:"EXPORTER"`
	Endpoint     string  `yaml:"endpoint,omitempty" env:"ENDPOINT"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" env:"SAMPLING_RATE"`
	Environment  string  `yaml:"environment,omitempty" env:"ENVIRONMENT"`
}
