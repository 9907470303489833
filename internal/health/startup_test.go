// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/chargewalk/internal/config"
)

func TestPerformStartupChecks(t *testing.T) {
	dir := t.TempDir()
	track := filepath.Join(dir, "track.yaml")
	require.NoError(t, os.WriteFile(track, []byte("fixes: []\n"), 0o600))
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	tests := []struct {
		name    string
		mutate  func(*config.AppConfig)
		wantErr string
	}{
		{name: "memory defaults", mutate: func(*config.AppConfig) {}},
		{
			name: "file store creates its directory",
			mutate: func(c *config.AppConfig) {
				c.Store = config.StoreConfig{Backend: config.StoreFile, Path: filepath.Join(dir, "state")}
			},
		},
		{
			name: "store path blocked by a file",
			mutate: func(c *config.AppConfig) {
				c.Store = config.StoreConfig{Backend: config.StoreSQLite, Path: filepath.Join(blocker, "db")}
			},
			wantErr: "snapshot store check failed",
		},
		{
			name:    "bad listen address",
			mutate:  func(c *config.AppConfig) { c.ListenAddr = "localhost" },
			wantErr: "invalid listen address",
		},
		{
			name:    "bad listen port",
			mutate:  func(c *config.AppConfig) { c.ListenAddr = ":99999" },
			wantErr: "invalid listen port",
		},
		{
			name:    "collector scheme",
			mutate:  func(c *config.AppConfig) { c.Collector.BaseURL = "ftp://collector" },
			wantErr: "scheme must be http or https",
		},
		{
			name:   "readable track",
			mutate: func(c *config.AppConfig) { c.Replay.TrackPath = track },
		},
		{
			name:    "missing track",
			mutate:  func(c *config.AppConfig) { c.Replay.TrackPath = filepath.Join(dir, "nope.yaml") },
			wantErr: "replay track",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.AppConfig{ListenAddr: ":8080"}
			tt.mutate(&cfg)
			err := PerformStartupChecks(cfg)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStateDir(t *testing.T) {
	assert.Equal(t, "/var/lib/cw", StateDir(config.StoreConfig{Backend: config.StoreBadger, Path: "/var/lib/cw"}))
	assert.Empty(t, StateDir(config.StoreConfig{Backend: config.StoreRedis, Path: "/var/lib/cw"}))
	assert.Empty(t, StateDir(config.StoreConfig{Backend: config.StoreMemory}))
}
