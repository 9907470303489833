// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/chargewalk/internal/config"
	"github.com/ManuGH/chargewalk/internal/log"
)

var errNotDir = errors.New("not a directory")

// PerformStartupChecks validates the environment before the daemon starts.
func PerformStartupChecks(cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")

	if err := checkListenAddr(cfg.ListenAddr); err != nil {
		return err
	}
	if err := checkStore(logger, cfg.Store); err != nil {
		return fmt.Errorf("snapshot store check failed: %w", err)
	}
	if cfg.Collector.BaseURL != "" {
		u, err := url.Parse(cfg.Collector.BaseURL)
		if err != nil {
			return fmt.Errorf("invalid collector URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("collector URL scheme must be http or https, got: %s", u.Scheme)
		}
	}
	if cfg.Replay.TrackPath != "" {
		if err := checkFileReadable(cfg.Replay.TrackPath); err != nil {
			return fmt.Errorf("replay track: %w", err)
		}
	}
	logger.Info().Str("event", "startup.checks_passed").Msg("startup checks passed")
	return nil
}

// StateDir returns the directory a persistent backend writes to, or "" for
// backends without local state.
func StateDir(cfg config.StoreConfig) string {
	switch cfg.Backend {
	case config.StoreFile, config.StoreBadger, config.StoreSQLite:
		return cfg.Path
	default:
		return ""
	}
}

func checkListenAddr(addr string) error {
	if addr == "" {
		return nil
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	return nil
}

func checkStore(logger zerolog.Logger, cfg config.StoreConfig) error {
	dir := StateDir(cfg)
	if dir == "" {
		if cfg.Backend == config.StoreMemory || cfg.Backend == "" {
			logger.Warn().
				Str("store_backend", config.StoreMemory).
				Msg("in-memory snapshot store; sessions do not survive restarts")
		}
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := checkWritableDir(dir); err != nil {
		return fmt.Errorf("directory is not writable: %w", err)
	}

	tempDir := filepath.Clean(os.TempDir())
	clean := filepath.Clean(dir)
	if tempDir != "." && (clean == tempDir || strings.HasPrefix(clean, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str("path", dir).
			Msg("snapshot directory is under temp; session state may be lost on reboot")
	}
	return nil
}

func checkFileReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return err
	}
	return f.Close()
}
