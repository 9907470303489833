// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package snapshot

import (
	"fmt"
	"path/filepath"

	"github.com/ManuGH/chargewalk/internal/config"
)

// Open creates the Store selected by cfg.Backend. The result is instrumented.
func Open(cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case config.StoreMemory, "":
		s = NewMemoryStore()
	case config.StoreFile:
		s, err = OpenFileStore(filepath.Join(cfg.Path, "session_snapshot.json"))
	case config.StoreBadger:
		s, err = OpenBadgerStore(filepath.Join(cfg.Path, "badger"))
	case config.StoreSQLite:
		s, err = OpenSQLiteStore(filepath.Join(cfg.Path, "session.sqlite"))
	case config.StoreRedis:
		s, err = OpenRedisStore(RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.MaxAge)
	default:
		return nil, fmt.Errorf("unknown snapshot store backend: %s", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s snapshot store: %w", cfg.Backend, err)
	}
	backend := cfg.Backend
	if backend == "" {
		backend = config.StoreMemory
	}
	return Instrument(backend, s), nil
}
