// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	xglog "github.com/ManuGH/chargewalk/internal/log"
	"github.com/ManuGH/chargewalk/internal/session/model"
)

// DefaultMaxAge is the staleness ceiling applied at restore.
const DefaultMaxAge = 2 * time.Hour

// Restore loads the stored snapshot. It returns (nil, nil) when nothing is
// stored. Corrupt records and records older than maxAge are cleared and
// reported as ErrCorrupt and ErrStale respectively.
func Restore(ctx context.Context, store Store, now time.Time, maxAge time.Duration) (*model.Snapshot, error) {
	logger := xglog.WithComponentFromContext(ctx, "snapshot")
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	snap, err := store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrCorrupt) {
			logger.Warn().
				Err(err).
				Str("event", "snapshot.discard_corrupt").
				Msg("discarding corrupt snapshot")
			discard(ctx, store)
		}
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}

	if age := snap.Age(now); age > maxAge {
		logger.Info().
			Str("event", "snapshot.discard_stale").
			Dur("age", age).
			Str(xglog.FieldNewState, string(snap.State)).
			Msg("discarding stale snapshot")
		discard(ctx, store)
		return nil, fmt.Errorf("%w: saved %s ago", ErrStale, age.Round(time.Second))
	}
	return snap, nil
}

func discard(ctx context.Context, store Store) {
	if err := store.Clear(ctx); err != nil {
		logger := xglog.WithComponentFromContext(ctx, "snapshot")
		logger.Warn().
			Err(err).
			Str("event", "snapshot.clear_failed").
			Msg("failed to clear discarded snapshot")
	}
}
