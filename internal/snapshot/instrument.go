// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package snapshot

import (
	"context"
	"errors"

	"github.com/ManuGH/chargewalk/internal/metrics"
	"github.com/ManuGH/chargewalk/internal/session/model"
)

type instrumented struct {
	backend string
	next    Store
}

// Instrument wraps s so every operation is counted under backend.
func Instrument(backend string, s Store) Store {
	return &instrumented{backend: backend, next: s}
}

func (i *instrumented) Save(ctx context.Context, s *model.Snapshot) error {
	err := i.next.Save(ctx, s)
	metrics.RecordSnapshotOp(i.backend, "save", result(err))
	return err
}

func (i *instrumented) Load(ctx context.Context) (*model.Snapshot, error) {
	s, err := i.next.Load(ctx)
	metrics.RecordSnapshotOp(i.backend, "load", result(err))
	return s, err
}

func (i *instrumented) Clear(ctx context.Context) error {
	err := i.next.Clear(ctx)
	metrics.RecordSnapshotOp(i.backend, "clear", result(err))
	return err
}

func (i *instrumented) Close() error { return i.next.Close() }

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCorrupt):
		return "corrupt"
	default:
		return "error"
	}
}
