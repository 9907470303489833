// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package snapshot persists the single recoverable session record.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ManuGH/chargewalk/internal/session/model"
)

// Key is the fixed name the snapshot is stored under.
const Key = "chargewalk.session.snapshot"

var (
	// ErrCorrupt is returned when a stored record cannot be decoded.
	ErrCorrupt = errors.New("snapshot corrupt")
	// ErrStale is returned by Restore when the record is older than the ceiling.
	ErrStale = errors.New("snapshot stale")
)

// Store persists one snapshot. Load returns (nil, nil) when nothing is stored.
type Store interface {
	Save(ctx context.Context, s *model.Snapshot) error
	Load(ctx context.Context) (*model.Snapshot, error)
	Clear(ctx context.Context) error
	Close() error
}

// Encode serializes a snapshot.
func Encode(s *model.Snapshot) ([]byte, error) {
	if s == nil {
		return nil, errors.New("snapshot: nil record")
	}
	return json.Marshal(s)
}

// Decode parses a stored record. Unknown fields are tolerated; anything that
// does not describe a valid session state is ErrCorrupt.
func Decode(data []byte) (*model.Snapshot, error) {
	var s model.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if !s.State.Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", ErrCorrupt, s.State)
	}
	if s.SavedAtMs <= 0 {
		return nil, fmt.Errorf("%w: missing save timestamp", ErrCorrupt)
	}
	return &s, nil
}
