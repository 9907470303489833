// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package snapshot

import (
	"context"
	"sync"

	"github.com/ManuGH/chargewalk/internal/session/model"
)

// MemoryStore keeps the encoded record in memory.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Save(_ context.Context, s *model.Snapshot) error {
	buf, err := Encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = buf
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(_ context.Context) (*model.Snapshot, error) {
	m.mu.Lock()
	buf := m.data
	m.mu.Unlock()
	if buf == nil {
		return nil, nil
	}
	return Decode(buf)
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.data = nil
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// SetRaw replaces the stored bytes verbatim.
func (m *MemoryStore) SetRaw(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), b...)
}

// Raw returns the stored bytes.
func (m *MemoryStore) Raw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}
