// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import (
	"sync"
	"time"
)

// DefaultRecentSize is the number of messages kept for diagnostics.
const DefaultRecentSize = 20

// Direction of a recorded message.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Record summarizes one bridge message. Payloads are not kept since they
// may carry credentials.
type Record struct {
	At        time.Time `json:"at"`
	Direction string    `json:"direction"`
	Type      string    `json:"type"`
	RequestID string    `json:"requestId,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	Result    string    `json:"result"`
}

type ring struct {
	mu    sync.Mutex
	buf   []Record
	next  int
	count int
}

func newRing(size int) *ring {
	if size <= 0 {
		size = DefaultRecentSize
	}
	return &ring{buf: make([]Record, size)}
}

func (r *ring) add(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = rec
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// snapshot returns records oldest first.
func (r *ring) snapshot() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, r.count)
	start := (r.next - r.count + len(r.buf)) % len(r.buf)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}
