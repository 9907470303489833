// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/chargewalk/internal/log"
	"github.com/ManuGH/chargewalk/internal/metrics"
	"github.com/ManuGH/chargewalk/internal/session/model"
)

const defaultWriteTimeout = 5 * time.Second

// Persister writes snapshots in the background. Only the latest submitted
// operation matters: a Save or Clear that has not reached the store yet is
// replaced by the next one.
type Persister struct {
	store  Store
	logger zerolog.Logger

	mu        sync.Mutex
	pending   *pendingOp
	submitted uint64
	written   uint64
	lastErr   error
	changed   chan struct{} // closed and replaced after every write
	wake      chan struct{}
}

type pendingOp struct {
	snap  *model.Snapshot
	clear bool
}

// NewPersister creates a persister for store. Run must be started for writes
// to happen.
func NewPersister(store Store) *Persister {
	return &Persister{
		store:   store,
		logger:  xglog.WithComponent("snapshot"),
		changed: make(chan struct{}),
		wake:    make(chan struct{}, 1),
	}
}

// Save schedules s to be written. It never blocks on I/O.
func (p *Persister) Save(s *model.Snapshot) {
	p.submit(&pendingOp{snap: s.Clone()})
}

// Clear schedules the stored record to be removed.
func (p *Persister) Clear() {
	p.submit(&pendingOp{clear: true})
}

func (p *Persister) submit(op *pendingOp) {
	p.mu.Lock()
	if p.pending != nil {
		metrics.RecordSnapshotCoalesced()
	}
	p.pending = op
	p.submitted++
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run writes pending operations until ctx is done, then writes whatever is
// still pending and returns.
func (p *Persister) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.writePending(context.WithoutCancel(ctx))
			return nil
		case <-p.wake:
			p.writePending(ctx)
		}
	}
}

func (p *Persister) writePending(ctx context.Context) {
	p.mu.Lock()
	op := p.pending
	gen := p.submitted
	p.pending = nil
	p.mu.Unlock()
	if op == nil {
		return
	}

	wctx, cancel := context.WithTimeout(ctx, defaultWriteTimeout)
	var err error
	if op.clear {
		err = p.store.Clear(wctx)
	} else {
		err = p.store.Save(wctx, op.snap)
	}
	cancel()

	if err != nil {
		p.logger.Error().
			Err(err).
			Str("event", "snapshot.write_failed").
			Bool("clear", op.clear).
			Msg("snapshot write failed")
	}

	p.mu.Lock()
	p.written = gen
	p.lastErr = err
	close(p.changed)
	p.changed = make(chan struct{})
	p.mu.Unlock()
}

// Flush waits until every operation submitted before the call has been
// written, and returns the error of the write that covered it.
func (p *Persister) Flush(ctx context.Context) error {
	p.mu.Lock()
	target := p.submitted
	p.mu.Unlock()

	for {
		p.mu.Lock()
		if p.written >= target {
			err := p.lastErr
			p.mu.Unlock()
			return err
		}
		ch := p.changed
		p.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
