// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package emitter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/chargewalk/internal/log"
	"github.com/ManuGH/chargewalk/internal/metrics"
	"github.com/ManuGH/chargewalk/internal/session/model"
	"github.com/ManuGH/chargewalk/internal/telemetry"
)

const (
	kindSession    = "session"
	kindPreSession = "pre_session"

	defaultWorkers      = 2
	defaultQueueSize    = 256
	defaultSendTimeout  = 15 * time.Second
	defaultDrainTimeout = 2 * time.Second
)

// Failure describes an event that could not be delivered.
type Failure struct {
	Event   model.EventName
	EventID string
	Err     error
}

// AuthRequired reports whether the failure was an authentication problem.
func (f Failure) AuthRequired() bool { return errors.Is(f.Err, ErrAuthRequired) }

// DispatcherOptions configures queue depth and concurrency.
type DispatcherOptions struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

type job struct {
	kind    string
	session SessionEvent
	pre     PreSessionEvent
}

func (j job) name() model.EventName {
	if j.kind == kindSession {
		return j.session.Name
	}
	return j.pre.Name
}

func (j job) id() string {
	if j.kind == kindSession {
		return j.session.EventID
	}
	return j.pre.EventID
}

// Dispatcher sends events off the caller's goroutine. Enqueueing never
// blocks; a full queue drops the event and reports ErrQueueFull.
type Dispatcher struct {
	sink        Sink
	queue       chan job
	workers     int
	sendTimeout time.Duration
	logger      zerolog.Logger

	mu        sync.RWMutex
	onFailure func(Failure)
}

// NewDispatcher creates a dispatcher around sink. Run must be started.
func NewDispatcher(sink Sink, opts DispatcherOptions) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	return &Dispatcher{
		sink:        sink,
		queue:       make(chan job, opts.QueueSize),
		workers:     opts.Workers,
		sendTimeout: opts.SendTimeout,
		logger:      xglog.WithComponent("emitter"),
	}
}

// SetFailureHandler installs fn to be called, from a worker goroutine, for
// every event that could not be delivered.
func (d *Dispatcher) SetFailureHandler(fn func(Failure)) {
	d.mu.Lock()
	d.onFailure = fn
	d.mu.Unlock()
}

// EmitSession queues a session event.
func (d *Dispatcher) EmitSession(ev SessionEvent) {
	d.enqueue(job{kind: kindSession, session: ev})
}

// EmitPreSession queues a pre-session event.
func (d *Dispatcher) EmitPreSession(ev PreSessionEvent) {
	d.enqueue(job{kind: kindPreSession, pre: ev})
}

func (d *Dispatcher) enqueue(j job) {
	select {
	case d.queue <- j:
		metrics.SetEmitterQueueDepth(len(d.queue))
	default:
		metrics.RecordEventEmission(j.kind, "dropped")
		d.logger.Warn().
			Str("event", "emitter.dropped").
			Str(xglog.FieldEventID, j.id()).
			Str("name", string(j.name())).
			Msg("event queue full, dropping event")
		d.fail(j, ErrQueueFull)
	}
}

// Run starts the workers and blocks until ctx is done. Events still queued
// at shutdown get a short best-effort drain.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx)
		}()
	}
	wg.Wait()

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultDrainTimeout)
	defer cancel()
	for {
		select {
		case j := <-d.queue:
			d.send(drainCtx, j)
		default:
			return nil
		}
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-d.queue:
			metrics.SetEmitterQueueDepth(len(d.queue))
			d.send(ctx, j)
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, j job) {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	var err error
	switch j.kind {
	case kindSession:
		err = d.sink.EmitSessionEvent(sendCtx, j.session)
	default:
		err = d.sink.EmitPreSessionEvent(sendCtx, j.pre)
	}

	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrAuthRequired):
		result = "auth_required"
	default:
		result = "error"
	}
	metrics.RecordEventEmission(j.kind, result)
	telemetry.RecordEmission(ctx, j.kind, result)

	if err != nil {
		d.logger.Warn().
			Err(err).
			Str("event", "emitter.failed").
			Str(xglog.FieldEventID, j.id()).
			Str("name", string(j.name())).
			Msg("event emission failed")
		d.fail(j, err)
	}
}

func (d *Dispatcher) fail(j job, err error) {
	d.mu.RLock()
	fn := d.onFailure
	d.mu.RUnlock()
	if fn != nil {
		fn(Failure{Event: j.name(), EventID: j.id(), Err: err})
	}
}
