// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package bridge implements the message protocol between the session core
// and the embedded web content.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/ManuGH/chargewalk/internal/clock"
	xglog "github.com/ManuGH/chargewalk/internal/log"
	"github.com/ManuGH/chargewalk/internal/metrics"
)

const defaultQueueSize = 64

// Handler consumes parsed inbound commands.
type Handler interface {
	HandleCommand(ctx context.Context, cmd Command) error
}

// Transport delivers encoded outbound frames to the web content.
type Transport interface {
	Send(ctx context.Context, frame []byte) error
}

// Options configures a Bridge.
type Options struct {
	Origins    *Origins
	QueueSize  int
	RecentSize int
	Clock      clock.Clock
}

// Bridge validates inbound messages and queues outbound notifications.
type Bridge struct {
	origins *Origins
	queue   chan Notification
	recent  *ring
	clock   clock.Clock
	logger  zerolog.Logger
	ready   atomic.Bool

	mu      sync.RWMutex
	handler Handler
}

// New creates a bridge. opts.Origins is required.
func New(opts Options) *Bridge {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Bridge{
		origins: opts.Origins,
		queue:   make(chan Notification, opts.QueueSize),
		recent:  newRing(opts.RecentSize),
		clock:   opts.Clock,
		logger:  xglog.WithComponent("bridge"),
	}
}

// SetHandler installs the command consumer. Commands received before a
// handler is set are dropped.
func (b *Bridge) SetHandler(h Handler) {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()
}

// Origins returns the allow-list used by Receive.
func (b *Bridge) Origins() *Origins { return b.origins }

// Ready reports whether NATIVE_READY has been sent.
func (b *Bridge) Ready() bool { return b.ready.Load() }

// Recent returns the last messages, oldest first.
func (b *Bridge) Recent() []Record { return b.recent.snapshot() }

// Notify queues n for delivery. It never blocks; when the queue is full the
// notification is dropped and logged.
func (b *Bridge) Notify(n Notification) {
	if n.Action == ActionReady {
		b.ready.Store(true)
	}
	select {
	case b.queue <- n:
	default:
		metrics.RecordBridgeMessage(DirectionOut, n.Action, "dropped")
		b.record(DirectionOut, n.Action, n.RequestID(), "", "dropped")
		b.logger.Warn().
			Str("event", "bridge.outbound_dropped").
			Str(xglog.FieldAction, n.Action).
			Msg("outbound queue full, dropping notification")
	}
}

// Run drains the outbound queue into t until ctx is done.
func (b *Bridge) Run(ctx context.Context, t Transport) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-b.queue:
			b.deliver(ctx, t, n)
		}
	}
}

func (b *Bridge) deliver(ctx context.Context, t Transport, n Notification) {
	frame, err := n.Encode()
	if err == nil {
		err = t.Send(ctx, frame)
	}
	result := "ok"
	if err != nil {
		result = "error"
		b.logger.Warn().
			Err(err).
			Str("event", "bridge.outbound_failed").
			Str(xglog.FieldAction, n.Action).
			Msg("failed to deliver notification")
	}
	metrics.RecordBridgeMessage(DirectionOut, n.Action, result)
	b.record(DirectionOut, n.Action, n.RequestID(), "", result)
}

// Receive validates and dispatches one inbound message. Rejected messages
// are logged and dropped; the returned error says why.
func (b *Bridge) Receive(ctx context.Context, origin string, raw []byte) error {
	if b.origins == nil || !b.origins.Allowed(origin) {
		metrics.RecordBridgeMessage(DirectionIn, "unknown", "origin_rejected")
		b.record(DirectionIn, "", "", origin, "origin_rejected")
		b.logger.Warn().
			Str("event", "bridge.origin_rejected").
			Str(xglog.FieldOrigin, origin).
			Msg("dropping message from unknown origin")
		return fmt.Errorf("%w: %q", ErrOriginNotAllowed, origin)
	}

	cmd, err := ParseCommand(raw)
	if err != nil {
		metrics.RecordBridgeMessage(DirectionIn, string(cmd.Type), "malformed")
		b.record(DirectionIn, string(cmd.Type), cmd.RequestID, origin, "malformed")
		b.logger.Warn().
			Err(err).
			Str("event", "bridge.malformed").
			Str(xglog.FieldCommand, string(cmd.Type)).
			Str(xglog.FieldRequestID, cmd.RequestID).
			Msg("dropping malformed command")
		return err
	}

	b.mu.RLock()
	h := b.handler
	b.mu.RUnlock()
	if h == nil {
		b.record(DirectionIn, string(cmd.Type), cmd.RequestID, origin, "no_handler")
		return errors.New("bridge: no command handler")
	}

	ctx = xglog.ContextWithRequestID(ctx, cmd.RequestID)
	if err := h.HandleCommand(ctx, cmd); err != nil {
		metrics.RecordBridgeMessage(DirectionIn, string(cmd.Type), "error")
		b.record(DirectionIn, string(cmd.Type), cmd.RequestID, origin, "error")
		return err
	}
	metrics.RecordBridgeMessage(DirectionIn, string(cmd.Type), "ok")
	b.record(DirectionIn, string(cmd.Type), cmd.RequestID, origin, "ok")
	return nil
}

func (b *Bridge) record(direction, msgType, requestID, origin, result string) {
	b.recent.add(Record{
		At:        b.clock.Now(),
		Direction: direction,
		Type:      msgType,
		RequestID: requestID,
		Origin:    origin,
		Result:    result,
	})
}
