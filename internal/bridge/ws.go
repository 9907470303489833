// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ManuGH/chargewalk/internal/bus"
	xglog "github.com/ManuGH/chargewalk/internal/log"
	"github.com/ManuGH/chargewalk/internal/metrics"
)

const (
	wsMaxMessageBytes = 64 << 10
	wsWriteTimeout    = 5 * time.Second
)

// WSServer exposes the bridge to web content over a websocket. Every
// connection receives all outbound frames published on the bus.
type WSServer struct {
	bridge   *Bridge
	bus      bus.Bus
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewWSServer returns an http.Handler serving the bridge websocket.
func NewWSServer(b *Bridge, msgBus bus.Bus) *WSServer {
	s := &WSServer{
		bridge: b,
		bus:    msgBus,
		logger: xglog.WithComponent("bridge.ws"),
		done:   make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if b.Origins().Allowed(origin) {
				return true
			}
			metrics.RecordBridgeMessage(DirectionIn, "upgrade", "origin_rejected")
			s.logger.Warn().
				Str("event", "bridge.ws_origin_rejected").
				Str(xglog.FieldOrigin, origin).
				Msg("refusing websocket from unknown origin")
			return false
		},
	}
	return s
}

// Close ends every open connection. New upgrades are refused afterwards.
func (s *WSServer) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *WSServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.done:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	origin := r.Header.Get("Origin")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Str("event", "bridge.ws_upgrade_failed").Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	metrics.IncBridgeConnections()
	defer metrics.DecBridgeConnections()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	sub, err := s.bus.Subscribe(ctx, TopicOutbound)
	if err != nil {
		s.logger.Error().Err(err).Str("event", "bridge.ws_subscribe_failed").Msg("bus subscribe failed")
		return
	}
	defer func() { _ = sub.Close() }()

	s.logger.Info().
		Str("event", "bridge.ws_connected").
		Str(xglog.FieldOrigin, origin).
		Msg("web content connected")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		s.readLoop(ctx, conn, origin)
	}()

	if s.bridge.Ready() {
		if frame, err := Ready().Encode(); err == nil {
			_ = s.write(conn, frame)
		}
	}

	s.writeLoop(ctx, conn, sub)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = conn.Close()
	wg.Wait()

	s.logger.Info().
		Str("event", "bridge.ws_disconnected").
		Str(xglog.FieldOrigin, origin).
		Msg("web content disconnected")
}

func (s *WSServer) readLoop(ctx context.Context, conn *websocket.Conn, origin string) {
	conn.SetReadLimit(wsMaxMessageBytes)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().Err(err).Str("event", "bridge.ws_read_failed").Msg("websocket read failed")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		// Rejections are logged and recorded by Receive.
		_ = s.bridge.Receive(ctx, origin, data)
	}
}

func (s *WSServer) writeLoop(ctx context.Context, conn *websocket.Conn, sub bus.Subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			frame, ok := msg.([]byte)
			if !ok {
				continue
			}
			if err := s.write(conn, frame); err != nil {
				return
			}
		}
	}
}

func (s *WSServer) write(conn *websocket.Conn, frame []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, frame)
}
