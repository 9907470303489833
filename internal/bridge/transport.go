// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bridge

import (
	"context"
	"time"

	"github.com/ManuGH/chargewalk/internal/bus"
)

// TopicOutbound carries encoded outbound frames.
const TopicOutbound = "bridge.outbound"

const publishTimeout = time.Second

// BusTransport publishes frames on a bus so every connected web view gets
// them.
type BusTransport struct {
	bus bus.Bus
}

// NewBusTransport returns a transport publishing on TopicOutbound.
func NewBusTransport(b bus.Bus) *BusTransport {
	return &BusTransport{bus: b}
}

func (t *BusTransport) Send(ctx context.Context, frame []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return t.bus.Publish(ctx, TopicOutbound, frame)
}
