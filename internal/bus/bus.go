// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package bus fans outbound bridge frames out to every connected web view.
package bus

import "context"

// Message is an opaque payload. The bridge publishes encoded frames.
type Message interface{}

// Subscriber receives messages for one topic.
type Subscriber interface {
	// C returns a read-only message channel. It is closed by Close.
	C() <-chan Message
	// Close unsubscribes.
	Close() error
}

// Bus is the in-process pub/sub abstraction.
type Bus interface {
	Publish(ctx context.Context, topic string, msg Message) error
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}
