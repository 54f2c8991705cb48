// SPDX-License-Identifier: MIT

// Package bus provides in-process pub/sub fan-out of session events to
// read-only subscribers such as dashboards and the status exporter.
package bus

import "context"

// Message is an opaque event payload.
type Message any

// Bus delivers published messages to all current subscribers of a topic.
type Bus interface {
	// Publish delivers msg to every subscriber, blocking on a full
	// subscriber channel until ctx is done.
	Publish(ctx context.Context, topic string, msg Message) error
	// TryPublish delivers msg to every subscriber whose channel has
	// capacity and silently drops the rest. It never blocks, so it is
	// safe to call from state-machine loops.
	TryPublish(topic string, msg Message)
	// Subscribe registers a new subscriber for a topic.
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}

// Subscriber is one registered consumer of a topic.
type Subscriber interface {
	// C returns the delivery channel. It is closed by Close.
	C() <-chan Message
	// Close unregisters the subscriber and closes its channel.
	Close() error
}
