// Package eventbus provides the notification sink used by the workflow and
// delivery orchestrators. Publishing is fire-and-forget from the caller's
// point of view: a failed publish is logged, never propagated.
package eventbus

import (
	"context"

	"github.com/meetflow/meetflow/pkg/events"
)

// Event is anything publishable on the bus.
type Event interface {
	GetType() events.EventType
}

// EventHandler consumes one decoded event.
type EventHandler func(ctx context.Context, event any) error

// EventBus is the pub/sub contract backed by watermill.
type EventBus interface {
	Publish(ctx context.Context, key string, event Event) error
	Handle(eventType events.EventType, handler EventHandler)
	Subscribe(ctx context.Context) error
	Close() error
	GenerateID() string
}
