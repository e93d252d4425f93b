package providers

import (
	"context"

	"github.com/careloop/conditiontrack/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to record
// events. It replaces the ambient page-global event with an injected
// dependency: consumers hold an explicit subscription tied to a context and
// re-read the store when an event arrives.
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.RecordEvent) error

	// Subscribe subscribes to events on a channel. The subscription lives
	// until ctx is done.
	Subscribe(ctx context.Context, channel string) (<-chan *entities.RecordEvent, error)

	// Unsubscribe drops every subscription on a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelRecordUpdates is the channel every store mutation is
// broadcast on
const EventChannelRecordUpdates = "records:updates"
