package outbox

import "context"

// Event is anything announced after a use case completes, e.g. shipping.aggregated.
type Event interface {
	EventName() string
}

// Handler consumes one delivered event.
type Handler func(ctx context.Context, e Event) error

// Publisher announces events. Implementations: the in-memory bus and the Kafka publisher.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers handlers by event name.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
