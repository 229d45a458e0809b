package bus

// EventBus is the in-process pub/sub the simulation uses to fan facts out to
// collaborators: damage numbers and deaths to the render side, effect changes
// to UI, intents to the network side.
//
// Key characteristics:
//   - Type-based fan-out: handlers subscribe by Event.Type() string.
//   - Synchronous delivery in subscription order, so a tick replays identically.
//   - Deferred delivery: Enqueue buffers events until Flush, letting producers
//     inside a system avoid re-entering other systems mid-update.
//   - Error aggregation: handler errors are joined and returned.
//   - Optional observability: metrics are produced only when observers are registered.
type EventBus interface {
	// Publish delivers the event synchronously to every active subscriber of
	// event.Type(). Handler errors are joined into the return value.
	Publish(event Event) error

	// Enqueue buffers the event for the next Flush.
	Enqueue(event Event)
	// Flush delivers every buffered event in enqueue order. Events enqueued by
	// handlers during the flush are delivered in the same call.
	Flush() error

	// Subscribe registers a handler for a specific event type and returns a
	// Subscription handle that can be used to cancel later.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. It is safe to call with nil.
	Unsubscribe(Subscription) error

	AddObserver(obs EventBusObserver)
	RemoveObserver(obs EventBusObserver)
	// GetMetrics returns accumulated metrics. Metrics are only collected while
	// at least one observer is registered.
	GetMetrics() EventBusMetrics
}

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Tick() uint64
	Data() any
}

// EventHandler is invoked per delivered event.
type EventHandler func(event Event) error

// Subscription represents a registered handler bound to an event type.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// EventBusObserver is notified about deliveries and errors.
type EventBusObserver interface {
	OnPublish(eventType string, event Event)
	OnDelivered(eventType string, handlers int, err error)
}

// EventBusMetrics is updated only while at least one observer is registered.
type EventBusMetrics struct {
	Published         uint64
	Enqueued          uint64
	DeliveredHandlers uint64
	Errors            uint64
	SubscribersActive uint64
}
