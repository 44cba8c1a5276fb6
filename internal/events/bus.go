package events

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// subscription represents a single event subscription
type subscription struct {
	id      SubscriptionID
	handler EventHandler
}

// SyncEventBus delivers every event to its handlers on the publishing goroutine,
// in subscription order, before Publish returns
type SyncEventBus struct {
	subscribers map[EventType][]subscription
	mu          sync.RWMutex

	nextSubID SubscriptionID

	// panicOut receives a line when a handler panics
	panicOut io.Writer
}

// NewEventBus creates a new synchronous event bus
func NewEventBus() *SyncEventBus {
	return &SyncEventBus{
		subscribers: make(map[EventType][]subscription),
		nextSubID:   1,
		panicOut:    os.Stderr,
	}
}

// Subscribe registers a handler for a specific event type
func (eb *SyncEventBus) Subscribe(eventType EventType, handler EventHandler) SubscriptionID {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subID := eb.nextSubID
	eb.nextSubID++

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscription{
		id:      subID,
		handler: handler,
	})

	return subID
}

// SubscribeAll registers one handler for several event types
func (eb *SyncEventBus) SubscribeAll(types []EventType, handler EventHandler) []SubscriptionID {
	ids := make([]SubscriptionID, 0, len(types))
	for _, t := range types {
		ids = append(ids, eb.Subscribe(t, handler))
	}
	return ids
}

// Unsubscribe removes a subscription by ID
func (eb *SyncEventBus) Unsubscribe(id SubscriptionID) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for eventType, subs := range eb.subscribers {
		for i, sub := range subs {
			if sub.id == id {
				eb.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish dispatches an event to all subscribers and returns once they have run
func (eb *SyncEventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Copy handlers so one may unsubscribe while being called
	eb.mu.RLock()
	subs := eb.subscribers[event.Type]
	handlers := make([]EventHandler, len(subs))
	for i, sub := range subs {
		handlers[i] = sub.handler
	}
	eb.mu.RUnlock()

	for _, handler := range handlers {
		eb.safeHandlerCall(handler, event)
	}
}

// safeHandlerCall calls a handler with panic recovery
func (eb *SyncEventBus) safeHandlerCall(handler EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(eb.panicOut, "[EventBus] Handler panic for event %v: %v\n", event.Type, r)
		}
	}()

	handler(event)
}

// SubscriberCount returns the number of subscribers for an event type
func (eb *SyncEventBus) SubscriberCount(eventType EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	return len(eb.subscribers[eventType])
}
