package events

import "time"

// EventType represents different types of events in a run
type EventType string

const (
	// Run lifecycle
	EventTypeRunStarted   EventType = "run.started"
	EventTypeRunCompleted EventType = "run.completed"
	EventTypeRunAborted   EventType = "run.aborted"

	// Feed traversal
	EventTypeElementDisposed EventType = "element.disposed"
	EventTypeFeedScrolled    EventType = "feed.scrolled"

	// Interaction protocol
	EventTypeInteractionState EventType = "interaction.state"

	// Error events
	EventTypeError EventType = "error"
)

// AllTypes lists every event type, for subscribers that want everything
var AllTypes = []EventType{
	EventTypeRunStarted,
	EventTypeRunCompleted,
	EventTypeRunAborted,
	EventTypeElementDisposed,
	EventTypeFeedScrolled,
	EventTypeInteractionState,
	EventTypeError,
}

// Event represents a run event with metadata
type Event struct {
	Type      EventType              // Type of event
	Source    string                 // Component that emitted event (e.g., "bot", "interaction")
	RunID     string                 // Run the event belongs to, empty outside a run
	Timestamp time.Time              // When the event occurred
	Data      map[string]interface{} // Event-specific data
}

// EventHandler is a function that processes an event
type EventHandler func(Event)

// SubscriptionID uniquely identifies a subscription
type SubscriptionID int64

// EventBus defines the interface for event pub/sub
type EventBus interface {
	// Subscribe registers a handler for a specific event type
	Subscribe(eventType EventType, handler EventHandler) SubscriptionID

	// Unsubscribe removes a subscription by ID
	Unsubscribe(id SubscriptionID)

	// Publish delivers an event to all subscribers before returning
	Publish(event Event)
}

// Helper functions to create common events

// NewRunStartedEvent creates a run started event
func NewRunStartedEvent(runID string, target int, probability float64, dryRun bool, scale float64) Event {
	return Event{
		Type:      EventTypeRunStarted,
		Source:    "bot",
		RunID:     runID,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"target":      target,
			"probability": probability,
			"dry_run":     dryRun,
			"scale":       scale,
		},
	}
}

// NewRunFinishedEvent creates a completed event, or an aborted one when err is set
func NewRunFinishedEvent(runID string, processed, committed, scrolls int, reason string, err error) Event {
	eventType := EventTypeRunCompleted
	data := map[string]interface{}{
		"processed": processed,
		"committed": committed,
		"scrolls":   scrolls,
		"reason":    reason,
	}
	if err != nil {
		eventType = EventTypeRunAborted
		data["error"] = err.Error()
	}

	return Event{
		Type:      eventType,
		Source:    "bot",
		RunID:     runID,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewElementDisposedEvent records the terminal disposition of one feed element
func NewElementDisposedEvent(runID, disposition string, screenY, invariantY int, detail string) Event {
	data := map[string]interface{}{
		"disposition": disposition,
		"screen_y":    screenY,
		"invariant_y": invariantY,
	}
	if detail != "" {
		data["detail"] = detail
	}

	return Event{
		Type:      EventTypeElementDisposed,
		Source:    "bot",
		RunID:     runID,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewFeedScrolledEvent creates a scroll event
func NewFeedScrolledEvent(runID string, units, pixels, cumulative int) Event {
	return Event{
		Type:      EventTypeFeedScrolled,
		Source:    "bot",
		RunID:     runID,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"units":      units,
			"pixels":     pixels,
			"cumulative": cumulative,
		},
	}
}

// NewInteractionStateEvent records a protocol state transition
func NewInteractionStateEvent(runID, from, to string) Event {
	return Event{
		Type:      EventTypeInteractionState,
		Source:    "interaction",
		RunID:     runID,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"from": from,
			"to":   to,
		},
	}
}

// NewErrorEvent creates an error event
func NewErrorEvent(source, runID string, err error, metadata map[string]interface{}) Event {
	data := map[string]interface{}{
		"error": err.Error(),
	}

	for k, v := range metadata {
		data[k] = v
	}

	return Event{
		Type:      EventTypeError,
		Source:    source,
		RunID:     runID,
		Timestamp: time.Now(),
		Data:      data,
	}
}
