package database

import (
	"errors"

	"jordanella.com/feed-liker/internal/events"
	"jordanella.com/feed-liker/internal/logging"
)

// Recorder journals run events as they are published on the bus
type Recorder struct {
	db              *DB
	bus             events.EventBus
	logger          *logging.Logger
	subscriptionIDs []events.SubscriptionID
	failures        int
}

// NewRecorder subscribes the journal to run, disposition and error events
func NewRecorder(db *DB, bus events.EventBus, logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.Discard()
	}
	r := &Recorder{db: db, bus: bus, logger: logger}

	handlers := map[events.EventType]events.EventHandler{
		events.EventTypeRunStarted:      r.onRunStarted,
		events.EventTypeRunCompleted:    r.onRunFinished,
		events.EventTypeRunAborted:      r.onRunFinished,
		events.EventTypeElementDisposed: r.onElementDisposed,
		events.EventTypeError:           r.onError,
	}
	for eventType, handler := range handlers {
		r.subscriptionIDs = append(r.subscriptionIDs, bus.Subscribe(eventType, handler))
	}

	return r
}

// Failures returns how many events could not be written
func (r *Recorder) Failures() int {
	return r.failures
}

// Close unsubscribes from the bus. The database stays open.
func (r *Recorder) Close() {
	for _, id := range r.subscriptionIDs {
		r.bus.Unsubscribe(id)
	}
	r.subscriptionIDs = nil
}

func (r *Recorder) onRunStarted(e events.Event) {
	err := r.db.StartRun(e.RunID,
		intField(e, "target"),
		floatField(e, "probability"),
		boolField(e, "dry_run"),
		floatField(e, "scale"),
		e.Timestamp)
	r.check(e, err)
}

func (r *Recorder) onRunFinished(e events.Event) {
	err := r.db.FinishRun(e.RunID,
		intField(e, "processed"),
		intField(e, "committed"),
		intField(e, "scrolls"),
		stringField(e, "reason"),
		stringField(e, "error"),
		e.Timestamp)
	if errors.Is(err, ErrRunNotFound) {
		// Runs that fail during startup never publish run.started
		err = r.db.RecordUnstartedRun(e.RunID, stringField(e, "reason"), stringField(e, "error"), e.Timestamp)
	}
	r.check(e, err)
}

func (r *Recorder) onElementDisposed(e events.Event) {
	_, err := r.db.RecordDisposition(e.RunID,
		stringField(e, "disposition"),
		intField(e, "screen_y"),
		intField(e, "invariant_y"),
		stringField(e, "detail"),
		e.Timestamp)
	r.check(e, err)
}

func (r *Recorder) onError(e events.Event) {
	_, err := r.db.LogError(e.RunID, e.Source, stringField(e, "error"), e.Timestamp)
	r.check(e, err)
}

// check logs write failures; the run itself is never stopped by the journal
func (r *Recorder) check(e events.Event, err error) {
	if err == nil {
		return
	}
	r.failures++
	r.logger.ErrorWithContext("Failed to journal event", err, logging.Fields{
		"event":  string(e.Type),
		"run_id": e.RunID,
	})
}

func intField(e events.Event, key string) int {
	switch v := e.Data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func floatField(e events.Event, key string) float64 {
	switch v := e.Data[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func boolField(e events.Event, key string) bool {
	v, _ := e.Data[key].(bool)
	return v
}

func stringField(e events.Event, key string) string {
	v, _ := e.Data[key].(string)
	return v
}
