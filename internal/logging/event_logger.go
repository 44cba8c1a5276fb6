package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"jordanella.com/feed-liker/internal/events"
)

// EventLogger subscribes to the event bus and writes every run event to a file
type EventLogger struct {
	logger          *Logger
	eventBus        events.EventBus
	subscriptionIDs []events.SubscriptionID
	logFile         *os.File
}

// NewEventLogger creates events_<timestamp>.log in logDir and subscribes to all event types
func NewEventLogger(eventBus events.EventBus, logDir string) (*EventLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(logDir, fmt.Sprintf("events_%s.log", timestamp))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	el := NewEventLoggerWithLogger(eventBus, NewLogger("EventLogger").SetOutput(logFile))
	el.logFile = logFile
	return el, nil
}

// NewEventLoggerWithLogger subscribes to all event types and writes through logger
func NewEventLoggerWithLogger(eventBus events.EventBus, logger *Logger) *EventLogger {
	el := &EventLogger{
		logger:   logger,
		eventBus: eventBus,
	}

	for _, eventType := range events.AllTypes {
		el.subscriptionIDs = append(el.subscriptionIDs, eventBus.Subscribe(eventType, el.handleEvent))
	}

	return el
}

// handleEvent handles incoming events and logs them
func (el *EventLogger) handleEvent(event events.Event) {
	context := Fields{
		"source": event.Source,
	}
	if event.RunID != "" {
		context["run_id"] = event.RunID
	}
	for k, v := range event.Data {
		context[k] = v
	}

	if event.Type == events.EventTypeError || event.Type == events.EventTypeRunAborted {
		el.logger.WarnWithContext(fmt.Sprintf("Event: %s", event.Type), context)
		return
	}
	el.logger.InfoWithContext(fmt.Sprintf("Event: %s", event.Type), context)
}

// Close unsubscribes and closes the log file
func (el *EventLogger) Close() error {
	for _, id := range el.subscriptionIDs {
		el.eventBus.Unsubscribe(id)
	}
	el.subscriptionIDs = nil

	if el.logFile != nil {
		return el.logFile.Close()
	}
	return nil
}
