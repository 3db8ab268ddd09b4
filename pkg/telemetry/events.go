package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event in the SiteStack system.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// RunID is the associated validation run ID, if applicable.
	RunID string `json:"run_id,omitempty"`

	// Stack is the associated stack name, if applicable.
	Stack string `json:"stack,omitempty"`

	// Output is the associated output name, if applicable.
	Output string `json:"output,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeValidationStarted   = "validation.started"
	EventTypeValidationCompleted = "validation.completed"
	EventTypeValidationFailed    = "validation.failed"
	EventTypeOutputsDerived      = "outputs.derived"
	EventTypeMissingField        = "outputs.missing_field"
	EventTypePolicyViolation     = "policy.violation"
	EventTypeTopologyResolved    = "topology.resolved"
	EventTypeWatchReload         = "watch.reload"
	EventTypeError               = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	if cfg.FlushInterval > 0 {
		ep.wg.Add(1)
		go ep.periodicFlush()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil // Event filtered out
		}
	}
	ep.mu.RUnlock()

	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishValidationStarted publishes a validation started event.
func (ep *EventPublisher) PublishValidationStarted(runID, stackName string) error {
	return ep.Publish(Event{
		Type:    EventTypeValidationStarted,
		Source:  "validator",
		RunID:   runID,
		Stack:   stackName,
		Message: fmt.Sprintf("Validation %s started for stack %s", runID, stackName),
		Level:   EventLevelInfo,
	})
}

// PublishValidationCompleted publishes a validation completed event.
func (ep *EventPublisher) PublishValidationCompleted(runID, stackName, status string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeValidationCompleted,
		Source:  "validator",
		RunID:   runID,
		Stack:   stackName,
		Message: fmt.Sprintf("Validation %s completed with status: %s", runID, status),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"status":   status,
			"duration": duration.Seconds(),
		},
	})
}

// PublishValidationFailed publishes a validation failed event.
func (ep *EventPublisher) PublishValidationFailed(runID, stackName, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeValidationFailed,
		Source:  "validator",
		RunID:   runID,
		Stack:   stackName,
		Message: fmt.Sprintf("Validation %s failed: %s", runID, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishOutputsDerived publishes an outputs derived event.
func (ep *EventPublisher) PublishOutputsDerived(stackName, source string, count int) error {
	return ep.Publish(Event{
		Type:    EventTypeOutputsDerived,
		Source:  "deriver",
		Stack:   stackName,
		Message: fmt.Sprintf("Derived %d outputs for stack %s from %s", count, stackName, source),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"source": source,
			"count":  count,
		},
	})
}

// PublishMissingField publishes a missing topology field event.
func (ep *EventPublisher) PublishMissingField(stackName, output, field string) error {
	return ep.Publish(Event{
		Type:    EventTypeMissingField,
		Source:  "deriver",
		Stack:   stackName,
		Output:  output,
		Message: fmt.Sprintf("Output %s for stack %s requires missing field %s", output, stackName, field),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"field": field,
		},
	})
}

// PublishPolicyViolation publishes a policy violation event.
func (ep *EventPublisher) PublishPolicyViolation(stackName, policyName, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypePolicyViolation,
		Source:  "policy_engine",
		Stack:   stackName,
		Message: fmt.Sprintf("Policy violation on stack %s: %s - %s", stackName, policyName, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"policy": policyName,
			"reason": reason,
		},
	})
}

// PublishTopologyResolved publishes a topology resolved event.
func (ep *EventPublisher) PublishTopologyResolved(stackName, source string) error {
	return ep.Publish(Event{
		Type:    EventTypeTopologyResolved,
		Source:  "topology",
		Stack:   stackName,
		Message: fmt.Sprintf("Topology resolved for stack %s from %s", stackName, source),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"source": source,
		},
	})
}

// PublishWatchReload publishes a watch-triggered reload event.
func (ep *EventPublisher) PublishWatchReload(path string) error {
	return ep.Publish(Event{
		Type:    EventTypeWatchReload,
		Source:  "watcher",
		Message: fmt.Sprintf("Configuration change detected: %s", path),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"path": path,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents processes events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
			if len(batch) > 0 {
				ep.flushBatch(batch)
			}
			return
		}
	}
}

// periodicFlush flushes events periodically.
func (ep *EventPublisher) periodicFlush() {
	defer ep.wg.Done()

	ticker := time.NewTicker(ep.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Flushing is driven by the processEvents goroutine
		case <-ep.ctx.Done():
			return
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}

		// Call subscriber in a goroutine to avoid blocking
		go entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByRunID creates a filter that only allows events for a specific run.
func FilterByRunID(runID string) EventFilter {
	return func(event Event) bool {
		return event.RunID == runID
	}
}

// FilterByStack creates a filter that only allows events for a specific stack.
func FilterByStack(stackName string) EventFilter {
	return func(event Event) bool {
		return event.Stack == stackName
	}
}
