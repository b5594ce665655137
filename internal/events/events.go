package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hamichlol/wikiup/internal/constants"
)

// EventType defines the types of events that can be emitted
type EventType string

const (
	EventProgress EventType = "progress"
	EventStatus   EventType = "status"
	EventComplete EventType = "complete"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// ProgressEvent reports overall session progress after each file.
type ProgressEvent struct {
	BaseEvent
	SessionID string
	Percent   int // 0 to 100
	Done      int
	Total     int
}

// StatusEvent carries a free-text status line for the user.
type StatusEvent struct {
	BaseEvent
	SessionID string
	Message   string
}

// FileOutcome is the event-side view of one file's result.
// It mirrors upload.Result without importing it.
type FileOutcome struct {
	Path    string
	Target  string
	Success bool
	Message string
}

// CompleteEvent is published exactly once per session, after the last status.
type CompleteEvent struct {
	BaseEvent
	SessionID string
	Fatal     bool
	Results   []FileOutcome
	Duration  time.Duration
}

// Messages returns the human-readable line of every outcome, in order.
func (e *CompleteEvent) Messages() []string {
	out := make([]string, len(e.Results))
	for i, r := range e.Results {
		out[i] = r.Message
	}
	return out
}

// EventBus manages event subscriptions and publishing
type EventBus struct {
	subscribers   map[EventType][]chan Event
	all           []chan Event // Subscribers to all events
	mu            sync.RWMutex
	bufferSize    int
	blocking      bool
	closed        bool
	droppedEvents atomic.Int64 // Count of dropped events due to full buffers
}

// NewEventBus creates a new event bus with specified buffer size
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = constants.EventBusDefaultBuffer
	}
	if bufferSize > constants.EventBusMaxBuffer {
		bufferSize = constants.EventBusMaxBuffer
	}
	return &EventBus{
		subscribers: make(map[EventType][]chan Event),
		all:         make([]chan Event, 0),
		bufferSize:  bufferSize,
	}
}

// NewBlockingEventBus creates a bus whose Publish waits for room in every
// subscriber's buffer instead of dropping. Subscribers must keep reading
// until the bus is closed or the last event has arrived.
func NewBlockingEventBus(bufferSize int) *EventBus {
	eb := NewEventBus(bufferSize)
	eb.blocking = true
	return eb
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], ch)
	return ch
}

// SubscribeAll creates a subscription to all events
func (eb *EventBus) SubscribeAll() <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, eb.bufferSize)
	eb.all = append(eb.all, ch)
	return ch
}

// Publish sends an event to all subscribers. On a non-blocking bus, events
// for a subscriber whose buffer is full are dropped and counted.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, ch := range eb.subscribers[event.Type()] {
		eb.send(ch, event)
	}

	for _, ch := range eb.all {
		eb.send(ch, event)
	}
}

func (eb *EventBus) send(ch chan Event, event Event) {
	if eb.blocking {
		ch <- event
		return
	}
	select {
	case ch <- event:
	default:
		eb.droppedEvents.Add(1)
	}
}

// Close shuts down the event bus and closes all channels
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, channels := range eb.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}

	for _, ch := range eb.all {
		close(ch)
	}
}

// PublishProgress is a convenience method for publishing progress events
func (eb *EventBus) PublishProgress(sessionID string, percent, done, total int) {
	eb.Publish(&ProgressEvent{
		BaseEvent: BaseEvent{
			EventType: EventProgress,
			Time:      time.Now(),
		},
		SessionID: sessionID,
		Percent:   percent,
		Done:      done,
		Total:     total,
	})
}

// PublishStatus is a convenience method for publishing status events
func (eb *EventBus) PublishStatus(sessionID, message string) {
	eb.Publish(&StatusEvent{
		BaseEvent: BaseEvent{
			EventType: EventStatus,
			Time:      time.Now(),
		},
		SessionID: sessionID,
		Message:   message,
	})
}

// PublishComplete is a convenience method for publishing the completion event
func (eb *EventBus) PublishComplete(sessionID string, fatal bool, results []FileOutcome, d time.Duration) {
	eb.Publish(&CompleteEvent{
		BaseEvent: BaseEvent{
			EventType: EventComplete,
			Time:      time.Now(),
		},
		SessionID: sessionID,
		Fatal:     fatal,
		Results:   results,
		Duration:  d,
	})
}

// Unsubscribe removes a subscription channel from a specific event type
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	subscribers := eb.subscribers[eventType]
	for i, subCh := range subscribers {
		if subCh == ch {
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// GetDroppedEventCount returns the total number of events dropped due to full buffers
func (eb *EventBus) GetDroppedEventCount() int64 {
	return eb.droppedEvents.Load()
}
