// Package events provides the in-process event bus used to broadcast
// pipeline, panel and job lifecycle notifications. Handlers run
// synchronously on the publisher's goroutine; the websocket endpoint
// subscribes with a buffered channel so slow clients never stall a
// pipeline run.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies the kind of event being published
type EventType string

const (
	// Pipeline run lifecycle
	RunStarted   EventType = "run_started"
	RunProgress  EventType = "run_progress"
	RunCompleted EventType = "run_completed"
	RunFailed    EventType = "run_failed"

	// Data changes
	PanelUpdated       EventType = "panel_updated"
	CorrelationUpdated EventType = "correlation_updated"

	// Scheduled job lifecycle
	JobStarted   EventType = "job_started"
	JobCompleted EventType = "job_completed"
	JobFailed    EventType = "job_failed"

	// Operations
	BackupCompleted EventType = "backup_completed"
	ErrorOccurred   EventType = "error_occurred"
)

// Event is the unit carried by the bus. Data always holds a generic
// map view of the payload; typed holds the original EventData when the
// event was emitted through EmitTyped.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Module    string
	Data      map[string]interface{}

	typed EventData
}

// GetTypedData returns the typed payload, or nil when the event was
// emitted with a plain map.
func (e *Event) GetTypedData() EventData {
	return e.typed
}

// Handler receives published events. Handlers must not block.
type Handler func(*Event)

// Bus fans events out to subscribers. Subscriptions are keyed by an id
// so callers can unsubscribe, which the websocket endpoint does when a
// client disconnects.
type Bus struct {
	mu       sync.RWMutex
	log      zerolog.Logger
	nextID   int
	byType   map[EventType]map[int]Handler
	wildcard map[int]Handler
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		log:      log.With().Str("component", "event_bus").Logger(),
		byType:   make(map[EventType]map[int]Handler),
		wildcard: make(map[int]Handler),
	}
}

// Subscribe registers a handler for a single event type and returns a
// subscription id for Unsubscribe.
func (b *Bus) Subscribe(t EventType, h Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	if b.byType[t] == nil {
		b.byType[t] = make(map[int]Handler)
	}
	b.byType[t][b.nextID] = h
	return b.nextID
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(h Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.wildcard[b.nextID] = h
	return b.nextID
}

// Unsubscribe removes a subscription by id. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.wildcard, id)
	for _, handlers := range b.byType {
		delete(handlers, id)
	}
}

// Publish delivers the event to all matching handlers synchronously.
// A panicking handler is logged and skipped, never propagated to the
// publisher.
func (b *Bus) Publish(e *Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.byType[e.Type])+len(b.wildcard))
	for _, h := range b.byType[e.Type] {
		handlers = append(handlers, h)
	}
	for _, h := range b.wildcard {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.invoke(h, e)
	}
}

func (b *Bus) invoke(h Handler, e *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Interface("panic", r).
				Str("event_type", string(e.Type)).
				Msg("Event handler panicked")
		}
	}()
	h(e)
}

// Manager is the emission facade handed to services and jobs. It builds
// the Event envelope (timestamp, module, map view) so call sites stay
// one-liners.
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("component", "event_manager").Logger(),
	}
}

// Emit publishes an event with a plain map payload
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	if m == nil || m.bus == nil {
		return
	}

	m.bus.Publish(&Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Module:    module,
		Data:      data,
	})
}

// EmitTyped publishes an event with a typed payload. The payload is
// also converted to a map so subscribers that only read Event.Data
// keep working.
func (m *Manager) EmitTyped(eventType EventType, module string, data EventData) {
	if m == nil || m.bus == nil {
		return
	}

	m.bus.Publish(&Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Module:    module,
		Data:      toMap(data),
		typed:     data,
	})
}
