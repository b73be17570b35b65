package events

import (
	"sync"
	"time"
)

// Event types published by the schedule service.
const (
	AppointmentCreated  = "appointment.created"
	AppointmentMoved    = "appointment.moved"
	AppointmentStatus   = "appointment.status_changed"
	AppointmentDeleted  = "appointment.deleted"
	AppointmentAutoDone = "appointment.auto_completed"
	SlotCreated         = "slot.created"
	SlotDeleted         = "slot.deleted"
	SlotOccurrenceFinal = "slot.occurrence_finalized"
	BillingChanged      = "billing.changed"
)

// Event is a lightweight domain event. OwnerID scopes cache invalidation.
type Event struct {
	Type      string
	OwnerID   string
	EntityID  string
	CreatedAt time.Time
}

// Handler reacts to an event.
type Handler func(event Event)

// Bus provides in-process pub/sub for schedule mutations. Handlers run
// synchronously; the caller decides the concurrency model.
type Bus struct {
	subscribers map[string][]Handler
	all         []Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

// Publish notifies subscribers of the event type.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		handler(event)
	}
}
