package laser

import (
	"log/slog"
	"sync"
)

// Event types published by the controller.
const (
	EventConnected    = "connected"
	EventDisconnected = "disconnected"
	EventSnapshot     = "snapshot"
	EventFault        = "fault"
	EventReconciled   = "reconciled"
)

// Event is one controller notification. Snapshot carries the device state
// for EventSnapshot; the other types describe themselves in Data.
type Event struct {
	Type     string         `json:"type"`
	Snapshot *DeviceInfo    `json:"snapshot,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// EventHandler receives controller events.
type EventHandler func(Event)

// subscription pairs a handler with the event type it wants; an empty type
// matches everything.
type subscription struct {
	id      uint64
	typ     string
	handler EventHandler
}

// EventBus fans controller events out to subscribers: the snapshot poller
// feeds it, the web and MQTT layers listen.
type EventBus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	logger *slog.Logger
}

// NewEventBus creates an empty bus.
func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{logger: logger}
}

// On registers a handler for one event type. Returns an unsubscribe
// function.
func (eb *EventBus) On(eventType string, handler EventHandler) func() {
	return eb.subscribe(eventType, handler)
}

// OnAll registers a handler for every event type. Returns an unsubscribe
// function.
func (eb *EventBus) OnAll(handler EventHandler) func() {
	return eb.subscribe("", handler)
}

func (eb *EventBus) subscribe(typ string, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	id := eb.nextID
	eb.nextID++
	eb.subs = append(eb.subs, subscription{id: id, typ: typ, handler: handler})
	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		for i, s := range eb.subs {
			if s.id == id {
				eb.subs = append(eb.subs[:i], eb.subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers the event to every matching subscriber in subscription
// order. Handlers run synchronously on the emitter's goroutine; the
// controller always releases its session mutex before emitting, so a
// handler may call back into it. A panicking handler is recovered.
func (eb *EventBus) Emit(event Event) {
	eb.mu.RLock()
	matched := make([]EventHandler, 0, len(eb.subs))
	for _, s := range eb.subs {
		if s.typ == "" || s.typ == event.Type {
			matched = append(matched, s.handler)
		}
	}
	eb.mu.RUnlock()

	for _, h := range matched {
		eb.dispatch(event, h)
	}
}

func (eb *EventBus) dispatch(event Event, h EventHandler) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error("event handler panic", "type", event.Type, "panic", r)
		}
	}()
	h(event)
}
