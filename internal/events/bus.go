// Package events carries the agent's internal happenings: alerts and
// issues raised by the monitor, decisions as they are emitted and
// executed, shipments completing. Subscribers observe without being
// able to stall the coordination loop.
package events

import (
	"sync"
	"time"
)

// Type labels what happened.
type Type string

const (
	TypeAlertRaised       Type = "alert_raised"
	TypeIssueRaised       Type = "issue_raised"
	TypeDecisionEmitted   Type = "decision_emitted"
	TypeDecisionExecuted  Type = "decision_executed"
	TypeDecisionFailed    Type = "decision_failed"
	TypeShipmentCompleted Type = "shipment_completed"
	TypeConfigReloaded    Type = "config_reloaded"
)

// Event is one observation with loosely structured detail. Well-known
// keys (decision_id, shipment_id, warehouse_id, route_id) are lifted
// into dedicated journal columns downstream.
type Event struct {
	Type Type
	At   time.Time
	Data map[string]any
}

// Subscriber receives events on a dedicated goroutine.
type Subscriber func(Event)

// Bus is a non-blocking publish/subscribe fanout. Each subscriber gets
// a buffered channel; when a subscriber falls behind, its events are
// dropped rather than stalling the publisher.
type Bus struct {
	mu         sync.RWMutex
	byType     map[Type][]chan Event
	all        []chan Event
	bufferSize int
}

// NewBus creates a bus with the given per-subscriber buffer.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Bus{
		byType:     make(map[Type][]chan Event),
		bufferSize: bufferSize,
	}
}

// Subscribe registers fn for the given event types, or for every event
// when no types are named. It returns an unsubscribe function.
func (b *Bus) Subscribe(fn Subscriber, types ...Type) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if len(types) == 0 {
		b.all = append(b.all, ch)
	} else {
		for _, t := range types {
			b.byType[t] = append(b.byType[t], ch)
		}
	}

	go func() {
		for event := range ch {
			func() {
				// A panicking subscriber must not take the bus down.
				defer func() { recover() }()
				fn(event)
			}()
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		removed := false
		b.all = removeChannel(b.all, ch, &removed)
		for _, t := range types {
			b.byType[t] = removeChannel(b.byType[t], ch, &removed)
		}
		if removed {
			close(ch)
		}
	}
}

func removeChannel(subs []chan Event, target chan Event, removed *bool) []chan Event {
	for i, ch := range subs {
		if ch == target {
			*removed = true
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

// Publish delivers to every matching subscriber without blocking. A
// full subscriber buffer drops the event for that subscriber only.
func (b *Bus) Publish(t Type, data map[string]any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{
		Type: t,
		At:   time.Now().UTC(),
		Data: data,
	}

	for _, ch := range b.byType[t] {
		select {
		case ch <- event:
		default:
		}
	}
	for _, ch := range b.all {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close shuts every subscriber channel and clears the registry.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	closed := map[chan Event]bool{}
	for t, subs := range b.byType {
		for _, ch := range subs {
			if !closed[ch] {
				closed[ch] = true
				close(ch)
			}
		}
		delete(b.byType, t)
	}
	for _, ch := range b.all {
		if !closed[ch] {
			closed[ch] = true
			close(ch)
		}
	}
	b.all = nil
}
