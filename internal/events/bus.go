package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Inventory event actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// subscriberBuffer is the per-subscriber channel depth. A slow subscriber
// drops events rather than blocking the publisher.
const subscriberBuffer = 64

// DeviceSnapshot is the device state carried inside an event.
//
// It deliberately excludes the SSH password: events fan out to WebSocket
// clients and the MQTT broker, neither of which should see credentials.
type DeviceSnapshot struct {
	ID         int64  `json:"id"`
	DeviceType string `json:"deviceType"`
	DeviceID   string `json:"deviceId"`
	CurrentOTA string `json:"currentOTA"`
	IPAddress  string `json:"ipAddress"`
}

// Event describes a single inventory change.
type Event struct {
	// ID is a unique event identifier (evt- prefix + UUID).
	ID string `json:"id"`

	// Action is one of ActionCreated, ActionUpdated, ActionDeleted.
	Action string `json:"action"`

	// Device is the state of the device after the change. For deletes it
	// is the last known state before removal.
	Device DeviceSnapshot `json:"device"`

	// Actor is the username that performed the change.
	Actor string `json:"actor"`

	// OccurredAt is when the change was committed.
	OccurredAt time.Time `json:"occurredAt"`
}

// NewEvent creates an Event with a fresh ID and timestamp.
func NewEvent(action string, device DeviceSnapshot, actor string) Event {
	return Event{
		ID:         "evt-" + uuid.New().String(),
		Action:     action,
		Device:     device,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	}
}

// Bus is an in-process publish/subscribe fan-out for inventory events.
//
// Publishing never blocks: each subscriber has a buffered channel, and
// events are dropped for subscribers that cannot keep up. The inventory
// write path must not stall because a WebSocket client went idle.
//
// All methods are safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[int]chan Event),
	}
}

// Subscribe registers a new subscriber.
//
// Returns:
//   - <-chan Event: Channel delivering published events
//   - func(): Cancel function; must be called to release the subscription.
//     The channel is closed on cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Publish delivers an event to all current subscribers.
//
// Delivery is best-effort: subscribers with full buffers are skipped.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			// Subscriber buffer full; drop rather than block.
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close shuts down the bus and closes all subscriber channels.
// Publish and Subscribe become no-ops after Close.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
