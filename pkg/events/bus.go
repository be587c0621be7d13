// Package events implements the typed publish/subscribe bus that decouples
// collectors, the aggregator, and delivery-plane components (WebSocket
// broadcaster, MQTT publisher, alert engine) from each other.
package events

import (
	"sync"
	"time"
)

// Topic identifies a class of event. Subscribers may also use the
// wildcard topic "*" to receive every event regardless of topic.
type Topic string

const (
	TopicFeatureUpdated Topic = "feature.updated"
	TopicNodeOnline     Topic = "node.online"
	TopicNodeOffline    Topic = "node.offline"
	TopicDrift          Topic = "node.drift"
	TopicAlert          Topic = "alert.fired"
	TopicAlertCleared   Topic = "alert.cleared"
	TopicHealthChanged  Topic = "node.health_changed"
	TopicServiceUp      Topic = "service.up"
	TopicServiceDown    Topic = "service.down"

	Wildcard Topic = "*"
)

// Event is a single bus message. Payload carries the topic-specific body
// (e.g. a model.Feature, model.Alert, or model.Drift).
type Event struct {
	Topic     Topic       `json:"topic"`
	NodeID    string      `json:"node_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Handler receives delivered events. A Handler must not block for long;
// slow consumers should copy the event and process it on their own
// goroutine.
type Handler func(Event)

type subscription struct {
	id      uint64
	topic   Topic
	handler Handler
}

// Stats carries the bus's running delivery counters. Reset mutates the
// Bus's own counters in place (see Bus.Reset) rather than replacing
// them, so any caller holding a stale Stats snapshot never observes a
// different instance than concurrent publishers do.
type Stats struct {
	TotalPublished int64 `json:"total_published"`
	TotalDelivered int64 `json:"total_delivered"`
	TotalErrors    int64 `json:"total_errors"`
}

// Bus is a synchronous, in-process event dispatcher. Publish delivers to
// every matching subscriber on the caller's goroutine; a panicking handler
// is recovered so one misbehaving subscriber cannot take down the
// publisher or other subscribers.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
	stats  Stats

	onPanic func(topic Topic, r interface{})
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers handler for topic (or Wildcard for every topic) and
// returns an ID usable with Unsubscribe.
func (b *Bus) Subscribe(topic Topic, handler Handler) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, topic: topic, handler: handler})
	return id
}

// Unsubscribe removes a previously registered subscription by ID. It is a
// no-op if the ID is unknown (already unsubscribed).
func (b *Bus) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// SetPanicHandler installs a callback invoked when a subscriber handler
// panics. Intended for logging; may be nil to silently recover.
func (b *Bus) SetPanicHandler(fn func(topic Topic, r interface{})) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onPanic = fn
}

// Publish delivers event to every subscriber registered for its topic or
// for Wildcard. Delivery order matches subscription order.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	matched := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.topic == event.Topic || s.topic == Wildcard {
			matched = append(matched, s)
		}
	}
	onPanic := b.onPanic
	b.mu.RUnlock()

	b.mu.Lock()
	b.stats.TotalPublished++
	b.mu.Unlock()

	for _, s := range matched {
		b.deliver(s, event, onPanic)
	}
}

func (b *Bus) deliver(s subscription, event Event, onPanic func(Topic, interface{})) {
	failed := false
	defer func() {
		if r := recover(); r != nil {
			failed = true
			if onPanic != nil {
				onPanic(event.Topic, r)
			}
		}
		b.mu.Lock()
		if failed {
			b.stats.TotalErrors++
		} else {
			b.stats.TotalDelivered++
		}
		b.mu.Unlock()
	}()
	s.handler(event)
}

// Stats returns a snapshot of the bus's running delivery counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stats
}

// Reset zeroes the bus's counters in place.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats = Stats{}
}

// SubscriberCount returns the number of active subscriptions, optionally
// filtered to a single topic (pass "" for the total across all topics).
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if topic == "" {
		return len(b.subs)
	}
	n := 0
	for _, s := range b.subs {
		if s.topic == topic {
			n++
		}
	}
	return n
}
