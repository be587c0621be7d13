package events

import (
	"testing"
	"time"
)

func TestPublishDeliversToMatchingTopic(t *testing.T) {
	b := New()
	var got Event
	b.Subscribe(TopicAlert, func(e Event) { got = e })
	b.Subscribe(TopicDrift, func(e Event) { t.Fatalf("drift handler should not fire") })

	want := Event{Topic: TopicAlert, NodeID: "n1", Timestamp: time.Now(), Payload: "x"}
	b.Publish(want)

	if got.NodeID != "n1" {
		t.Fatalf("expected delivery to alert subscriber, got %+v", got)
	}
}

func TestWildcardReceivesEverything(t *testing.T) {
	b := New()
	count := 0
	b.Subscribe(Wildcard, func(e Event) { count++ })

	b.Publish(Event{Topic: TopicAlert})
	b.Publish(Event{Topic: TopicDrift})

	if count != 2 {
		t.Fatalf("expected wildcard to see 2 events, got %d", count)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	count := 0
	id := b.Subscribe(TopicAlert, func(e Event) { count++ })
	b.Publish(Event{Topic: TopicAlert})
	b.Unsubscribe(id)
	b.Publish(Event{Topic: TopicAlert})

	if count != 1 {
		t.Fatalf("expected delivery only before unsubscribe, got count %d", count)
	}
}

func TestPanicInHandlerIsRecovered(t *testing.T) {
	b := New()
	var panicTopic Topic
	b.SetPanicHandler(func(topic Topic, r interface{}) { panicTopic = topic })
	b.Subscribe(TopicAlert, func(e Event) { panic("boom") })

	secondCalled := false
	b.Subscribe(TopicAlert, func(e Event) { secondCalled = true })

	b.Publish(Event{Topic: TopicAlert})

	if panicTopic != TopicAlert {
		t.Fatalf("expected panic handler invoked with TopicAlert, got %v", panicTopic)
	}
	if !secondCalled {
		t.Fatalf("expected second subscriber to still be called after first panics")
	}
}

func TestStatsCountsPublishDeliverAndErrors(t *testing.T) {
	b := New()
	b.Subscribe(TopicAlert, func(e Event) {})
	b.Subscribe(TopicAlert, func(e Event) { panic("boom") })

	b.Publish(Event{Topic: TopicAlert})

	stats := b.Stats()
	if stats.TotalPublished != 1 {
		t.Fatalf("expected 1 publish, got %d", stats.TotalPublished)
	}
	if stats.TotalDelivered != 1 {
		t.Fatalf("expected 1 successful delivery, got %d", stats.TotalDelivered)
	}
	if stats.TotalErrors != 1 {
		t.Fatalf("expected 1 delivery error, got %d", stats.TotalErrors)
	}
}

func TestResetZeroesStatsInPlace(t *testing.T) {
	b := New()
	b.Subscribe(TopicAlert, func(e Event) {})
	b.Publish(Event{Topic: TopicAlert})

	b.Reset()

	if stats := b.Stats(); stats != (Stats{}) {
		t.Fatalf("expected zeroed stats after Reset, got %+v", stats)
	}
}

func TestSubscriberCount(t *testing.T) {
	b := New()
	b.Subscribe(TopicAlert, func(e Event) {})
	b.Subscribe(TopicAlert, func(e Event) {})
	b.Subscribe(TopicDrift, func(e Event) {})

	if n := b.SubscriberCount(TopicAlert); n != 2 {
		t.Fatalf("expected 2 alert subscribers, got %d", n)
	}
	if n := b.SubscriberCount(""); n != 3 {
		t.Fatalf("expected 3 total subscribers, got %d", n)
	}
}
