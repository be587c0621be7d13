package lease

import (
	"testing"
	"time"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	m := New(time.Minute)

	if err := m.Acquire("host-a", "worker-1"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := m.Acquire("host-a", "worker-2"); err != ErrHeld {
		t.Fatalf("expected ErrHeld for second holder, got %v", err)
	}
	if err := m.Release("host-a", "worker-2"); err != ErrNotHolder {
		t.Fatalf("expected ErrNotHolder releasing someone else's lease, got %v", err)
	}
	if err := m.Release("host-a", "worker-1"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := m.Acquire("host-a", "worker-2"); err != nil {
		t.Fatalf("expected acquire to succeed after release, got %v", err)
	}
}

func TestAcquireIdempotentForSameHolder(t *testing.T) {
	m := New(time.Minute)
	if err := m.Acquire("host-a", "worker-1"); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if err := m.Acquire("host-a", "worker-1"); err != nil {
		t.Fatalf("renewal Acquire failed: %v", err)
	}
}

func TestExpiredLeaseCanBeReacquired(t *testing.T) {
	m := New(10 * time.Millisecond)
	fakeNow := time.Now()
	m.nowFunc = func() time.Time { return fakeNow }

	if err := m.Acquire("host-a", "worker-1"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	fakeNow = fakeNow.Add(20 * time.Millisecond)
	if err := m.Acquire("host-a", "worker-2"); err != nil {
		t.Fatalf("expected acquire after expiry to succeed, got %v", err)
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	m := New(10 * time.Millisecond)
	fakeNow := time.Now()
	m.nowFunc = func() time.Time { return fakeNow }

	m.Acquire("host-a", "worker-1")
	fakeNow = fakeNow.Add(20 * time.Millisecond)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("expected 1 swept entry, got %d", n)
	}
	if _, ok := m.Holder("host-a"); ok {
		t.Fatalf("expected no holder after sweep")
	}
}
