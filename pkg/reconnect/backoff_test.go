package reconnect

import (
	"testing"
	"time"
)

func TestStrategyGrowsAndCaps(t *testing.T) {
	s := New(Config{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, BackoffFactor: 2, Jitter: 0})

	d1 := s.Next()
	d2 := s.Next()
	d3 := s.Next()
	d4 := s.Next()

	if d1 != 10*time.Millisecond {
		t.Fatalf("d1 = %v, want 10ms", d1)
	}
	if d2 != 20*time.Millisecond {
		t.Fatalf("d2 = %v, want 20ms", d2)
	}
	if d3 != 40*time.Millisecond {
		t.Fatalf("d3 = %v, want 40ms", d3)
	}
	if d4 != 50*time.Millisecond {
		t.Fatalf("d4 = %v, want capped at 50ms, got %v", d4, d4)
	}
}

func TestStrategyJitterBounded(t *testing.T) {
	s := New(Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2, Jitter: 0.5})
	for i := 0; i < 20; i++ {
		d := s.Next()
		if d < 0 {
			t.Fatalf("negative delay: %v", d)
		}
	}
}

func TestStrategyReset(t *testing.T) {
	s := New(DefaultConfig())
	s.Next()
	s.Next()
	if s.Attempt() != 2 {
		t.Fatalf("expected attempt 2, got %d", s.Attempt())
	}
	s.Reset()
	if s.Attempt() != 0 {
		t.Fatalf("expected attempt reset to 0, got %d", s.Attempt())
	}
}
