package perf

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRecordPollAccumulatesSamples(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	for i := 1; i <= 10; i++ {
		r.RecordPoll("reticulum", time.Duration(i)*time.Millisecond, nil)
	}

	snaps := r.Snapshots()
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}
	if snaps[0].Source != "reticulum" || snaps[0].Count != 10 {
		t.Fatalf("unexpected snapshot: %+v", snaps[0])
	}
	if snaps[0].P50 <= 0 || snaps[0].P99 < snaps[0].P50 {
		t.Fatalf("expected increasing percentiles, got %+v", snaps[0])
	}
}

func TestRecordPollWithErrorStillAccumulates(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.RecordPoll("aredn", 5*time.Millisecond, errors.New("boom"))
	snaps := r.Snapshots()
	if len(snaps) != 1 || snaps[0].Count != 1 {
		t.Fatalf("expected one sample recorded despite error, got %+v", snaps)
	}
}

func TestSnapshotsEmptyWhenNoSamples(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	if snaps := r.Snapshots(); len(snaps) != 0 {
		t.Fatalf("expected no snapshots before any RecordPoll, got %d", len(snaps))
	}
}

func TestRingBufferBoundsMemory(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	for i := 0; i < maxSamplesPerSource+50; i++ {
		r.RecordPoll("hamclock", time.Millisecond, nil)
	}
	snaps := r.Snapshots()
	if snaps[0].Count != maxSamplesPerSource {
		t.Fatalf("expected ring buffer capped at %d, got %d", maxSamplesPerSource, snaps[0].Count)
	}
}

func TestSetNodeAndLinkCountDoesNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	r.SetNodeCount("meshtastic", 42)
	r.SetLinkCount(7)
}
