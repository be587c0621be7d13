package history

import (
	"testing"
	"time"

	"github.com/meshforge/meshforge-maps/pkg/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	// Throttling is disabled here and tested explicitly in
	// TestRecordThrottlesRepeatedCallsPerNode; every other test in this
	// file records several observations for the same node in quick
	// wall-clock succession and expects each to land.
	s, err := OpenWithThrottle(":memory:", 0)
	if err != nil {
		t.Fatalf("OpenWithThrottle: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func snr(v float64) *float64 { return &v }

func TestRecordAndTrajectory(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Unix()

	for i := int64(0); i < 3; i++ {
		err := s.Record(model.Observation{
			NodeID: "node-1", Network: model.NetworkMeshtastic,
			Lat: 59.3 + float64(i)*0.001, Lon: 18.0, SNR: snr(5 + float64(i)),
			Timestamp: base + i*60,
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	traj, err := s.Trajectory("node-1", time.Unix(base, 0))
	if err != nil {
		t.Fatalf("Trajectory: %v", err)
	}
	if len(traj) != 3 {
		t.Fatalf("expected 3 observations, got %d", len(traj))
	}
	if traj[0].Timestamp > traj[1].Timestamp || traj[1].Timestamp > traj[2].Timestamp {
		t.Fatalf("expected ascending timestamp order, got %+v", traj)
	}
	if traj[0].SNR == nil || *traj[0].SNR != 5 {
		t.Fatalf("expected first SNR 5, got %+v", traj[0].SNR)
	}
}

func TestTrajectoryFiltersByNode(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().Unix()
	s.Record(model.Observation{NodeID: "node-1", Network: model.NetworkAREDN, Lat: 1, Lon: 1, Timestamp: now})
	s.Record(model.Observation{NodeID: "node-2", Network: model.NetworkAREDN, Lat: 2, Lon: 2, Timestamp: now})

	traj, err := s.Trajectory("node-1", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("Trajectory: %v", err)
	}
	if len(traj) != 1 || traj[0].NodeID != "node-1" {
		t.Fatalf("expected only node-1's observation, got %+v", traj)
	}
}

func TestTrajectorySinceExcludesOlder(t *testing.T) {
	s := openTestStore(t)
	old := time.Now().Add(-2 * time.Hour).Unix()
	recent := time.Now().Unix()
	s.Record(model.Observation{NodeID: "node-1", Network: model.NetworkAREDN, Lat: 1, Lon: 1, Timestamp: old})
	s.Record(model.Observation{NodeID: "node-1", Network: model.NetworkAREDN, Lat: 1, Lon: 1, Timestamp: recent})

	traj, err := s.Trajectory("node-1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Trajectory: %v", err)
	}
	if len(traj) != 1 || traj[0].Timestamp != recent {
		t.Fatalf("expected only the recent observation, got %+v", traj)
	}
}

func TestCountAndPrune(t *testing.T) {
	s := openTestStore(t)
	old := time.Now().Add(-48 * time.Hour).Unix()
	recent := time.Now().Unix()
	s.Record(model.Observation{NodeID: "node-1", Network: model.NetworkAREDN, Lat: 1, Lon: 1, Timestamp: old})
	s.Record(model.Observation{NodeID: "node-1", Network: model.NetworkAREDN, Lat: 1, Lon: 1, Timestamp: recent})

	count, err := s.Count()
	if err != nil || count != 2 {
		t.Fatalf("expected count 2, got %d (err=%v)", count, err)
	}

	removed, err := s.Prune(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 row pruned, got %d", removed)
	}

	count, _ = s.Count()
	if count != 1 {
		t.Fatalf("expected count 1 after prune, got %d", count)
	}
}

func TestRecordThrottlesRepeatedCallsPerNode(t *testing.T) {
	s, err := OpenWithThrottle(":memory:", time.Minute)
	if err != nil {
		t.Fatalf("OpenWithThrottle: %v", err)
	}
	defer s.Close()

	called := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return called }

	base := called.Unix()
	if err := s.Record(model.Observation{NodeID: "node-1", Network: model.NetworkAREDN, Lat: 1, Lon: 1, Timestamp: base}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record(model.Observation{NodeID: "node-1", Network: model.NetworkAREDN, Lat: 2, Lon: 2, Timestamp: base + 1}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	count, _ := s.Count()
	if count != 1 {
		t.Fatalf("expected throttled second call to be a no-op, got count %d", count)
	}

	called = called.Add(time.Minute + time.Second)
	if err := s.Record(model.Observation{NodeID: "node-1", Network: model.NetworkAREDN, Lat: 3, Lon: 3, Timestamp: base + 61}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	count, _ = s.Count()
	if count != 2 {
		t.Fatalf("expected recording to resume once throttle window passed, got count %d", count)
	}
}

func TestTrackedNodesSummarizesObservationCounts(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	s.Record(model.Observation{NodeID: "node-1", Network: model.NetworkAREDN, Lat: 1, Lon: 1, Timestamp: base})
	s.Record(model.Observation{NodeID: "node-1", Network: model.NetworkAREDN, Lat: 1, Lon: 1, Timestamp: base + 60})
	s.Record(model.Observation{NodeID: "node-2", Network: model.NetworkAREDN, Lat: 2, Lon: 2, Timestamp: base})

	tracked, err := s.TrackedNodes()
	if err != nil {
		t.Fatalf("TrackedNodes: %v", err)
	}
	if len(tracked) != 2 {
		t.Fatalf("expected 2 tracked nodes, got %d", len(tracked))
	}
	if tracked[0].NodeID != "node-1" || tracked[0].ObservationCount != 2 {
		t.Fatalf("expected node-1 with 2 observations, got %+v", tracked[0])
	}
}

func TestSnapshotReturnsLatestObservationPerNodeAtOrBeforeTimestamp(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	s.Record(model.Observation{NodeID: "node-1", Network: model.NetworkAREDN, Lat: 1, Lon: 1, Timestamp: base})
	s.Record(model.Observation{NodeID: "node-1", Network: model.NetworkAREDN, Lat: 2, Lon: 2, Timestamp: base + 60})
	s.Record(model.Observation{NodeID: "node-1", Network: model.NetworkAREDN, Lat: 3, Lon: 3, Timestamp: base + 120})

	snap, err := s.Snapshot(time.Unix(base+60, 0))
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap) != 1 || snap[0].Lat != 2 {
		t.Fatalf("expected the observation at base+60, got %+v", snap)
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().Unix()
	s.Record(model.Observation{NodeID: "node-1", Network: model.NetworkAREDN, Lat: 1, Lon: 1, Timestamp: base})
	s.Record(model.Observation{NodeID: "node-2", Network: model.NetworkAREDN, Lat: 2, Lon: 2, Timestamp: base + 10})

	recent, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].NodeID != "node-2" {
		t.Fatalf("expected node-2 first, got %+v", recent)
	}
}
