package analytics

import (
	"testing"
	"time"

	"github.com/meshforge/meshforge-maps/pkg/history"
	"github.com/meshforge/meshforge-maps/pkg/model"
)

func snr(v float64) *float64 { return &v }

func openTestStore(t *testing.T) *history.Store {
	t.Helper()
	s, err := history.OpenWithThrottle(":memory:", 0)
	if err != nil {
		t.Fatalf("OpenWithThrottle: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNetworkGrowthTrendDetectsUpwardSlope(t *testing.T) {
	store := openTestStore(t)
	a := New(store)

	base := time.Now().Add(-3 * time.Hour).Unix()
	nodeCounts := []int{2, 4, 6} // one bucket per hour, growing
	for hour, count := range nodeCounts {
		for n := 0; n < count; n++ {
			store.Record(model.Observation{
				NodeID:  nodeIDFor(n),
				Network: model.NetworkMeshtastic,
				Lat:     1, Lon: 1,
				Timestamp: base + int64(hour)*3600 + int64(n),
			})
		}
	}

	trend, err := a.NetworkGrowthTrend(time.Unix(base, 0), time.Hour)
	if err != nil {
		t.Fatalf("NetworkGrowthTrend: %v", err)
	}
	if trend.Slope <= 0 {
		t.Fatalf("expected positive growth slope, got %+v", trend)
	}
}

func TestNetworkGrowthTrendErrorsWithTooFewBuckets(t *testing.T) {
	store := openTestStore(t)
	a := New(store)
	store.Record(model.Observation{NodeID: "node-1", Network: model.NetworkMeshtastic, Lat: 1, Lon: 1, Timestamp: time.Now().Unix()})

	if _, err := a.NetworkGrowthTrend(time.Now().Add(-time.Hour), time.Hour); err == nil {
		t.Fatalf("expected error for insufficient buckets")
	}
}

func TestSignalTrendDetectsDegradation(t *testing.T) {
	store := openTestStore(t)
	a := New(store)

	base := time.Now().Add(-time.Hour).Unix()
	for i := int64(0); i < 10; i++ {
		store.Record(model.Observation{
			NodeID: "node-1", Network: model.NetworkMeshtastic,
			Lat: 1, Lon: 1, SNR: snr(10 - float64(i)),
			Timestamp: base + i*60,
		})
	}

	trend, err := a.SignalTrend("node-1", time.Unix(base, 0))
	if err != nil {
		t.Fatalf("SignalTrend: %v", err)
	}
	if trend.Slope >= 0 {
		t.Fatalf("expected negative (degrading) signal slope, got %+v", trend)
	}
}

func TestSignalTrendErrorsWithNoSNRSamples(t *testing.T) {
	store := openTestStore(t)
	a := New(store)
	store.Record(model.Observation{NodeID: "node-1", Network: model.NetworkMeshtastic, Lat: 1, Lon: 1, Timestamp: time.Now().Unix()})

	if _, err := a.SignalTrend("node-1", time.Now().Add(-time.Hour)); err == nil {
		t.Fatalf("expected error when fewer than 2 SNR samples are present")
	}
}

func nodeIDFor(n int) string {
	letters := "abcdefghijklmnopqrstuvwxyz"
	return "node-" + string(letters[n%len(letters)])
}
