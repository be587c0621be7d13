package drift

import (
	"testing"
	"time"

	"github.com/meshforge/meshforge-maps/pkg/model"
)

func TestFirstObservationProducesNoDrift(t *testing.T) {
	d := New(nil)
	got := d.Observe("node-1", model.NodeSnapshot{Region: "us-west"})
	if got != nil {
		t.Fatalf("expected no drift on first observation, got %v", got)
	}
}

func TestRegionChangeIsCriticalDrift(t *testing.T) {
	d := New(nil)
	d.Observe("node-1", model.NodeSnapshot{Region: "us-west", Role: "CLIENT"})
	got := d.Observe("node-1", model.NodeSnapshot{Region: "us-east", Role: "CLIENT"})

	if len(got) != 1 {
		t.Fatalf("expected exactly one drift, got %d: %v", len(got), got)
	}
	if got[0].Field != "region" || got[0].Severity != model.SeverityCritical {
		t.Fatalf("expected critical region drift, got %+v", got[0])
	}
	if got[0].OldValue != "us-west" || got[0].NewValue != "us-east" {
		t.Fatalf("unexpected old/new values: %+v", got[0])
	}
}

func TestMultipleFieldChangesProduceMultipleDrifts(t *testing.T) {
	d := New(nil)
	d.Observe("node-1", model.NodeSnapshot{Role: "CLIENT", Hardware: "TBEAM", Name: "alpha"})
	got := d.Observe("node-1", model.NodeSnapshot{Role: "ROUTER", Hardware: "HELTEC_V3", Name: "alpha"})

	if len(got) != 2 {
		t.Fatalf("expected 2 drifts (role, hardware), got %d: %v", len(got), got)
	}
	for _, dr := range got {
		if dr.Severity != model.SeverityWarning {
			t.Errorf("expected warning severity for %s, got %v", dr.Field, dr.Severity)
		}
	}
}

func TestUnchangedSnapshotProducesNoDrift(t *testing.T) {
	d := New(nil)
	snap := model.NodeSnapshot{Region: "us-west", Role: "CLIENT"}
	d.Observe("node-1", snap)
	if got := d.Observe("node-1", snap); got != nil {
		t.Fatalf("expected no drift for identical snapshot, got %v", got)
	}
}

func TestSnapshotFromFeatureExtractsTrackedFields(t *testing.T) {
	f := model.Feature{
		ID: "node-1",
		Properties: map[string]interface{}{
			model.PropRegion:   "us-west",
			model.PropRole:     "CLIENT",
			model.PropHardware: "TBEAM",
		},
	}
	snap := SnapshotFromFeature(f)
	if snap.Region != "us-west" || snap.Role != "CLIENT" || snap.Hardware != "TBEAM" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Name != "" {
		t.Fatalf("expected empty name for missing property, got %q", snap.Name)
	}
}

func TestLastSnapshotReturnsMostRecent(t *testing.T) {
	d := New(nil)
	d.Observe("node-1", model.NodeSnapshot{Region: "us-west"})
	d.Observe("node-1", model.NodeSnapshot{Region: "us-east"})

	got, ok := d.LastSnapshot("node-1")
	if !ok || got.Region != "us-east" {
		t.Fatalf("expected last snapshot region us-east, got %+v (ok=%v)", got, ok)
	}
}

func TestHistoryFiltersBySeverityAndSince(t *testing.T) {
	d := New(nil)
	d.Observe("node-1", model.NodeSnapshot{Region: "us-west", Role: "CLIENT"})
	d.Observe("node-1", model.NodeSnapshot{Region: "us-east", Role: "ROUTER"})

	all := d.History(time.Time{}, "")
	if len(all) != 2 {
		t.Fatalf("expected 2 recorded drifts, got %d", len(all))
	}
	if all[0].Field != "role" {
		t.Fatalf("expected newest-first order, got %+v", all[0])
	}

	critical := d.History(time.Time{}, model.SeverityCritical)
	if len(critical) != 1 || critical[0].Field != "region" {
		t.Fatalf("expected 1 critical (region) drift, got %+v", critical)
	}

	future := d.History(time.Now().Add(time.Hour), "")
	if len(future) != 0 {
		t.Fatalf("expected no drifts after a future cutoff, got %d", len(future))
	}
}
