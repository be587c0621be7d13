package collector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseReticulumStatus(t *testing.T) {
	snr := 6.5
	rssi := -70.0
	lat := 47.6
	lon := -122.3
	status := reticulumStatus{
		Interfaces: []reticulumInterface{
			{
				Name:     "rnode-1",
				Hash:     "DEADBEEFCAFE0001",
				Online:   true,
				SNR:      &snr,
				RSSI:     &rssi,
				Lat:      &lat,
				Lon:      &lon,
				PeerHash: "DEADBEEFCAFE0002",
			},
			{
				// no hash, should be skipped
				Name: "unnamed",
			},
		},
	}

	result := parseReticulumStatus(status)
	if len(result.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(result.Features))
	}
	f := result.Features[0]
	if f.ID != "deadbeefcafe0001" {
		t.Fatalf("expected canonicalized node id, got %q", f.ID)
	}
	if f.Geometry == nil || f.Geometry.Lat != lat {
		t.Fatalf("expected geometry to carry parsed lat/lon, got %+v", f.Geometry)
	}
	if v, ok := f.GetFloat("snr"); !ok || v != snr {
		t.Fatalf("expected snr property %v, got %v (%v)", snr, v, ok)
	}

	if len(result.Links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(result.Links))
	}
	if result.Links[0].Target != "deadbeefcafe0002" {
		t.Fatalf("expected canonicalized peer id, got %q", result.Links[0].Target)
	}
}

func TestParseReticulumStatusInvalidCoordinatesDropsGeometry(t *testing.T) {
	nullLat, nullLon := 0.0, 0.0
	status := reticulumStatus{
		Interfaces: []reticulumInterface{
			{Name: "rnode-2", Hash: "abc123", Lat: &nullLat, Lon: &nullLon},
		},
	}
	result := parseReticulumStatus(status)
	if len(result.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(result.Features))
	}
	if result.Features[0].Geometry != nil {
		t.Fatalf("expected null island coordinates to be dropped, got %+v", result.Features[0].Geometry)
	}
}

func TestReticulumPollRunsCommand(t *testing.T) {
	dir := t.TempDir()
	statusFile := filepath.Join(dir, "status.json")
	statusJSON := `{"interfaces":[{"name":"rnode-1","hash":"deadbeefcafe0001","online":true}]}`
	if err := os.WriteFile(statusFile, []byte(statusJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	cachePath := filepath.Join(dir, "cache.json")
	c := NewReticulumCollector([]string{"cat", statusFile}, 5*time.Second, cachePath, "")

	result, err := c.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(result.Features) != 1 || result.Features[0].ID != "deadbeefcafe0001" {
		t.Fatalf("unexpected result %+v", result)
	}

	// A successful run persists the output for later fallback.
	if _, err := os.Stat(cachePath); err != nil {
		t.Fatalf("expected cache file after successful poll: %v", err)
	}
}

func TestReticulumPollFallsBackToCache(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")
	cached := `{"interfaces":[{"name":"rnode-cached","hash":"abc123","online":false}]}`
	if err := os.WriteFile(cachePath, []byte(cached), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewReticulumCollector([]string{filepath.Join(dir, "no-such-binary")}, time.Second, cachePath, "")

	result, err := c.Poll(context.Background())
	if err != nil {
		t.Fatalf("expected cache fallback to succeed, got %v", err)
	}
	if len(result.Features) != 1 || result.Features[0].ID != "abc123" {
		t.Fatalf("unexpected fallback result %+v", result)
	}
}

func TestReticulumPollFailsWithoutCommandOrCache(t *testing.T) {
	dir := t.TempDir()
	c := NewReticulumCollector([]string{filepath.Join(dir, "no-such-binary")}, time.Second, "", "")
	if _, err := c.Poll(context.Background()); err == nil {
		t.Fatal("expected error when command fails and no cache exists")
	}
}
