package model

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFeatureGeoJSONRoundTrip(t *testing.T) {
	orig := Feature{
		ID:       "deadbeef",
		Geometry: &Point{Lat: 47.6, Lon: -122.3},
		Properties: map[string]interface{}{
			PropName:    "node-a",
			PropNetwork: string(NetworkMeshtastic),
		},
	}

	gf := orig.ToGeoJSON()
	if gf.Type != "Feature" || gf.ID != orig.ID {
		t.Fatalf("unexpected GeoJSON envelope: %+v", gf)
	}

	data, err := json.Marshal(gf)
	if err != nil {
		t.Fatalf("round trip marshal failed: %v", err)
	}

	back, err := FeatureFromGeoJSON(data)
	if err != nil {
		t.Fatalf("FeatureFromGeoJSON failed: %v", err)
	}
	if diff := cmp.Diff(orig, back); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestFeatureCollectionSkipsUngeolocated(t *testing.T) {
	features := []Feature{
		{ID: "a", Geometry: &Point{Lat: 1, Lon: 1}, Properties: map[string]interface{}{}},
		{ID: "b", Geometry: nil, Properties: map[string]interface{}{}},
	}
	fc := FeatureCollectionToGeoJSON(features)
	if len(fc.Features) != 1 || fc.Features[0].ID != "a" {
		t.Fatalf("expected only geolocated feature, got %+v", fc.Features)
	}
}

func TestTrajectoryToGeoJSON(t *testing.T) {
	obs := []Observation{
		{NodeID: "a", Lat: 1, Lon: 2},
		{NodeID: "a", Lat: 3, Lon: 4},
	}
	gf := TrajectoryToGeoJSON("a", obs)
	coords, ok := gf.Geometry.Coordinates.([][]float64)
	if !ok || len(coords) != 2 {
		t.Fatalf("unexpected coordinates: %#v", gf.Geometry.Coordinates)
	}
}
