package geo

import (
	"math"
	"testing"
)

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name       string
		lat, lon   float64
		convertInt bool
		wantErr    bool
	}{
		{"valid", 47.6, -122.3, false, false},
		{"null island", 0, 0, false, true},
		{"near origin lat", 0, 0.0001, false, false},
		{"near origin lon", 0.0001, 0, false, false},
		{"nan lat", math.NaN(), 0.0001, false, true},
		{"inf lon", 1, math.Inf(1), false, true},
		{"lat out of range", 91, 0.0001, false, true},
		{"lon out of range", 1, 181, false, true},
		{"scaled int", 476000000, -1223000000, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ValidateCoordinates(tt.lat, tt.lon, tt.convertInt)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateCoordinates(%v, %v) error = %v, wantErr %v", tt.lat, tt.lon, err, tt.wantErr)
			}
		})
	}
}

func TestValidateNodeIDPrefixEquivalence(t *testing.T) {
	a, err := ValidateNodeID("deadbeef")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := ValidateNodeID("!deadbeef")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatalf("expected equal canonical forms, got %q and %q", a, b)
	}
	if a != "deadbeef" {
		t.Fatalf("expected lowercase canonical form, got %q", a)
	}
}

func TestValidateNodeIDRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "!", "zzzzzzzz", "12345678901234567", "node-1"} {
		if _, err := ValidateNodeID(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
