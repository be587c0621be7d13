package hamclock

import "testing"

func TestParseSolarIndices(t *testing.T) {
	got, err := ParseSolarIndices(" 120.5 , 8 , 2 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := SolarIndices{SFI: 120.5, A: 8, K: 2}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestParseSolarIndicesRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"", "1,2", "1,2,3,4", "x,2,3"} {
		if _, err := ParseSolarIndices(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestParseXRayFeed(t *testing.T) {
	data := []byte("# comment\n1700000000 1.2e-6\n\n1700000060 3.4e-5\n")
	readings, err := ParseXRayFeed(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(readings) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(readings))
	}
	if readings[0].EpochSeconds != 1700000000 || readings[1].FluxWm2 != 3.4e-5 {
		t.Fatalf("unexpected readings: %+v", readings)
	}
}

func TestParseXRayFeedRejectsMalformedLine(t *testing.T) {
	if _, err := ParseXRayFeed([]byte("not-a-valid-line\n")); err == nil {
		t.Fatalf("expected error for malformed line")
	}
}

func TestClassifyXRayFlux(t *testing.T) {
	tests := []struct {
		flux float64
		want FlareClass
	}{
		{1e-8, FlareA},
		{5e-7, FlareB},
		{5e-6, FlareC},
		{5e-5, FlareM},
		{5e-4, FlareX},
	}
	for _, tt := range tests {
		if got := ClassifyXRayFlux(tt.flux); got != tt.want {
			t.Errorf("ClassifyXRayFlux(%v) = %v, want %v", tt.flux, got, tt.want)
		}
	}
}

func TestClassifyBandCondition(t *testing.T) {
	tests := []struct {
		name string
		idx  SolarIndices
		want BandCondition
	}{
		{"severe storm overrides high sfi", SolarIndices{SFI: 200, K: 7}, ConditionPoor},
		{"elevated k is fair", SolarIndices{SFI: 200, K: 4}, ConditionFair},
		{"high sfi calm", SolarIndices{SFI: 180, K: 1}, ConditionExcellent},
		{"moderate sfi calm", SolarIndices{SFI: 110, K: 1}, ConditionGood},
		{"low sfi calm", SolarIndices{SFI: 80, K: 1}, ConditionFair},
		{"very low sfi calm", SolarIndices{SFI: 60, K: 1}, ConditionPoor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyBandCondition(tt.idx); got != tt.want {
				t.Fatalf("ClassifyBandCondition(%+v) = %v, want %v", tt.idx, got, tt.want)
			}
		})
	}
}
