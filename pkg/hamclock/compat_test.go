package hamclock

import "testing"

func TestDetectVariant(t *testing.T) {
	cases := []struct {
		doc  string
		want Variant
	}{
		{"OpenHamClock 1.2 up 3d", VariantOpenHamClock},
		{"HamClock Version 4.08\nuptime 12:00", VariantHamClock},
		{"Version 2.67", VariantHamClock},
		{"nginx 404 not found", VariantUnknown},
	}
	for _, c := range cases {
		if got := DetectVariant(c.doc); got != c.want {
			t.Errorf("DetectVariant(%q) = %v, want %v", c.doc, got, c.want)
		}
	}
}

func TestEndpointMapCoversLogicalNames(t *testing.T) {
	names := []string{"space_weather", "band_conditions", "voacap", "de", "dx", "dxspots", "sys"}
	for _, v := range []Variant{VariantOpenHamClock, VariantHamClock} {
		m := EndpointMap(v)
		for _, name := range names {
			if m[name] == "" {
				t.Errorf("variant %v missing endpoint for %s", v, name)
			}
		}
	}
	if EndpointMap(VariantOpenHamClock)["space_weather"] == EndpointMap(VariantHamClock)["space_weather"] {
		t.Error("variants should serve space weather under different paths")
	}
}

func TestNormalizeSpaceWxFoldsAliases(t *testing.T) {
	doc := map[string]string{
		"SolarFlux": "142",
		"Kp":        "3",
		"aindex":    "8",
		"custom":    "kept",
	}
	got := NormalizeSpaceWx(doc)
	if got["sfi"] != "142" || got["k_index"] != "3" || got["a_index"] != "8" {
		t.Fatalf("aliases not folded: %v", got)
	}
	if got["custom"] != "kept" {
		t.Fatalf("unknown keys must pass through, got %v", got)
	}
}

func TestParseBandKey(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"80m", "80m"},
		{"band_40", "40m"},
		{"20", "20m"},
		{"cond17m", "17m"},
		{"160m", ""}, // 60 embedded in 160 must not match
		{"2120", ""}, // 20 embedded in a longer number must not match
		{"nothing", ""},
	}
	for _, c := range cases {
		if got := ParseBandKey(c.raw); got != c.want {
			t.Errorf("ParseBandKey(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestNormalizeBandConditions(t *testing.T) {
	doc := map[string]string{"80m": "Good", "band_40": "Fair", "junk": "x"}
	got := NormalizeBandConditions(doc)
	if len(got) != 2 || got["80m"] != "Good" || got["40m"] != "Fair" {
		t.Fatalf("unexpected normalization: %v", got)
	}
}
