package hamclock

import (
	"regexp"
	"strings"
)

// Variant identifies which propagation-service flavor answered a probe.
type Variant string

const (
	VariantOpenHamClock Variant = "openhamclock"
	VariantHamClock     Variant = "hamclock"
	VariantUnknown      Variant = "unknown"
)

// DetectVariant inspects a service's sys document (the free-text status
// page both flavors serve) and decides which variant produced it. The
// modern fork names itself outright; the legacy service is recognized
// by its Version banner.
func DetectVariant(sysDoc string) Variant {
	lower := strings.ToLower(sysDoc)
	if strings.Contains(lower, "openhamclock") {
		return VariantOpenHamClock
	}
	if strings.Contains(lower, "hamclock") || strings.Contains(lower, "version ") {
		return VariantHamClock
	}
	return VariantUnknown
}

// EndpointMap maps logical feed names to the URL path each variant
// serves them under.
func EndpointMap(v Variant) map[string]string {
	if v == VariantOpenHamClock {
		return map[string]string{
			"space_weather":   "/api/v2/spacewx",
			"band_conditions": "/api/v2/bands",
			"voacap":          "/api/v2/voacap",
			"de":              "/api/v2/de",
			"dx":              "/api/v2/dx",
			"dxspots":         "/api/v2/dxspots",
			"sys":             "/api/v2/sys",
		}
	}
	return map[string]string{
		"space_weather":   "/get_spacewx.txt",
		"band_conditions": "/get_bc.txt",
		"voacap":          "/get_voacap.txt",
		"de":              "/get_de.txt",
		"dx":              "/get_dx.txt",
		"dxspots":         "/get_dxspots.txt",
		"sys":             "/get_sys.txt",
	}
}

// spacewxAliases folds the key spellings the two variants (and older
// firmware revisions) use for the same space-weather fields into one
// canonical name.
var spacewxAliases = map[string]string{
	"spacewx":       "space_weather",
	"space_weather": "space_weather",
	"swx":           "space_weather",
	"sfi":           "sfi",
	"solarflux":     "sfi",
	"solar_flux":    "sfi",
	"flux":          "sfi",
	"a":             "a_index",
	"aindex":        "a_index",
	"a_index":       "a_index",
	"k":             "k_index",
	"kindex":        "k_index",
	"kp":            "k_index",
	"k_index":       "k_index",
	"xray":          "xray",
	"x_ray":         "xray",
	"ssn":           "sunspot_number",
	"sunspots":      "sunspot_number",
	"sunspot":       "sunspot_number",
}

// NormalizeSpaceWx folds case variants and deprecated key spellings of
// a decoded space-weather document into the canonical shape. Unknown
// keys are preserved under their lowercased name.
func NormalizeSpaceWx(doc map[string]string) map[string]string {
	out := make(map[string]string, len(doc))
	for key, value := range doc {
		canonical := strings.ToLower(strings.TrimSpace(key))
		if alias, ok := spacewxAliases[canonical]; ok {
			canonical = alias
		}
		out[canonical] = value
	}
	return out
}

// deDxAliases maps the DE/DX endpoint key variants to canonical names.
var deDxAliases = map[string]string{
	"call":       "callsign",
	"callsign":   "callsign",
	"grid":       "grid",
	"maid":       "grid",
	"maidenhead": "grid",
	"lat":        "lat",
	"latitude":   "lat",
	"lng":        "lon",
	"lon":        "lon",
	"longitude":  "lon",
	"tz":         "utc_offset",
	"utcoffset":  "utc_offset",
}

// NormalizeDeDx folds the DE/DX station document's key variants into
// the canonical shape shared by both variants.
func NormalizeDeDx(doc map[string]string) map[string]string {
	out := make(map[string]string, len(doc))
	for key, value := range doc {
		canonical := strings.ToLower(strings.TrimSpace(key))
		if alias, ok := deDxAliases[canonical]; ok {
			canonical = alias
		}
		out[canonical] = value
	}
	return out
}

// bandKeyRE matches a band designator (80m, 40, 20m, ...) not embedded
// in a longer number, with or without the trailing m.
var bandKeyRE = regexp.MustCompile(`(^|[^\d])(80|40|30|20|17|15|12|10)m?\b`)

// ParseBandKey extracts the canonical band name ("80m", "20m", ...)
// from a raw band-condition key, or "" when the key names no band.
func ParseBandKey(raw string) string {
	m := bandKeyRE.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return m[2] + "m"
}

// NormalizeBandConditions folds a band-conditions document keyed by raw
// band spellings ("80m", "band_40", "20") into canonical band names.
// Keys naming no recognizable band are dropped.
func NormalizeBandConditions(doc map[string]string) map[string]string {
	out := make(map[string]string, len(doc))
	for key, value := range doc {
		if band := ParseBandKey(key); band != "" {
			out[band] = value
		}
	}
	return out
}
