// Package hamclock parses the line-oriented propagation feed format
// popularized by HamClock (solar-flux index, K-index, and GOES X-ray
// flux) and classifies it into the band-condition summary the mesh
// overlay surfaces alongside live node telemetry.
package hamclock

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// SolarIndices is one reading of the standard amateur-radio propagation
// indices.
type SolarIndices struct {
	SFI float64 // solar flux index
	A   float64 // A-index (geomagnetic)
	K   float64 // K-index (geomagnetic, 0-9)
}

// ParseSolarIndices parses a single "SFI,A,K" CSV line, the format
// HamClock's VOACAP feed exposes for current indices.
func ParseSolarIndices(line string) (SolarIndices, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 3 {
		return SolarIndices{}, fmt.Errorf("hamclock: expected 3 CSV fields, got %d", len(fields))
	}
	sfi, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return SolarIndices{}, fmt.Errorf("hamclock: parse sfi: %w", err)
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return SolarIndices{}, fmt.Errorf("hamclock: parse a-index: %w", err)
	}
	k, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return SolarIndices{}, fmt.Errorf("hamclock: parse k-index: %w", err)
	}
	return SolarIndices{SFI: sfi, A: a, K: k}, nil
}

// XRayReading is one sample from the GOES X-ray flux feed.
type XRayReading struct {
	EpochSeconds int64
	FluxWm2      float64
}

// ParseXRayFeed parses HamClock's xray.txt format: whitespace-separated
// "epoch_seconds flux_wm2" pairs, one per line, blank lines and lines
// beginning with "#" ignored.
func ParseXRayFeed(data []byte) ([]XRayReading, error) {
	var readings []XRayReading
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("hamclock: xray line %d: expected 2 fields, got %d", lineNo, len(fields))
		}
		epoch, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("hamclock: xray line %d: parse epoch: %w", lineNo, err)
		}
		flux, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("hamclock: xray line %d: parse flux: %w", lineNo, err)
		}
		readings = append(readings, XRayReading{EpochSeconds: epoch, FluxWm2: flux})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("hamclock: scan xray feed: %w", err)
	}
	return readings, nil
}

// FlareClass is the standard GOES X-ray flare classification letter.
type FlareClass string

const (
	FlareA FlareClass = "A"
	FlareB FlareClass = "B"
	FlareC FlareClass = "C"
	FlareM FlareClass = "M"
	FlareX FlareClass = "X"
)

// ClassifyXRayFlux buckets a GOES long-wavelength (0.1-0.8nm) X-ray flux
// reading (W/m^2) into its standard flare class.
func ClassifyXRayFlux(fluxWm2 float64) FlareClass {
	switch {
	case fluxWm2 >= 1e-4:
		return FlareX
	case fluxWm2 >= 1e-5:
		return FlareM
	case fluxWm2 >= 1e-6:
		return FlareC
	case fluxWm2 >= 1e-7:
		return FlareB
	default:
		return FlareA
	}
}

// BandCondition is the qualitative HF-propagation summary derived from
// the current solar indices.
type BandCondition string

const (
	ConditionPoor      BandCondition = "poor"
	ConditionFair      BandCondition = "fair"
	ConditionGood      BandCondition = "good"
	ConditionExcellent BandCondition = "excellent"
)

// ClassifyBandCondition summarizes HF band conditions from the current
// solar indices: high geomagnetic disturbance (K-index) degrades
// conditions regardless of solar flux; otherwise higher SFI improves them.
func ClassifyBandCondition(indices SolarIndices) BandCondition {
	if indices.K >= 6 {
		return ConditionPoor
	}
	if indices.K >= 4 {
		return ConditionFair
	}
	switch {
	case indices.SFI >= 150:
		return ConditionExcellent
	case indices.SFI >= 100:
		return ConditionGood
	case indices.SFI >= 70:
		return ConditionFair
	default:
		return ConditionPoor
	}
}
