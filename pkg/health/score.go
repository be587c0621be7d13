// Package health computes a composite 0-100 health score for a node from
// whichever telemetry components are actually present, and classifies
// that score into the same five-rung status ladder the teacher's health
// endpoint uses for member health.
package health

import "github.com/meshforge/meshforge-maps/pkg/model"

// Status is the human-facing health classification.
type Status string

const (
	StatusExcellent Status = "excellent"
	StatusGood      Status = "good"
	StatusFair      Status = "fair"
	StatusPoor      Status = "poor"
	StatusCritical  Status = "critical"
	StatusUnknown   Status = "unknown"
)

// Classify buckets a 0-100 score into a Status using the same thresholds
// as the teacher's member-health ladder: >80 excellent, >60 good, >40
// fair, >20 poor, else critical.
func Classify(score float64) Status {
	switch {
	case score > 80:
		return StatusExcellent
	case score > 60:
		return StatusGood
	case score > 40:
		return StatusFair
	case score > 20:
		return StatusPoor
	default:
		return StatusCritical
	}
}

// component is one weighted input to the composite score.
type component struct {
	weight  float64
	value   float64 // 0-100, already normalized
	present bool
}

// Inputs carries the raw, not-yet-normalized telemetry a Score call uses.
// Any field left nil is excluded from the composite rather than treated
// as zero, so a node that doesn't report e.g. battery isn't penalized
// for it.
type Inputs struct {
	BatteryPercent   *float64 // 0-100
	SNR              *float64 // dB, see model.ClassifySNR bands
	SecondsSinceSeen *float64 // freshness; lower is better
	DeliveryRatio    *float64 // 0-1 reliability (acked/sent or similar)
	ChannelUtilPct   *float64 // 0-100 congestion; lower is better
}

// weights for each present component. These don't need to sum to 1;
// Score normalizes by the sum of weights actually present.
const (
	weightBattery     = 0.20
	weightSignal      = 0.30
	weightFreshness   = 0.25
	weightReliability = 0.15
	weightCongestion  = 0.10

	freshnessFullCreditSeconds = 300.0  // <=5 minutes: full credit
	freshnessZeroCreditSeconds = 3600.0 // >=1 hour: zero credit
)

// Score computes the composite 0-100 health score for a node from
// whichever Inputs fields are present, normalizing over the weights of
// the present components only. A node with no usable inputs at all
// returns (0, StatusUnknown).
func Score(in Inputs) (float64, Status) {
	var components []component

	if in.BatteryPercent != nil {
		components = append(components, component{weight: weightBattery, value: clamp(*in.BatteryPercent, 0, 100)})
	}
	if in.SNR != nil {
		components = append(components, component{weight: weightSignal, value: snrToScore(*in.SNR)})
	}
	if in.SecondsSinceSeen != nil {
		components = append(components, component{weight: weightFreshness, value: freshnessToScore(*in.SecondsSinceSeen)})
	}
	if in.DeliveryRatio != nil {
		components = append(components, component{weight: weightReliability, value: clamp(*in.DeliveryRatio, 0, 1) * 100})
	}
	if in.ChannelUtilPct != nil {
		components = append(components, component{weight: weightCongestion, value: 100 - clamp(*in.ChannelUtilPct, 0, 100)})
	}

	if len(components) == 0 {
		return 0, StatusUnknown
	}

	var weightedSum, weightTotal float64
	for _, c := range components {
		weightedSum += c.weight * c.value
		weightTotal += c.weight
	}

	score := weightedSum / weightTotal
	return score, Classify(score)
}

// snrToScore maps an SNR reading onto a 0-100 scale via the same
// quality bands used for the map overlay (model.ClassifySNR), so the
// health score and the visual link-quality color always agree.
func snrToScore(snr float64) float64 {
	quality, _ := model.ClassifySNR(&snr)
	switch quality {
	case model.QualityExcellent:
		return 100
	case model.QualityGood:
		return 80
	case model.QualityMarginal:
		return 55
	case model.QualityPoor:
		return 30
	default:
		return 10
	}
}

// freshnessToScore linearly interpolates between full credit at or below
// freshnessFullCreditSeconds and zero credit at or above
// freshnessZeroCreditSeconds.
func freshnessToScore(secondsSinceSeen float64) float64 {
	if secondsSinceSeen <= freshnessFullCreditSeconds {
		return 100
	}
	if secondsSinceSeen >= freshnessZeroCreditSeconds {
		return 0
	}
	span := freshnessZeroCreditSeconds - freshnessFullCreditSeconds
	return 100 * (1 - (secondsSinceSeen-freshnessFullCreditSeconds)/span)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
