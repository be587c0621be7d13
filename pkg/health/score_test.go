package health

import "testing"

func f(v float64) *float64 { return &v }

func TestClassify(t *testing.T) {
	tests := []struct {
		score float64
		want  Status
	}{
		{85, StatusExcellent},
		{81, StatusExcellent},
		{80, StatusGood},
		{61, StatusGood},
		{60, StatusFair},
		{41, StatusFair},
		{40, StatusPoor},
		{21, StatusPoor},
		{20, StatusCritical},
		{0, StatusCritical},
	}
	for _, tt := range tests {
		if got := Classify(tt.score); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestScoreNoInputsIsUnknown(t *testing.T) {
	score, status := Score(Inputs{})
	if status != StatusUnknown || score != 0 {
		t.Fatalf("expected unknown/0 for no inputs, got %v %v", score, status)
	}
}

func TestScoreFullBatterySignalFresh(t *testing.T) {
	score, status := Score(Inputs{
		BatteryPercent:   f(100),
		SNR:              f(10),
		SecondsSinceSeen: f(1),
	})
	if status != StatusExcellent {
		t.Fatalf("expected excellent status for strong inputs, got %v (score %v)", status, score)
	}
}

func TestScorePoorInputsAreCritical(t *testing.T) {
	score, status := Score(Inputs{
		BatteryPercent:   f(5),
		SNR:              f(-15),
		SecondsSinceSeen: f(7200),
	})
	if status != StatusCritical {
		t.Fatalf("expected critical status for weak inputs, got %v (score %v)", status, score)
	}
}

func TestScorePartialInputsStillNormalizes(t *testing.T) {
	// Only battery present; should equal the raw battery value since
	// that's the only weighted component in the sum.
	score, _ := Score(Inputs{BatteryPercent: f(70)})
	if score != 70 {
		t.Fatalf("expected score to equal sole present component, got %v", score)
	}
}

func TestFreshnessToScoreBounds(t *testing.T) {
	if v := freshnessToScore(0); v != 100 {
		t.Fatalf("expected full credit at 0s, got %v", v)
	}
	if v := freshnessToScore(10000); v != 0 {
		t.Fatalf("expected zero credit beyond threshold, got %v", v)
	}
	mid := freshnessToScore((freshnessFullCreditSeconds + freshnessZeroCreditSeconds) / 2)
	if mid <= 0 || mid >= 100 {
		t.Fatalf("expected interpolated value strictly between 0 and 100, got %v", mid)
	}
}
