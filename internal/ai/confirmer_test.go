package ai

import (
	"errors"
	"strings"
	"testing"

	"github.com/thomasjamais/bitget-agent-sub001/internal/bitget"
	"github.com/thomasjamais/bitget-agent-sub001/internal/orders"
	"github.com/thomasjamais/bitget-agent-sub001/internal/strategy"
)

type stubGenerator struct {
	signal *strategy.Signal
	err    error
}

func (s *stubGenerator) Name() string { return "stub" }

func (s *stubGenerator) Generate(_ []bitget.Candle, symbol, timeframe string) (*strategy.Signal, error) {
	return s.signal, s.err
}

var _ strategy.Generator = (*stubGenerator)(nil)

func freshSignal(direction strategy.Direction, confidence float64) *strategy.Signal {
	return &strategy.Signal{
		Symbol:     "BTCUSDT",
		Timeframe:  "1H",
		Direction:  direction,
		Confidence: confidence,
		Source:     "momentum",
	}
}

func testIntent(direction strategy.Direction, expectedReturn, riskScore float64) orders.OrderIntention {
	return orders.OrderIntention{
		Symbol:         "BTCUSDT",
		Direction:      direction,
		Quantity:       1000,
		Leverage:       5,
		ExpectedReturn: expectedReturn,
		RiskScore:      riskScore,
	}
}

// calmBar has range/close below 1%, choppyBar above 5%
func calmBar() bitget.Candle {
	return bitget.Candle{Open: 50000, High: 50050, Low: 49950, Close: 50000, Volume: 100}
}

func choppyBar() bitget.Candle {
	return bitget.Candle{Open: 50000, High: 52500, Low: 48000, Close: 50000, Volume: 100}
}

func TestOpposingSignalRejects(t *testing.T) {
	gen := &stubGenerator{signal: freshSignal(strategy.DirectionShort, 0.9)}
	c := NewConfirmer(gen, "1H", nil)

	result := c.ConfirmIntention(testIntent(strategy.DirectionLong, 3.0, 0.3), calmBar())

	if result.AlignmentScore != 0.2 {
		t.Errorf("AlignmentScore = %v, want 0.2 for opposing direction", result.AlignmentScore)
	}
	if result.Confirmed {
		t.Error("opposing fresh signal must not confirm, regardless of its confidence")
	}
	if result.Recommendation != RecommendReject && result.Recommendation != RecommendWait {
		t.Errorf("Recommendation = %v, want reject or wait", result.Recommendation)
	}
}

func TestAlignedStrongSignalConfirms(t *testing.T) {
	gen := &stubGenerator{signal: freshSignal(strategy.DirectionLong, 0.9)}
	c := NewConfirmer(gen, "1H", nil)

	result := c.ConfirmIntention(testIntent(strategy.DirectionLong, 5.0, 0.2), calmBar())

	if result.AlignmentScore != 1.0 {
		t.Errorf("AlignmentScore = %v, want 1.0 with both confidence bonuses", result.AlignmentScore)
	}
	if !result.Confirmed {
		t.Fatalf("expected confirmation, got: %s", result.Reasoning)
	}
	if result.Confidence < 0.6 {
		t.Errorf("confirmed result has confidence %v below 0.6", result.Confidence)
	}
	if result.Recommendation != RecommendProceed {
		t.Errorf("Recommendation = %v, want proceed", result.Recommendation)
	}
}

func TestAlignmentBonusesRequireMatch(t *testing.T) {
	cases := []struct {
		confidence float64
		want       float64
	}{
		{0.5, 0.8},
		{0.75, 0.9},
		{0.85, 1.0},
	}
	for _, tc := range cases {
		got := alignmentScore(strategy.DirectionLong, freshSignal(strategy.DirectionLong, tc.confidence))
		if got != tc.want {
			t.Errorf("alignmentScore(match, conf=%v) = %v, want %v", tc.confidence, got, tc.want)
		}
		if got := alignmentScore(strategy.DirectionShort, freshSignal(strategy.DirectionLong, tc.confidence)); got != 0.2 {
			t.Errorf("alignmentScore(mismatch, conf=%v) = %v, want 0.2", tc.confidence, got)
		}
	}
}

func TestVolatilityAdjustsAIConfidence(t *testing.T) {
	gen := &stubGenerator{signal: freshSignal(strategy.DirectionLong, 0.8)}
	c := NewConfirmer(gen, "1H", nil)
	intent := testIntent(strategy.DirectionLong, 5.0, 0.2)

	calm := c.ConfirmIntention(intent, calmBar())
	choppy := c.ConfirmIntention(intent, choppyBar())

	if choppy.Confidence >= calm.Confidence {
		t.Errorf("choppy bar confidence %v should be below calm bar %v", choppy.Confidence, calm.Confidence)
	}
}

func TestHighRiskIntentionVetoed(t *testing.T) {
	gen := &stubGenerator{signal: freshSignal(strategy.DirectionLong, 0.75)}
	c := NewConfirmer(gen, "1H", nil)

	intent := testIntent(strategy.DirectionLong, 8.0, 0.8)
	intent.Leverage = 20

	result := c.ConfirmIntention(intent, choppyBar())

	if result.RiskAssessment != RiskHigh {
		t.Fatalf("RiskAssessment = %v, want high", result.RiskAssessment)
	}
	if result.Confirmed {
		t.Error("high assessment with risk score above 0.7 must veto")
	}
	if result.Recommendation != RecommendWait {
		t.Errorf("Recommendation = %v, want wait", result.Recommendation)
	}
}

func TestRegenerationFailureRejectsDeterministically(t *testing.T) {
	gen := &stubGenerator{err: errors.New("exchange unreachable")}
	c := NewConfirmer(gen, "1H", nil)

	for i := 0; i < 3; i++ {
		result := c.ConfirmIntention(testIntent(strategy.DirectionLong, 5.0, 0.2), calmBar())
		if result.Confirmed {
			t.Fatal("regeneration failure must never confirm")
		}
		if result.Confidence != 0 {
			t.Errorf("Confidence = %v on failure, want 0", result.Confidence)
		}
		if result.Recommendation != RecommendReject {
			t.Errorf("Recommendation = %v on failure, want reject", result.Recommendation)
		}
		if !strings.Contains(result.Reasoning, "exchange unreachable") {
			t.Errorf("Reasoning %q should carry the failure cause", result.Reasoning)
		}
	}
}

func TestNoFreshSignalRejects(t *testing.T) {
	gen := &stubGenerator{} // generator returns nil, nil: no signal
	c := NewConfirmer(gen, "1H", nil)

	result := c.ConfirmIntention(testIntent(strategy.DirectionLong, 5.0, 0.2), calmBar())
	if result.Confirmed {
		t.Error("absent fresh signal must not confirm")
	}
	if result.RiskAssessment != RiskHigh {
		t.Errorf("RiskAssessment = %v, want high on rejection", result.RiskAssessment)
	}
}

func TestSetWeightsValidation(t *testing.T) {
	c := NewConfirmer(&stubGenerator{}, "1H", nil)

	if err := c.SetWeights(0.5, 0.6); err == nil {
		t.Error("expected error when weights do not sum to 1")
	}
	if err := c.SetWeights(-0.1, 1.1); err == nil {
		t.Error("expected error for out-of-range weights")
	}

	ai, human := c.Weights()
	if ai != DefaultAIWeight || human != DefaultHumanWeight {
		t.Errorf("invalid SetWeights mutated state: ai=%v human=%v", ai, human)
	}

	if err := c.SetWeights(0.7, 0.3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ai, human = c.Weights()
	if ai != 0.7 || human != 0.3 {
		t.Errorf("weights = %v/%v, want 0.7/0.3", ai, human)
	}
}

func TestWeightsAppearInResult(t *testing.T) {
	gen := &stubGenerator{signal: freshSignal(strategy.DirectionLong, 0.9)}
	c := NewConfirmer(gen, "1H", nil)
	if err := c.SetWeights(0.6, 0.4); err != nil {
		t.Fatal(err)
	}

	result := c.ConfirmIntention(testIntent(strategy.DirectionLong, 5.0, 0.2), calmBar())
	if result.AIWeight != 0.6 || result.HumanWeight != 0.4 {
		t.Errorf("result weights = %v/%v, want 0.6/0.4", result.AIWeight, result.HumanWeight)
	}
}
