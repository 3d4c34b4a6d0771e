// Package ai cross-checks sized order intentions against an independently
// regenerated signal before capital is committed. The gate can veto but
// never throws past its boundary: every internal failure becomes a
// deterministic rejection carrying the failure reason.
package ai

import (
	"fmt"
	"math"
	"sync"

	"github.com/thomasjamais/bitget-agent-sub001/internal/bitget"
	"github.com/thomasjamais/bitget-agent-sub001/internal/logging"
	"github.com/thomasjamais/bitget-agent-sub001/internal/orders"
	"github.com/thomasjamais/bitget-agent-sub001/internal/strategy"
)

// Risk assessment buckets
type RiskAssessment string

const (
	RiskLow    RiskAssessment = "low"
	RiskMedium RiskAssessment = "medium"
	RiskHigh   RiskAssessment = "high"
)

// Recommendations attached to a confirmation result
type Recommendation string

const (
	RecommendProceed Recommendation = "proceed"
	RecommendWait    Recommendation = "wait"
	RecommendReject  Recommendation = "reject"
)

// Default weight split between the regenerated AI signal and the
// technical/human composite
const (
	DefaultAIWeight    = 0.4
	DefaultHumanWeight = 0.6
)

// Decision thresholds
const (
	minFinalConfidence = 0.6
	minAlignment       = 0.4
	strongConfidence   = 0.7
	strongAlignment    = 0.6
	highVolatility     = 0.05 // range/close above this dampens AI confidence
	lowVolatility      = 0.01 // below this boosts it
	maxLeverageForTier = 20
)

// ConfirmationResult is the outcome of one confirmation call
type ConfirmationResult struct {
	Confirmed      bool           `json:"confirmed"`
	Confidence     float64        `json:"confidence"` // blended final confidence
	AlignmentScore float64        `json:"alignment_score"`
	AIWeight       float64        `json:"ai_weight"`
	HumanWeight    float64        `json:"human_weight"`
	Reasoning      string         `json:"reasoning"`
	RiskAssessment RiskAssessment `json:"risk_assessment"`
	Recommendation Recommendation `json:"recommendation"`
}

// Confirmer gates order intentions behind a fresh signal regeneration
type Confirmer struct {
	mu sync.RWMutex

	generator   strategy.Generator
	timeframe   string
	aiWeight    float64
	humanWeight float64
	logger      *logging.Logger
}

// NewConfirmer creates a confirmation gate around a signal generator
func NewConfirmer(generator strategy.Generator, timeframe string, logger *logging.Logger) *Confirmer {
	if logger == nil {
		logger = logging.New(&logging.Config{Level: "INFO", Output: "stdout", JSONFormat: true})
	}
	return &Confirmer{
		generator:   generator,
		timeframe:   timeframe,
		aiWeight:    DefaultAIWeight,
		humanWeight: DefaultHumanWeight,
		logger:      logger.WithComponent("ai-confirmer"),
	}
}

// SetWeights adjusts the AI/human blend. Both must lie in [0,1] and sum to
// 1.0; invalid weights leave the current split untouched. Takes effect on
// the next call.
func (c *Confirmer) SetWeights(aiWeight, humanWeight float64) error {
	if aiWeight < 0 || aiWeight > 1 || humanWeight < 0 || humanWeight > 1 {
		return fmt.Errorf("weights must be between 0 and 1")
	}
	if math.Abs(aiWeight+humanWeight-1.0) > 1e-9 {
		return fmt.Errorf("weights must sum to 1.0, got %.4f", aiWeight+humanWeight)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.aiWeight = aiWeight
	c.humanWeight = humanWeight
	return nil
}

// Weights returns the current AI/human split
func (c *Confirmer) Weights() (float64, float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.aiWeight, c.humanWeight
}

// ConfirmIntention re-queries the signal source for the intention's symbol
// and blends alignment, expected return and risk into a final verdict
func (c *Confirmer) ConfirmIntention(intent orders.OrderIntention, bar bitget.Candle) *ConfirmationResult {
	c.mu.RLock()
	aiWeight, humanWeight := c.aiWeight, c.humanWeight
	c.mu.RUnlock()

	fresh, err := c.generator.Generate(nil, intent.Symbol, c.timeframe)
	if err != nil {
		c.logger.Warn("signal regeneration failed", "symbol", intent.Symbol, "error", err)
		return c.rejection(aiWeight, humanWeight, fmt.Sprintf("signal regeneration failed: %v", err))
	}
	if fresh == nil {
		return c.rejection(aiWeight, humanWeight, "no fresh signal available for confirmation")
	}

	volatility := 0.0
	if bar.Close > 0 {
		volatility = bar.Range() / bar.Close
	}

	alignment := alignmentScore(intent.Direction, fresh)
	aiConfidence := adjustedAIConfidence(fresh.Confidence, volatility)
	assessment := assessRisk(intent, aiConfidence, volatility)

	humanComposite := 0.4*alignment + 0.3*math.Min(intent.ExpectedReturn/10, 1) + 0.3*(1-intent.RiskScore)
	finalConfidence := aiConfidence*aiWeight + humanComposite*humanWeight

	confirmed := decide(finalConfidence, alignment, assessment, intent.RiskScore)

	result := &ConfirmationResult{
		Confirmed:      confirmed,
		Confidence:     finalConfidence,
		AlignmentScore: alignment,
		AIWeight:       aiWeight,
		HumanWeight:    humanWeight,
		RiskAssessment: assessment,
		Recommendation: recommend(confirmed, finalConfidence, alignment, assessment),
		Reasoning: fmt.Sprintf(
			"fresh %s signal conf=%.2f, alignment=%.2f, ai=%.2f, final=%.2f, risk=%s",
			fresh.Direction, fresh.Confidence, alignment, aiConfidence, finalConfidence, assessment),
	}

	c.logger.Debug("confirmation result",
		"symbol", intent.Symbol,
		"confirmed", result.Confirmed,
		"confidence", result.Confidence,
		"recommendation", string(result.Recommendation))

	return result
}

// alignmentScore measures how well the fresh signal supports the intention.
// Direction match dominates; confidence bonuses only apply on a match.
func alignmentScore(direction strategy.Direction, fresh *strategy.Signal) float64 {
	if fresh.Direction != direction {
		return 0.2
	}
	score := 0.8
	if fresh.Confidence > 0.7 {
		score += 0.1
	}
	if fresh.Confidence > 0.8 {
		score += 0.1
	}
	return math.Min(score, 1.0)
}

// adjustedAIConfidence scales the regenerated confidence by bar volatility:
// choppy bars earn a 10% haircut, calm bars a 10% boost
func adjustedAIConfidence(confidence, volatility float64) float64 {
	switch {
	case volatility > highVolatility:
		confidence *= 0.9
	case volatility < lowVolatility:
		confidence *= 1.1
	}
	return math.Min(confidence, 1.0)
}

// assessRisk buckets a weighted blend of leverage tier, the intention's own
// risk score, low AI confidence and volatility into low/medium/high
func assessRisk(intent orders.OrderIntention, aiConfidence, volatility float64) RiskAssessment {
	leverageTier := math.Min(intent.Leverage/maxLeverageForTier, 1)
	score := 0.3*leverageTier + 0.3*intent.RiskScore + 0.2*(1-aiConfidence) + 0.2*math.Min(volatility*10, 1)

	switch {
	case score < 0.3:
		return RiskLow
	case score < 0.6:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// decide applies the approval table. A confirmation always satisfies
// finalConfidence >= 0.6 and alignment >= 0.4.
func decide(finalConfidence, alignment float64, assessment RiskAssessment, intentRisk float64) bool {
	if finalConfidence < minFinalConfidence || alignment < minAlignment {
		return false
	}
	if assessment == RiskHigh && intentRisk > 0.7 {
		return false
	}
	if finalConfidence > strongConfidence && alignment > strongAlignment {
		return true
	}
	if finalConfidence > minFinalConfidence && assessment == RiskLow {
		return true
	}
	return false
}

// recommend maps a verdict to the operator-facing recommendation
func recommend(confirmed bool, confidence, alignment float64, assessment RiskAssessment) Recommendation {
	if !confirmed {
		if confidence < 0.4 || alignment < 0.3 {
			return RecommendReject
		}
		return RecommendWait
	}
	if assessment == RiskHigh || confidence < 0.6 {
		return RecommendWait
	}
	return RecommendProceed
}

// rejection builds the deterministic safe-default result used on any
// internal failure
func (c *Confirmer) rejection(aiWeight, humanWeight float64, reason string) *ConfirmationResult {
	return &ConfirmationResult{
		Confirmed:      false,
		Confidence:     0,
		AlignmentScore: 0,
		AIWeight:       aiWeight,
		HumanWeight:    humanWeight,
		Reasoning:      reason,
		RiskAssessment: RiskHigh,
		Recommendation: RecommendReject,
	}
}
