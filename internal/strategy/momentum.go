package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/thomasjamais/bitget-agent-sub001/internal/bitget"
)

// MomentumConfig configures the momentum generator
type MomentumConfig struct {
	Lookback         int     `json:"lookback"`           // candles between the two averages
	MinMomentum      float64 `json:"min_momentum"`       // % move required to signal
	MaxConfidence    float64 `json:"max_confidence"`     // confidence ceiling
	ConfidencePerPct float64 `json:"confidence_per_pct"` // confidence gained per momentum %
}

// DefaultMomentumConfig returns sane defaults for hourly candles
func DefaultMomentumConfig() *MomentumConfig {
	return &MomentumConfig{
		Lookback:         9,
		MinMomentum:      2.0,
		MaxConfidence:    0.85,
		ConfidencePerPct: 0.05,
	}
}

// MomentumGenerator signals in the direction of recent price momentum,
// comparing a fresh 3-candle average against an older one
type MomentumGenerator struct {
	config *MomentumConfig
}

// NewMomentumGenerator creates a momentum generator
func NewMomentumGenerator(config *MomentumConfig) *MomentumGenerator {
	if config == nil {
		config = DefaultMomentumConfig()
	}
	return &MomentumGenerator{config: config}
}

func (g *MomentumGenerator) Name() string {
	return "momentum"
}

// Generate compares recent and older close averages and emits a directional
// signal when the move exceeds the configured minimum. Returns (nil, nil)
// when momentum is flat.
func (g *MomentumGenerator) Generate(candles []bitget.Candle, symbol, timeframe string) (*Signal, error) {
	need := g.config.Lookback + 3
	if len(candles) < need {
		return nil, fmt.Errorf("momentum needs %d candles, got %d", need, len(candles))
	}

	n := len(candles)
	recentAvg := (candles[n-1].Close + candles[n-2].Close + candles[n-3].Close) / 3
	oldIdx := n - g.config.Lookback
	olderAvg := (candles[oldIdx-1].Close + candles[oldIdx-2].Close + candles[oldIdx-3].Close) / 3

	if olderAvg == 0 {
		return nil, fmt.Errorf("momentum baseline price is zero for %s", symbol)
	}

	momentum := (recentAvg - olderAvg) / olderAvg * 100
	if math.Abs(momentum) < g.config.MinMomentum {
		return nil, nil
	}

	direction := DirectionLong
	if momentum < 0 {
		direction = DirectionShort
	}

	confidence := 0.5 + math.Abs(momentum)*g.config.ConfidencePerPct
	if confidence > g.config.MaxConfidence {
		confidence = g.config.MaxConfidence
	}

	return &Signal{
		Timestamp:  time.Now(),
		Symbol:     symbol,
		Timeframe:  timeframe,
		Direction:  direction,
		Confidence: confidence,
		Source:     g.Name(),
		Meta: map[string]interface{}{
			"momentum_pct": momentum,
			"last_close":   candles[n-1].Close,
		},
	}, nil
}

// ClientGenerator wraps a Generator with a bitget client so callers can
// regenerate a signal for a symbol without holding candles themselves
type ClientGenerator struct {
	client      bitget.Client
	generator   Generator
	candleLimit int
}

// NewClientGenerator creates a generator that fetches its own candles
func NewClientGenerator(client bitget.Client, generator Generator, candleLimit int) *ClientGenerator {
	if candleLimit <= 0 {
		candleLimit = 50
	}
	return &ClientGenerator{client: client, generator: generator, candleLimit: candleLimit}
}

func (c *ClientGenerator) Name() string {
	return c.generator.Name()
}

// Generate fetches candles when given none; with candles supplied it
// delegates straight to the wrapped generator
func (c *ClientGenerator) Generate(candles []bitget.Candle, symbol, timeframe string) (*Signal, error) {
	if len(candles) == 0 {
		fetched, err := c.client.GetCandles(symbol, timeframe, c.candleLimit)
		if err != nil {
			return nil, fmt.Errorf("fetch candles for %s: %w", symbol, err)
		}
		candles = fetched
	}
	return c.generator.Generate(candles, symbol, timeframe)
}
