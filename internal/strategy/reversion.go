package strategy

import (
	"fmt"
	"time"

	"github.com/thomasjamais/bitget-agent-sub001/internal/bitget"
)

// ReversionConfig configures the RSI mean-reversion generator
type ReversionConfig struct {
	RSIPeriod     int     `json:"rsi_period"`
	OversoldRSI   float64 `json:"oversold_rsi"`   // long below this
	OverboughtRSI float64 `json:"overbought_rsi"` // short above this
	MaxConfidence float64 `json:"max_confidence"`
}

// DefaultReversionConfig returns defaults for hourly candles
func DefaultReversionConfig() *ReversionConfig {
	return &ReversionConfig{
		RSIPeriod:     14,
		OversoldRSI:   30,
		OverboughtRSI: 70,
		MaxConfidence: 0.8,
	}
}

// ReversionGenerator signals against RSI extremes: long when oversold,
// short when overbought. Confidence grows the deeper the extreme.
type ReversionGenerator struct {
	config *ReversionConfig
}

// NewReversionGenerator creates an RSI mean-reversion generator
func NewReversionGenerator(config *ReversionConfig) *ReversionGenerator {
	if config == nil {
		config = DefaultReversionConfig()
	}
	return &ReversionGenerator{config: config}
}

func (g *ReversionGenerator) Name() string {
	return "reversion"
}

// Generate emits a contrarian signal at RSI extremes. Returns (nil, nil)
// while RSI sits between the bands.
func (g *ReversionGenerator) Generate(candles []bitget.Candle, symbol, timeframe string) (*Signal, error) {
	need := g.config.RSIPeriod + 1
	if len(candles) < need {
		return nil, fmt.Errorf("reversion needs %d candles, got %d", need, len(candles))
	}

	rsi := RSI(candles, g.config.RSIPeriod)

	var direction Direction
	var depth float64
	switch {
	case rsi <= g.config.OversoldRSI:
		direction = DirectionLong
		depth = (g.config.OversoldRSI - rsi) / g.config.OversoldRSI
	case rsi >= g.config.OverboughtRSI:
		direction = DirectionShort
		depth = (rsi - g.config.OverboughtRSI) / (100 - g.config.OverboughtRSI)
	default:
		return nil, nil
	}

	confidence := 0.55 + depth*0.4
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
			"rsi":        rsi,
			"last_close": candles[len(candles)-1].Close,
		},
	}, nil
}
