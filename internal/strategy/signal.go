package strategy

import (
	"time"

	"github.com/thomasjamais/bitget-agent-sub001/internal/bitget"
)

// Direction of a trading signal
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Opposite returns the inverse direction
func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

// Signal represents a directional trading signal. Signals are immutable
// once created.
type Signal struct {
	Timestamp  time.Time              `json:"timestamp"`
	Symbol     string                 `json:"symbol"`
	Timeframe  string                 `json:"timeframe"`
	Direction  Direction              `json:"direction"`
	Confidence float64                `json:"confidence"` // 0..1
	Source     string                 `json:"source"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// Generator produces signals from market data. Implementations return
// (nil, nil) when no actionable signal exists.
type Generator interface {
	Name() string
	Generate(candles []bitget.Candle, symbol, timeframe string) (*Signal, error)
}
