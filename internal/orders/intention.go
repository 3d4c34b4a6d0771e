package orders

import (
	"time"

	"github.com/thomasjamais/bitget-agent-sub001/internal/strategy"
)

// OrderIntention is a fully sized, risk-annotated proposal to open a
// position. Intentions are immutable once created; adjusting leverage or
// size produces a new intention.
type OrderIntention struct {
	Symbol          string             `json:"symbol"`
	Direction       strategy.Direction `json:"direction"`
	Quantity        float64            `json:"quantity"` // quote-currency notional
	Leverage        float64            `json:"leverage"`
	ExpectedReturn  float64            `json:"expected_return"` // percent
	RiskScore       float64            `json:"risk_score"`      // 0..1
	StopLossPercent float64            `json:"stop_loss_percent,omitempty"`
	Timestamp       time.Time          `json:"timestamp"`
	Source          string             `json:"source"`
	ClientOid       string             `json:"client_oid"` // idempotency token
}

// WithLeverage returns a copy of the intention with a different leverage
func (o OrderIntention) WithLeverage(leverage float64) OrderIntention {
	adjusted := o
	adjusted.Leverage = leverage
	return adjusted
}
