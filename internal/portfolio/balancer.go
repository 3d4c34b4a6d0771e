// Package portfolio keeps a multi-asset book aligned to target weights.
// The balancer holds position snapshots, measures drift against targets and
// emits ranked buy/sell actions on a time-gated cadence. It never places
// orders itself.
package portfolio

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/thomasjamais/bitget-agent-sub001/internal/bitget"
)

// Action kinds
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

// Config holds the rebalancing policy
type Config struct {
	TargetAllocations  map[string]float64 `json:"target_allocations"`  // symbol -> weight, must sum to 1.0 +-0.01
	RebalanceThreshold float64            `json:"rebalance_threshold"` // deviation fraction that triggers a trade
	MinTradeAmount     float64            `json:"min_trade_amount"`    // quote currency
	MaxTradeAmount     float64            `json:"max_trade_amount"`    // quote currency
	RebalanceInterval  time.Duration      `json:"rebalance_interval"`
}

// DefaultConfig returns the default allocation policy
func DefaultConfig() *Config {
	return &Config{
		TargetAllocations: map[string]float64{
			"BTCUSDT":   0.30,
			"ETHUSDT":   0.25,
			"BNBUSDT":   0.15,
			"SOLUSDT":   0.10,
			"ADAUSDT":   0.08,
			"AVAXUSDT":  0.07,
			"MATICUSDT": 0.03,
			"DOTUSDT":   0.02,
		},
		RebalanceThreshold: 0.05,
		MinTradeAmount:     10,
		MaxTradeAmount:     1000,
		RebalanceInterval:  4 * time.Hour,
	}
}

// Position is one instrument's snapshot inside the book
type Position struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	MarkPrice     float64 `json:"mark_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	Value         float64 `json:"value"`      // quote currency
	Percentage    float64 `json:"percentage"` // share of total book value, 0..1
}

// RebalanceAction is one correction the caller should execute
type RebalanceAction struct {
	Symbol          string  `json:"symbol"`
	Action          string  `json:"action"` // buy or sell
	CurrentQuantity float64 `json:"current_quantity"`
	TargetQuantity  float64 `json:"target_quantity"` // filled by CalculateTradeSizes
	Amount          float64 `json:"amount"`          // quote currency to trade
	Priority        float64 `json:"priority"`        // deviation / threshold
	Reason          string  `json:"reason"`
}

// Deviation is one instrument's drift from target
type Deviation struct {
	Symbol    string  `json:"symbol"`
	Current   float64 `json:"current_weight"`
	Target    float64 `json:"target_weight"`
	Deviation float64 `json:"deviation"`
}

// Balancer owns the book snapshot and rebalance cadence
type Balancer struct {
	mu sync.RWMutex

	config        *Config
	positions     map[string]*Position
	lastRebalance time.Time
	totalValue    float64

	now func() time.Time
}

// NewBalancer creates a balancer with the given policy
func NewBalancer(config *Config) *Balancer {
	if config == nil {
		config = DefaultConfig()
	}
	return &Balancer{
		config:    config,
		positions: make(map[string]*Position),
		now:       time.Now,
	}
}

// SetClock replaces the wall clock, for deterministic tests
func (b *Balancer) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// UpdatePositions rebuilds the book from a full snapshot. Percentages are
// recomputed from scratch; nothing carries over from the previous snapshot.
func (b *Balancer) UpdatePositions(positions []bitget.Position, prices map[string]float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	book := make(map[string]*Position, len(positions))
	total := 0.0
	for _, pos := range positions {
		price := pos.MarkPrice
		if p, ok := prices[pos.Symbol]; ok && p > 0 {
			price = p
		}
		value := pos.Size * price
		book[pos.Symbol] = &Position{
			Symbol:        pos.Symbol,
			Quantity:      pos.Size,
			MarkPrice:     price,
			UnrealizedPnL: pos.UnrealizedPnL,
			Value:         value,
		}
		total += value
	}
	if total > 0 {
		for _, pos := range book {
			pos.Percentage = pos.Value / total
		}
	}

	b.positions = book
	b.totalValue = total
}

// EvaluateRebalancing measures drift against targets and returns corrective
// actions sorted by descending priority. Returns nil without evaluating when
// called within RebalanceInterval of the previous run; any triggered run
// advances the interval timer, qualifying actions or not.
func (b *Balancer) EvaluateRebalancing(totalEquity float64) []RebalanceAction {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Sub(b.lastRebalance) < b.config.RebalanceInterval {
		return nil
	}
	b.lastRebalance = now

	if totalEquity <= 0 {
		return nil
	}

	var actions []RebalanceAction
	for symbol, target := range b.config.TargetAllocations {
		current := 0.0
		quantity := 0.0
		if pos, ok := b.positions[symbol]; ok {
			current = pos.Value / totalEquity
			quantity = pos.Quantity
		}

		deviation := math.Abs(current - target)
		if deviation <= b.config.RebalanceThreshold {
			continue
		}

		amount := deviation * totalEquity
		if amount > b.config.MaxTradeAmount {
			amount = b.config.MaxTradeAmount
		}
		if amount < b.config.MinTradeAmount {
			continue
		}

		side := ActionBuy
		if current > target {
			side = ActionSell
		}

		actions = append(actions, RebalanceAction{
			Symbol:          symbol,
			Action:          side,
			CurrentQuantity: quantity,
			Amount:          amount,
			Priority:        deviation / b.config.RebalanceThreshold,
			Reason: fmt.Sprintf("weight %.2f%% vs target %.2f%%, drift %.2f%%",
				current*100, target*100, deviation*100),
		})
	}

	sort.Slice(actions, func(i, j int) bool {
		return actions[i].Priority > actions[j].Priority
	})
	return actions
}

// CalculateTradeSizes converts each action's quote-currency amount into a
// target quantity at the given prices. Actions without a usable price keep a
// zero target quantity.
func (b *Balancer) CalculateTradeSizes(actions []RebalanceAction, prices map[string]float64) []RebalanceAction {
	out := make([]RebalanceAction, len(actions))
	for i, action := range actions {
		sized := action
		if price, ok := prices[action.Symbol]; ok && price > 0 {
			delta := sized.Amount / price
			if action.Action == ActionBuy {
				sized.TargetQuantity = action.CurrentQuantity + delta
			} else {
				sized.TargetQuantity = math.Max(action.CurrentQuantity-delta, 0)
			}
		}
		out[i] = sized
	}
	return out
}

// UpdateTargetAllocations replaces the target weights. Weights must be
// non-negative and sum to 1.0 within 0.01; invalid sets leave the current
// targets untouched.
func (b *Balancer) UpdateTargetAllocations(targets map[string]float64) error {
	if len(targets) == 0 {
		return fmt.Errorf("target allocations cannot be empty")
	}

	sum := 0.0
	for symbol, weight := range targets {
		if weight < 0 {
			return fmt.Errorf("negative weight %.4f for %s", weight, symbol)
		}
		sum += weight
	}
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("allocation weights sum to %.4f, must be 1.0 +-0.01", sum)
	}

	copied := make(map[string]float64, len(targets))
	for symbol, weight := range targets {
		copied[symbol] = weight
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.config.TargetAllocations = copied
	return nil
}

// DeviationReport returns per-instrument drift sorted by descending
// deviation. Read-only, never advances the rebalance timer.
func (b *Balancer) DeviationReport() []Deviation {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Deviation, 0, len(b.config.TargetAllocations))
	for symbol, target := range b.config.TargetAllocations {
		current := 0.0
		if pos, ok := b.positions[symbol]; ok && b.totalValue > 0 {
			current = pos.Value / b.totalValue
		}
		out = append(out, Deviation{
			Symbol:    symbol,
			Current:   current,
			Target:    target,
			Deviation: math.Abs(current - target),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Deviation > out[j].Deviation
	})
	return out
}

// Status returns a read-only snapshot for the status API
func (b *Balancer) Status() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	maxDeviation := 0.0
	for symbol, target := range b.config.TargetAllocations {
		current := 0.0
		if pos, ok := b.positions[symbol]; ok && b.totalValue > 0 {
			current = pos.Value / b.totalValue
		}
		if d := math.Abs(current - target); d > maxDeviation {
			maxDeviation = d
		}
	}

	return map[string]interface{}{
		"tracked_positions":   len(b.positions),
		"total_value":         b.totalValue,
		"max_deviation":       maxDeviation,
		"needs_rebalance":     maxDeviation > b.config.RebalanceThreshold,
		"last_rebalance":      b.lastRebalance,
		"rebalance_interval":  b.config.RebalanceInterval.String(),
		"rebalance_threshold": b.config.RebalanceThreshold,
	}
}
