// Package opportunity scores directional signals into ranked trading
// opportunities. Thresholds are policy tuning values and deliberately live
// in config rather than constants.
package opportunity

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/thomasjamais/bitget-agent-sub001/internal/bitget"
	"github.com/thomasjamais/bitget-agent-sub001/internal/strategy"
)

// Config holds the evaluation policy
type Config struct {
	MinConfidence       float64 `json:"min_confidence"`        // below this, no opportunity
	MinExpectedReturn   float64 `json:"min_expected_return"`   // percent
	MaxExpectedReturn   float64 `json:"max_expected_return"`   // percent, hard ceiling
	BaseReturnPerPoint  float64 `json:"base_return_per_point"` // % return per unit of confidence
	VolatilityAmplifier float64 `json:"volatility_amplifier"`  // how strongly volatility scales returns
	Leverage            float64 `json:"leverage"`              // leverage assumed for risk scoring
	MaxLeverage         float64 `json:"max_leverage"`          // leverage normalization bound
	SuccessRateWindow   int     `json:"success_rate_window"`   // outcomes kept per symbol
}

// DefaultConfig returns the default evaluation policy
func DefaultConfig() *Config {
	return &Config{
		MinConfidence:       0.55,
		MinExpectedReturn:   1.0,
		MaxExpectedReturn:   10.0,
		BaseReturnPerPoint:  4.0,
		VolatilityAmplifier: 8.0,
		Leverage:            5,
		MaxLeverage:         20,
		SuccessRateWindow:   50,
	}
}

// Opportunity is a scored, actionable trading opportunity
type Opportunity struct {
	Symbol         string           `json:"symbol"`
	Signal         *strategy.Signal `json:"signal"`
	Confidence     float64          `json:"confidence"`
	ExpectedReturn float64          `json:"expected_return"` // percent
	RiskScore      float64          `json:"risk_score"`      // 0..1
	Priority       float64          `json:"priority"`        // ranking only, never a gate
	Reason         string           `json:"reason"`
}

// symbolStats tracks per-symbol telemetry. Read-only from the outside,
// never a gate.
type symbolStats struct {
	outcomes   []bool // rolling window, newest last
	successes  int
	dailyCount int
	countDate  time.Time
}

// Evaluator turns signals plus market context into opportunities
type Evaluator struct {
	mu     sync.RWMutex
	config *Config
	stats  map[string]*symbolStats

	now func() time.Time
}

// NewEvaluator creates an evaluator with the given policy
func NewEvaluator(config *Config) *Evaluator {
	if config == nil {
		config = DefaultConfig()
	}
	return &Evaluator{
		config: config,
		stats:  make(map[string]*symbolStats),
		now:    time.Now,
	}
}

// SetClock replaces the wall clock, for deterministic tests
func (e *Evaluator) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// Evaluate scores a signal against market context. Returns nil when the
// signal does not clear the configured minimums.
func (e *Evaluator) Evaluate(symbol string, signal *strategy.Signal, bar bitget.Candle, equity float64) *Opportunity {
	if signal == nil {
		return nil
	}
	// An unfunded account has no actionable opportunities. Finer equity
	// floors belong to the trading manager, which owns MinEquity.
	if equity <= 0 {
		return nil
	}

	e.mu.RLock()
	cfg := *e.config
	e.mu.RUnlock()

	if signal.Confidence < cfg.MinConfidence {
		return nil
	}

	volatility := barVolatility(bar)

	expectedReturn := signal.Confidence * cfg.BaseReturnPerPoint * (1 + volatility*cfg.VolatilityAmplifier)
	if expectedReturn > cfg.MaxExpectedReturn {
		expectedReturn = cfg.MaxExpectedReturn
	}
	if expectedReturn < cfg.MinExpectedReturn {
		return nil
	}

	riskScore := riskScoreFor(cfg, signal.Confidence, volatility)
	priority := signal.Confidence*0.4 + math.Min(expectedReturn/cfg.MaxExpectedReturn, 1)*0.3 + (1-riskScore)*0.3

	return &Opportunity{
		Symbol:         symbol,
		Signal:         signal,
		Confidence:     signal.Confidence,
		ExpectedReturn: expectedReturn,
		RiskScore:      riskScore,
		Priority:       priority,
		Reason: fmt.Sprintf("%s %s conf=%.2f exp=%.2f%% risk=%.2f",
			signal.Source, signal.Direction, signal.Confidence, expectedReturn, riskScore),
	}
}

// riskScoreFor blends leverage, volatility and inverse confidence into 0..1
func riskScoreFor(cfg Config, confidence, volatility float64) float64 {
	leverageRisk := 0.0
	if cfg.MaxLeverage > 0 {
		leverageRisk = cfg.Leverage / cfg.MaxLeverage
	}
	score := leverageRisk*0.4 + math.Min(volatility*10, 1)*0.3 + (1-confidence)*0.3
	return math.Min(score, 1)
}

// barVolatility is the bar's range relative to its close
func barVolatility(bar bitget.Candle) float64 {
	if bar.Close <= 0 {
		return 0
	}
	return bar.Range() / bar.Close
}

// RecordOutcome registers a trade result for a symbol's rolling telemetry
func (e *Evaluator) RecordOutcome(symbol string, success bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.stats[symbol]
	if st == nil {
		st = &symbolStats{}
		e.stats[symbol] = st
	}

	today := dateOnly(e.now())
	if !st.countDate.Equal(today) {
		st.dailyCount = 0
		st.countDate = today
	}
	st.dailyCount++

	st.outcomes = append(st.outcomes, success)
	if success {
		st.successes++
	}
	if window := e.config.SuccessRateWindow; window > 0 && len(st.outcomes) > window {
		if st.outcomes[0] {
			st.successes--
		}
		st.outcomes = st.outcomes[1:]
	}
}

// SymbolStats is the read-only telemetry snapshot for one symbol
type SymbolStats struct {
	Symbol      string  `json:"symbol"`
	TotalTrades int     `json:"total_trades"` // within the rolling window
	DailyTrades int     `json:"daily_trades"`
	SuccessRate float64 `json:"success_rate"`
}

// Stats returns a telemetry snapshot for every tracked symbol
func (e *Evaluator) Stats() []SymbolStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	today := dateOnly(e.now())
	out := make([]SymbolStats, 0, len(e.stats))
	for symbol, st := range e.stats {
		rate := 0.0
		if len(st.outcomes) > 0 {
			rate = float64(st.successes) / float64(len(st.outcomes)) * 100
		}
		daily := st.dailyCount
		if !st.countDate.Equal(today) {
			daily = 0
		}
		out = append(out, SymbolStats{
			Symbol:      symbol,
			TotalTrades: len(st.outcomes),
			DailyTrades: daily,
			SuccessRate: rate,
		})
	}
	return out
}

// UpdateConfig replaces the evaluation policy
func (e *Evaluator) UpdateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if config.MinConfidence < 0 || config.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be between 0 and 1")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.config = config
	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
