// Package risk gates proposed positions against equity-risk, daily-loss and
// consecutive-loss limits. A Manager exclusively owns its counters; once a
// loss streak trips the breaker, only a profitable trade or a forced reset
// clears it.
package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/thomasjamais/bitget-agent-sub001/internal/bitget"
	"github.com/thomasjamais/bitget-agent-sub001/internal/orders"
)

// Limits holds the fixed risk limits for a Manager
type Limits struct {
	MaxEquityRisk        float64 `json:"max_equity_risk"`        // max aggregate leveraged exposure, % of equity
	MaxDailyLoss         float64 `json:"max_daily_loss"`         // max daily loss, % of equity
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"` // losing streak before lockout
}

// DefaultLimits returns conservative defaults
func DefaultLimits() Limits {
	return Limits{
		MaxEquityRisk:        50.0,
		MaxDailyLoss:         5.0,
		MaxConsecutiveLosses: 3,
	}
}

// Decision is the outcome of a risk check. Rejections are decisions, not
// errors; the reason explains them.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Manager owns the mutable risk state for one trading strategy instance
type Manager struct {
	mu sync.RWMutex

	limits            Limits
	consecutiveLosses int
	dailyPnL          float64 // percent of equity
	lastResetDate     time.Time

	now func() time.Time // injectable clock for tests
}

// NewManager creates a risk manager with the given limits
func NewManager(limits Limits) *Manager {
	m := &Manager{
		limits: limits,
		now:    time.Now,
	}
	m.lastResetDate = dateOnly(m.now())
	return m
}

// SetClock replaces the wall clock, for deterministic tests
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// CheckPositionRisk decides whether the proposed intention may proceed given
// current equity and open positions
func (m *Manager) CheckPositionRisk(intent orders.OrderIntention, equity float64, openPositions []bitget.Position) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rolloverIfNewDay()

	if m.dailyPnL <= -m.limits.MaxDailyLoss {
		return Decision{Allowed: false, Reason: fmt.Sprintf(
			"daily loss limit reached: %.2f%% <= -%.2f%%", m.dailyPnL, m.limits.MaxDailyLoss)}
	}

	if m.consecutiveLosses >= m.limits.MaxConsecutiveLosses {
		return Decision{Allowed: false, Reason: fmt.Sprintf(
			"consecutive loss limit reached: %d/%d", m.consecutiveLosses, m.limits.MaxConsecutiveLosses)}
	}

	if equity <= 0 {
		return Decision{Allowed: false, Reason: "equity is zero or negative"}
	}

	aggregate := 0.0
	for _, pos := range openPositions {
		// stop distance unknown for exchange-held positions, assume full exposure
		aggregate += pos.Notional() / equity * 100
	}
	aggregate += positionRisk(intent, equity)

	if aggregate > m.limits.MaxEquityRisk {
		return Decision{Allowed: false, Reason: fmt.Sprintf(
			"aggregate exposure %.2f%% exceeds limit %.2f%%", aggregate, m.limits.MaxEquityRisk)}
	}

	return Decision{Allowed: true}
}

// positionRisk is the intention's leveraged exposure as a percent of equity,
// scaled by the stop-loss fraction when a stop is attached
func positionRisk(intent orders.OrderIntention, equity float64) float64 {
	stopFraction := 1.0
	if intent.StopLossPercent > 0 {
		stopFraction = intent.StopLossPercent / 100
	}
	return intent.Quantity * intent.Leverage * stopFraction / equity * 100
}

// UpdateAfterTrade records a closed trade's P&L. Losses extend the streak,
// gains clear it.
func (m *Manager) UpdateAfterTrade(pnlPercent float64) {
	if math.IsNaN(pnlPercent) || math.IsInf(pnlPercent, 0) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.rolloverIfNewDay()
	m.dailyPnL += pnlPercent

	if pnlPercent < 0 {
		m.consecutiveLosses++
	} else {
		m.consecutiveLosses = 0
	}
}

// ForceReset zeroes both counters and the daily window. Operational escape
// hatch, not used in the normal flow.
func (m *Manager) ForceReset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.consecutiveLosses = 0
	m.dailyPnL = 0
	m.lastResetDate = dateOnly(m.now())
}

// Metrics returns a read-only snapshot for the status API
func (m *Manager) Metrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"daily_pnl":              m.dailyPnL,
		"consecutive_losses":     m.consecutiveLosses,
		"last_reset_date":        m.lastResetDate.Format("2006-01-02"),
		"max_equity_risk":        m.limits.MaxEquityRisk,
		"max_daily_loss":         m.limits.MaxDailyLoss,
		"max_consecutive_losses": m.limits.MaxConsecutiveLosses,
		"can_trade": m.dailyPnL > -m.limits.MaxDailyLoss &&
			m.consecutiveLosses < m.limits.MaxConsecutiveLosses,
	}
}

// rolloverIfNewDay zeroes the daily P&L on a calendar-day change. Runs lazily
// on every check instead of a timer; caller must hold the lock.
func (m *Manager) rolloverIfNewDay() {
	today := dateOnly(m.now())
	if today.After(m.lastResetDate) {
		m.dailyPnL = 0
		m.lastResetDate = today
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
