// Package trading composes the decision pipeline: signal in, sized and
// risk-checked order out. The Manager owns per-symbol trade locks and the
// balance cache; every path through ProcessSignal produces a TradeResult,
// rejections included.
package trading

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thomasjamais/bitget-agent-sub001/internal/ai"
	"github.com/thomasjamais/bitget-agent-sub001/internal/bitget"
	"github.com/thomasjamais/bitget-agent-sub001/internal/cache"
	"github.com/thomasjamais/bitget-agent-sub001/internal/events"
	"github.com/thomasjamais/bitget-agent-sub001/internal/logging"
	"github.com/thomasjamais/bitget-agent-sub001/internal/opportunity"
	"github.com/thomasjamais/bitget-agent-sub001/internal/orders"
	"github.com/thomasjamais/bitget-agent-sub001/internal/risk"
	"github.com/thomasjamais/bitget-agent-sub001/internal/sizing"
	"github.com/thomasjamais/bitget-agent-sub001/internal/strategy"
)

// Pipeline stages reported in rejection reasons and events
const (
	StageLock        = "lock"
	StageBalance     = "balance"
	StageOpportunity = "opportunity"
	StageSizing      = "sizing"
	StageRisk        = "risk"
	StageConfirm     = "confirmation"
	StageExecution   = "execution"
)

// Config holds the orchestrator policy
type Config struct {
	MaxRiskPerTrade float64       `json:"max_risk_per_trade"` // percent of equity
	Leverage        float64       `json:"leverage"`
	StopLossPercent float64       `json:"stop_loss_percent"` // 0 disables the stop
	MinEquity       float64       `json:"min_equity"`        // quote currency floor to trade at all
	AIEnabled       bool          `json:"ai_enabled"`
	BalanceTTL      time.Duration `json:"balance_ttl"`
}

// DefaultConfig returns the default orchestrator policy
func DefaultConfig() *Config {
	return &Config{
		MaxRiskPerTrade: 1.0,
		Leverage:        5,
		StopLossPercent: 2.0,
		MinEquity:       10,
		AIEnabled:       true,
		BalanceTTL:      30 * time.Second,
	}
}

// TradeResult is the structured outcome of one pipeline pass. Every call
// produces one; Reason explains any non-execution.
type TradeResult struct {
	Symbol     string  `json:"symbol"`
	Executed   bool    `json:"executed"`
	Reason     string  `json:"reason,omitempty"`
	Stage      string  `json:"stage,omitempty"` // stage that stopped the pipeline
	Confidence float64 `json:"confidence"`
	IntentID   string  `json:"intent_id,omitempty"`
	OrderID    string  `json:"order_id,omitempty"`
}

// SignalInput is one symbol's material for a batch pass
type SignalInput struct {
	Symbol string
	Signal *strategy.Signal
	Bar    bitget.Candle
}

// Manager is the USDT trading manager
type Manager struct {
	mu sync.Mutex

	config    *Config
	client    bitget.Client
	riskMgr   *risk.Manager
	evaluator *opportunity.Evaluator
	confirmer *ai.Confirmer
	idGen     *orders.IntentIDGenerator
	tracker   *orders.TradeTracker
	cacheSvc  *cache.CacheService
	bus       *events.EventBus
	logger    *logging.Logger

	activeTrades map[string]string // symbol -> intent ID

	cachedEquity  float64
	balanceAt     time.Time
	balanceStale  bool
	tradesOpened  int64
	tradesDropped int64

	now func() time.Time
}

// Deps bundles the orchestrator's collaborators. Confirmer, IDGen, Tracker,
// CacheSvc and Bus are optional; Client, RiskMgr and Evaluator are required.
type Deps struct {
	Client    bitget.Client
	RiskMgr   *risk.Manager
	Evaluator *opportunity.Evaluator
	Confirmer *ai.Confirmer
	IDGen     *orders.IntentIDGenerator
	Tracker   *orders.TradeTracker
	CacheSvc  *cache.CacheService
	Bus       *events.EventBus
	Logger    *logging.Logger
}

// NewManager wires the trading pipeline
func NewManager(config *Config, deps Deps) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if deps.Client == nil {
		return nil, fmt.Errorf("exchange client is required")
	}
	if deps.RiskMgr == nil {
		return nil, fmt.Errorf("risk manager is required")
	}
	if deps.Evaluator == nil {
		return nil, fmt.Errorf("opportunity evaluator is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.New(&logging.Config{Level: "INFO", Output: "stdout", JSONFormat: true})
	}

	return &Manager{
		config:       config,
		client:       deps.Client,
		riskMgr:      deps.RiskMgr,
		evaluator:    deps.Evaluator,
		confirmer:    deps.Confirmer,
		idGen:        deps.IDGen,
		tracker:      deps.Tracker,
		cacheSvc:     deps.CacheSvc,
		bus:          deps.Bus,
		logger:       logger.WithComponent("trading-manager"),
		activeTrades: make(map[string]string),
		now:          time.Now,
	}, nil
}

// SetClock replaces the wall clock, for deterministic tests
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// ProcessSignal runs the full pipeline for one symbol. A symbol holding an
// active trade is dropped immediately, never queued.
func (m *Manager) ProcessSignal(ctx context.Context, symbol string, signal *strategy.Signal, bar bitget.Candle) TradeResult {
	if signal == nil {
		return m.reject(symbol, StageOpportunity, "no signal", 0)
	}

	m.mu.Lock()
	if intentID, busy := m.activeTrades[symbol]; busy {
		m.tradesDropped++
		m.mu.Unlock()
		return m.reject(symbol, StageLock,
			fmt.Sprintf("active trade %s in progress", intentID), 0)
	}
	m.mu.Unlock()

	equity, err := m.equity()
	if err != nil {
		return m.reject(symbol, StageBalance, fmt.Sprintf("balance unavailable: %v", err), 0)
	}
	if equity < m.config.MinEquity {
		return m.reject(symbol, StageBalance,
			fmt.Sprintf("equity %.2f below minimum %.2f", equity, m.config.MinEquity), 0)
	}

	opp := m.evaluator.Evaluate(symbol, signal, bar, equity)
	if opp == nil {
		return m.reject(symbol, StageOpportunity, "no qualifying opportunity", signal.Confidence)
	}

	quantity := sizing.SizeByRisk(equity, m.config.MaxRiskPerTrade, bar.Close, m.config.Leverage, m.config.StopLossPercent)
	if quantity <= 0 {
		return m.reject(symbol, StageSizing, "position size is zero", opp.Confidence)
	}
	notional := quantity * bar.Close

	intent := orders.OrderIntention{
		Symbol:          symbol,
		Direction:       signal.Direction,
		Quantity:        notional,
		Leverage:        m.config.Leverage,
		ExpectedReturn:  opp.ExpectedReturn,
		RiskScore:       opp.RiskScore,
		StopLossPercent: m.config.StopLossPercent,
		Timestamp:       m.now(),
		Source:          signal.Source,
		ClientOid:       m.nextIntentID(ctx),
	}

	if decision := m.riskMgr.CheckPositionRisk(intent, equity, m.openPositions(symbol)); !decision.Allowed {
		if m.bus != nil {
			m.bus.PublishIntentRejected(symbol, StageRisk, decision.Reason)
		}
		return m.reject(symbol, StageRisk, decision.Reason, opp.Confidence)
	}

	confidence := opp.Confidence
	if m.config.AIEnabled && m.confirmer != nil {
		confirmation := m.confirmer.ConfirmIntention(intent, bar)
		confidence = confirmation.Confidence
		if !confirmation.Confirmed {
			if m.bus != nil {
				m.bus.PublishIntentRejected(symbol, StageConfirm, confirmation.Reasoning)
			}
			return m.reject(symbol, StageConfirm, confirmation.Reasoning, confidence)
		}
	}

	return m.execute(ctx, intent, bar, confidence)
}

// execute claims the symbol lock and forwards the intention to the exchange
func (m *Manager) execute(ctx context.Context, intent orders.OrderIntention, bar bitget.Candle, confidence float64) TradeResult {
	m.mu.Lock()
	if holder, busy := m.activeTrades[intent.Symbol]; busy {
		m.tradesDropped++
		m.mu.Unlock()
		return m.reject(intent.Symbol, StageLock,
			fmt.Sprintf("active trade %s in progress", holder), confidence)
	}
	m.activeTrades[intent.Symbol] = intent.ClientOid
	m.mu.Unlock()

	side := bitget.SideBuy
	if intent.Direction == strategy.DirectionShort {
		side = bitget.SideSell
	}

	resp, err := m.client.PlaceOrder(bitget.OrderParams{
		Symbol:     intent.Symbol,
		MarginCoin: bitget.MarginCoinUSDT,
		Size:       fmt.Sprintf("%.6f", intent.Quantity),
		Side:       side,
		TradeSide:  bitget.TradeSideOpen,
		OrderType:  bitget.OrderTypeMarket,
		Leverage:   fmt.Sprintf("%.0f", intent.Leverage),
		ClientOid:  intent.ClientOid,
	})
	if err != nil {
		m.releaseSymbolLocked(intent.Symbol)
		m.logger.Error("order placement failed", "symbol", intent.Symbol, "error", err)
		if m.bus != nil {
			m.bus.PublishError("trading-manager", err)
		}
		return m.reject(intent.Symbol, StageExecution, fmt.Sprintf("order placement failed: %v", err), confidence)
	}

	if m.tracker != nil {
		if _, err := m.tracker.OnTradeOpened(ctx, intent, resp.OrderID, bar.Close, confidence); err != nil {
			m.logger.Warn("trade tracking failed", "symbol", intent.Symbol, "error", err)
		}
	}

	m.mu.Lock()
	m.tradesOpened++
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.PublishTradeOpened(intent.Symbol, string(intent.Direction), intent.ClientOid, bar.Close, intent.Quantity)
	}
	m.logger.Info("trade opened",
		"symbol", intent.Symbol,
		"direction", string(intent.Direction),
		"intent_id", intent.ClientOid,
		"notional", intent.Quantity,
		"confidence", confidence)

	return TradeResult{
		Symbol:     intent.Symbol,
		Executed:   true,
		Confidence: confidence,
		IntentID:   intent.ClientOid,
		OrderID:    resp.OrderID,
	}
}

// ProcessBatch runs the pipeline per symbol. One symbol's failure never
// aborts the rest; every input yields exactly one result.
func (m *Manager) ProcessBatch(ctx context.Context, inputs []SignalInput) []TradeResult {
	results := make([]TradeResult, 0, len(inputs))
	for _, input := range inputs {
		result := m.ProcessSignal(ctx, input.Symbol, input.Signal, input.Bar)
		if !result.Executed {
			m.logger.Debug("signal not executed",
				"symbol", input.Symbol, "stage", result.Stage, "reason", result.Reason)
		}
		results = append(results, result)
	}
	return results
}

// CloseTrade finalizes a trade, feeds realized P&L into the risk manager and
// outcome telemetry, and frees the symbol for new entries
func (m *Manager) CloseTrade(ctx context.Context, symbol string, pnlPercent float64, reason string) error {
	m.mu.Lock()
	intentID, busy := m.activeTrades[symbol]
	m.mu.Unlock()
	if !busy {
		return fmt.Errorf("no active trade for %s", symbol)
	}

	if m.tracker != nil {
		if err := m.tracker.OnTradeClosed(ctx, intentID, pnlPercent, reason); err != nil {
			m.logger.Warn("trade close tracking failed", "symbol", symbol, "error", err)
		}
	}

	m.riskMgr.UpdateAfterTrade(pnlPercent)
	m.evaluator.RecordOutcome(symbol, pnlPercent > 0)
	m.releaseSymbolLocked(symbol)

	if m.bus != nil {
		m.bus.PublishTradeClosed(symbol, intentID, pnlPercent, reason)
	}
	m.logger.Info("trade closed", "symbol", symbol, "pnl_percent", pnlPercent, "reason", reason)
	return nil
}

// ReleaseSymbol frees a symbol's trade lock without recording an outcome.
// Operational escape hatch for manually resolved trades.
func (m *Manager) ReleaseSymbol(symbol string) {
	m.releaseSymbolLocked(symbol)
}

func (m *Manager) releaseSymbolLocked(symbol string) {
	m.mu.Lock()
	delete(m.activeTrades, symbol)
	m.mu.Unlock()
}

// equity returns account equity, served from a short-lived cache. A failed
// refresh falls back to the last cached value instead of stalling the
// pipeline.
func (m *Manager) equity() (float64, error) {
	m.mu.Lock()
	cached, at, ttl := m.cachedEquity, m.balanceAt, m.config.BalanceTTL
	now := m.now()
	m.mu.Unlock()

	if !at.IsZero() && now.Sub(at) < ttl {
		return cached, nil
	}

	balance, err := m.client.GetAccountBalance()
	if err != nil {
		if !at.IsZero() {
			m.logger.Warn("balance refresh failed, using cached value", "error", err)
			m.mu.Lock()
			m.balanceStale = true
			m.mu.Unlock()
			return cached, nil
		}
		return 0, err
	}

	m.mu.Lock()
	m.cachedEquity = balance.Equity
	m.balanceAt = now
	m.balanceStale = false
	m.mu.Unlock()

	if m.cacheSvc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort snapshot for external observers
		_ = m.cacheSvc.SetJSON(ctx, cache.BalanceSnapshotKey(bitget.MarginCoinUSDT), balance, cache.DefaultBalanceTTL)
	}

	return balance.Equity, nil
}

// openPositions fetches current positions, empty on error. The risk check
// then sees only the new intention, which is the conservative failure the
// daily-loss and streak limits still cover.
func (m *Manager) openPositions(symbol string) []bitget.Position {
	positions, err := m.client.GetPositions("")
	if err != nil {
		m.logger.Warn("position fetch failed", "symbol", symbol, "error", err)
		return nil
	}
	return positions
}

// nextIntentID allocates the idempotency token for one intention
func (m *Manager) nextIntentID(ctx context.Context) string {
	if m.idGen != nil {
		if id, err := m.idGen.Generate(ctx); err == nil {
			return id
		}
	}
	return uuid.New().String()
}

func (m *Manager) reject(symbol, stage, reason string, confidence float64) TradeResult {
	return TradeResult{
		Symbol:     symbol,
		Executed:   false,
		Stage:      stage,
		Reason:     reason,
		Confidence: confidence,
	}
}

// Status returns a read-only snapshot for the status API
func (m *Manager) Status() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := make([]string, 0, len(m.activeTrades))
	for symbol := range m.activeTrades {
		active = append(active, symbol)
	}

	balanceAge := time.Duration(0)
	if !m.balanceAt.IsZero() {
		balanceAge = m.now().Sub(m.balanceAt)
	}

	return map[string]interface{}{
		"active_trades":  active,
		"trades_opened":  m.tradesOpened,
		"trades_dropped": m.tradesDropped,
		"cached_equity":  m.cachedEquity,
		"balance_age":    balanceAge.String(),
		"balance_stale":  m.balanceStale,
		"ai_enabled":     m.config.AIEnabled,
		"leverage":       m.config.Leverage,
		"max_risk":       m.config.MaxRiskPerTrade,
	}
}
