package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Trade status constants
const (
	TradeStatusOpen   = "OPEN"
	TradeStatusClosed = "CLOSED"
)

// TradeRecord is the lifecycle record of one executed intention, from order
// acknowledgement to close
type TradeRecord struct {
	ID          int64      `json:"id"`
	IntentID    string     `json:"intent_id"`
	OrderID     string     `json:"order_id"`
	Symbol      string     `json:"symbol"`
	Direction   string     `json:"direction"`
	EntryPrice  float64    `json:"entry_price"`
	Quantity    float64    `json:"quantity"` // quote currency
	Leverage    float64    `json:"leverage"`
	Confidence  float64    `json:"confidence"`
	Status      string     `json:"status"`
	RealizedPnL float64    `json:"realized_pnl"` // percent of equity
	CloseReason string     `json:"close_reason,omitempty"`
	OpenedAt    time.Time  `json:"opened_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
}

// TradeRepository persists trade records
type TradeRepository interface {
	CreateTrade(ctx context.Context, trade *TradeRecord) error
	UpdateTrade(ctx context.Context, trade *TradeRecord) error
	GetTradeByIntentID(ctx context.Context, intentID string) (*TradeRecord, error)
	GetTradesByStatus(ctx context.Context, status string, limit int) ([]*TradeRecord, error)
}

// Errors for trade tracking
var (
	ErrTradeNotFound      = errors.New("trade not found")
	ErrTradeAlreadyExists = errors.New("trade already exists for intent")
	ErrInvalidQuantity    = errors.New("invalid quantity")
)

// TradeTracker keeps open trades in memory and mirrors every transition to
// the repository when one is wired. A nil repository is valid; the tracker
// then runs memory-only.
type TradeTracker struct {
	mu     sync.RWMutex
	repo   TradeRepository
	logger zerolog.Logger

	openTrades map[string]*TradeRecord // keyed by intent ID
}

// NewTradeTracker creates a tracker around an optional repository
func NewTradeTracker(repo TradeRepository, logger zerolog.Logger) *TradeTracker {
	return &TradeTracker{
		repo:       repo,
		logger:     logger.With().Str("component", "TradeTracker").Logger(),
		openTrades: make(map[string]*TradeRecord),
	}
}

// OnTradeOpened registers a freshly acknowledged order
func (tt *TradeTracker) OnTradeOpened(ctx context.Context, intent OrderIntention, orderID string, entryPrice, confidence float64) (*TradeRecord, error) {
	if intent.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	tt.mu.Lock()
	if _, exists := tt.openTrades[intent.ClientOid]; exists {
		tt.mu.Unlock()
		return nil, ErrTradeAlreadyExists
	}
	tt.mu.Unlock()

	now := time.Now()
	trade := &TradeRecord{
		IntentID:   intent.ClientOid,
		OrderID:    orderID,
		Symbol:     intent.Symbol,
		Direction:  string(intent.Direction),
		EntryPrice: entryPrice,
		Quantity:   intent.Quantity,
		Leverage:   intent.Leverage,
		Confidence: confidence,
		Status:     TradeStatusOpen,
		OpenedAt:   now,
		UpdatedAt:  now,
	}

	if tt.repo != nil {
		if err := tt.repo.CreateTrade(ctx, trade); err != nil {
			tt.logger.Error().
				Err(err).
				Str("intent_id", trade.IntentID).
				Msg("Failed to persist opened trade")
			return nil, fmt.Errorf("failed to persist trade: %w", err)
		}
	}

	tt.mu.Lock()
	tt.openTrades[trade.IntentID] = trade
	tt.mu.Unlock()

	tt.logger.Info().
		Str("intent_id", trade.IntentID).
		Str("symbol", trade.Symbol).
		Str("direction", trade.Direction).
		Float64("entry_price", trade.EntryPrice).
		Float64("quantity", trade.Quantity).
		Msg("Trade opened")

	return trade, nil
}

// OnTradeClosed finalizes a trade with its realized P&L
func (tt *TradeTracker) OnTradeClosed(ctx context.Context, intentID string, realizedPnL float64, closeReason string) error {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	trade, exists := tt.openTrades[intentID]
	if !exists && tt.repo != nil {
		var err error
		trade, err = tt.repo.GetTradeByIntentID(ctx, intentID)
		if err != nil {
			tt.logger.Error().
				Err(err).
				Str("intent_id", intentID).
				Msg("Failed to load trade for close")
			return ErrTradeNotFound
		}
	}
	if trade == nil {
		return ErrTradeNotFound
	}

	now := time.Now()
	trade.Status = TradeStatusClosed
	trade.RealizedPnL = realizedPnL
	trade.CloseReason = closeReason
	trade.ClosedAt = &now
	trade.UpdatedAt = now

	delete(tt.openTrades, intentID)

	if tt.repo != nil {
		if err := tt.repo.UpdateTrade(ctx, trade); err != nil {
			tt.logger.Error().
				Err(err).
				Str("intent_id", intentID).
				Msg("Failed to persist trade close")
			return fmt.Errorf("failed to persist trade close: %w", err)
		}
	}

	tt.logger.Info().
		Str("intent_id", intentID).
		Float64("realized_pnl", realizedPnL).
		Str("close_reason", closeReason).
		Msg("Trade closed")

	return nil
}

// GetTradeByIntentID returns a trade from memory, then the repository
func (tt *TradeTracker) GetTradeByIntentID(ctx context.Context, intentID string) (*TradeRecord, error) {
	tt.mu.RLock()
	trade, exists := tt.openTrades[intentID]
	tt.mu.RUnlock()

	if exists {
		return trade, nil
	}
	if tt.repo != nil {
		return tt.repo.GetTradeByIntentID(ctx, intentID)
	}
	return nil, ErrTradeNotFound
}

// OpenTradeForSymbol returns the open trade on a symbol, if any
func (tt *TradeTracker) OpenTradeForSymbol(symbol string) *TradeRecord {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	for _, trade := range tt.openTrades {
		if trade.Symbol == symbol {
			return trade
		}
	}
	return nil
}

// OpenTrades returns a snapshot of all open trades
func (tt *TradeTracker) OpenTrades() []*TradeRecord {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	out := make([]*TradeRecord, 0, len(tt.openTrades))
	for _, trade := range tt.openTrades {
		out = append(out, trade)
	}
	return out
}

// LoadOpenTrades warms the in-memory map from the repository at startup
func (tt *TradeTracker) LoadOpenTrades(ctx context.Context) error {
	if tt.repo == nil {
		return nil
	}

	trades, err := tt.repo.GetTradesByStatus(ctx, TradeStatusOpen, 0)
	if err != nil {
		return fmt.Errorf("failed to load open trades: %w", err)
	}

	tt.mu.Lock()
	defer tt.mu.Unlock()
	for _, trade := range trades {
		tt.openTrades[trade.IntentID] = trade
	}

	tt.logger.Info().Int("count", len(trades)).Msg("Loaded open trades from repository")
	return nil
}
