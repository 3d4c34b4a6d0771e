package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/thomasjamais/bitget-agent-sub001/internal/orders"
	"github.com/thomasjamais/bitget-agent-sub001/internal/portfolio"
)

// Repository provides data access for trades and rebalance history.
// It satisfies orders.TradeRepository.
type Repository struct {
	db     *DB
	logger zerolog.Logger
}

// NewRepository creates a repository over an open pool
func NewRepository(db *DB, logger zerolog.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger.With().Str("component", "Repository").Logger(),
	}
}

var _ orders.TradeRepository = (*Repository)(nil)

// HealthCheck pings the database
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// TRADES
// ============================================================================

// CreateTrade inserts a freshly opened trade
func (r *Repository) CreateTrade(ctx context.Context, trade *orders.TradeRecord) error {
	query := `
		INSERT INTO trades (intent_id, order_id, symbol, direction, entry_price, quantity, leverage, confidence, status, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, updated_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		trade.IntentID, trade.OrderID, trade.Symbol, trade.Direction, trade.EntryPrice,
		trade.Quantity, trade.Leverage, trade.Confidence, trade.Status, trade.OpenedAt,
	).Scan(&trade.ID, &trade.UpdatedAt)
}

// UpdateTrade writes a trade's close state
func (r *Repository) UpdateTrade(ctx context.Context, trade *orders.TradeRecord) error {
	query := `
		UPDATE trades
		SET status = $2, realized_pnl = $3, close_reason = $4, closed_at = $5, updated_at = $6
		WHERE intent_id = $1
	`
	_, err := r.db.Pool.Exec(
		ctx, query,
		trade.IntentID, trade.Status, trade.RealizedPnL, trade.CloseReason, trade.ClosedAt, time.Now(),
	)
	return err
}

// GetTradeByIntentID retrieves a trade by its idempotency token
func (r *Repository) GetTradeByIntentID(ctx context.Context, intentID string) (*orders.TradeRecord, error) {
	query := `
		SELECT id, intent_id, order_id, symbol, direction, entry_price, quantity, leverage,
		       COALESCE(confidence, 0), status, COALESCE(realized_pnl, 0), COALESCE(close_reason, ''),
		       opened_at, updated_at, closed_at
		FROM trades
		WHERE intent_id = $1
	`
	trade := &orders.TradeRecord{}
	err := r.db.Pool.QueryRow(ctx, query, intentID).Scan(
		&trade.ID, &trade.IntentID, &trade.OrderID, &trade.Symbol, &trade.Direction,
		&trade.EntryPrice, &trade.Quantity, &trade.Leverage, &trade.Confidence,
		&trade.Status, &trade.RealizedPnL, &trade.CloseReason,
		&trade.OpenedAt, &trade.UpdatedAt, &trade.ClosedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrTradeNotFound
	}
	if err != nil {
		return nil, err
	}
	return trade, nil
}

// GetTradesByStatus lists trades with the given status, newest first.
// A limit of 0 means no limit.
func (r *Repository) GetTradesByStatus(ctx context.Context, status string, limit int) ([]*orders.TradeRecord, error) {
	query := `
		SELECT id, intent_id, order_id, symbol, direction, entry_price, quantity, leverage,
		       COALESCE(confidence, 0), status, COALESCE(realized_pnl, 0), COALESCE(close_reason, ''),
		       opened_at, updated_at, closed_at
		FROM trades
		WHERE status = $1
		ORDER BY opened_at DESC
	`
	args := []interface{}{status}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []*orders.TradeRecord
	for rows.Next() {
		trade := &orders.TradeRecord{}
		if err := rows.Scan(
			&trade.ID, &trade.IntentID, &trade.OrderID, &trade.Symbol, &trade.Direction,
			&trade.EntryPrice, &trade.Quantity, &trade.Leverage, &trade.Confidence,
			&trade.Status, &trade.RealizedPnL, &trade.CloseReason,
			&trade.OpenedAt, &trade.UpdatedAt, &trade.ClosedAt,
		); err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}

// TradeSummary aggregates closed-trade performance
type TradeSummary struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	TotalPnL      float64 `json:"total_pnl"`
	WinRate       float64 `json:"win_rate"` // percent
}

// GetTradeSummary aggregates closed trades since a cutoff
func (r *Repository) GetTradeSummary(ctx context.Context, since time.Time) (*TradeSummary, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE realized_pnl > 0),
		       COALESCE(SUM(realized_pnl), 0)
		FROM trades
		WHERE status = 'CLOSED' AND closed_at >= $1
	`
	summary := &TradeSummary{}
	if err := r.db.Pool.QueryRow(ctx, query, since).Scan(
		&summary.TotalTrades, &summary.WinningTrades, &summary.TotalPnL,
	); err != nil {
		return nil, err
	}
	if summary.TotalTrades > 0 {
		summary.WinRate = float64(summary.WinningTrades) / float64(summary.TotalTrades) * 100
	}
	return summary, nil
}

// ============================================================================
// REBALANCE HISTORY
// ============================================================================

// RecordRebalanceAction appends one emitted rebalance correction
func (r *Repository) RecordRebalanceAction(ctx context.Context, action portfolio.RebalanceAction) error {
	query := `
		INSERT INTO rebalance_actions (symbol, action, amount, priority, reason)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		action.Symbol, action.Action, action.Amount, action.Priority, action.Reason)
	if err != nil {
		r.logger.Error().Err(err).Str("symbol", action.Symbol).Msg("Failed to record rebalance action")
	}
	return err
}

// RebalanceEntry is one persisted rebalance action
type RebalanceEntry struct {
	ID        int64     `json:"id"`
	Symbol    string    `json:"symbol"`
	Action    string    `json:"action"`
	Amount    float64   `json:"amount"`
	Priority  float64   `json:"priority"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// GetRecentRebalanceActions lists the newest rebalance actions
func (r *Repository) GetRecentRebalanceActions(ctx context.Context, limit int) ([]RebalanceEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, symbol, action, amount, priority, COALESCE(reason, ''), created_at
		FROM rebalance_actions
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rebalance actions: %w", err)
	}
	defer rows.Close()

	var entries []RebalanceEntry
	for rows.Next() {
		var e RebalanceEntry
		if err := rows.Scan(&e.ID, &e.Symbol, &e.Action, &e.Amount, &e.Priority, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
