package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/thomasjamais/bitget-agent-sub001/internal/strategy"
)

// memoryTradeRepo is an in-memory TradeRepository for tests
type memoryTradeRepo struct {
	trades    map[string]*TradeRecord
	createErr error
}

func newMemoryTradeRepo() *memoryTradeRepo {
	return &memoryTradeRepo{trades: make(map[string]*TradeRecord)}
}

func (r *memoryTradeRepo) CreateTrade(_ context.Context, trade *TradeRecord) error {
	if r.createErr != nil {
		return r.createErr
	}
	copied := *trade
	r.trades[trade.IntentID] = &copied
	return nil
}

func (r *memoryTradeRepo) UpdateTrade(_ context.Context, trade *TradeRecord) error {
	copied := *trade
	r.trades[trade.IntentID] = &copied
	return nil
}

func (r *memoryTradeRepo) GetTradeByIntentID(_ context.Context, intentID string) (*TradeRecord, error) {
	trade, ok := r.trades[intentID]
	if !ok {
		return nil, ErrTradeNotFound
	}
	return trade, nil
}

func (r *memoryTradeRepo) GetTradesByStatus(_ context.Context, status string, _ int) ([]*TradeRecord, error) {
	var out []*TradeRecord
	for _, trade := range r.trades {
		if trade.Status == status {
			out = append(out, trade)
		}
	}
	return out, nil
}

var _ TradeRepository = (*memoryTradeRepo)(nil)

func trackedIntent(intentID string) OrderIntention {
	return OrderIntention{
		Symbol:    "BTCUSDT",
		Direction: strategy.DirectionLong,
		Quantity:  1000,
		Leverage:  5,
		ClientOid: intentID,
	}
}

func TestTradeLifecycle(t *testing.T) {
	repo := newMemoryTradeRepo()
	tt := NewTradeTracker(repo, zerolog.Nop())
	ctx := context.Background()

	trade, err := tt.OnTradeOpened(ctx, trackedIntent("AGT-15JAN-00001"), "oid-1", 50000, 0.75)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trade.Status != TradeStatusOpen {
		t.Errorf("status = %s, want OPEN", trade.Status)
	}

	if open := tt.OpenTradeForSymbol("BTCUSDT"); open == nil || open.IntentID != "AGT-15JAN-00001" {
		t.Error("open trade not visible by symbol")
	}

	if err := tt.OnTradeClosed(ctx, "AGT-15JAN-00001", 2.5, "take profit"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if open := tt.OpenTradeForSymbol("BTCUSDT"); open != nil {
		t.Error("closed trade still visible as open")
	}

	persisted := repo.trades["AGT-15JAN-00001"]
	if persisted.Status != TradeStatusClosed || persisted.RealizedPnL != 2.5 {
		t.Errorf("persisted trade = %+v, want closed with pnl 2.5", persisted)
	}
	if persisted.ClosedAt == nil {
		t.Error("ClosedAt not set")
	}
}

func TestDuplicateIntentRejected(t *testing.T) {
	tt := NewTradeTracker(nil, zerolog.Nop())
	ctx := context.Background()

	if _, err := tt.OnTradeOpened(ctx, trackedIntent("dup"), "oid-1", 50000, 0.7); err != nil {
		t.Fatal(err)
	}
	if _, err := tt.OnTradeOpened(ctx, trackedIntent("dup"), "oid-2", 50000, 0.7); !errors.Is(err, ErrTradeAlreadyExists) {
		t.Errorf("error = %v, want ErrTradeAlreadyExists", err)
	}
}

func TestOpenFailsWhenRepoFails(t *testing.T) {
	repo := newMemoryTradeRepo()
	repo.createErr = errors.New("connection refused")
	tt := NewTradeTracker(repo, zerolog.Nop())

	if _, err := tt.OnTradeOpened(context.Background(), trackedIntent("x"), "oid", 1, 0.5); err == nil {
		t.Fatal("expected error when repository create fails")
	}
	if open := tt.OpenTradeForSymbol("BTCUSDT"); open != nil {
		t.Error("failed open must not leave an in-memory trade behind")
	}
}

func TestCloseUnknownTrade(t *testing.T) {
	tt := NewTradeTracker(nil, zerolog.Nop())
	if err := tt.OnTradeClosed(context.Background(), "missing", 0, "manual"); !errors.Is(err, ErrTradeNotFound) {
		t.Errorf("error = %v, want ErrTradeNotFound", err)
	}
}

func TestLoadOpenTrades(t *testing.T) {
	repo := newMemoryTradeRepo()
	repo.trades["warm"] = &TradeRecord{IntentID: "warm", Symbol: "ETHUSDT", Status: TradeStatusOpen}
	repo.trades["done"] = &TradeRecord{IntentID: "done", Symbol: "BTCUSDT", Status: TradeStatusClosed}

	tt := NewTradeTracker(repo, zerolog.Nop())
	if err := tt.LoadOpenTrades(context.Background()); err != nil {
		t.Fatal(err)
	}

	if open := tt.OpenTradeForSymbol("ETHUSDT"); open == nil {
		t.Error("warmed trade not visible")
	}
	if open := tt.OpenTradeForSymbol("BTCUSDT"); open != nil {
		t.Error("closed trade must not warm into the open set")
	}
}
