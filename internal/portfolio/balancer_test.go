package portfolio

import (
	"math"
	"testing"
	"time"

	"github.com/thomasjamais/bitget-agent-sub001/internal/bitget"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestEvaluateRebalancingEmptyBook(t *testing.T) {
	b := NewBalancer(nil)

	actions := b.EvaluateRebalancing(1300)
	if len(actions) == 0 {
		t.Fatal("expected actions for a fully drifted empty book")
	}

	// BTC carries the largest target, so the largest drift and top priority
	top := actions[0]
	if top.Symbol != "BTCUSDT" || top.Action != ActionBuy {
		t.Fatalf("top action = %s %s, want buy BTCUSDT", top.Action, top.Symbol)
	}
	if math.Abs(top.Amount-390) > 1e-9 {
		t.Errorf("BTC amount = %v, want 390 (0.30 x 1300)", top.Amount)
	}
	if math.Abs(top.Priority-0.30/0.05) > 1e-9 {
		t.Errorf("BTC priority = %v, want 6.0", top.Priority)
	}

	for i := 1; i < len(actions); i++ {
		if actions[i].Priority > actions[i-1].Priority {
			t.Fatal("actions not sorted by descending priority")
		}
	}
}

func TestEvaluateRebalancingTimeGate(t *testing.T) {
	b := NewBalancer(nil)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	b.SetClock(fixedClock(now))

	if actions := b.EvaluateRebalancing(1300); len(actions) == 0 {
		t.Fatal("first evaluation should run")
	}

	// within the interval: empty, no matter the drift
	now = now.Add(time.Hour)
	b.SetClock(fixedClock(now))
	if actions := b.EvaluateRebalancing(1300); actions != nil {
		t.Errorf("expected nil within rebalance interval, got %d actions", len(actions))
	}

	now = now.Add(4 * time.Hour)
	b.SetClock(fixedClock(now))
	if actions := b.EvaluateRebalancing(1300); len(actions) == 0 {
		t.Error("expected actions after the interval elapsed")
	}
}

func TestTriggerAdvancesTimerWithoutActions(t *testing.T) {
	b := NewBalancer(&Config{
		TargetAllocations:  map[string]float64{"BTCUSDT": 1.0},
		RebalanceThreshold: 0.05,
		MinTradeAmount:     10,
		MaxTradeAmount:     1000,
		RebalanceInterval:  4 * time.Hour,
	})
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	b.SetClock(fixedClock(now))

	// perfectly balanced book: triggered run emits nothing but still counts
	b.UpdatePositions([]bitget.Position{
		{Symbol: "BTCUSDT", Size: 0.026, MarkPrice: 50000},
	}, nil)
	if actions := b.EvaluateRebalancing(1300); len(actions) != 0 {
		t.Fatalf("expected no actions for balanced book, got %d", len(actions))
	}

	// now drift hard: still gated, the zero-action run advanced the timer
	b.UpdatePositions(nil, nil)
	now = now.Add(time.Hour)
	b.SetClock(fixedClock(now))
	if actions := b.EvaluateRebalancing(1300); actions != nil {
		t.Error("timer must advance even when a run emits no actions")
	}
}

func TestTradeAmountClamping(t *testing.T) {
	b := NewBalancer(&Config{
		TargetAllocations:  map[string]float64{"BTCUSDT": 0.6, "ETHUSDT": 0.34, "DUSTUSDT": 0.06},
		RebalanceThreshold: 0.05,
		MinTradeAmount:     100,
		MaxTradeAmount:     500,
		RebalanceInterval:  time.Hour,
	})

	// equity 1000: BTC needs 600 (capped to 500), ETH 340, DUST 60 (below min)
	actions := b.EvaluateRebalancing(1000)

	byKey := make(map[string]RebalanceAction, len(actions))
	for _, a := range actions {
		byKey[a.Symbol] = a
	}

	if a, ok := byKey["BTCUSDT"]; !ok || a.Amount != 500 {
		t.Errorf("BTC amount = %v, want capped 500", a.Amount)
	}
	if a, ok := byKey["ETHUSDT"]; !ok || math.Abs(a.Amount-340) > 1e-9 {
		t.Errorf("ETH amount = %v, want 340", a.Amount)
	}
	if _, ok := byKey["DUSTUSDT"]; ok {
		t.Error("DUST below min trade amount should be skipped")
	}
}

func TestSellActionForOverweightPosition(t *testing.T) {
	b := NewBalancer(&Config{
		TargetAllocations:  map[string]float64{"BTCUSDT": 0.2, "ETHUSDT": 0.8},
		RebalanceThreshold: 0.05,
		MinTradeAmount:     10,
		MaxTradeAmount:     10000,
		RebalanceInterval:  time.Hour,
	})

	// BTC holds 60% of a 10000 book against a 20% target
	b.UpdatePositions([]bitget.Position{
		{Symbol: "BTCUSDT", Size: 0.12, MarkPrice: 50000},
		{Symbol: "ETHUSDT", Size: 1, MarkPrice: 4000},
	}, nil)

	actions := b.EvaluateRebalancing(10000)
	var btc *RebalanceAction
	for i := range actions {
		if actions[i].Symbol == "BTCUSDT" {
			btc = &actions[i]
		}
	}
	if btc == nil {
		t.Fatal("expected BTC action")
	}
	if btc.Action != ActionSell {
		t.Errorf("BTC action = %s, want sell", btc.Action)
	}
	if math.Abs(btc.Amount-4000) > 1e-9 {
		t.Errorf("BTC amount = %v, want 4000 (60%% -> 20%% of 10000)", btc.Amount)
	}
}

func TestCalculateTradeSizes(t *testing.T) {
	b := NewBalancer(nil)

	actions := []RebalanceAction{
		{Symbol: "BTCUSDT", Action: ActionBuy, CurrentQuantity: 0.01, Amount: 500},
		{Symbol: "ETHUSDT", Action: ActionSell, CurrentQuantity: 2, Amount: 4000},
		{Symbol: "NOPRICE", Action: ActionBuy, Amount: 100},
	}
	prices := map[string]float64{"BTCUSDT": 50000, "ETHUSDT": 4000}

	sized := b.CalculateTradeSizes(actions, prices)

	if math.Abs(sized[0].TargetQuantity-0.02) > 1e-9 {
		t.Errorf("BTC target quantity = %v, want 0.02", sized[0].TargetQuantity)
	}
	if math.Abs(sized[1].TargetQuantity-1) > 1e-9 {
		t.Errorf("ETH target quantity = %v, want 1", sized[1].TargetQuantity)
	}
	if sized[2].TargetQuantity != 0 {
		t.Errorf("missing price should leave target quantity zero, got %v", sized[2].TargetQuantity)
	}
}

func TestUpdateTargetAllocationsValidation(t *testing.T) {
	b := NewBalancer(nil)

	if err := b.UpdateTargetAllocations(map[string]float64{"BTCUSDT": 0.5, "ETHUSDT": 0.6}); err == nil {
		t.Error("expected error for weights summing to 1.1")
	}
	if err := b.UpdateTargetAllocations(map[string]float64{"BTCUSDT": 1.5, "ETHUSDT": -0.5}); err == nil {
		t.Error("expected error for negative weight")
	}
	if err := b.UpdateTargetAllocations(nil); err == nil {
		t.Error("expected error for empty targets")
	}

	// rejected updates leave targets untouched
	report := b.DeviationReport()
	if len(report) != len(DefaultConfig().TargetAllocations) {
		t.Fatalf("targets mutated by rejected update: %d entries", len(report))
	}

	if err := b.UpdateTargetAllocations(map[string]float64{"BTCUSDT": 0.6, "ETHUSDT": 0.4}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(b.DeviationReport()); got != 2 {
		t.Errorf("expected 2 targets after update, got %d", got)
	}
}

func TestDeviationReportSorted(t *testing.T) {
	b := NewBalancer(&Config{
		TargetAllocations:  map[string]float64{"BTCUSDT": 0.7, "ETHUSDT": 0.3},
		RebalanceThreshold: 0.05,
		RebalanceInterval:  time.Hour,
	})
	b.UpdatePositions([]bitget.Position{
		{Symbol: "ETHUSDT", Size: 1, MarkPrice: 4000},
	}, nil)

	report := b.DeviationReport()
	if len(report) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(report))
	}
	// ETH holds 100% against 30%, deviation 0.7; BTC 0 against 0.7
	if report[0].Deviation < report[1].Deviation {
		t.Error("report not sorted by descending deviation")
	}
}
