package risk

import (
	"strings"
	"testing"
	"time"

	"github.com/thomasjamais/bitget-agent-sub001/internal/bitget"
	"github.com/thomasjamais/bitget-agent-sub001/internal/orders"
)

func testIntent(quantity, leverage float64) orders.OrderIntention {
	return orders.OrderIntention{
		Symbol:   "BTCUSDT",
		Quantity: quantity,
		Leverage: leverage,
	}
}

func TestCheckAllowsWithinLimits(t *testing.T) {
	m := NewManager(DefaultLimits())

	decision := m.CheckPositionRisk(testIntent(100, 2), 10000, nil)
	if !decision.Allowed {
		t.Fatalf("expected allowed, got rejection: %s", decision.Reason)
	}
}

func TestCheckRejectsOnDailyLoss(t *testing.T) {
	m := NewManager(Limits{MaxEquityRisk: 100, MaxDailyLoss: 5, MaxConsecutiveLosses: 10})
	m.UpdateAfterTrade(-6)

	decision := m.CheckPositionRisk(testIntent(10, 1), 10000, nil)
	if decision.Allowed {
		t.Fatal("expected rejection after daily loss breach")
	}
	if !strings.Contains(decision.Reason, "daily loss") {
		t.Errorf("unexpected reason: %s", decision.Reason)
	}
}

func TestConsecutiveLossLockout(t *testing.T) {
	m := NewManager(Limits{MaxEquityRisk: 1000, MaxDailyLoss: 100, MaxConsecutiveLosses: 3})

	for i := 0; i < 3; i++ {
		m.UpdateAfterTrade(-0.5)
	}

	// every check rejects while the streak stands
	for i := 0; i < 5; i++ {
		if d := m.CheckPositionRisk(testIntent(10, 1), 10000, nil); d.Allowed {
			t.Fatal("expected lockout while streak active")
		}
	}

	// a winning trade clears the streak
	m.UpdateAfterTrade(1.0)
	if d := m.CheckPositionRisk(testIntent(10, 1), 10000, nil); !d.Allowed {
		t.Fatalf("expected allowed after winning trade, got: %s", d.Reason)
	}
}

func TestForceResetClearsLockout(t *testing.T) {
	m := NewManager(Limits{MaxEquityRisk: 1000, MaxDailyLoss: 2, MaxConsecutiveLosses: 2})
	m.UpdateAfterTrade(-3)
	m.UpdateAfterTrade(-3)

	if d := m.CheckPositionRisk(testIntent(10, 1), 10000, nil); d.Allowed {
		t.Fatal("expected rejection before reset")
	}

	m.ForceReset()
	if d := m.CheckPositionRisk(testIntent(10, 1), 10000, nil); !d.Allowed {
		t.Fatalf("expected allowed after force reset, got: %s", d.Reason)
	}
}

func TestAggregateExposureCap(t *testing.T) {
	m := NewManager(Limits{MaxEquityRisk: 50, MaxDailyLoss: 100, MaxConsecutiveLosses: 100})

	open := []bitget.Position{
		{Symbol: "ETHUSDT", Size: 1, MarkPrice: 3000, Leverage: 1}, // 30% of 10000
	}

	// 30% open + 25% new = 55% > 50%
	if d := m.CheckPositionRisk(testIntent(2500, 1), 10000, open); d.Allowed {
		t.Fatal("expected rejection above aggregate cap")
	}

	// 30% open + 15% new = 45% within cap
	if d := m.CheckPositionRisk(testIntent(1500, 1), 10000, open); !d.Allowed {
		t.Fatalf("expected allowed within cap, got: %s", d.Reason)
	}
}

func TestStopLossScalesNewPositionRisk(t *testing.T) {
	m := NewManager(Limits{MaxEquityRisk: 10, MaxDailyLoss: 100, MaxConsecutiveLosses: 100})

	// 5000 notional at 10x is 500% of equity unscaled, but a 1% stop caps
	// the actual risk at 5%
	intent := testIntent(5000, 10)
	intent.StopLossPercent = 1

	if d := m.CheckPositionRisk(intent, 10000, nil); !d.Allowed {
		t.Fatalf("expected allowed with tight stop, got: %s", d.Reason)
	}
}

func TestDailyRollover(t *testing.T) {
	m := NewManager(Limits{MaxEquityRisk: 100, MaxDailyLoss: 4, MaxConsecutiveLosses: 100})

	current := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return current })
	m.ForceReset()

	m.UpdateAfterTrade(-5)
	if d := m.CheckPositionRisk(testIntent(10, 1), 10000, nil); d.Allowed {
		t.Fatal("expected rejection on loss day")
	}

	// next calendar day: dailyPnL resets before the check evaluates
	current = current.Add(24 * time.Hour)
	if d := m.CheckPositionRisk(testIntent(10, 1), 10000, nil); !d.Allowed {
		t.Fatalf("expected allowed after daily rollover, got: %s", d.Reason)
	}

	metrics := m.Metrics()
	if metrics["daily_pnl"].(float64) != 0 {
		t.Errorf("daily_pnl = %v after rollover, want 0", metrics["daily_pnl"])
	}
}

func TestUpdateIgnoresInvalidPnL(t *testing.T) {
	m := NewManager(DefaultLimits())
	m.UpdateAfterTrade(nan())

	if m.Metrics()["consecutive_losses"].(int) != 0 {
		t.Error("NaN P&L should not change state")
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}
