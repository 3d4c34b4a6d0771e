package sizing

import (
	"math"
	"testing"

	"github.com/thomasjamais/bitget-agent-sub001/internal/orders"
	"github.com/thomasjamais/bitget-agent-sub001/internal/strategy"
)

func TestSizeByRiskWithoutStop(t *testing.T) {
	// 1000 equity, 10% risk, 5x leverage at 50000 -> 0.01
	got := SizeByRisk(1000, 10, 50000, 5, 0)
	if got != 0.01 {
		t.Errorf("SizeByRisk = %v, want 0.01", got)
	}
}

func TestSizeByRiskWithStop(t *testing.T) {
	// risk amount 20, stop distance 2% of 100 = 2, 3x leverage -> 30
	got := SizeByRisk(1000, 2, 100, 3, 2)
	if got != 30 {
		t.Errorf("SizeByRisk = %v, want 30", got)
	}
}

func TestSizeByRiskFailsSoft(t *testing.T) {
	cases := []struct {
		name                                          string
		equity, riskPct, price, leverage, stopLossPct float64
	}{
		{"zero price", 1000, 10, 0, 5, 0},
		{"zero equity", 0, 10, 50000, 5, 0},
		{"zero risk", 1000, 0, 50000, 5, 0},
		{"zero leverage", 1000, 10, 50000, 0, 2},
		{"negative price", 1000, 10, -1, 5, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SizeByRisk(tc.equity, tc.riskPct, tc.price, tc.leverage, tc.stopLossPct)
			if got != 0 {
				t.Errorf("SizeByRisk = %v, want 0", got)
			}
		})
	}
}

func TestSizeByRiskNeverNegative(t *testing.T) {
	for _, equity := range []float64{-1000, 0, 1, 1e9} {
		for _, price := range []float64{-5, 0, 0.000001, 1e7} {
			got := SizeByRisk(equity, 5, price, 10, 1.5)
			if got < 0 || math.IsNaN(got) || math.IsInf(got, 0) {
				t.Fatalf("SizeByRisk(%v, 5, %v, 10, 1.5) = %v", equity, price, got)
			}
		}
	}
}

func TestSizeByVolatility(t *testing.T) {
	// risk amount 20, atr 1 x multiplier 2 = stop 2, 1x leverage -> 10
	got := SizeByVolatility(1000, 2, 100, 1, 1, 2)
	if got != 10 {
		t.Errorf("SizeByVolatility = %v, want 10", got)
	}

	if got := SizeByVolatility(1000, 2, 100, 1, 0, 2); got != 0 {
		t.Errorf("SizeByVolatility with zero ATR = %v, want 0", got)
	}
}

func TestSizeByVolatilityDefaultMultiplier(t *testing.T) {
	explicit := SizeByVolatility(1000, 2, 100, 1, 1, DefaultATRMultiplier)
	defaulted := SizeByVolatility(1000, 2, 100, 1, 1, 0)
	if explicit != defaulted {
		t.Errorf("default multiplier mismatch: %v vs %v", explicit, defaulted)
	}
}

func TestSizeRounding(t *testing.T) {
	got := SizeByRisk(1000, 3, 70123.45, 7, 0)
	scaled := got * 1e6
	if scaled != math.Trunc(scaled) {
		t.Errorf("quantity %v not rounded to 6 decimal places", got)
	}
}

func TestThrottleByOpenPositions(t *testing.T) {
	intent := func(symbol string, qty float64) orders.OrderIntention {
		return orders.OrderIntention{Symbol: symbol, Direction: strategy.DirectionLong, Quantity: qty}
	}

	intents := []orders.OrderIntention{
		intent("BTCUSDT", 1),
		intent("ETHUSDT", 2),
		intent("BTCUSDT", 3),
		intent("BTCUSDT", 4),
		intent("ETHUSDT", 5),
	}

	kept := ThrottleByOpenPositions(intents, 2)
	if len(kept) != 4 {
		t.Fatalf("kept %d intents, want 4", len(kept))
	}

	// first-seen wins, order preserved
	wantQty := []float64{1, 2, 3, 5}
	for i, want := range wantQty {
		if kept[i].Quantity != want {
			t.Errorf("kept[%d].Quantity = %v, want %v", i, kept[i].Quantity, want)
		}
	}

	if got := ThrottleByOpenPositions(intents, 0); got != nil {
		t.Errorf("maxPerSymbol=0 should keep nothing, got %v", got)
	}
}
