// Package sizing converts account equity and risk limits into position
// quantities. All functions are pure and fail soft: invalid arithmetic
// (zero price, zero stop distance) yields a zero quantity, never a panic.
package sizing

import "math"

// DefaultATRMultiplier is the stop distance multiplier for volatility sizing
const DefaultATRMultiplier = 2.0

// SizeByRisk returns the base-currency quantity to trade so that hitting the
// stop loses at most maxRiskPct of equity. With stopLossPercent <= 0 the
// position is sized directly from the risk budget and leverage.
func SizeByRisk(equity, maxRiskPct, price, leverage, stopLossPercent float64) float64 {
	if equity <= 0 || maxRiskPct <= 0 || price <= 0 || leverage <= 0 {
		return 0
	}

	riskAmount := equity * maxRiskPct / 100

	var quantity float64
	if stopLossPercent > 0 {
		stopDistance := price * stopLossPercent / 100
		if stopDistance == 0 {
			return 0
		}
		quantity = riskAmount / stopDistance * leverage
	} else {
		quantity = riskAmount * leverage / price
	}

	return round6(quantity)
}

// SizeByVolatility sizes like SizeByRisk but derives the stop distance from
// the average true range instead of a fixed percentage
func SizeByVolatility(equity, maxRiskPct, price, leverage, atr, atrMultiplier float64) float64 {
	if equity <= 0 || maxRiskPct <= 0 || price <= 0 || leverage <= 0 {
		return 0
	}
	if atrMultiplier <= 0 {
		atrMultiplier = DefaultATRMultiplier
	}

	stopDistance := atr * atrMultiplier
	if stopDistance <= 0 {
		return 0
	}

	riskAmount := equity * maxRiskPct / 100
	return round6(riskAmount / stopDistance * leverage)
}

func round6(v float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*1e6) / 1e6
}
