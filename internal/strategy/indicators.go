package strategy

import (
	"math"

	"github.com/thomasjamais/bitget-agent-sub001/internal/bitget"
)

// SMA returns the simple moving average of closes over the last period
// candles. Returns 0 when there is not enough data.
func SMA(candles []bitget.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}
	sum := 0.0
	for _, c := range candles[len(candles)-period:] {
		sum += c.Close
	}
	return sum / float64(period)
}

// EMA returns the exponential moving average of closes, seeded with an SMA
// over the first period candles
func EMA(candles []bitget.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}

	multiplier := 2.0 / float64(period+1)
	ema := SMA(candles[:period], period)
	for _, c := range candles[period:] {
		ema = (c.Close-ema)*multiplier + ema
	}
	return ema
}

// RSI returns the relative strength index over the last period candles.
// Returns 50 (neutral) when there is not enough data.
func RSI(candles []bitget.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 50
	}

	var gains, losses float64
	start := len(candles) - period
	for i := start; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	if losses == 0 {
		return 100
	}
	rs := gains / losses
	return 100 - (100 / (1 + rs))
}

// ATR returns the average true range over the last period candles
func ATR(candles []bitget.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0
	}

	sum := 0.0
	start := len(candles) - period
	for i := start; i < len(candles); i++ {
		highLow := candles[i].High - candles[i].Low
		highClose := math.Abs(candles[i].High - candles[i-1].Close)
		lowClose := math.Abs(candles[i].Low - candles[i-1].Close)
		sum += math.Max(highLow, math.Max(highClose, lowClose))
	}
	return sum / float64(period)
}

// AverageVolume returns the mean volume over the last period candles
func AverageVolume(candles []bitget.Candle, period int) float64 {
	if period <= 0 || len(candles) < period {
		return 0
	}
	sum := 0.0
	for _, c := range candles[len(candles)-period:] {
		sum += c.Volume
	}
	return sum / float64(period)
}
