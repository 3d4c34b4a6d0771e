package bitget

import "time"

// ProductType identifies the Bitget mix product family.
const (
	ProductUSDTFutures = "USDT-FUTURES"
	MarginCoinUSDT     = "USDT"
)

// Order sides and trade sides for the mix order API.
const (
	SideBuy  = "buy"
	SideSell = "sell"

	TradeSideOpen  = "open"
	TradeSideClose = "close"

	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"
)

// Candle represents a single OHLCV bar.
type Candle struct {
	Timestamp int64   `json:"timestamp"` // open time, unix millis
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Range returns the high-low range of the candle.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Ticker represents 24h ticker data for a symbol.
type Ticker struct {
	Symbol      string  `json:"symbol"`
	LastPrice   float64 `json:"lastPrice"`
	High24h     float64 `json:"high24h"`
	Low24h      float64 `json:"low24h"`
	Change24h   float64 `json:"change24h"` // fraction, e.g. 0.031 = +3.1%
	QuoteVolume float64 `json:"quoteVolume"`
	Timestamp   int64   `json:"timestamp"`
}

// AccountBalance represents the USDT margin account state.
type AccountBalance struct {
	MarginCoin          string  `json:"marginCoin"`
	Available           float64 `json:"available"`
	Equity              float64 `json:"equity"`
	UnrealizedPnL       float64 `json:"unrealizedPnl"`
	CrossedMaxAvailable float64 `json:"crossedMaxAvailable"`
}

// Position represents an open futures position.
type Position struct {
	Symbol           string    `json:"symbol"`
	HoldSide         string    `json:"holdSide"` // long or short
	Size             float64   `json:"size"`     // base currency quantity
	Leverage         float64   `json:"leverage"`
	AverageOpenPrice float64   `json:"averageOpenPrice"`
	MarkPrice        float64   `json:"markPrice"`
	UnrealizedPnL    float64   `json:"unrealizedPnl"`
	MarginSize       float64   `json:"marginSize"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Notional returns the leveraged economic size of the position.
func (p Position) Notional() float64 {
	return p.Size * p.MarkPrice * p.Leverage
}

// OrderParams holds the parameters for placing a mix order.
type OrderParams struct {
	Symbol                string `json:"symbol"`
	MarginCoin            string `json:"marginCoin"`
	Size                  string `json:"size"` // quote-notional for market orders
	Side                  string `json:"side"`
	TradeSide             string `json:"tradeSide"`
	OrderType             string `json:"orderType"`
	Price                 string `json:"price,omitempty"`
	Leverage              string `json:"leverage,omitempty"`
	ClientOid             string `json:"clientOid,omitempty"` // idempotency token
	ReduceOnly            string `json:"reduceOnly,omitempty"`
	PresetStopLossPrice   string `json:"presetStopLossPrice,omitempty"`
	PresetTakeProfitPrice string `json:"presetStopSurplusPrice,omitempty"`
}

// OrderResponse is the acknowledgement returned by the order endpoint.
type OrderResponse struct {
	OrderID   string `json:"orderId"`
	ClientOid string `json:"clientOid"`
	Status    string `json:"status"`
}

// apiResponse is the common Bitget v2 envelope.
type apiResponse struct {
	Code        string `json:"code"`
	Msg         string `json:"msg"`
	RequestTime int64  `json:"requestTime"`
}
