package bitget

import (
	"fmt"
	"sync"
	"time"
)

// MockClient is a deterministic in-memory implementation of Client used for
// dry-run mode and tests
type MockClient struct {
	mu sync.Mutex

	Candles   map[string][]Candle // key: symbol:granularity
	Prices    map[string]float64
	Balance   *AccountBalance
	OpenPos   []Position
	Orders    []OrderParams // recorded placements
	CandleErr error
	OrderErr  error

	orderSeq int
}

// NewMockClient creates a mock with an empty but usable state
func NewMockClient() *MockClient {
	return &MockClient{
		Candles: make(map[string][]Candle),
		Prices:  make(map[string]float64),
		Balance: &AccountBalance{
			MarginCoin: MarginCoinUSDT,
			Available:  10000,
			Equity:     10000,
		},
	}
}

// SetCandles seeds the candle series for a symbol and granularity
func (m *MockClient) SetCandles(symbol, granularity string, candles []Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Candles[symbol+":"+granularity] = candles
	if len(candles) > 0 {
		m.Prices[symbol] = candles[len(candles)-1].Close
	}
}

func (m *MockClient) GetCandles(symbol, granularity string, limit int) ([]Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CandleErr != nil {
		return nil, m.CandleErr
	}
	candles := m.Candles[symbol+":"+granularity]
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

func (m *MockClient) GetTicker(symbol string) (*Ticker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	price, ok := m.Prices[symbol]
	if !ok {
		return nil, fmt.Errorf("no mock price for %s", symbol)
	}
	return &Ticker{
		Symbol:    symbol,
		LastPrice: price,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

func (m *MockClient) GetCurrentPrice(symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	price, ok := m.Prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no mock price for %s", symbol)
	}
	return price, nil
}

func (m *MockClient) GetAccountBalance() (*AccountBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Balance == nil {
		return nil, fmt.Errorf("no mock balance configured")
	}
	balance := *m.Balance
	return &balance, nil
}

func (m *MockClient) GetPositions(symbol string) ([]Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if symbol == "" {
		return append([]Position(nil), m.OpenPos...), nil
	}
	var filtered []Position
	for _, p := range m.OpenPos {
		if p.Symbol == symbol {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func (m *MockClient) PlaceOrder(params OrderParams) (*OrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OrderErr != nil {
		return nil, m.OrderErr
	}
	m.orderSeq++
	m.Orders = append(m.Orders, params)
	return &OrderResponse{
		OrderID:   fmt.Sprintf("mock-%d", m.orderSeq),
		ClientOid: params.ClientOid,
		Status:    "submitted",
	}, nil
}

func (m *MockClient) CancelOrder(symbol, orderID string) error {
	return nil
}

// PlacedOrders returns a copy of all recorded order placements
func (m *MockClient) PlacedOrders() []OrderParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OrderParams(nil), m.Orders...)
}
