package bitget

// Client defines the interface for Bitget mix (USDT-perpetual) API operations
type Client interface {
	GetCandles(symbol, granularity string, limit int) ([]Candle, error)
	GetTicker(symbol string) (*Ticker, error)
	GetCurrentPrice(symbol string) (float64, error)
	GetAccountBalance() (*AccountBalance, error)
	GetPositions(symbol string) ([]Position, error)
	PlaceOrder(params OrderParams) (*OrderResponse, error)
	CancelOrder(symbol, orderID string) error
}

// Ensure both RESTClient and MockClient implement Client
var _ Client = (*RESTClient)(nil)
var _ Client = (*MockClient)(nil)
