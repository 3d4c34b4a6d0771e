package bitget

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// BaseURL is the production Bitget API URL
	BaseURL = "https://api.bitget.com"

	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond
	maxRetryDelay  = 5 * time.Second
)

// RESTClient implements the Client interface against the Bitget v2 mix API
type RESTClient struct {
	apiKey      string
	secretKey   string
	passphrase  string
	baseURL     string
	httpClient  *http.Client
	rateLimiter *RateLimiter
	cache       *MarketDataCache
}

// NewRESTClient creates a new Bitget REST client
func NewRESTClient(apiKey, secretKey, passphrase, baseURL string) *RESTClient {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &RESTClient{
		apiKey:      apiKey,
		secretKey:   secretKey,
		passphrase:  passphrase,
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		rateLimiter: NewRateLimiter(),
		cache:       NewMarketDataCache(),
	}
}

// Cache returns the market data cache, shared with the websocket stream
func (c *RESTClient) Cache() *MarketDataCache {
	return c.cache
}

// GetCandles fetches OHLCV bars for a symbol.
// Bitget returns candles as string arrays: [ts, open, high, low, close, baseVol, quoteVol].
func (c *RESTClient) GetCandles(symbol, granularity string, limit int) ([]Candle, error) {
	if cached := c.cache.GetCandles(symbol, granularity, limit); cached != nil {
		return cached, nil
	}

	params := map[string]string{
		"symbol":      symbol,
		"productType": ProductUSDTFutures,
		"granularity": granularity,
		"limit":       strconv.Itoa(limit),
	}

	body, err := c.get("/api/v2/mix/market/candles", params)
	if err != nil {
		return nil, fmt.Errorf("get candles %s: %w", symbol, err)
	}

	var resp struct {
		apiResponse
		Data [][]string `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse candles response: %w", err)
	}

	candles := make([]Candle, 0, len(resp.Data))
	for _, row := range resp.Data {
		if len(row) < 6 {
			continue
		}
		ts, _ := strconv.ParseInt(row[0], 10, 64)
		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		closePrice, _ := strconv.ParseFloat(row[4], 64)
		volume, _ := strconv.ParseFloat(row[5], 64)
		candles = append(candles, Candle{
			Timestamp: ts,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
		})
	}

	c.cache.SetCandles(symbol, granularity, candles)
	return candles, nil
}

// GetTicker fetches the 24h ticker for a symbol
func (c *RESTClient) GetTicker(symbol string) (*Ticker, error) {
	params := map[string]string{
		"symbol":      symbol,
		"productType": ProductUSDTFutures,
	}

	body, err := c.get("/api/v2/mix/market/ticker", params)
	if err != nil {
		return nil, fmt.Errorf("get ticker %s: %w", symbol, err)
	}

	var resp struct {
		apiResponse
		Data []struct {
			Symbol      string `json:"symbol"`
			LastPr      string `json:"lastPr"`
			High24h     string `json:"high24h"`
			Low24h      string `json:"low24h"`
			Change24h   string `json:"change24h"`
			QuoteVolume string `json:"quoteVolume"`
			Ts          string `json:"ts"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse ticker response: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no ticker data for %s", symbol)
	}

	d := resp.Data[0]
	last, _ := strconv.ParseFloat(d.LastPr, 64)
	high, _ := strconv.ParseFloat(d.High24h, 64)
	low, _ := strconv.ParseFloat(d.Low24h, 64)
	change, _ := strconv.ParseFloat(d.Change24h, 64)
	quoteVol, _ := strconv.ParseFloat(d.QuoteVolume, 64)
	ts, _ := strconv.ParseInt(d.Ts, 10, 64)

	ticker := &Ticker{
		Symbol:      d.Symbol,
		LastPrice:   last,
		High24h:     high,
		Low24h:      low,
		Change24h:   change,
		QuoteVolume: quoteVol,
		Timestamp:   ts,
	}
	c.cache.UpdatePrice(symbol, last)
	return ticker, nil
}

// GetCurrentPrice returns the last traded price for a symbol
func (c *RESTClient) GetCurrentPrice(symbol string) (float64, error) {
	if price, ok := c.cache.GetPrice(symbol); ok {
		return price, nil
	}
	ticker, err := c.GetTicker(symbol)
	if err != nil {
		return 0, err
	}
	return ticker.LastPrice, nil
}

// GetAccountBalance fetches the USDT margin account state
func (c *RESTClient) GetAccountBalance() (*AccountBalance, error) {
	params := map[string]string{
		"productType": ProductUSDTFutures,
	}

	body, err := c.signedGet("/api/v2/mix/account/accounts", params)
	if err != nil {
		return nil, fmt.Errorf("get account balance: %w", err)
	}

	var resp struct {
		apiResponse
		Data []struct {
			MarginCoin          string `json:"marginCoin"`
			Available           string `json:"available"`
			AccountEquity       string `json:"accountEquity"`
			UnrealizedPL        string `json:"unrealizedPL"`
			CrossedMaxAvailable string `json:"crossedMaxAvailable"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse account response: %w", err)
	}

	for _, d := range resp.Data {
		if d.MarginCoin != MarginCoinUSDT {
			continue
		}
		available, _ := strconv.ParseFloat(d.Available, 64)
		equity, _ := strconv.ParseFloat(d.AccountEquity, 64)
		upl, _ := strconv.ParseFloat(d.UnrealizedPL, 64)
		maxAvail, _ := strconv.ParseFloat(d.CrossedMaxAvailable, 64)
		return &AccountBalance{
			MarginCoin:          d.MarginCoin,
			Available:           available,
			Equity:              equity,
			UnrealizedPnL:       upl,
			CrossedMaxAvailable: maxAvail,
		}, nil
	}
	return nil, fmt.Errorf("no USDT account in response")
}

// GetPositions fetches open positions, optionally filtered by symbol
func (c *RESTClient) GetPositions(symbol string) ([]Position, error) {
	params := map[string]string{
		"productType": ProductUSDTFutures,
		"marginCoin":  MarginCoinUSDT,
	}
	endpoint := "/api/v2/mix/position/all-position"
	if symbol != "" {
		endpoint = "/api/v2/mix/position/single-position"
		params["symbol"] = symbol
	}

	body, err := c.signedGet(endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}

	var resp struct {
		apiResponse
		Data []struct {
			Symbol       string `json:"symbol"`
			HoldSide     string `json:"holdSide"`
			Total        string `json:"total"`
			Leverage     string `json:"leverage"`
			OpenPriceAvg string `json:"openPriceAvg"`
			MarkPrice    string `json:"markPrice"`
			UnrealizedPL string `json:"unrealizedPL"`
			MarginSize   string `json:"marginSize"`
			UTime        string `json:"uTime"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse positions response: %w", err)
	}

	positions := make([]Position, 0, len(resp.Data))
	for _, d := range resp.Data {
		size, _ := strconv.ParseFloat(d.Total, 64)
		if size == 0 {
			continue
		}
		leverage, _ := strconv.ParseFloat(d.Leverage, 64)
		openPrice, _ := strconv.ParseFloat(d.OpenPriceAvg, 64)
		markPrice, _ := strconv.ParseFloat(d.MarkPrice, 64)
		upl, _ := strconv.ParseFloat(d.UnrealizedPL, 64)
		marginSize, _ := strconv.ParseFloat(d.MarginSize, 64)
		uTime, _ := strconv.ParseInt(d.UTime, 10, 64)
		positions = append(positions, Position{
			Symbol:           d.Symbol,
			HoldSide:         d.HoldSide,
			Size:             size,
			Leverage:         leverage,
			AverageOpenPrice: openPrice,
			MarkPrice:        markPrice,
			UnrealizedPnL:    upl,
			MarginSize:       marginSize,
			UpdatedAt:        time.UnixMilli(uTime),
		})
	}
	return positions, nil
}

// PlaceOrder submits an order to the mix order endpoint
func (c *RESTClient) PlaceOrder(params OrderParams) (*OrderResponse, error) {
	if params.MarginCoin == "" {
		params.MarginCoin = MarginCoinUSDT
	}

	body, err := c.signedPost("/api/v2/mix/order/place-order", params)
	if err != nil {
		return nil, fmt.Errorf("place order %s: %w", params.Symbol, err)
	}

	var resp struct {
		apiResponse
		Data OrderResponse `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse order response: %w", err)
	}
	if resp.Code != "00000" {
		return nil, fmt.Errorf("order rejected by exchange: %s (%s)", resp.Msg, resp.Code)
	}
	resp.Data.Status = "submitted"
	return &resp.Data, nil
}

// CancelOrder cancels an open order
func (c *RESTClient) CancelOrder(symbol, orderID string) error {
	payload := map[string]string{
		"symbol":      symbol,
		"productType": ProductUSDTFutures,
		"orderId":     orderID,
	}
	body, err := c.signedPost("/api/v2/mix/order/cancel-order", payload)
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("parse cancel response: %w", err)
	}
	if resp.Code != "00000" {
		return fmt.Errorf("cancel rejected by exchange: %s (%s)", resp.Msg, resp.Code)
	}
	return nil
}

// ==================== HTTP PLUMBING ====================

// get performs an unauthenticated GET request with rate limiting and retry
func (c *RESTClient) get(endpoint string, params map[string]string) ([]byte, error) {
	return c.request(http.MethodGet, endpoint, params, nil, false)
}

// signedGet performs an authenticated GET request
func (c *RESTClient) signedGet(endpoint string, params map[string]string) ([]byte, error) {
	return c.request(http.MethodGet, endpoint, params, nil, true)
}

// signedPost performs an authenticated POST request with a JSON body
func (c *RESTClient) signedPost(endpoint string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	return c.request(http.MethodPost, endpoint, nil, body, true)
}

func (c *RESTClient) request(method, endpoint string, params map[string]string, body []byte, signed bool) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseRetryDelay * time.Duration(1<<uint(attempt-1))
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			time.Sleep(delay)
		}

		if !c.rateLimiter.WaitForSlot(endpoint, 30*time.Second) {
			return nil, fmt.Errorf("rate limit: request budget exhausted for %s", endpoint)
		}

		requestPath := endpoint
		if len(params) > 0 {
			values := url.Values{}
			for k, v := range params {
				values.Set(k, v)
			}
			requestPath = endpoint + "?" + values.Encode()
		}

		req, err := http.NewRequest(method, c.baseURL+requestPath, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		if signed {
			timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
			req.Header.Set("ACCESS-KEY", c.apiKey)
			req.Header.Set("ACCESS-SIGN", c.sign(timestamp, method, requestPath, body))
			req.Header.Set("ACCESS-TIMESTAMP", timestamp)
			req.Header.Set("ACCESS-PASSPHRASE", c.passphrase)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.rateLimiter.RecordError()
			continue
		}

		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited by exchange (429)")
			c.rateLimiter.RecordThrottle()
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("exchange server error: %d", resp.StatusCode)
			c.rateLimiter.RecordError()
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
		}

		c.rateLimiter.RecordSuccess()
		return data, nil
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, lastErr)
}

// sign builds the Bitget v2 request signature:
// base64(hmac-sha256(timestamp + method + requestPath + body))
func (c *RESTClient) sign(timestamp, method, requestPath string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(method))
	mac.Write([]byte(requestPath))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
