package bitget

import (
	"sync"
	"time"
)

// Cache staleness windows. Prices update continuously over the websocket
// stream; candles only change when a bar closes.
const (
	priceTTL  = 30 * time.Second
	candleTTL = 60 * time.Second
)

type cachedPrice struct {
	price     float64
	updatedAt time.Time
}

type cachedCandles struct {
	data      []Candle
	updatedAt time.Time
}

// MarketDataCache provides thread-safe caching for market data fed from
// websocket streams with a REST fallback
type MarketDataCache struct {
	prices  sync.Map // symbol -> *cachedPrice
	candles sync.Map // "symbol:granularity" -> *cachedCandles

	statsMu   sync.Mutex
	hitCount  int64
	missCount int64
}

// NewMarketDataCache creates a new market data cache
func NewMarketDataCache() *MarketDataCache {
	return &MarketDataCache{}
}

// GetPrice returns the cached last price for a symbol, if fresh
func (c *MarketDataCache) GetPrice(symbol string) (float64, bool) {
	if val, ok := c.prices.Load(symbol); ok {
		cached := val.(*cachedPrice)
		if time.Since(cached.updatedAt) < priceTTL {
			c.recordHit()
			return cached.price, true
		}
	}
	c.recordMiss()
	return 0, false
}

// UpdatePrice stores the latest price for a symbol
func (c *MarketDataCache) UpdatePrice(symbol string, price float64) {
	c.prices.Store(symbol, &cachedPrice{price: price, updatedAt: time.Now()})
}

// GetCandles returns cached candles for a symbol and granularity, if fresh
func (c *MarketDataCache) GetCandles(symbol, granularity string, limit int) []Candle {
	key := symbol + ":" + granularity
	if val, ok := c.candles.Load(key); ok {
		cached := val.(*cachedCandles)
		if time.Since(cached.updatedAt) < candleTTL {
			c.recordHit()
			data := cached.data
			if limit > 0 && len(data) > limit {
				return data[len(data)-limit:]
			}
			return data
		}
	}
	c.recordMiss()
	return nil
}

// SetCandles replaces the cached candle series for a symbol
func (c *MarketDataCache) SetCandles(symbol, granularity string, candles []Candle) {
	key := symbol + ":" + granularity
	c.candles.Store(key, &cachedCandles{data: candles, updatedAt: time.Now()})
}

// UpdateCandle merges a single streamed candle into the cached series,
// replacing the bar with the same open time or appending a new one
func (c *MarketDataCache) UpdateCandle(symbol, granularity string, candle Candle) {
	key := symbol + ":" + granularity

	var cached *cachedCandles
	if val, ok := c.candles.Load(key); ok {
		cached = val.(*cachedCandles)
	} else {
		cached = &cachedCandles{data: make([]Candle, 0, 100)}
	}

	if n := len(cached.data); n > 0 && cached.data[n-1].Timestamp == candle.Timestamp {
		cached.data[n-1] = candle
	} else {
		cached.data = append(cached.data, candle)
		if len(cached.data) > 100 {
			cached.data = cached.data[1:]
		}
	}

	cached.updatedAt = time.Now()
	c.candles.Store(key, cached)
	c.UpdatePrice(symbol, candle.Close)
}

func (c *MarketDataCache) recordHit() {
	c.statsMu.Lock()
	c.hitCount++
	c.statsMu.Unlock()
}

func (c *MarketDataCache) recordMiss() {
	c.statsMu.Lock()
	c.missCount++
	c.statsMu.Unlock()
}

// Stats returns cache hit/miss counters and the hit rate percentage
func (c *MarketDataCache) Stats() (hits, misses int64, hitRate float64) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	hits = c.hitCount
	misses = c.missCount
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	return
}
