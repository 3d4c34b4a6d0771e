// Package cache provides Redis-backed shared state for the trading engine:
// daily intent sequences, balance snapshots and trade locks. Redis outages
// degrade gracefully; callers fall back to local state on error.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thomasjamais/bitget-agent-sub001/config"
)

// Key prefixes for the engine's cache entries
const (
	PrefixIntentSequence  = "engine:sequence:%s" // dateKey
	PrefixBalanceSnapshot = "engine:balance:%s"  // account id
	PrefixTradeLock       = "engine:lock:%s"     // symbol
	PrefixTickerSnapshot  = "engine:ticker:%s"   // symbol
	PrefixRiskState       = "engine:risk:%s"     // strategy id
)

// Default TTLs
const (
	DefaultSequenceTTL = 48 * time.Hour // survives timezone edge cases around midnight
	DefaultBalanceTTL  = 30 * time.Second
	DefaultLockTTL     = 2 * time.Hour
)

// CacheService wraps Redis with a small circuit breaker. When Redis is down
// operations fail fast with an error instead of blocking the trade path.
type CacheService struct {
	client       *redis.Client
	config       config.RedisConfig
	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures     int
	checkInterval   time.Duration
	recoveryBackoff time.Duration
}

// NewCacheService connects to Redis. A failed initial connection returns a
// degraded service, not an error; the breaker reopens it when Redis recovers.
func NewCacheService(cfg config.RedisConfig) (*CacheService, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	cs := &CacheService{
		client:          client,
		config:          cfg,
		maxFailures:     3,
		checkInterval:   30 * time.Second,
		recoveryBackoff: 5 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return cs, nil
	}

	cs.healthy = true
	cs.lastCheck = time.Now()
	return cs, nil
}

// IsHealthy reports whether Redis is currently usable
func (cs *CacheService) IsHealthy() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.healthy
}

func (cs *CacheService) recordFailure() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.failureCount++
	if cs.failureCount >= cs.maxFailures {
		cs.healthy = false
	}
}

func (cs *CacheService) recordSuccess() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.healthy = true
	cs.failureCount = 0
	cs.lastCheck = time.Now()
}

// checkHealth schedules a background ping once the breaker is open and the
// check interval has elapsed
func (cs *CacheService) checkHealth(ctx context.Context) {
	cs.mu.RLock()
	shouldCheck := !cs.healthy && time.Since(cs.lastCheck) >= cs.checkInterval
	cs.mu.RUnlock()

	if !shouldCheck {
		return
	}

	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := cs.client.Ping(pingCtx).Err(); err == nil {
			cs.recordSuccess()
		}
	}()
}

// Get retrieves a value. redis.Nil is a cache miss, not a breaker failure.
func (cs *CacheService) Get(ctx context.Context, key string) (string, error) {
	cs.checkHealth(ctx)

	if !cs.IsHealthy() {
		return "", fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	result, err := cs.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", err
		}
		cs.recordFailure()
		return "", fmt.Errorf("redis get failed: %w", err)
	}

	cs.recordSuccess()
	return result, nil
}

// Set stores a value with a TTL. Non-string values are JSON encoded.
func (cs *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	cs.checkHealth(ctx)

	if !cs.IsHealthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	var data string
	switch v := value.(type) {
	case string:
		data = v
	case []byte:
		data = string(v)
	default:
		jsonData, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
		data = string(jsonData)
	}

	if err := cs.client.Set(ctx, key, data, ttl).Err(); err != nil {
		cs.recordFailure()
		return fmt.Errorf("redis set failed: %w", err)
	}

	cs.recordSuccess()
	return nil
}

// Delete removes a key
func (cs *CacheService) Delete(ctx context.Context, key string) error {
	cs.checkHealth(ctx)

	if !cs.IsHealthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	if err := cs.client.Del(ctx, key).Err(); err != nil {
		cs.recordFailure()
		return fmt.Errorf("redis delete failed: %w", err)
	}

	cs.recordSuccess()
	return nil
}

// IncrementDailySequence atomically bumps the day's intent counter and
// returns the new 1-indexed value. The key expires after DefaultSequenceTTL.
func (cs *CacheService) IncrementDailySequence(ctx context.Context, dateKey string) (int64, error) {
	cs.checkHealth(ctx)

	if !cs.IsHealthy() {
		return 0, fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	key := fmt.Sprintf(PrefixIntentSequence, dateKey)

	val, err := cs.client.Incr(ctx, key).Result()
	if err != nil {
		cs.recordFailure()
		return 0, fmt.Errorf("redis incr failed: %w", err)
	}

	if val == 1 {
		cs.client.Expire(ctx, key, DefaultSequenceTTL)
	}

	cs.recordSuccess()
	return val, nil
}

// AcquireTradeLock attempts a SET NX lock for a symbol. Returns false when
// another holder owns the lock.
func (cs *CacheService) AcquireTradeLock(ctx context.Context, symbol, owner string, ttl time.Duration) (bool, error) {
	cs.checkHealth(ctx)

	if !cs.IsHealthy() {
		return false, fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	key := fmt.Sprintf(PrefixTradeLock, symbol)

	ok, err := cs.client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		cs.recordFailure()
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}

	cs.recordSuccess()
	return ok, nil
}

// ReleaseTradeLock drops a symbol's trade lock
func (cs *CacheService) ReleaseTradeLock(ctx context.Context, symbol string) error {
	return cs.Delete(ctx, fmt.Sprintf(PrefixTradeLock, symbol))
}

// GetJSON retrieves and unmarshals a JSON value
func (cs *CacheService) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := cs.Get(ctx, key)
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return nil
}

// SetJSON marshals and stores a JSON value
func (cs *CacheService) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return cs.Set(ctx, key, value, ttl)
}

// Close closes the Redis connection
func (cs *CacheService) Close() error {
	if cs.client != nil {
		return cs.client.Close()
	}
	return nil
}

// Ping checks Redis connectivity and updates breaker state
func (cs *CacheService) Ping(ctx context.Context) error {
	if err := cs.client.Ping(ctx).Err(); err != nil {
		cs.recordFailure()
		return err
	}
	cs.recordSuccess()
	return nil
}

// Stats is a read-only snapshot for the status API
type Stats struct {
	Healthy      bool   `json:"healthy"`
	FailureCount int    `json:"failure_count"`
	Address      string `json:"address"`
	PoolSize     int    `json:"pool_size"`
}

// GetStats returns current breaker and pool statistics
func (cs *CacheService) GetStats() Stats {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	return Stats{
		Healthy:      cs.healthy,
		FailureCount: cs.failureCount,
		Address:      cs.config.Address,
		PoolSize:     cs.config.PoolSize,
	}
}

// BalanceSnapshotKey is the cache key for an account's balance snapshot
func BalanceSnapshotKey(accountID string) string {
	return fmt.Sprintf(PrefixBalanceSnapshot, accountID)
}

// TickerSnapshotKey is the cache key for a symbol's last ticker
func TickerSnapshotKey(symbol string) string {
	return fmt.Sprintf(PrefixTickerSnapshot, symbol)
}

// RiskStateKey is the cache key for a strategy's persisted risk counters
func RiskStateKey(strategyID string) string {
	return fmt.Sprintf(PrefixRiskState, strategyID)
}
