package orders

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/thomasjamais/bitget-agent-sub001/internal/cache"
)

const (
	// MaxIntentIDLength is the longest clientOid the exchange accepts here
	MaxIntentIDLength = 36

	// FallbackMarker identifies IDs generated while Redis was unavailable
	FallbackMarker = "FB"
)

var (
	ErrIntentIDTooLong   = errors.New("intent ID exceeds maximum length of 36 characters")
	ErrInvalidIntentID   = errors.New("invalid intent ID format")
	ErrEmptyStrategyCode = errors.New("strategy code cannot be empty")
)

// IntentIDGenerator produces structured idempotency tokens for order
// intentions. Format: [CODE]-[DDMMM]-[NNNNN] (e.g. "AGT-15JAN-00001") with
// the sequence allocated atomically in Redis per calendar day. When Redis is
// down it degrades to [CODE]-FB-[8CHAR] random IDs.
type IntentIDGenerator struct {
	cacheService *cache.CacheService
	strategyCode string
	timezone     *time.Location
	logger       zerolog.Logger

	now func() time.Time
}

// NewIntentIDGenerator creates a generator for one strategy instance.
// A nil timezone means UTC.
func NewIntentIDGenerator(cacheService *cache.CacheService, strategyCode string, timezone *time.Location, logger zerolog.Logger) (*IntentIDGenerator, error) {
	code := strings.ToUpper(strings.TrimSpace(strategyCode))
	if code == "" {
		return nil, ErrEmptyStrategyCode
	}
	if len(code) != 3 {
		return nil, fmt.Errorf("strategy code must be 3 characters, got %q", strategyCode)
	}
	if timezone == nil {
		timezone = time.UTC
	}

	return &IntentIDGenerator{
		cacheService: cacheService,
		strategyCode: code,
		timezone:     timezone,
		logger:       logger.With().Str("component", "IntentIDGenerator").Logger(),
		now:          time.Now,
	}, nil
}

// SetClock replaces the wall clock, for deterministic tests
func (g *IntentIDGenerator) SetClock(now func() time.Time) {
	g.now = now
}

// Generate allocates the next intent ID. Redis failures fall back to a
// random ID rather than blocking the trade path.
func (g *IntentIDGenerator) Generate(ctx context.Context) (string, error) {
	now := g.now().In(g.timezone)
	dateStr := strings.ToUpper(now.Format("02Jan"))

	if g.cacheService != nil {
		dateKey := now.Format("20060102")
		seq, err := g.cacheService.IncrementDailySequence(ctx, dateKey)
		if err == nil {
			id := fmt.Sprintf("%s-%s-%05d", g.strategyCode, dateStr, seq)
			if len(id) > MaxIntentIDLength {
				return "", fmt.Errorf("%w: generated ID %q is %d characters", ErrIntentIDTooLong, id, len(id))
			}
			return id, nil
		}
		g.logger.Warn().Err(err).Msg("redis sequence unavailable, using fallback intent ID")
	}

	return g.GenerateFallback(), nil
}

// GenerateFallback builds a random intent ID without Redis.
// Format: [CODE]-FB-[8CHAR] (e.g. "AGT-FB-a3f7c2e9")
func (g *IntentIDGenerator) GenerateFallback() string {
	return fmt.Sprintf("%s-%s-%s", g.strategyCode, FallbackMarker, shortUniqueID())
}

// ValidateIntentID checks that an ID meets the exchange's clientOid rules
// and this generator's structure
func ValidateIntentID(id string) error {
	if id == "" {
		return ErrInvalidIntentID
	}
	if len(id) > MaxIntentIDLength {
		return fmt.Errorf("%w: ID %q is %d characters", ErrIntentIDTooLong, id, len(id))
	}

	parts := strings.Split(id, "-")
	if len(parts) != 3 {
		return fmt.Errorf("%w: expected 3 parts separated by '-'", ErrInvalidIntentID)
	}
	if len(parts[0]) != 3 {
		return fmt.Errorf("%w: strategy code %q should be 3 characters", ErrInvalidIntentID, parts[0])
	}
	return nil
}

// IsFallbackID reports whether the ID was generated without Redis
func IsFallbackID(id string) bool {
	return strings.Contains(id, "-"+FallbackMarker+"-")
}

// shortUniqueID returns 8 hex characters from crypto/rand, falling back to
// the clock if the entropy source fails
func shortUniqueID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xFFFFFFFF)
	}
	return hex.EncodeToString(b)
}
