package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// counterTTL keeps stale month keys from accumulating. Keys expire well
// after the month they cover ends.
const counterTTL = 45 * 24 * time.Hour

// Counters keeps per-organization usage counters in Redis, keyed by
// calendar month. The counters are the fast path for entitlement checks;
// the usage records table is the durable source of truth.
type Counters struct {
	redis redis.UniversalClient
	now   func() time.Time
}

// NewCounters creates Redis-backed usage counters.
func NewCounters(client redis.UniversalClient) *Counters {
	return &Counters{redis: client, now: time.Now}
}

// TokensUsed returns the tokens consumed this month.
func (c *Counters) TokensUsed(ctx context.Context, orgID uuid.UUID) (int64, error) {
	return c.getInt64(ctx, c.tokenKey(orgID))
}

// AddTokens increments the monthly token counter and returns the new total.
func (c *Counters) AddTokens(ctx context.Context, orgID uuid.UUID, tokens int64) (int64, error) {
	return c.increment(ctx, c.tokenKey(orgID), tokens)
}

// APICallsUsed returns the API calls made this month.
func (c *Counters) APICallsUsed(ctx context.Context, orgID uuid.UUID) (int64, error) {
	return c.getInt64(ctx, c.apiCallKey(orgID))
}

// AddAPICall increments the monthly API call counter.
func (c *Counters) AddAPICall(ctx context.Context, orgID uuid.UUID) (int64, error) {
	return c.increment(ctx, c.apiCallKey(orgID), 1)
}

// ResetPeriod clears the current month's counters. Called when a billing
// period renews.
func (c *Counters) ResetPeriod(ctx context.Context, orgID uuid.UUID) error {
	return c.redis.Del(ctx, c.tokenKey(orgID), c.apiCallKey(orgID)).Err()
}

func (c *Counters) getInt64(ctx context.Context, key string) (int64, error) {
	val, err := c.redis.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

func (c *Counters) increment(ctx context.Context, key string, amount int64) (int64, error) {
	total, err := c.redis.IncrBy(ctx, key, amount).Result()
	if err != nil {
		return 0, err
	}
	c.redis.Expire(ctx, key, counterTTL)
	return total, nil
}

func (c *Counters) tokenKey(orgID uuid.UUID) string {
	return fmt.Sprintf("usage:tokens:%s:%s", orgID.String(), c.now().UTC().Format("2006-01"))
}

func (c *Counters) apiCallKey(orgID uuid.UUID) string {
	return fmt.Sprintf("usage:apicalls:%s:%s", orgID.String(), c.now().UTC().Format("2006-01"))
}
