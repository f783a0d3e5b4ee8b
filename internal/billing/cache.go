package billing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const revenueCacheKey = "gescom:billing:revenue_summary"

// RevenueCache stores the revenue summary in Redis for a bounded time.
type RevenueCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRevenueCache constructs a cache with the given TTL.
func NewRevenueCache(client *redis.Client, ttl time.Duration) *RevenueCache {
	return &RevenueCache{client: client, ttl: ttl}
}

// Get returns the cached summary, or false when absent.
func (c *RevenueCache) Get(ctx context.Context) (RevenueSummary, bool) {
	if c == nil || c.client == nil {
		return RevenueSummary{}, false
	}
	raw, err := c.client.Get(ctx, revenueCacheKey).Bytes()
	if err != nil {
		return RevenueSummary{}, false
	}
	var summary RevenueSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return RevenueSummary{}, false
	}
	return summary, true
}

// Set stores the summary.
func (c *RevenueCache) Set(ctx context.Context, summary RevenueSummary) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, revenueCacheKey, raw, c.ttl).Err()
}

// Invalidate drops the cached summary after a write that changes revenue.
func (c *RevenueCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, revenueCacheKey).Err()
}
