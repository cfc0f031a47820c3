package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter caps inbound messaging events per chat so a hot loop on the
// transport side cannot starve the rest of the platform.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

func ChatKey(tenantID, chatID string) string {
	return fmt.Sprintf("rate_limit:%s:%s", tenantID, chatID)
}
