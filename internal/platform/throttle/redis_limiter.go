// Package throttle guards the join path against bursts (redis fixed window
// plus a noop mode for deployments without redis).
package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mfreitas/giveaway-engine/internal/domain"
)

var ErrThrottled = fmt.Errorf("join limit reached")

// RedisLimiter counts joins per (lottery, user) in fixed windows.
type RedisLimiter struct {
	client    *redis.Client
	limit     int
	window    time.Duration
	keyPrefix string
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "throttle"
	}
	return &RedisLimiter{
		client:    client,
		limit:     limit,
		window:    window,
		keyPrefix: prefix,
	}
}

func (r *RedisLimiter) Allow(ctx context.Context, lotteryID uint64, userID int64) error {
	if r.client == nil || r.limit <= 0 || r.window <= 0 {
		// Misconfigured limiters fall back to permissive mode.
		return nil
	}

	key := fmt.Sprintf("%s:%d:%d", r.keyPrefix, lotteryID, userID)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("throttle: increment key: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			return fmt.Errorf("throttle: set expiry: %w", err)
		}
	}

	if int(count) > r.limit {
		return ErrThrottled
	}

	return nil
}

var _ domain.Throttle = (*RedisLimiter)(nil)
