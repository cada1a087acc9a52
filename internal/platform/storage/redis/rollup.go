// Package redis keeps the per-community rollup counters on Redis so dashboard
// reads stay off the primary store.
package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/mfreitas/giveaway-engine/internal/domain"
)

// Rollup provides increment and bulk-read operations over prefixed keys.
type Rollup struct {
	client *redis.Client
	prefix string
}

func NewRollup(client *redis.Client, prefix string) *Rollup {
	return &Rollup{
		client: client,
		prefix: prefix,
	}
}

func (r *Rollup) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	return r.client.IncrBy(ctx, r.key(key), delta).Result()
}

func (r *Rollup) GetAll(ctx context.Context, keys []string) (map[string]int64, error) {
	if len(keys) == 0 {
		return map[string]int64{}, nil
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = r.key(k)
	}

	// MGET keeps the rollup read to a single round-trip.
	values, err := r.client.MGet(ctx, prefixed...).Result()
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(keys))
	for i, raw := range values {
		if raw == nil {
			result[keys[i]] = 0
			continue
		}

		switch v := raw.(type) {
		case string:
			num, convErr := strconv.ParseInt(v, 10, 64)
			if convErr != nil {
				return nil, fmt.Errorf("redis rollup: invalid value for %s: %w", keys[i], convErr)
			}
			result[keys[i]] = num
		case int64:
			result[keys[i]] = v
		default:
			return nil, fmt.Errorf("redis rollup: unexpected type %T", raw)
		}
	}

	return result, nil
}

func (r *Rollup) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return fmt.Sprintf("%s:%s", r.prefix, k)
}

var _ domain.RollupCounter = (*Rollup)(nil)
