package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter is a keyed fixed-window counter store. Incr returns the count
// within the current window, including this hit.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter implements [Counter] with Redis INCR/EXPIRE.
type RedisCounter struct {
	redis redis.UniversalClient
}

// NewRedisCounter creates a [Counter] backed by the given Redis client.
func NewRedisCounter(redisClient redis.UniversalClient) *RedisCounter {
	return &RedisCounter{redis: redisClient}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := c.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := c.redis.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
		}
	}

	return count, nil
}
