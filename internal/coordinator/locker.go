package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/papeleria/papeleria/internal/shared"
)

// RedisLocker obtains one redislock per key.
type RedisLocker struct {
	client  *redislock.Client
	ttl     time.Duration
	retries int
	backoff time.Duration
}

// NewRedisLocker builds a locker on top of rdb. ttl bounds how long a crashed
// holder can block others.
func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl, retries: 20, backoff: 50 * time.Millisecond}
}

// Lock acquires every key in order or none of them.
func (l *RedisLocker) Lock(ctx context.Context, keys []string) (func(context.Context), error) {
	held := make([]*redislock.Lock, 0, len(keys))
	release := func(ctx context.Context) {
		for i := len(held) - 1; i >= 0; i-- {
			_ = held[i].Release(ctx)
		}
	}
	opts := &redislock.Options{RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.backoff), l.retries)}
	for _, key := range keys {
		lock, err := l.client.Obtain(ctx, key, l.ttl, opts)
		if err != nil {
			release(ctx)
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, fmt.Errorf("lock %s: %w", key, shared.ErrBusy)
			}
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		held = append(held, lock)
	}
	return release, nil
}
