package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/reflexhq/reflex/internal/logger"
)

// Limiter runs token bucket checks against Redis. Buckets are shared
// across instances, so limits hold fleet-wide.
type Limiter struct {
	client *redis.Client
	logger *logger.Logger
	clock  func() time.Time
}

// NewLimiter creates a Redis-backed limiter
func NewLimiter(client *redis.Client, log *logger.Logger) *Limiter {
	return &Limiter{
		client: client,
		logger: log,
		clock:  time.Now,
	}
}

// Check consumes cost tokens from the bucket identified by key. When
// the bucket holds too few tokens the decision reports how long until
// enough accrue.
func (l *Limiter) Check(ctx context.Context, key Key, limit Limit, cost int) (Decision, error) {
	nowMS := l.clock().UnixMilli()
	ttlMS := limit.horizon().Milliseconds()

	res, err := checkScript.Run(ctx, l.client,
		[]string{key.RedisKey()},
		limit.Capacity, limit.RefillRate, nowMS, cost, ttlMS,
	).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check %s: %w", key.RedisKey(), err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 3 {
		return Decision{}, fmt.Errorf("rate limit check %s: unexpected script reply %T", key.RedisKey(), res)
	}

	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	waitMS, _ := values[2].(int64)

	return Decision{
		Allowed:    allowed == 1,
		Dimension:  key.Dimension,
		Remaining:  int(remaining),
		RetryAfter: time.Duration(waitMS) * time.Millisecond,
	}, nil
}

// Refund returns previously consumed tokens to a bucket. Used to
// reverse earlier dimension checks when a later one denies. Best
// effort: failures are logged, not propagated.
func (l *Limiter) Refund(ctx context.Context, key Key, limit Limit, cost int) {
	err := refundScript.Run(ctx, l.client,
		[]string{key.RedisKey()},
		limit.Capacity, cost,
	).Err()
	if err != nil && err != redis.Nil {
		l.logger.Warn("Rate limit refund failed",
			zap.String("key", key.RedisKey()),
			zap.Error(err))
	}
}

// Ping checks Redis liveness
func (l *Limiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
