// Package redis holds the shared rate-limit counters and the event channel.
package redis

import (
	"context"
	"fmt"
	"time"

	"afripay/internal/config"

	goredis "github.com/redis/go-redis/v9"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

func NewClient(cfg config.RedisCfg) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Limiter is a fixed-window counter shared by every API replica.
type Limiter struct {
	rdb    goredis.Cmdable
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewLimiter(rdb goredis.Cmdable, limit int, window time.Duration) *Limiter {
	return &Limiter{rdb: rdb, limit: limit, window: window, prefix: "afripay:ratelimit:", now: time.Now}
}

// Allow counts one hit for key in the current window.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	start := now.Truncate(l.window)
	k := fmt.Sprintf("%s%s:%d", l.prefix, key, start.Unix())

	var incr *goredis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, l.window)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit incr: %w", err)
	}

	count := int(incr.Val())
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   start.Add(l.window),
	}, nil
}

// Ping backs the detailed health check.
func Ping(ctx context.Context, rdb goredis.Cmdable) error {
	return rdb.Ping(ctx).Err()
}
