package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether one more request for key fits in its window.
// Implementations own all per-key state; callers inject them explicitly.
type Limiter interface {
	CheckLimitWithInfo(ctx context.Context, key string, config RateLimitConfig) (*RateLimitInfo, error)
}

type RateLimitConfig struct {
	Requests int           // Number of requests allowed
	Window   time.Duration // Time window
}

// Common rate limit configurations
var (
	// Batch validation fans out to every provider per item
	BatchRateLimit = RateLimitConfig{
		Requests: 10,
		Window:   time.Minute,
	}

	// Live authorizations hit the processor and move money
	AuthorizationRateLimit = RateLimitConfig{
		Requests: 10,
		Window:   time.Minute,
	}

	// Single validations and lookups
	GeneralRateLimit = RateLimitConfig{
		Requests: 100,
		Window:   time.Minute,
	}
)

type RateLimitInfo struct {
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	Reset      time.Time     `json:"reset"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Allowed    bool          `json:"allowed"`
}

// RedisLimiter is a sliding-window limiter over Redis sorted sets, shared
// by every instance pointing at the same Redis.
type RedisLimiter struct {
	client *redis.Client
	now    func() time.Time
	seq    atomic.Uint64
}

func NewRedisLimiter(redisClient *redis.Client) *RedisLimiter {
	return &RedisLimiter{
		client: redisClient,
		now:    time.Now,
	}
}

// CheckLimitWithInfo checks rate limit and returns detailed info
func (rl *RedisLimiter) CheckLimitWithInfo(ctx context.Context, key string, config RateLimitConfig) (*RateLimitInfo, error) {
	now := rl.now()
	windowStart := now.Add(-config.Window)

	// Score is timestamp, member is unique request ID
	pipe := rl.client.Pipeline()

	// Remove entries outside the window
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixMilli()))

	// Count requests in the current window
	countCmd := pipe.ZCard(ctx, key)

	// Oldest request decides when a slot frees up
	oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)

	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: fmt.Sprintf("%d-%d", now.UnixNano(), rl.seq.Add(1)),
	})

	pipe.Expire(ctx, key, config.Window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := countCmd.Val()
	allowed := count < int64(config.Requests)

	info := &RateLimitInfo{
		Limit:     config.Requests,
		Remaining: config.Requests - int(count) - 1,
		Reset:     now.Add(config.Window),
		Allowed:   allowed,
	}

	if info.Remaining < 0 {
		info.Remaining = 0
	}

	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		oldestAt := time.UnixMilli(int64(oldest[0].Score))
		info.Reset = oldestAt.Add(config.Window)
		if !allowed {
			info.RetryAfter = info.Reset.Sub(now)
			if info.RetryAfter < time.Second {
				info.RetryAfter = time.Second
			}
		}
	} else if !allowed {
		info.RetryAfter = config.Window
	}

	return info, nil
}

// Reset clears all recorded requests for key.
func (rl *RedisLimiter) Reset(ctx context.Context, key string) error {
	return rl.client.Del(ctx, key).Err()
}
