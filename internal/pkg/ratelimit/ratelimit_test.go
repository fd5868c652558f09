package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRateLimiterTest(t *testing.T) (*RedisLimiter, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	rl := NewRedisLimiter(client)
	return rl, mr
}

// ==================== Redis Limiter Tests ====================

func TestRedisLimiter_WithinLimit(t *testing.T) {
	rl, mr := setupRateLimiterTest(t)
	defer mr.Close()

	ctx := context.Background()
	config := RateLimitConfig{Requests: 5, Window: time.Minute}

	for i := 0; i < 5; i++ {
		info, err := rl.CheckLimitWithInfo(ctx, "test:caller:123", config)
		require.NoError(t, err)
		assert.True(t, info.Allowed)
		assert.Equal(t, 5-i-1, info.Remaining)
		assert.Equal(t, 5, info.Limit)
	}
}

func TestRedisLimiter_ExceedsLimit(t *testing.T) {
	rl, mr := setupRateLimiterTest(t)
	defer mr.Close()

	ctx := context.Background()
	config := RateLimitConfig{Requests: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		info, err := rl.CheckLimitWithInfo(ctx, "test:exceed:456", config)
		require.NoError(t, err)
		assert.True(t, info.Allowed)
	}

	info, err := rl.CheckLimitWithInfo(ctx, "test:exceed:456", config)
	require.NoError(t, err)
	assert.False(t, info.Allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Greater(t, info.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, info.RetryAfter, time.Minute)
}

func TestRedisLimiter_WindowSlides(t *testing.T) {
	rl, mr := setupRateLimiterTest(t)
	defer mr.Close()

	ctx := context.Background()
	config := RateLimitConfig{Requests: 2, Window: time.Minute}
	base := time.Now()
	rl.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		_, err := rl.CheckLimitWithInfo(ctx, "test:slide", config)
		require.NoError(t, err)
	}

	rl.now = func() time.Time { return base.Add(61 * time.Second) }
	info, err := rl.CheckLimitWithInfo(ctx, "test:slide", config)
	require.NoError(t, err)
	assert.True(t, info.Allowed)
}

func TestRedisLimiter_KeysAreIndependent(t *testing.T) {
	rl, mr := setupRateLimiterTest(t)
	defer mr.Close()

	ctx := context.Background()
	config := RateLimitConfig{Requests: 1, Window: time.Minute}

	info, err := rl.CheckLimitWithInfo(ctx, "caller:a", config)
	require.NoError(t, err)
	assert.True(t, info.Allowed)

	info, err = rl.CheckLimitWithInfo(ctx, "caller:b", config)
	require.NoError(t, err)
	assert.True(t, info.Allowed)
}

func TestRedisLimiter_Reset(t *testing.T) {
	rl, mr := setupRateLimiterTest(t)
	defer mr.Close()

	ctx := context.Background()
	config := RateLimitConfig{Requests: 1, Window: time.Minute}

	_, _ = rl.CheckLimitWithInfo(ctx, "caller:reset", config)
	require.NoError(t, rl.Reset(ctx, "caller:reset"))

	info, err := rl.CheckLimitWithInfo(ctx, "caller:reset", config)
	require.NoError(t, err)
	assert.True(t, info.Allowed)
}

func TestRedisLimiter_RedisDown(t *testing.T) {
	rl, mr := setupRateLimiterTest(t)
	mr.Close()

	_, err := rl.CheckLimitWithInfo(context.Background(), "caller:down", GeneralRateLimit)
	assert.Error(t, err)
}

// ==================== Memory Limiter Tests ====================

func TestMemoryLimiter_ExceedsLimit(t *testing.T) {
	ml := NewMemoryLimiter(time.Minute)
	base := time.Now()
	ml.now = func() time.Time { return base }

	ctx := context.Background()
	config := RateLimitConfig{Requests: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		info, err := ml.CheckLimitWithInfo(ctx, "caller:mem", config)
		require.NoError(t, err)
		assert.True(t, info.Allowed)
	}

	info, err := ml.CheckLimitWithInfo(ctx, "caller:mem", config)
	require.NoError(t, err)
	assert.False(t, info.Allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.GreaterOrEqual(t, info.RetryAfter, time.Second)
}

func TestMemoryLimiter_Refills(t *testing.T) {
	ml := NewMemoryLimiter(time.Minute)
	base := time.Now()
	ml.now = func() time.Time { return base }

	ctx := context.Background()
	config := RateLimitConfig{Requests: 2, Window: time.Minute}

	_, _ = ml.CheckLimitWithInfo(ctx, "caller:refill", config)
	_, _ = ml.CheckLimitWithInfo(ctx, "caller:refill", config)

	info, _ := ml.CheckLimitWithInfo(ctx, "caller:refill", config)
	assert.False(t, info.Allowed)

	// One token every 30s
	ml.now = func() time.Time { return base.Add(31 * time.Second) }
	info, err := ml.CheckLimitWithInfo(ctx, "caller:refill", config)
	require.NoError(t, err)
	assert.True(t, info.Allowed)
}

func TestMemoryLimiter_SweepEvictsIdleKeys(t *testing.T) {
	ml := NewMemoryLimiter(time.Minute)
	base := time.Now()
	ml.now = func() time.Time { return base }

	ctx := context.Background()
	_, _ = ml.CheckLimitWithInfo(ctx, "caller:old", GeneralRateLimit)

	ml.now = func() time.Time { return base.Add(50 * time.Second) }
	_, _ = ml.CheckLimitWithInfo(ctx, "caller:fresh", GeneralRateLimit)
	assert.Equal(t, 2, ml.Len())

	ml.now = func() time.Time { return base.Add(90 * time.Second) }
	removed := ml.Sweep()

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, ml.Len())
}

func TestMemoryLimiter_RunStopsOnCancel(t *testing.T) {
	ml := NewMemoryLimiter(20 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		ml.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestPredefinedConfigs(t *testing.T) {
	assert.Equal(t, 10, BatchRateLimit.Requests)
	assert.Equal(t, time.Minute, BatchRateLimit.Window)

	assert.Equal(t, 10, AuthorizationRateLimit.Requests)
	assert.Equal(t, 100, GeneralRateLimit.Requests)
}

func TestLimiterInterface(t *testing.T) {
	var _ Limiter = (*RedisLimiter)(nil)
	var _ Limiter = (*MemoryLimiter)(nil)
}
