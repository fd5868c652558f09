package fraud

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/risk"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	velocityCardPrefix = "velocity:card:"
	velocityBINPrefix  = "velocity:bin:"
)

// Counter counts attempts per key inside a fixed window that starts with
// the first attempt.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	// HotKeys returns live keys under prefix whose count exceeds threshold.
	HotKeys(ctx context.Context, prefix string, threshold int64) (map[string]int64, error)
}

// RedisCounter shares attempt counts across instances.
type RedisCounter struct {
	redis *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{redis: client}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := c.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := c.redis.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

func (c *RedisCounter) HotKeys(ctx context.Context, prefix string, threshold int64) (map[string]int64, error) {
	hot := make(map[string]int64)
	iter := c.redis.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		count, err := c.redis.Get(ctx, key).Int64()
		if err != nil {
			continue
		}
		if count > threshold {
			hot[strings.TrimPrefix(key, prefix)] = count
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return hot, nil
}

type counterWindow struct {
	count   int64
	expires time.Time
}

// MemoryCounter is the single-instance Counter used when Redis is disabled.
type MemoryCounter struct {
	mu      sync.Mutex
	windows map[string]*counterWindow
	now     func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		windows: make(map[string]*counterWindow),
		now:     time.Now,
	}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.windows[key]
	if !ok || !now.Before(w.expires) {
		w = &counterWindow{expires: now.Add(ttl)}
		c.windows[key] = w
	}
	w.count++
	return w.count, nil
}

// HotKeys also drops expired windows.
func (c *MemoryCounter) HotKeys(_ context.Context, prefix string, threshold int64) (map[string]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	hot := make(map[string]int64)
	for key, w := range c.windows {
		if !now.Before(w.expires) {
			delete(c.windows, key)
			continue
		}
		if strings.HasPrefix(key, prefix) && w.count > threshold {
			hot[strings.TrimPrefix(key, prefix)] = w.count
		}
	}
	return hot, nil
}

// VelocityProvider scores how often the same card and BIN were seen
// recently. It needs no credentials and is always configured.
type VelocityProvider struct {
	counter   Counter
	window    time.Duration
	cardLimit int64
	binLimit  int64
}

func NewVelocityProvider(counter Counter, window time.Duration, cardLimit, binLimit int) *VelocityProvider {
	if window <= 0 {
		window = time.Hour
	}
	if cardLimit <= 0 {
		cardLimit = 5
	}
	if binLimit <= 0 {
		binLimit = 50
	}
	return &VelocityProvider{
		counter:   counter,
		window:    window,
		cardLimit: int64(cardLimit),
		binLimit:  int64(binLimit),
	}
}

func (p *VelocityProvider) Name() string     { return "velocity" }
func (p *VelocityProvider) Configured() bool { return p.counter != nil }

func (p *VelocityProvider) Assess(ctx context.Context, in Request) (*risk.ProviderResult, error) {
	if in.CardFingerprint == "" {
		return nil, ErrNotApplicable
	}

	cardCount, err := p.counter.Incr(ctx, velocityCardPrefix+in.CardFingerprint, p.window)
	if err != nil {
		return nil, fmt.Errorf("velocity card counter: %w", err)
	}

	var binCount int64
	if in.BIN != "" {
		binCount, err = p.counter.Incr(ctx, velocityBINPrefix+in.BIN, p.window)
		if err != nil {
			return nil, fmt.Errorf("velocity bin counter: %w", err)
		}
	}

	var (
		score   int
		factors []string
	)
	switch {
	case cardCount > p.cardLimit:
		score = 85
		factors = append(factors, fmt.Sprintf("Card attempted %d times in %s", cardCount, p.window))
	case cardCount*2 > p.cardLimit:
		score = 55
		factors = append(factors, fmt.Sprintf("Repeated card attempts (%d in %s)", cardCount, p.window))
	default:
		score = int(min((cardCount-1)*10, 40))
	}
	if binCount > p.binLimit {
		score += 15
		factors = append(factors, fmt.Sprintf("BIN attempted %d times in %s", binCount, p.window))
	}

	score = risk.Clamp(score)
	return &risk.ProviderResult{
		Provider: p.Name(),
		Score:    score,
		Level:    providerLevel(score),
		Factors:  factors,
		Raw: map[string]any{
			"cardAttempts": cardCount,
			"binAttempts":  binCount,
			"windowSec":    int64(p.window.Seconds()),
		},
	}, nil
}

// Monitor periodically reports cards and BINs over their limits until ctx
// is cancelled.
func (p *VelocityProvider) Monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.analyze(ctx)
		}
	}
}

func (p *VelocityProvider) analyze(ctx context.Context) {
	hotCards, err := p.counter.HotKeys(ctx, velocityCardPrefix, p.cardLimit)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("Failed to scan card velocity", zap.Error(err))
		}
		return
	}
	for fp, count := range hotCards {
		logger.Warn("Card velocity limit exceeded",
			zap.String("fingerprint", fp),
			zap.Int64("attempts", count),
		)
	}

	hotBINs, err := p.counter.HotKeys(ctx, velocityBINPrefix, p.binLimit)
	if err != nil {
		logger.Error("Failed to scan BIN velocity", zap.Error(err))
		return
	}
	for b, count := range hotBINs {
		logger.Warn("BIN velocity limit exceeded",
			zap.String("bin", b),
			zap.Int64("attempts", count),
		)
	}

	// Many distinct cards over the limit at once looks like card testing.
	if len(hotCards) > 10 {
		logger.Error("Possible card testing attack",
			zap.Int("hot_cards", len(hotCards)),
			zap.Int("hot_bins", len(hotBINs)),
		)
	}
}
