package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	config   RateLimitConfig
	lastSeen time.Time
}

// MemoryLimiter keeps a token bucket per key inside the process. Keys idle
// for longer than idleTTL are dropped by Sweep so memory stays bounded by
// the set of active callers.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	idleTTL time.Duration
	now     func() time.Time
}

func NewMemoryLimiter(idleTTL time.Duration) *MemoryLimiter {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

func (m *MemoryLimiter) CheckLimitWithInfo(_ context.Context, key string, config RateLimitConfig) (*RateLimitInfo, error) {
	now := m.now()
	interval := config.Window / time.Duration(max(config.Requests, 1))

	m.mu.Lock()
	b, ok := m.buckets[key]
	if !ok || b.config != config {
		b = &bucket{
			limiter: rate.NewLimiter(rate.Every(interval), config.Requests),
			config:  config,
		}
		m.buckets[key] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)
	m.mu.Unlock()

	info := &RateLimitInfo{
		Limit:     config.Requests,
		Remaining: int(tokens),
		Allowed:   allowed,
	}
	if info.Remaining < 0 {
		info.Remaining = 0
	}

	// Time until the bucket is full again
	missing := float64(config.Requests) - tokens
	info.Reset = now.Add(time.Duration(missing * float64(interval)))

	if !allowed {
		info.RetryAfter = time.Duration((1 - tokens) * float64(interval))
		if info.RetryAfter < time.Second {
			info.RetryAfter = time.Second
		}
	}

	return info, nil
}

// Sweep drops buckets idle for longer than the idle TTL and returns how
// many were removed.
func (m *MemoryLimiter) Sweep() int {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, b := range m.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(m.buckets, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// Run sweeps idle keys until ctx is cancelled.
func (m *MemoryLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(m.idleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
