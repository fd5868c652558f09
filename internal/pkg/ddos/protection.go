package ddos

import (
	"context"
	"fmt"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/logger"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix = "ddos:requests:"

	// DefaultThreshold is requests per window per IP.
	DefaultThreshold = 1000

	// More suspicious IPs than this at once is reported as a distributed attack.
	distributedAttackIPs = 10
)

// Protection counts requests per client IP in fixed Redis windows shared by
// every instance, and flags IPs over the threshold.
type Protection struct {
	redis     *redis.Client
	threshold int64
	window    time.Duration
}

func NewProtection(redisClient *redis.Client, threshold int64, window time.Duration) *Protection {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Protection{
		redis:     redisClient,
		threshold: threshold,
		window:    window,
	}
}

// Track counts one request from ip and reports whether ip is now over the
// threshold. The window starts at the first request.
func (d *Protection) Track(ctx context.Context, ip string) (int64, bool, error) {
	key := keyPrefix + ip

	count, err := d.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, false, fmt.Errorf("track request: %w", err)
	}
	if count == 1 {
		if err := d.redis.Expire(ctx, key, d.window).Err(); err != nil {
			return count, false, fmt.Errorf("set window: %w", err)
		}
	}

	return count, count > d.threshold, nil
}

// Suspicious returns every IP currently over the threshold with its count.
func (d *Protection) Suspicious(ctx context.Context) (map[string]int64, error) {
	found := make(map[string]int64)

	iter := d.redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		count, err := d.redis.Get(ctx, key).Int64()
		if err != nil {
			// expired between scan and get
			continue
		}
		if count > d.threshold {
			found[key[len(keyPrefix):]] = count
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan traffic: %w", err)
	}
	return found, nil
}

// Monitor reports suspicious traffic every interval until ctx is cancelled.
func (d *Protection) Monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.analyzeTraffic(ctx)
		}
	}
}

func (d *Protection) analyzeTraffic(ctx context.Context) {
	suspicious, err := d.Suspicious(ctx)
	if err != nil {
		logger.Error("Failed to scan traffic", zap.Error(err))
		return
	}
	metrics.SetSuspiciousIPs(len(suspicious))

	for ip, count := range suspicious {
		logger.Warn("Client IP over traffic threshold",
			zap.String("ip", ip),
			zap.Int64("requests", count),
			zap.Duration("window", d.window),
		)
	}

	if len(suspicious) > distributedAttackIPs {
		logger.Error("Distributed traffic spike detected",
			zap.Int("suspicious_ips", len(suspicious)),
		)
	}
}
