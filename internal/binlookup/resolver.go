package binlookup

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/bin"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/cache"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/logger"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/metrics"
	"go.uber.org/zap"
)

var binPattern = regexp.MustCompile(`^\d{6,8}$`)

// attempt is the tagged outcome of asking one provider.
type attempt struct {
	provider string
	record   *bin.Record
	err      error
	latency  time.Duration
}

// firstSuccess folds attempts in order and returns the first record found.
func firstSuccess(attempts []attempt) (*bin.Record, bool) {
	for _, a := range attempts {
		if a.err == nil && a.record != nil {
			return a.record, true
		}
	}
	return nil, false
}

type Resolver struct {
	providers []Provider
	static    *StaticTable
	cache     *cache.Cache
	ttl       time.Duration
	timeout   time.Duration
}

func NewResolver(providers []Provider, static *StaticTable, c *cache.Cache, ttl, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{
		providers: providers,
		static:    static,
		cache:     c,
		ttl:       ttl,
		timeout:   timeout,
	}
}

// Resolve returns issuer metadata for a 6-8 digit BIN. Remote results are
// cached per prefix; static-table results are not, so a recovered provider
// replaces them on the next lookup.
func (r *Resolver) Resolve(ctx context.Context, number string) (*bin.Record, error) {
	if !binPattern.MatchString(number) {
		return nil, ErrInvalidBIN
	}

	rec, cached, err := cache.GetOrCompute(ctx, r.cache, number, r.ttl, func(ctx context.Context) (*bin.Record, error) {
		return r.queryProviders(ctx, number)
	})
	if err == nil {
		if cached {
			metrics.RecordBinLookup("cache")
		}
		return rec, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	if r.static != nil {
		if rec, ok := r.static.Lookup(number); ok {
			rec.RiskIndicators = bin.Indicators(rec)
			metrics.RecordBinLookup(staticSource)
			logger.Info("BIN resolved from static table",
				zap.String("bin", number),
				zap.String("brand", rec.Brand),
			)
			return rec, nil
		}
	}

	metrics.RecordBinLookup("unavailable")
	return nil, fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
}

func (r *Resolver) queryProviders(ctx context.Context, number string) (*bin.Record, error) {
	var attempts []attempt

	for _, p := range r.providers {
		if !p.Configured() {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		a := r.try(ctx, p, number)
		attempts = append(attempts, a)
		if a.err == nil {
			break
		}
	}

	rec, ok := firstSuccess(attempts)
	if !ok {
		return nil, errors.Join(attemptErrors(attempts)...)
	}

	rec.RiskIndicators = bin.Indicators(rec)
	metrics.RecordBinLookup(rec.Source)
	return rec, nil
}

func (r *Resolver) try(ctx context.Context, p Provider, number string) attempt {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	rec, err := p.Lookup(callCtx, number)
	a := attempt{provider: p.Name(), record: rec, err: err, latency: time.Since(start)}

	outcome := "success"
	if err != nil {
		outcome = "error"
		if errors.Is(err, ErrNotFound) {
			outcome = "not_found"
		}
		logger.Warn("BIN provider failed",
			zap.String("provider", p.Name()),
			zap.String("bin", number),
			zap.Duration("latency", a.latency),
			zap.Error(err),
		)
	}
	metrics.RecordProviderCall("bin", p.Name(), outcome, a.latency.Seconds())
	return a
}

func attemptErrors(attempts []attempt) []error {
	if len(attempts) == 0 {
		return []error{errors.New("no bin providers configured")}
	}
	errs := make([]error, 0, len(attempts))
	for _, a := range attempts {
		errs = append(errs, fmt.Errorf("%s: %w", a.provider, a.err))
	}
	return errs
}
