package fraud

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/risk"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/logger"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/metrics"
	"go.uber.org/zap"
)

// UnavailableScore is reported when no provider answered.
const UnavailableScore = 50

const factorScreeningUnavailable = "Fraud screening unavailable"

// outcome is the tagged result of one provider call.
type outcome struct {
	provider string
	result   *risk.ProviderResult
	err      error
	skipped  bool
	latency  time.Duration
}

// Aggregator fans a request out to every configured provider and folds the
// answers into one assessment.
type Aggregator struct {
	providers []Provider
	weights   map[string]float64
	timeout   time.Duration
	now       func() time.Time
}

// NewAggregator builds an aggregator. A nil or empty weights map means every
// provider counts equally; with weights set, providers missing from the map
// weigh 1.
func NewAggregator(providers []Provider, weights map[string]float64, timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Aggregator{
		providers: providers,
		weights:   weights,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Configured lists the names of providers that will be queried.
func (a *Aggregator) Configured() []string {
	var names []string
	for _, p := range a.providers {
		if p.Configured() {
			names = append(names, p.Name())
		}
	}
	return names
}

// Assess never fails. Every configured provider runs concurrently with its
// own timeout; a slow or failing provider does not cancel its siblings.
func (a *Aggregator) Assess(ctx context.Context, req Request) *risk.FraudAssessment {
	active := make([]Provider, 0, len(a.providers))
	for _, p := range a.providers {
		if p.Configured() {
			active = append(active, p)
		}
	}

	outcomes := make([]outcome, len(active))
	var wg sync.WaitGroup
	for i, p := range active {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			outcomes[i] = a.run(ctx, p, req)
		}(i, p)
	}
	wg.Wait()

	return a.fold(outcomes)
}

func (a *Aggregator) run(ctx context.Context, p Provider, req Request) (o outcome) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	o.provider = p.Name()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			o.result = nil
			o.err = fmt.Errorf("provider panic: %v", r)
		}
		o.latency = time.Since(start)
		a.record(o)
	}()

	res, err := p.Assess(callCtx, req)
	switch {
	case errors.Is(err, ErrNotApplicable):
		o.skipped = true
	case err != nil:
		o.err = err
	case res == nil:
		o.err = ErrBadResponse
	default:
		res.Provider = p.Name()
		res.Score = risk.Clamp(res.Score)
		res.LatencyMs = time.Since(start).Milliseconds()
		o.result = res
	}
	return o
}

func (a *Aggregator) record(o outcome) {
	result := "success"
	switch {
	case o.skipped:
		result = "skipped"
	case o.err != nil:
		result = "error"
		if errors.Is(o.err, context.DeadlineExceeded) {
			result = "timeout"
		}
		logger.Warn("Fraud provider failed",
			zap.String("provider", o.provider),
			zap.Duration("latency", o.latency),
			zap.Error(o.err),
		)
	}
	metrics.RecordProviderCall("fraud", o.provider, result, o.latency.Seconds())
}

// fold aggregates successful outcomes. With none, the assessment is UNKNOWN
// at UnavailableScore.
func (a *Aggregator) fold(outcomes []outcome) *risk.FraudAssessment {
	fa := &risk.FraudAssessment{
		Providers:  []risk.ProviderResult{},
		AssessedAt: a.now().UTC(),
	}

	var factors []string
	for _, o := range outcomes {
		if o.skipped {
			continue
		}
		fa.ProvidersQueried++
		if o.err != nil {
			fa.ProvidersFailed = append(fa.ProvidersFailed, o.provider)
			continue
		}
		fa.Providers = append(fa.Providers, *o.result)
		factors = append(factors, o.result.Factors...)
	}
	fa.ProvidersResponded = len(fa.Providers)

	if fa.ProvidersResponded == 0 {
		fa.Score = UnavailableScore
		fa.Level = risk.LevelUnknown
		fa.Factors = []string{factorScreeningUnavailable}
		fa.Summary = "No fraud provider responded"
		fa.Recommendations = []risk.Recommendation{{
			Type:     risk.RecommendManualReview,
			Priority: risk.PriorityMedium,
			Message:  "Fraud screening unavailable, review manually",
		}}
		return fa
	}

	fa.Score = risk.Clamp(a.combine(fa.Providers))
	fa.Level = risk.FraudLevelForScore(fa.Score)
	fa.Factors = risk.Dedup(factors)
	fa.Summary = summarize(fa)
	fa.Recommendations = recommend(fa.Level)
	return fa
}

// combine is the mean of provider scores, weighted when weights are set.
func (a *Aggregator) combine(results []risk.ProviderResult) int {
	var sum, total float64
	for _, r := range results {
		w := 1.0
		if len(a.weights) > 0 {
			if cw, ok := a.weights[r.Provider]; ok {
				w = cw
			}
		}
		sum += w * float64(r.Score)
		total += w
	}
	if total == 0 {
		sum = 0
		for _, r := range results {
			sum += float64(r.Score)
		}
		total = float64(len(results))
	}
	return int(math.Round(sum / total))
}

// summarize names the providers at the highest tier observed.
func summarize(fa *risk.FraudAssessment) string {
	top := risk.LevelLow
	for _, p := range fa.Providers {
		if risk.Rank(p.Level) > risk.Rank(top) {
			top = p.Level
		}
	}
	var names []string
	for _, p := range fa.Providers {
		if p.Level == top {
			names = append(names, p.Provider)
		}
	}

	s := fmt.Sprintf("%s risk reported by %s (%d of %d providers responded)",
		top, strings.Join(names, ", "), fa.ProvidersResponded, fa.ProvidersQueried)
	if len(fa.ProvidersFailed) > 0 {
		s += "; unavailable: " + strings.Join(fa.ProvidersFailed, ", ")
	}
	return s
}

func recommend(level risk.Level) []risk.Recommendation {
	switch level {
	case risk.LevelHigh:
		return []risk.Recommendation{{
			Type:     risk.RecommendManualReview,
			Priority: risk.PriorityHigh,
			Message:  "High fraud risk, hold for manual review",
		}}
	case risk.LevelMedium:
		return []risk.Recommendation{{
			Type:     risk.RecommendAdditionalVerification,
			Priority: risk.PriorityMedium,
			Message:  "Elevated fraud risk, request additional verification",
		}}
	default:
		return []risk.Recommendation{{
			Type:     risk.RecommendApprove,
			Priority: risk.PriorityLow,
			Message:  "Fraud providers report low risk",
		}}
	}
}
