package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/bin"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/card"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/risk"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/validation"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/events"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/fraud"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/cache"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/crypto"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/logger"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrCardNumberRequired = errors.New("card number is required")
	ErrBatchEmpty         = errors.New("batch must contain at least one payment")
	ErrBatchTooLarge      = fmt.Errorf("batch exceeds %d payments", validation.MaxBatchSize)
)

const (
	defaultCurrency = "USD"
	maxBINPrefix    = 8
)

// BINResolver is satisfied by *binlookup.Resolver.
type BINResolver interface {
	Resolve(ctx context.Context, number string) (*bin.Record, error)
}

// FraudAssessor is satisfied by *fraud.Aggregator.
type FraudAssessor interface {
	Assess(ctx context.Context, req fraud.Request) *risk.FraudAssessment
}

type ValidationService interface {
	Validate(ctx context.Context, req *validation.Request) (*validation.Result, error)
	ValidateBatch(ctx context.Context, reqs []validation.Request) (*validation.BatchResult, error)
	DetectCardType(number string) card.TypeInfo
	LookupBIN(ctx context.Context, bin string) (*bin.Record, error)
	Stats() validation.Stats
}

type ValidationConfig struct {
	CacheTTL    time.Duration
	MaxBatch    int
	Concurrency int
}

type validationService struct {
	bins          BINResolver
	fraud         FraudAssessor
	scorer        RiskScorer
	cache         *cache.Cache
	fingerprinter *crypto.Fingerprinter
	publisher     events.Publisher
	cfg           ValidationConfig
	now           func() time.Time

	mu    sync.Mutex
	stats validation.Stats
}

func NewValidationService(
	bins BINResolver,
	assessor FraudAssessor,
	scorer RiskScorer,
	resultCache *cache.Cache,
	fingerprinter *crypto.Fingerprinter,
	publisher events.Publisher,
	cfg ValidationConfig,
) ValidationService {
	if cfg.MaxBatch <= 0 || cfg.MaxBatch > validation.MaxBatchSize {
		cfg.MaxBatch = validation.MaxBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &validationService{
		bins:          bins,
		fraud:         assessor,
		scorer:        scorer,
		cache:         resultCache,
		fingerprinter: fingerprinter,
		publisher:     publisher,
		cfg:           cfg,
		now:           time.Now,
		stats:         validation.Stats{ByRiskLevel: make(map[risk.Level]int64)},
	}
}

func (s *validationService) Validate(ctx context.Context, req *validation.Request) (*validation.Result, error) {
	start := time.Now()

	in := req.Card
	in.Normalize()
	if in.CardNumber == "" {
		return nil, ErrCardNumberRequired
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	checks := card.Validate(&in, req.Amount, currency, s.now())
	typeInfo := card.DetectType(in.CardNumber)
	cacheKey := s.resultKey(&in, req, currency)

	if s.cache != nil {
		cached, ok, err := cache.Get[validation.Result](ctx, s.cache, cacheKey)
		if err != nil {
			logger.Warn("Validation cache read failed", zap.Error(err))
		}
		if ok {
			cached.Cached = true
			cached.ProcessingMs = time.Since(start).Milliseconds()
			s.record(&cached, true)
			metrics.RecordValidation(cached.Success, string(cached.OverallRisk), "cache", time.Since(start).Seconds())
			return &cached, nil
		}
	}

	var (
		e    enrichment
		path = "full"
	)
	if checks.EarlyFail() {
		path = "early_fail"
	} else {
		e = s.enrich(ctx, &in, req, currency)
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("validation aborted: %w", err)
		}
	}

	scored := s.scorer.Score(checks, e.bin, e.binErr, e.fraud)

	result := &validation.Result{
		Success:     Approved(checks, scored),
		OverallRisk: scored.Level,
		RiskScore:   scored.Score,
		CardDetails: validation.CardDetails{
			Type:        typeInfo.Brand,
			DisplayName: typeInfo.DisplayName,
			Last4:       in.Last4(),
			Masked:      crypto.MaskCardNumber(in.CardNumber),
			ExpiryMonth: in.ExpiryMonth,
			ExpiryYear:  in.ExpiryYear,
		},
		ValidationChecks: checks,
		RiskFactors:      scored.Factors,
		Recommendations:  scored.Recommendations,
		BinInfo:          e.bin,
		FraudAssessment:  e.fraud,
		Timestamp:        s.now().UTC(),
	}
	result.ProcessingMs = time.Since(start).Milliseconds()

	if s.cache != nil && result.Success && result.OverallRisk != risk.LevelHigh {
		if err := s.cache.Set(ctx, cacheKey, result, s.cfg.CacheTTL); err != nil {
			logger.Warn("Validation cache write failed", zap.Error(err))
		}
	}

	s.record(result, false)
	metrics.RecordValidation(result.Success, string(result.OverallRisk), path, time.Since(start).Seconds())

	logger.Info("Payment validated",
		zap.String("last4", result.CardDetails.Last4),
		zap.String("brand", string(result.CardDetails.Type)),
		zap.Bool("success", result.Success),
		zap.String("risk_level", string(result.OverallRisk)),
		zap.Int("risk_score", result.RiskScore),
		zap.String("path", path),
		zap.Int64("duration_ms", result.ProcessingMs),
	)

	events.PublishAsync(s.publisher, events.NewEvent(events.TypeRiskAssessed, cacheKey, map[string]any{
		"last4":           result.CardDetails.Last4,
		"brand":           result.CardDetails.Type,
		"success":         result.Success,
		"riskLevel":       result.OverallRisk,
		"riskScore":       result.RiskScore,
		"riskFactors":     result.RiskFactors,
		"recommendations": result.Recommendations,
	}))

	return result, nil
}

// resultKey covers every input that reaches scoring, so a cached result is
// only reused for an identical submission.
func (s *validationService) resultKey(in *card.Input, req *validation.Request, currency string) string {
	parts := []string{
		in.CardNumber,
		strconv.Itoa(in.ExpiryMonth),
		strconv.Itoa(in.ExpiryYear),
		in.CVV,
		in.HolderName,
		req.Amount.String(),
		currency,
		req.Email,
		req.IPAddress,
		req.DeviceID,
	}
	if a := in.BillingAddress; a != nil {
		parts = append(parts, a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Country)
	}
	return s.fingerprinter.Fingerprint(parts...)
}

// enrichment is what the external lookups contributed to a validation.
type enrichment struct {
	bin    *bin.Record
	binErr error
	fraud  *risk.FraudAssessment
}

// enrich runs the BIN lookup and the fraud fan-out concurrently.
func (s *validationService) enrich(ctx context.Context, in *card.Input, req *validation.Request, currency string) enrichment {
	var e enrichment
	prefix := in.CardNumber[:6]

	var g errgroup.Group
	g.Go(func() error {
		e.bin, e.binErr = s.bins.Resolve(ctx, prefix)
		if e.binErr != nil {
			logger.Warn("BIN lookup failed", zap.String("bin", prefix), zap.Error(e.binErr))
		}
		return nil
	})
	g.Go(func() error {
		e.fraud = s.fraud.Assess(ctx, fraud.Request{
			BIN:             prefix,
			Last4:           in.Last4(),
			CardFingerprint: s.fingerprinter.Fingerprint(in.CardNumber),
			Amount:          req.Amount,
			Currency:        currency,
			Email:           req.Email,
			IPAddress:       req.IPAddress,
			DeviceID:        req.DeviceID,
			BillingAddress:  in.BillingAddress,
		})
		return nil
	})
	_ = g.Wait()

	return e
}

func (s *validationService) ValidateBatch(ctx context.Context, reqs []validation.Request) (*validation.BatchResult, error) {
	if len(reqs) == 0 {
		return nil, ErrBatchEmpty
	}
	if len(reqs) > s.cfg.MaxBatch {
		return nil, ErrBatchTooLarge
	}

	start := time.Now()
	items := make([]validation.BatchItem, len(reqs))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i := range reqs {
		g.Go(func() error {
			items[i] = s.validateItem(ctx, i, &reqs[i])
			return nil
		})
	}
	_ = g.Wait()

	out := &validation.BatchResult{
		TotalProcessed: len(items),
		Results:        items,
		ProcessingMs:   time.Since(start).Milliseconds(),
	}
	for _, item := range items {
		switch {
		case item.Error != "":
			out.Summary.Errors++
		case item.Result.Success:
			out.Summary.Successful++
		default:
			out.Summary.Failed++
		}
		if item.Result != nil && item.Result.OverallRisk == risk.LevelHigh {
			out.Summary.HighRisk++
		}
	}

	s.mu.Lock()
	s.stats.Batches++
	s.mu.Unlock()
	metrics.RecordBatch(len(reqs))

	logger.Info("Batch validated",
		zap.Int("size", len(reqs)),
		zap.Int("successful", out.Summary.Successful),
		zap.Int("failed", out.Summary.Failed),
		zap.Int("high_risk", out.Summary.HighRisk),
		zap.Int("errors", out.Summary.Errors),
	)
	return out, nil
}

// validateItem isolates one batch entry; a panic or error stays on the item.
func (s *validationService) validateItem(ctx context.Context, index int, req *validation.Request) (item validation.BatchItem) {
	item.Index = index
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Batch item panicked", zap.Int("index", index), zap.Any("panic", r))
			item.Result = nil
			item.Error = "INTERNAL_ERROR"
		}
	}()

	if req.InputError != "" {
		item.Error = req.InputError
		return item
	}

	res, err := s.Validate(ctx, req)
	if err != nil {
		item.Error = err.Error()
		return item
	}
	item.Result = res
	return item
}

func (s *validationService) DetectCardType(number string) card.TypeInfo {
	return card.DetectType(card.StripNumber(number))
}

// LookupBIN accepts any digit run of at least six; longer input such as a
// full PAN is cut to its first eight digits.
func (s *validationService) LookupBIN(ctx context.Context, number string) (*bin.Record, error) {
	prefix := card.StripNumber(number)
	if len(prefix) > maxBINPrefix {
		prefix = prefix[:maxBINPrefix]
	}
	rec, err := s.bins.Resolve(ctx, prefix)

	s.mu.Lock()
	s.stats.BinLookups++
	s.mu.Unlock()

	return rec, err
}

func (s *validationService) Stats() validation.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.stats
	out.ByRiskLevel = make(map[risk.Level]int64, len(s.stats.ByRiskLevel))
	for k, v := range s.stats.ByRiskLevel {
		out.ByRiskLevel[k] = v
	}
	return out
}

func (s *validationService) record(r *validation.Result, cached bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalValidations++
	if r.Success {
		s.stats.Successful++
	} else {
		s.stats.Failed++
	}
	s.stats.ByRiskLevel[r.OverallRisk]++
	if cached {
		s.stats.CacheHits++
	}
}
