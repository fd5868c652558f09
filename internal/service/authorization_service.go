package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/authorization"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/bin"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/risk"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/events"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/gateway"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/cache"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/logger"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrCardDataRequired      = errors.New("card number, expiry and cvv are required")
	ErrChargeIDRequired      = errors.New("charge id is required")
	ErrAlreadyRefunded       = errors.New("charge already refunded")
	ErrAuthorizationNotFound = errors.New("authorization not found")
)

// User-facing messages per failure category.
var categoryMessages = map[authorization.ErrorCategory]string{
	authorization.ErrorCardDeclined:      "Your card was declined.",
	authorization.ErrorExpiredCard:       "Your card has expired.",
	authorization.ErrorIncorrectCVC:      "Your card's security code is incorrect.",
	authorization.ErrorInsufficientFunds: "Your card has insufficient funds.",
	authorization.ErrorProcessing:        "An error occurred while processing your card. Please try again.",
	authorization.ErrorRateLimited:       "Too many requests. Please try again later.",
}

type AuthorizationService interface {
	Authorize(ctx context.Context, req *authorization.Request) (*authorization.Result, error)
	GetAuthorization(ctx context.Context, authID uuid.UUID, last4 string) (*authorization.Result, error)
	Refund(ctx context.Context, chargeID, authID string) (*authorization.RefundResult, error)
	RefundStatus(ctx context.Context, chargeID string) (*authorization.RefundStatus, error)
	Stats() authorization.Stats
	Health(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

type AuthorizationConfig struct {
	Amount          decimal.Decimal
	Currency        string
	AutoRefund      bool
	AutoRefundDelay time.Duration
	CacheTTL        time.Duration
	// ExposeDetail adds the raw processor message to error responses.
	ExposeDetail bool
}

type authorizationService struct {
	processor gateway.Processor
	cache     *cache.Cache
	scheduler *RefundScheduler
	publisher events.Publisher
	cfg       AuthorizationConfig
	now       func() time.Time

	mu              sync.Mutex
	stats           authorization.Stats
	totalDurationMs int64
}

func NewAuthorizationService(
	processor gateway.Processor,
	resultCache *cache.Cache,
	publisher events.Publisher,
	cfg AuthorizationConfig,
) AuthorizationService {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.Amount.IsZero() {
		cfg.Amount = decimal.NewFromInt(1)
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}

	s := &authorizationService{
		processor: processor,
		cache:     resultCache,
		publisher: publisher,
		cfg:       cfg,
		now:       time.Now,
		stats:     authorization.Stats{ByStatus: make(map[authorization.Status]int64)},
	}
	s.scheduler = NewRefundScheduler(cfg.AutoRefundDelay, s.autoRefund)
	return s
}

func authCacheKey(last4 string, id uuid.UUID) string {
	return last4 + ":" + id.String()
}

func (s *authorizationService) Authorize(ctx context.Context, req *authorization.Request) (*authorization.Result, error) {
	start := time.Now()

	in := req.Card
	in.Normalize()
	if in.CardNumber == "" || in.ExpiryMonth == 0 || in.ExpiryYear == 0 || in.CVV == "" {
		return nil, ErrCardDataRequired
	}
	expYear := in.ExpiryYear
	if expYear < 100 {
		expYear += 2000
	}

	result := &authorization.Result{
		ID:        uuid.New(),
		Stage:     authorization.StageCreated,
		Amount:    s.cfg.Amount,
		Currency:  strings.ToLower(s.cfg.Currency),
		Card:      authorization.CardSummary{Last4: in.Last4()},
		CreatedAt: s.now().UTC(),
	}

	pm, err := s.processor.CreatePaymentMethod(ctx, gateway.CardDetails{
		Number:     in.CardNumber,
		ExpMonth:   in.ExpiryMonth,
		ExpYear:    expYear,
		CVC:        in.CVV,
		HolderName: in.HolderName,
		Email:      req.Email,
		Address:    in.BillingAddress,
	})
	if err != nil {
		return s.fail(ctx, result, start, err)
	}
	result.Stage = authorization.StageMethodTokenized
	result.PaymentMethodID = pm.ID
	result.Card = authorization.CardSummary{
		Last4:   firstNonEmpty(pm.Last4, result.Card.Last4),
		Brand:   pm.Brand,
		Funding: pm.Funding,
		Country: pm.Country,
	}

	description := req.Description
	if description == "" {
		description = "Card verification"
	}
	intent, err := s.processor.CreateIntent(ctx, gateway.IntentParams{
		Amount:          s.cfg.Amount,
		Currency:        s.cfg.Currency,
		PaymentMethodID: pm.ID,
		Description:     description,
		Metadata: map[string]string{
			"authorization_id": result.ID.String(),
			"purpose":          "card_verification",
		},
		IdempotencyKey: "auth-" + result.ID.String(),
	})
	if err != nil {
		return s.fail(ctx, result, start, err)
	}
	result.Stage = authorization.StageIntentCreated
	result.PaymentIntentID = intent.ID

	intent, err = s.processor.ConfirmIntent(ctx, intent.ID, pm.ID)
	if err != nil {
		return s.fail(ctx, result, start, err)
	}
	result.Stage = authorization.StageConfirmed
	result.ChargeID = intent.ChargeID

	var charge *gateway.Charge
	switch intent.Status {
	case gateway.IntentSucceeded:
		result.Status = authorization.StatusSucceeded
		result.Success = true
		if intent.ChargeID != "" {
			charge, err = s.processor.GetCharge(ctx, intent.ChargeID)
			if err != nil {
				logger.Warn("Failed to retrieve charge for risk checks",
					zap.String("charge_id", intent.ChargeID),
					zap.Error(err),
				)
			}
		}
		if s.cfg.AutoRefund && intent.ChargeID != "" {
			task := s.scheduler.Schedule(result.ID, intent.ChargeID)
			result.AutoRefund = &authorization.AutoRefund{
				Scheduled:   true,
				DelayMs:     task.Delay.Milliseconds(),
				ScheduledAt: task.ScheduledAt.UTC(),
			}
			s.mu.Lock()
			s.stats.RefundsScheduled++
			s.mu.Unlock()
		}
	case gateway.IntentRequiresAction:
		result.Status = authorization.StatusRequiresAction
		result.NextAction = intent.NextAction
	case gateway.IntentRequiresPaymentMethod:
		result.Status = authorization.StatusRequiresPaymentMethod
		result.Error = s.categorize(intent.LastPaymentError)
		if result.Error == nil {
			result.Error = s.newError(authorization.ErrorCardDeclined, nil)
		}
	case gateway.IntentCanceled:
		result.Status = authorization.StatusCanceled
		result.Error = s.newError(authorization.ErrorProcessing, intent.LastPaymentError)
	default:
		result.Status = authorization.StatusFailed
		result.Error = s.newError(authorization.ErrorProcessing, intent.LastPaymentError)
	}

	result.RiskAssessment = assessAuthorizationRisk(charge, result.Card, intent.LastPaymentError)
	return s.finish(ctx, result, start), nil
}

// fail ends an authorization that broke before confirmation.
func (s *authorizationService) fail(ctx context.Context, result *authorization.Result, start time.Time, err error) (*authorization.Result, error) {
	if errors.Is(err, gateway.ErrNotConfigured) {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("authorization aborted: %w", ctx.Err())
	}

	var perr *gateway.Error
	if errors.As(err, &perr) {
		result.Error = s.categorize(perr)
	} else {
		logger.Error("Processor call failed",
			zap.String("authorization_id", result.ID.String()),
			zap.String("stage", string(result.Stage)),
			zap.Error(err),
		)
		result.Error = s.newError(authorization.ErrorProcessing, &gateway.Error{Message: err.Error()})
	}
	result.Status = authorization.StatusFailed
	if perr != nil {
		result.RiskAssessment = assessAuthorizationRisk(nil, result.Card, perr)
	}
	return s.finish(ctx, result, start), nil
}

func (s *authorizationService) finish(ctx context.Context, result *authorization.Result, start time.Time) *authorization.Result {
	elapsed := time.Since(start)
	result.ProcessingMs = elapsed.Milliseconds()

	if s.cache != nil {
		if err := s.cache.Set(ctx, authCacheKey(result.Card.Last4, result.ID), result, s.cfg.CacheTTL); err != nil {
			logger.Warn("Authorization cache write failed", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.stats.Total++
	s.stats.ByStatus[result.Status]++
	s.totalDurationMs += result.ProcessingMs
	s.mu.Unlock()

	metrics.RecordAuthorization(string(result.Status), elapsed.Seconds())

	fields := []zap.Field{
		zap.String("authorization_id", result.ID.String()),
		zap.String("status", string(result.Status)),
		zap.String("stage", string(result.Stage)),
		zap.String("last4", result.Card.Last4),
		zap.Int64("duration_ms", result.ProcessingMs),
	}
	if result.Error != nil {
		fields = append(fields, zap.String("category", string(result.Error.Category)))
	}
	logger.Info("Card authorization completed", fields...)

	events.PublishAsync(s.publisher, events.NewEvent(events.TypeAuthorizationCompleted, result.ID.String(), map[string]any{
		"authorizationId": result.ID,
		"status":          result.Status,
		"last4":           result.Card.Last4,
		"brand":           result.Card.Brand,
		"chargeId":        result.ChargeID,
		"riskAssessment":  result.RiskAssessment,
	}))
	return result
}

// categorize maps a processor error onto a fixed category and message.
func (s *authorizationService) categorize(perr *gateway.Error) *authorization.Error {
	if perr == nil {
		return nil
	}

	code := strings.ToLower(perr.Code)
	decline := strings.ToLower(perr.DeclineCode)

	var category authorization.ErrorCategory
	switch {
	case code == "expired_card" || decline == "expired_card":
		category = authorization.ErrorExpiredCard
	case code == "incorrect_cvc" || decline == "incorrect_cvc" || code == "invalid_cvc":
		category = authorization.ErrorIncorrectCVC
	case decline == "insufficient_funds":
		category = authorization.ErrorInsufficientFunds
	case code == "rate_limit" || perr.HTTPStatus == 429:
		category = authorization.ErrorRateLimited
	case code == "card_declined" || perr.Type == "card_error":
		category = authorization.ErrorCardDeclined
	default:
		category = authorization.ErrorProcessing
	}
	return s.newError(category, perr)
}

func (s *authorizationService) newError(category authorization.ErrorCategory, perr *gateway.Error) *authorization.Error {
	e := &authorization.Error{
		Category: category,
		Message:  categoryMessages[category],
	}
	if perr != nil {
		e.Code = perr.Code
		e.DeclineCode = perr.DeclineCode
		if s.cfg.ExposeDetail {
			e.Detail = perr.Message
		}
	}
	return e
}

// assessAuthorizationRisk scores what the processor reported about the card.
func assessAuthorizationRisk(charge *gateway.Charge, summary authorization.CardSummary, lastErr *gateway.Error) *authorization.RiskAssessment {
	var (
		score   int
		factors []string
	)

	funding, country := summary.Funding, summary.Country
	if charge != nil {
		if charge.Checks.CVC == "fail" {
			score += 30
			factors = append(factors, "CVC check failed")
		}
		if charge.Checks.PostalCode == "fail" {
			score += 20
			factors = append(factors, "Postal code check failed")
		}
		funding = firstNonEmpty(charge.Funding, funding)
		country = firstNonEmpty(charge.Country, country)
	}
	if funding == "prepaid" {
		score += 15
		factors = append(factors, "Prepaid card")
	}
	if country != "" && bin.IsHighRiskCountry(strings.ToUpper(country)) {
		score += 25
		factors = append(factors, "High-risk issuing country: "+strings.ToUpper(country))
	}
	if lastErr != nil {
		score += 20
		factors = append(factors, "Payment attempt failed")
	}

	score = risk.Clamp(score)
	level := risk.LevelLow
	switch {
	case score >= 50:
		level = risk.LevelHigh
	case score >= 25:
		level = risk.LevelMedium
	}
	return &authorization.RiskAssessment{Score: score, Level: level, Factors: factors}
}

func (s *authorizationService) GetAuthorization(ctx context.Context, authID uuid.UUID, last4 string) (*authorization.Result, error) {
	if s.cache == nil {
		return nil, ErrAuthorizationNotFound
	}
	res, ok, err := cache.Get[authorization.Result](ctx, s.cache, authCacheKey(last4, authID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAuthorizationNotFound
	}
	return &res, nil
}

// Refund refunds a charge in full. Repeated calls for the same charge share
// one idempotency key.
func (s *authorizationService) Refund(ctx context.Context, chargeID, authID string) (*authorization.RefundResult, error) {
	if chargeID == "" {
		return nil, ErrChargeIDRequired
	}

	charge, err := s.processor.GetCharge(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	if charge.Refunded || (charge.Amount > 0 && charge.AmountRefunded >= charge.Amount) {
		metrics.RecordRefund("manual", "already_refunded")
		return nil, ErrAlreadyRefunded
	}

	refund, err := s.processor.CreateRefund(ctx, chargeID, refundIdempotencyKey(chargeID))
	if errors.Is(err, gateway.ErrChargeAlreadyRefunded) {
		metrics.RecordRefund("manual", "already_refunded")
		return nil, ErrAlreadyRefunded
	}
	if err != nil {
		metrics.RecordRefund("manual", "error")
		s.countRefund(false)
		return nil, err
	}

	metrics.RecordRefund("manual", "success")
	s.countRefund(true)

	logger.Info("Charge refunded",
		zap.String("charge_id", chargeID),
		zap.String("authorization_id", authID),
		zap.String("refund_id", refund.ID),
	)

	result := &authorization.RefundResult{
		RefundID: refund.ID,
		ChargeID: chargeID,
		Status:   refund.Status,
		Amount:   gateway.FromMinorUnits(refund.Amount, refund.Currency),
		Currency: refund.Currency,
	}
	s.publishRefund(result, "manual")
	return result, nil
}

// autoRefund is the scheduler callback. A charge that is already refunded
// counts as done.
func (s *authorizationService) autoRefund(ctx context.Context, chargeID string) error {
	refund, err := s.processor.CreateRefund(ctx, chargeID, refundIdempotencyKey(chargeID))
	switch {
	case errors.Is(err, gateway.ErrChargeAlreadyRefunded):
		metrics.RecordRefund("auto", "already_refunded")
		s.countRefund(true)
		return nil
	case err != nil:
		metrics.RecordRefund("auto", "error")
		s.countRefund(false)
		return err
	}

	metrics.RecordRefund("auto", "success")
	s.countRefund(true)
	logger.Info("Auto-refund completed",
		zap.String("charge_id", chargeID),
		zap.String("refund_id", refund.ID),
	)
	s.publishRefund(&authorization.RefundResult{
		RefundID: refund.ID,
		ChargeID: chargeID,
		Status:   refund.Status,
		Amount:   gateway.FromMinorUnits(refund.Amount, refund.Currency),
		Currency: refund.Currency,
	}, "auto")
	return nil
}

func refundIdempotencyKey(chargeID string) string {
	return "refund-" + chargeID
}

func (s *authorizationService) countRefund(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.stats.RefundsSucceeded++
	} else {
		s.stats.RefundsFailed++
	}
}

func (s *authorizationService) publishRefund(r *authorization.RefundResult, trigger string) {
	events.PublishAsync(s.publisher, events.NewEvent(events.TypeRefundCompleted, r.ChargeID, map[string]any{
		"refundId": r.RefundID,
		"chargeId": r.ChargeID,
		"status":   r.Status,
		"amount":   r.Amount,
		"currency": r.Currency,
		"trigger":  trigger,
	}))
}

func (s *authorizationService) RefundStatus(ctx context.Context, chargeID string) (*authorization.RefundStatus, error) {
	if chargeID == "" {
		return nil, ErrChargeIDRequired
	}

	charge, err := s.processor.GetCharge(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	refunds, err := s.processor.ListRefunds(ctx, chargeID)
	if err != nil {
		return nil, err
	}

	status := &authorization.RefundStatus{
		ChargeID:         charge.ID,
		Amount:           gateway.FromMinorUnits(charge.Amount, charge.Currency),
		AmountRefunded:   gateway.FromMinorUnits(charge.AmountRefunded, charge.Currency),
		RefundableAmount: gateway.FromMinorUnits(max(charge.Amount-charge.AmountRefunded, 0), charge.Currency),
		Currency:         charge.Currency,
		FullyRefunded:    charge.Refunded || charge.AmountRefunded >= charge.Amount,
		Refunds:          make([]authorization.RefundEntry, 0, len(refunds)),
	}
	for _, r := range refunds {
		status.Refunds = append(status.Refunds, authorization.RefundEntry{
			RefundID:  r.ID,
			Amount:    gateway.FromMinorUnits(r.Amount, r.Currency),
			Status:    r.Status,
			Reason:    r.Reason,
			CreatedAt: r.Created,
		})
	}
	return status, nil
}

func (s *authorizationService) Stats() authorization.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.stats
	out.ByStatus = make(map[authorization.Status]int64, len(s.stats.ByStatus))
	for k, v := range s.stats.ByStatus {
		out.ByStatus[k] = v
	}
	if s.stats.Total > 0 {
		out.AverageDurationMs = float64(s.totalDurationMs) / float64(s.stats.Total)
	}
	return out
}

func (s *authorizationService) Health(ctx context.Context) error {
	return s.processor.Ping(ctx)
}

// Shutdown runs pending auto-refunds before returning.
func (s *authorizationService) Shutdown(ctx context.Context) error {
	return s.scheduler.Shutdown(ctx)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
