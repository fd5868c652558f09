package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/binlookup"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/bin"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/card"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/risk"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/validation"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/events"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/fraud"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/cache"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/crypto"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.Init("test")
}

// MockBINResolver is a mock implementation of BINResolver
type MockBINResolver struct {
	mock.Mock
}

func (m *MockBINResolver) Resolve(ctx context.Context, number string) (*bin.Record, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bin.Record), args.Error(1)
}

// MockFraudAssessor is a mock implementation of FraudAssessor
type MockFraudAssessor struct {
	mock.Mock
}

func (m *MockFraudAssessor) Assess(ctx context.Context, req fraud.Request) *risk.FraudAssessment {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*risk.FraudAssessment)
}

// chanPublisher hands published events to the test.
type chanPublisher struct {
	events chan events.Event
}

func (p *chanPublisher) Publish(_ context.Context, e events.Event) error {
	p.events <- e
	return nil
}

func (p *chanPublisher) Close() error { return nil }

type validationDeps struct {
	bins      *MockBINResolver
	fraud     *MockFraudAssessor
	cache     *cache.Cache
	publisher *chanPublisher
}

func setupValidationServiceTest(t *testing.T) (*validationService, *validationDeps) {
	fp, err := crypto.NewFingerprinter("test-key")
	require.NoError(t, err)

	deps := &validationDeps{
		bins:      new(MockBINResolver),
		fraud:     new(MockFraudAssessor),
		cache:     cache.New(cache.NewMemoryStore(100), "validation"),
		publisher: &chanPublisher{events: make(chan events.Event, 64)},
	}
	svc := NewValidationService(
		deps.bins,
		deps.fraud,
		NewRiskScorer(risk.DefaultWeights()),
		deps.cache,
		fp,
		deps.publisher,
		ValidationConfig{Concurrency: 3},
	).(*validationService)
	return svc, deps
}

func validRequest() *validation.Request {
	return &validation.Request{
		Card: card.Input{
			CardNumber:  "4242 4242 4242 4242",
			ExpiryMonth: 12,
			ExpiryYear:  time.Now().Year() + 2,
			CVV:         "123",
			HolderName:  "Jane Doe",
		},
		Amount:    decimal.RequireFromString("25.00"),
		Currency:  "usd",
		IPAddress: "203.0.113.9",
	}
}

func usRecord() *bin.Record {
	return &bin.Record{
		BIN:         "424242",
		Brand:       "VISA",
		Type:        "credit",
		Issuer:      "Stripe Test Bank",
		CountryCode: "US",
		Confidence:  bin.ConfidenceHigh,
		Source:      "binlist",
	}
}

func lowFraud() *risk.FraudAssessment {
	return &risk.FraudAssessment{
		Score: 10,
		Level: risk.LevelVeryLow,
		Providers: []risk.ProviderResult{
			{Provider: "velocity", Score: 10, Level: risk.LevelLow},
		},
		ProvidersQueried:   1,
		ProvidersResponded: 1,
	}
}

func TestValidate_Success(t *testing.T) {
	svc, deps := setupValidationServiceTest(t)

	deps.bins.On("Resolve", mock.Anything, "424242").Return(usRecord(), nil)
	deps.fraud.On("Assess", mock.Anything, mock.MatchedBy(func(r fraud.Request) bool {
		return r.BIN == "424242" &&
			r.Last4 == "4242" &&
			r.Currency == "USD" &&
			r.IPAddress == "203.0.113.9" &&
			len(r.CardFingerprint) == 64 &&
			!strings.Contains(r.CardFingerprint, "4242424242424242")
	})).Return(lowFraud())

	res, err := svc.Validate(context.Background(), validRequest())

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, risk.LevelVeryLow, res.OverallRisk)
	assert.Equal(t, 0, res.RiskScore)
	assert.Equal(t, card.BrandVisa, res.CardDetails.Type)
	assert.Equal(t, "4242", res.CardDetails.Last4)
	assert.NotContains(t, res.CardDetails.Masked, "424242424242")
	assert.Equal(t, "Stripe Test Bank", res.BinInfo.Issuer)
	require.NotNil(t, res.FraudAssessment)
	assert.Equal(t, 1, res.FraudAssessment.ProvidersResponded)
	assert.False(t, res.Cached)
	assert.Equal(t, risk.RecommendApprove, res.Recommendations[0].Type)

	deps.bins.AssertExpectations(t)
	deps.fraud.AssertExpectations(t)
}

func TestValidate_CachedOnSecondCall(t *testing.T) {
	svc, deps := setupValidationServiceTest(t)

	deps.bins.On("Resolve", mock.Anything, "424242").Return(usRecord(), nil).Once()
	deps.fraud.On("Assess", mock.Anything, mock.Anything).Return(lowFraud()).Once()

	first, err := svc.Validate(context.Background(), validRequest())
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Validate(context.Background(), validRequest())
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.RiskScore, second.RiskScore)

	deps.bins.AssertNumberOfCalls(t, "Resolve", 1)
	deps.fraud.AssertNumberOfCalls(t, "Assess", 1)

	stats := svc.Stats()
	assert.Equal(t, int64(2), stats.TotalValidations)
	assert.Equal(t, int64(1), stats.CacheHits)
}

func TestValidate_DifferentAmountMissesCache(t *testing.T) {
	svc, deps := setupValidationServiceTest(t)

	deps.bins.On("Resolve", mock.Anything, "424242").Return(usRecord(), nil)
	deps.fraud.On("Assess", mock.Anything, mock.Anything).Return(lowFraud())

	_, err := svc.Validate(context.Background(), validRequest())
	require.NoError(t, err)

	req := validRequest()
	req.Amount = decimal.RequireFromString("26.00")
	res, err := svc.Validate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Cached)

	deps.bins.AssertNumberOfCalls(t, "Resolve", 2)
}

func TestValidate_ChangedCardFieldsMissCache(t *testing.T) {
	svc, deps := setupValidationServiceTest(t)

	deps.bins.On("Resolve", mock.Anything, "424242").Return(usRecord(), nil)
	deps.fraud.On("Assess", mock.Anything, mock.Anything).Return(lowFraud())

	first, err := svc.Validate(context.Background(), validRequest())
	require.NoError(t, err)
	require.True(t, first.Success)

	req := validRequest()
	req.Card.CVV = "9"
	req.Card.HolderName = "X"
	req.IPAddress = "198.51.100.7"

	second, err := svc.Validate(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, second.Cached)
	assert.False(t, second.ValidationChecks.CVV.Valid)
	assert.False(t, second.ValidationChecks.HolderName.Valid)
	assert.Greater(t, second.RiskScore, first.RiskScore)
	deps.fraud.AssertCalled(t, "Assess", mock.Anything, mock.MatchedBy(func(r fraud.Request) bool {
		return r.IPAddress == "198.51.100.7"
	}))
}

func TestValidate_ExpiredCardRejects(t *testing.T) {
	svc, deps := setupValidationServiceTest(t)

	deps.bins.On("Resolve", mock.Anything, "424242").Return(usRecord(), nil)
	deps.fraud.On("Assess", mock.Anything, mock.Anything).Return(lowFraud())

	req := validRequest()
	req.Card.ExpiryYear = time.Now().Year() - 1

	res, err := svc.Validate(context.Background(), req)

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, card.CodeCardExpired, res.ValidationChecks.Expiry.Code)
	assert.Equal(t, risk.LevelVeryLow, res.FraudAssessment.Level)
	assert.Contains(t, res.RiskFactors, "Card has expired")
	require.NotEmpty(t, res.Recommendations)
	assert.Equal(t, risk.RecommendReject, res.Recommendations[0].Type)
	assert.Equal(t, risk.PriorityHigh, res.Recommendations[0].Priority)
}

func TestValidate_HighRiskNotCached(t *testing.T) {
	svc, deps := setupValidationServiceTest(t)

	prepaid := usRecord()
	prepaid.Prepaid = true
	deps.bins.On("Resolve", mock.Anything, "424242").Return(prepaid, nil)
	deps.fraud.On("Assess", mock.Anything, mock.Anything).Return(&risk.FraudAssessment{
		Score:   85,
		Level:   risk.LevelHigh,
		Factors: []string{"Proxy IP detected"},
	})

	res, err := svc.Validate(context.Background(), validRequest())
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, risk.LevelHigh, res.OverallRisk)
	assert.Equal(t, 80, res.RiskScore)

	again, err := svc.Validate(context.Background(), validRequest())
	require.NoError(t, err)
	assert.False(t, again.Cached)
	deps.fraud.AssertNumberOfCalls(t, "Assess", 2)
}

func TestValidate_EarlyFailSkipsProviders(t *testing.T) {
	svc, deps := setupValidationServiceTest(t)

	req := validRequest()
	req.Card.CardNumber = "4242424242424241"

	res, err := svc.Validate(context.Background(), req)

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, res.ValidationChecks.Luhn.Valid)
	assert.Equal(t, card.CodeLuhnFailed, res.ValidationChecks.Luhn.Code)
	assert.Nil(t, res.BinInfo)
	assert.Nil(t, res.FraudAssessment)
	assert.Equal(t, risk.RecommendReject, res.Recommendations[0].Type)

	deps.bins.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
	deps.fraud.AssertNotCalled(t, "Assess", mock.Anything, mock.Anything)
}

func TestValidate_CardNumberRequired(t *testing.T) {
	svc, _ := setupValidationServiceTest(t)

	req := validRequest()
	req.Card.CardNumber = "   "

	res, err := svc.Validate(context.Background(), req)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrCardNumberRequired)
}

func TestValidate_BINUnavailableIsSoft(t *testing.T) {
	svc, deps := setupValidationServiceTest(t)

	deps.bins.On("Resolve", mock.Anything, "424242").Return(nil, binlookup.ErrLookupUnavailable)
	deps.fraud.On("Assess", mock.Anything, mock.Anything).Return(lowFraud())

	res, err := svc.Validate(context.Background(), validRequest())

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Nil(t, res.BinInfo)
	assert.Contains(t, res.RiskFactors, "BIN lookup unavailable")
	assert.Equal(t, 5, res.RiskScore)
}

func TestValidate_CancelledContext(t *testing.T) {
	svc, deps := setupValidationServiceTest(t)

	ctx, cancel := context.WithCancel(context.Background())
	deps.bins.On("Resolve", mock.Anything, "424242").Return(usRecord(), nil)
	deps.fraud.On("Assess", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(lowFraud())

	res, err := svc.Validate(ctx, validRequest())

	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidate_PublishesRiskAssessed(t *testing.T) {
	svc, deps := setupValidationServiceTest(t)

	deps.bins.On("Resolve", mock.Anything, "424242").Return(usRecord(), nil)
	deps.fraud.On("Assess", mock.Anything, mock.Anything).Return(lowFraud())

	_, err := svc.Validate(context.Background(), validRequest())
	require.NoError(t, err)

	select {
	case e := <-deps.publisher.events:
		assert.Equal(t, events.TypeRiskAssessed, e.Type)
		assert.Len(t, e.Key, 64)
	case <-time.After(time.Second):
		t.Fatal("risk.assessed event not published")
	}
}

func TestValidateBatch_Limits(t *testing.T) {
	svc, _ := setupValidationServiceTest(t)

	_, err := svc.ValidateBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrBatchEmpty)

	tooMany := make([]validation.Request, validation.MaxBatchSize+1)
	_, err = svc.ValidateBatch(context.Background(), tooMany)
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestValidateBatch_PreservesOrderAndSummarizes(t *testing.T) {
	svc, deps := setupValidationServiceTest(t)

	deps.bins.On("Resolve", mock.Anything, "424242").Return(usRecord(), nil)
	deps.fraud.On("Assess", mock.Anything, mock.Anything).Return(lowFraud())

	luhnFail := *validRequest()
	luhnFail.Card.CardNumber = "4242424242424241"
	missing := *validRequest()
	missing.Card.CardNumber = ""

	reqs := []validation.Request{*validRequest(), luhnFail, missing}

	res, err := svc.ValidateBatch(context.Background(), reqs)

	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalProcessed)
	for i, item := range res.Results {
		assert.Equal(t, i, item.Index)
	}
	assert.True(t, res.Results[0].Result.Success)
	assert.False(t, res.Results[1].Result.Success)
	assert.Nil(t, res.Results[2].Result)
	assert.Equal(t, ErrCardNumberRequired.Error(), res.Results[2].Error)

	assert.Equal(t, validation.BatchSummary{Successful: 1, Failed: 1, Errors: 1}, res.Summary)
	assert.Equal(t, int64(1), svc.Stats().Batches)
}

func TestValidateBatch_InputErrorStaysOnItem(t *testing.T) {
	svc, deps := setupValidationServiceTest(t)

	deps.bins.On("Resolve", mock.Anything, "424242").Return(usRecord(), nil)
	deps.fraud.On("Assess", mock.Anything, mock.Anything).Return(lowFraud())

	reqs := []validation.Request{
		{InputError: "INVALID_REQUEST: card number: card data could not be decrypted"},
		*validRequest(),
	}

	res, err := svc.ValidateBatch(context.Background(), reqs)

	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, 0, res.Results[0].Index)
	assert.Nil(t, res.Results[0].Result)
	assert.Equal(t, reqs[0].InputError, res.Results[0].Error)
	assert.Equal(t, 1, res.Results[1].Index)
	assert.True(t, res.Results[1].Result.Success)
	assert.Equal(t, validation.BatchSummary{Successful: 1, Errors: 1}, res.Summary)
	assert.Equal(t, int64(1), svc.Stats().TotalValidations)
}

// panickyScorer blows up for one specific card.
type panickyScorer struct {
	RiskScorer
}

func (p panickyScorer) Score(checks card.Checks, rec *bin.Record, binErr error, f *risk.FraudAssessment) *risk.Assessment {
	if !checks.CVV.Valid {
		panic("scorer exploded")
	}
	return p.RiskScorer.Score(checks, rec, binErr, f)
}

func TestValidateBatch_IsolatesPanics(t *testing.T) {
	svc, deps := setupValidationServiceTest(t)
	svc.scorer = panickyScorer{RiskScorer: NewRiskScorer(risk.DefaultWeights())}

	deps.bins.On("Resolve", mock.Anything, "424242").Return(usRecord(), nil)
	deps.fraud.On("Assess", mock.Anything, mock.Anything).Return(lowFraud())

	reqs := make([]validation.Request, 6)
	for i := range reqs {
		reqs[i] = *validRequest()
		reqs[i].Amount = decimal.NewFromInt(int64(10 + i))
	}
	reqs[4].Card.CVV = "1"

	res, err := svc.ValidateBatch(context.Background(), reqs)

	require.NoError(t, err)
	require.Len(t, res.Results, 6)
	for i, item := range res.Results {
		if i == 4 {
			assert.Equal(t, "INTERNAL_ERROR", item.Error)
			assert.Nil(t, item.Result)
			continue
		}
		assert.Empty(t, item.Error, fmt.Sprintf("item %d", i))
		assert.True(t, item.Result.Success)
	}
	assert.Equal(t, 1, res.Summary.Errors)
	assert.Equal(t, 5, res.Summary.Successful)
}

func TestDetectCardType(t *testing.T) {
	svc, _ := setupValidationServiceTest(t)

	info := svc.DetectCardType("3782 822463 10005")

	assert.Equal(t, card.BrandAmericanExpress, info.Brand)
	assert.Equal(t, 4, info.CVVLength)
}

func TestLookupBIN(t *testing.T) {
	svc, deps := setupValidationServiceTest(t)

	deps.bins.On("Resolve", mock.Anything, "42424242").Return(usRecord(), nil)

	rec, err := svc.LookupBIN(context.Background(), "4242 4242")

	require.NoError(t, err)
	assert.Equal(t, "US", rec.CountryCode)
	assert.Equal(t, int64(1), svc.Stats().BinLookups)
}

func TestLookupBIN_TruncatesFullNumber(t *testing.T) {
	svc, deps := setupValidationServiceTest(t)

	deps.bins.On("Resolve", mock.Anything, "42424242").Return(usRecord(), nil)

	rec, err := svc.LookupBIN(context.Background(), "4242424242424242")

	require.NoError(t, err)
	assert.Equal(t, "424242", rec.BIN)
	deps.bins.AssertExpectations(t)
}
