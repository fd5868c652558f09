package validation

import (
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/bin"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/card"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/risk"
	"github.com/shopspring/decimal"
)

// MaxBatchSize caps a single batch request.
const MaxBatchSize = 50

type Request struct {
	Card      card.Input      `json:"card"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Email     string          `json:"email,omitempty"`
	IPAddress string          `json:"ipAddress,omitempty"`
	DeviceID  string          `json:"deviceId,omitempty"`

	// InputError is set when the submitted payment could not be turned into
	// a card input. A batch reports it on the item without validating.
	InputError string `json:"-"`
}

// CardDetails echoes only what is safe to return: brand, last4 and a mask.
type CardDetails struct {
	Type        card.Brand `json:"type"`
	DisplayName string     `json:"displayName"`
	Last4       string     `json:"last4"`
	Masked      string     `json:"masked"`
	ExpiryMonth int        `json:"expiryMonth"`
	ExpiryYear  int        `json:"expiryYear"`
}

// Result is the orchestrator's response for a single payment.
type Result struct {
	Success          bool                  `json:"success"`
	OverallRisk      risk.Level            `json:"overallRisk"`
	RiskScore        int                   `json:"riskScore"`
	CardDetails      CardDetails           `json:"cardDetails"`
	ValidationChecks card.Checks           `json:"validationChecks"`
	RiskFactors      []string              `json:"riskFactors"`
	Recommendations  []risk.Recommendation `json:"recommendations"`
	BinInfo          *bin.Record           `json:"binInfo,omitempty"`
	FraudAssessment  *risk.FraudAssessment `json:"fraudAssessment,omitempty"`
	Cached           bool                  `json:"cached"`
	ProcessingMs     int64                 `json:"processingTimeMs"`
	Timestamp        time.Time             `json:"timestamp"`
}

type BatchItem struct {
	Index  int     `json:"index"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

type BatchSummary struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	HighRisk   int `json:"highRisk"`
	Errors     int `json:"errors"`
}

type BatchResult struct {
	TotalProcessed int          `json:"totalProcessed"`
	Results        []BatchItem  `json:"results"`
	Summary        BatchSummary `json:"summary"`
	ProcessingMs   int64        `json:"processingTimeMs"`
}

type Stats struct {
	TotalValidations int64                `json:"totalValidations"`
	Successful       int64                `json:"successful"`
	Failed           int64                `json:"failed"`
	ByRiskLevel      map[risk.Level]int64 `json:"byRiskLevel"`
	CacheHits        int64                `json:"cacheHits"`
	Batches          int64                `json:"batches"`
	BinLookups       int64                `json:"binLookups"`
}
