package authorization

import (
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/card"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/risk"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusSucceeded             Status = "succeeded"
	StatusRequiresAction        Status = "requires_action"
	StatusRequiresPaymentMethod Status = "requires_payment_method"
	StatusCanceled              Status = "canceled"
	StatusFailed                Status = "failed"
)

// Stage tracks how far an authorization progressed through the processor.
type Stage string

const (
	StageCreated         Stage = "CREATED"
	StageMethodTokenized Stage = "METHOD_TOKENIZED"
	StageIntentCreated   Stage = "INTENT_CREATED"
	StageConfirmed       Stage = "CONFIRMED"
)

type ErrorCategory string

const (
	ErrorCardDeclined      ErrorCategory = "card_declined"
	ErrorExpiredCard       ErrorCategory = "expired_card"
	ErrorIncorrectCVC      ErrorCategory = "incorrect_cvc"
	ErrorInsufficientFunds ErrorCategory = "insufficient_funds"
	ErrorProcessing        ErrorCategory = "processing_error"
	ErrorRateLimited       ErrorCategory = "rate_limited"
)

type Request struct {
	Card        card.Input     `json:"card"`
	Email       string         `json:"email,omitempty"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type CardSummary struct {
	Last4   string `json:"last4"`
	Brand   string `json:"brand"`
	Funding string `json:"funding"`
	Country string `json:"country"`
}

type Error struct {
	Category    ErrorCategory `json:"category"`
	Message     string        `json:"message"`
	Code        string        `json:"code,omitempty"`
	DeclineCode string        `json:"declineCode,omitempty"`
	Detail      string        `json:"detail,omitempty"`
}

type AutoRefund struct {
	Scheduled   bool      `json:"scheduled"`
	DelayMs     int64     `json:"delayMs"`
	ScheduledAt time.Time `json:"scheduledAt"`
}

type RiskAssessment struct {
	Score   int        `json:"score"`
	Level   risk.Level `json:"level"`
	Factors []string   `json:"factors"`
}

// Result is returned by the authorization service and cached for an hour.
type Result struct {
	ID              uuid.UUID       `json:"authorizationId"`
	Success         bool            `json:"success"`
	Status          Status          `json:"status"`
	Stage           Stage           `json:"stage"`
	PaymentIntentID string          `json:"paymentIntentId,omitempty"`
	PaymentMethodID string          `json:"paymentMethodId,omitempty"`
	ChargeID        string          `json:"chargeId,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Card            CardSummary     `json:"card"`
	NextAction      map[string]any  `json:"nextAction,omitempty"`
	RiskAssessment  *RiskAssessment `json:"riskAssessment,omitempty"`
	AutoRefund      *AutoRefund     `json:"autoRefund,omitempty"`
	Error           *Error          `json:"error,omitempty"`
	ProcessingMs    int64           `json:"processingTimeMs"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type RefundResult struct {
	RefundID        string          `json:"refundId"`
	ChargeID        string          `json:"chargeId"`
	Status          string          `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	AlreadyRefunded bool            `json:"alreadyRefunded"`
}

type RefundEntry struct {
	RefundID  string          `json:"refundId"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type RefundStatus struct {
	ChargeID         string          `json:"chargeId"`
	Amount           decimal.Decimal `json:"amount"`
	AmountRefunded   decimal.Decimal `json:"amountRefunded"`
	RefundableAmount decimal.Decimal `json:"refundableAmount"`
	Currency         string          `json:"currency"`
	FullyRefunded    bool            `json:"fullyRefunded"`
	Refunds          []RefundEntry   `json:"refunds"`
}

type Stats struct {
	Total             int64            `json:"total"`
	ByStatus          map[Status]int64 `json:"byStatus"`
	RefundsScheduled  int64            `json:"refundsScheduled"`
	RefundsSucceeded  int64            `json:"refundsSucceeded"`
	RefundsFailed     int64            `json:"refundsFailed"`
	AverageDurationMs float64          `json:"averageDurationMs"`
}
