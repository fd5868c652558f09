package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/card"
	"github.com/shopspring/decimal"
)

var (
	ErrNotConfigured         = errors.New("payment processor not configured")
	ErrProcessorUnavailable  = errors.New("payment processor unavailable")
	ErrChargeAlreadyRefunded = errors.New("charge already refunded")
)

// Intent statuses as reported by the processor.
const (
	IntentSucceeded             = "succeeded"
	IntentRequiresAction        = "requires_action"
	IntentRequiresPaymentMethod = "requires_payment_method"
	IntentRequiresConfirmation  = "requires_confirmation"
	IntentProcessing            = "processing"
	IntentCanceled              = "canceled"
)

// CardDetails is the raw card handed to the processor for tokenization.
type CardDetails struct {
	Number     string
	ExpMonth   int
	ExpYear    int
	CVC        string
	HolderName string
	Email      string
	Address    *card.Address
}

type PaymentMethod struct {
	ID      string
	Brand   string
	Last4   string
	Funding string
	Country string
}

type IntentParams struct {
	Amount          decimal.Decimal
	Currency        string
	PaymentMethodID string
	Description     string
	Metadata        map[string]string
	IdempotencyKey  string
}

type Intent struct {
	ID               string
	Status           string
	ChargeID         string
	NextAction       map[string]any
	LastPaymentError *Error
}

type CardChecks struct {
	CVC        string
	PostalCode string
}

// Charge amounts are in minor units of Currency.
type Charge struct {
	ID             string
	Amount         int64
	AmountRefunded int64
	Currency       string
	Refunded       bool
	Brand          string
	Last4          string
	Funding        string
	Country        string
	Checks         CardChecks
}

type Refund struct {
	ID       string
	ChargeID string
	Status   string
	Amount   int64
	Currency string
	Reason   string
	Created  time.Time
}

// Error is a processor-side failure with its decline details.
type Error struct {
	Type        string
	Code        string
	DeclineCode string
	Message     string
	HTTPStatus  int
}

func (e *Error) Error() string {
	if e.DeclineCode != "" {
		return fmt.Sprintf("processor error %s (%s): %s", e.Code, e.DeclineCode, e.Message)
	}
	return fmt.Sprintf("processor error %s: %s", e.Code, e.Message)
}

// Processor is the card processor the authorization service drives.
type Processor interface {
	CreatePaymentMethod(ctx context.Context, card CardDetails) (*PaymentMethod, error)
	CreateIntent(ctx context.Context, params IntentParams) (*Intent, error)
	ConfirmIntent(ctx context.Context, intentID, paymentMethodID string) (*Intent, error)
	GetCharge(ctx context.Context, chargeID string) (*Charge, error)
	CreateRefund(ctx context.Context, chargeID, idempotencyKey string) (*Refund, error)
	ListRefunds(ctx context.Context, chargeID string) ([]Refund, error)
	Ping(ctx context.Context) error
}

var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {}, "KRW": {},
	"MGA": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {},
	"XOF": {}, "XPF": {},
}

func minorExponent(currency string) int32 {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(currency)]; ok {
		return 0
	}
	return 2
}

// ToMinorUnits converts an amount to the processor's integer representation.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(minorExponent(currency)).Round(0).IntPart()
}

func FromMinorUnits(amount int64, currency string) decimal.Decimal {
	return decimal.New(amount, -minorExponent(currency))
}
