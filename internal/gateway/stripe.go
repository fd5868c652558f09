package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/logger"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"go.uber.org/zap"
)

// StripeProcessor implements Processor on the Stripe API.
type StripeProcessor struct {
	client *client.API
}

// NewStripeProcessor returns a processor for secretKey. An empty key yields a
// processor whose every call fails with ErrNotConfigured.
func NewStripeProcessor(secretKey string) *StripeProcessor {
	if secretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set, card authorization disabled")
		return &StripeProcessor{}
	}
	return &StripeProcessor{client: client.New(secretKey, nil)}
}

// NewStripeProcessorWithBackends is used to point the client at a custom
// API backend.
func NewStripeProcessorWithBackends(secretKey string, backends *stripe.Backends) *StripeProcessor {
	return &StripeProcessor{client: client.New(secretKey, backends)}
}

func (p *StripeProcessor) ready() error {
	if p.client == nil {
		return ErrNotConfigured
	}
	return nil
}

func (p *StripeProcessor) CreatePaymentMethod(ctx context.Context, c CardDetails) (*PaymentMethod, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	params := &stripe.PaymentMethodParams{
		Type: stripe.String("card"),
		Card: &stripe.PaymentMethodCardParams{
			Number:   stripe.String(c.Number),
			ExpMonth: stripe.Int64(int64(c.ExpMonth)),
			ExpYear:  stripe.Int64(int64(c.ExpYear)),
			CVC:      stripe.String(c.CVC),
		},
	}
	params.Context = ctx

	if c.HolderName != "" || c.Email != "" || c.Address != nil {
		params.BillingDetails = &stripe.PaymentMethodBillingDetailsParams{}
		if c.HolderName != "" {
			params.BillingDetails.Name = stripe.String(c.HolderName)
		}
		if c.Email != "" {
			params.BillingDetails.Email = stripe.String(c.Email)
		}
		if a := c.Address; a != nil {
			params.BillingDetails.Address = &stripe.AddressParams{
				Line1:      stripe.String(a.Line1),
				Line2:      stripe.String(a.Line2),
				City:       stripe.String(a.City),
				State:      stripe.String(a.State),
				PostalCode: stripe.String(a.PostalCode),
				Country:    stripe.String(a.Country),
			}
		}
	}

	pm, err := p.client.PaymentMethods.New(params)
	if err != nil {
		return nil, convertError(err)
	}

	out := &PaymentMethod{ID: pm.ID}
	if pm.Card != nil {
		out.Brand = string(pm.Card.Brand)
		out.Last4 = pm.Card.Last4
		out.Funding = string(pm.Card.Funding)
		out.Country = pm.Card.Country
	}
	return out, nil
}

func (p *StripeProcessor) CreateIntent(ctx context.Context, in IntentParams) (*Intent, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(ToMinorUnits(in.Amount, in.Currency)),
		Currency:           stripe.String(strings.ToLower(in.Currency)),
		PaymentMethod:      stripe.String(in.PaymentMethodID),
		PaymentMethodTypes: []*string{stripe.String("card")},
	}
	if in.Description != "" {
		params.Description = stripe.String(in.Description)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	params.Context = ctx

	pi, err := p.client.PaymentIntents.New(params)
	if err != nil {
		return nil, convertError(err)
	}
	return toIntent(pi), nil
}

func (p *StripeProcessor) ConfirmIntent(ctx context.Context, intentID, paymentMethodID string) (*Intent, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethodID),
	}
	params.Context = ctx

	pi, err := p.client.PaymentIntents.Confirm(intentID, params)
	if err != nil {
		// A declined confirmation still carries the intent with its
		// last payment error; surface it as a result rather than a failure.
		var se *stripe.Error
		if errors.As(err, &se) && se.PaymentIntent != nil {
			intent := toIntent(se.PaymentIntent)
			if intent.LastPaymentError == nil {
				intent.LastPaymentError = fromStripeError(se)
			}
			return intent, nil
		}
		return nil, convertError(err)
	}
	return toIntent(pi), nil
}

func (p *StripeProcessor) GetCharge(ctx context.Context, chargeID string) (*Charge, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	params := &stripe.ChargeParams{}
	params.Context = ctx

	ch, err := p.client.Charges.Get(chargeID, params)
	if err != nil {
		return nil, convertError(err)
	}

	out := &Charge{
		ID:             ch.ID,
		Amount:         ch.Amount,
		AmountRefunded: ch.AmountRefunded,
		Currency:       string(ch.Currency),
		Refunded:       ch.Refunded,
	}
	if ch.PaymentMethodDetails != nil && ch.PaymentMethodDetails.Card != nil {
		c := ch.PaymentMethodDetails.Card
		out.Brand = string(c.Brand)
		out.Last4 = c.Last4
		out.Funding = string(c.Funding)
		out.Country = c.Country
		if c.Checks != nil {
			out.Checks = CardChecks{
				CVC:        string(c.Checks.CVCCheck),
				PostalCode: string(c.Checks.AddressPostalCodeCheck),
			}
		}
	}
	return out, nil
}

func (p *StripeProcessor) CreateRefund(ctx context.Context, chargeID, idempotencyKey string) (*Refund, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	params := &stripe.RefundParams{
		Charge: stripe.String(chargeID),
		Reason: stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	params.Context = ctx

	r, err := p.client.Refunds.New(params)
	if err != nil {
		return nil, convertError(err)
	}
	return toRefund(r, chargeID), nil
}

func (p *StripeProcessor) ListRefunds(ctx context.Context, chargeID string) ([]Refund, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	params := &stripe.RefundListParams{Charge: stripe.String(chargeID)}
	params.Context = ctx

	var refunds []Refund
	iter := p.client.Refunds.List(params)
	for iter.Next() {
		refunds = append(refunds, *toRefund(iter.Refund(), chargeID))
	}
	if err := iter.Err(); err != nil {
		return nil, convertError(err)
	}
	return refunds, nil
}

// Ping retrieves the account balance as a connectivity check.
func (p *StripeProcessor) Ping(ctx context.Context) error {
	if err := p.ready(); err != nil {
		return err
	}

	params := &stripe.BalanceParams{}
	params.Context = ctx

	if _, err := p.client.Balance.Get(params); err != nil {
		return convertError(err)
	}
	return nil
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	intent := &Intent{
		ID:     pi.ID,
		Status: string(pi.Status),
	}
	if pi.LatestCharge != nil {
		intent.ChargeID = pi.LatestCharge.ID
	}
	if pi.NextAction != nil {
		intent.NextAction = nextActionMap(pi.NextAction)
	}
	if pi.LastPaymentError != nil {
		intent.LastPaymentError = fromStripeError(pi.LastPaymentError)
	}
	return intent
}

// nextActionMap passes the processor payload through untouched.
func nextActionMap(na *stripe.PaymentIntentNextAction) map[string]any {
	b, err := json.Marshal(na)
	if err != nil {
		logger.Warn("Failed to encode next action", zap.Error(err))
		return map[string]any{"type": string(na.Type)}
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return map[string]any{"type": string(na.Type)}
	}
	return out
}

func toRefund(r *stripe.Refund, chargeID string) *Refund {
	out := &Refund{
		ID:       r.ID,
		ChargeID: chargeID,
		Status:   string(r.Status),
		Amount:   r.Amount,
		Currency: string(r.Currency),
		Reason:   string(r.Reason),
		Created:  time.Unix(r.Created, 0).UTC(),
	}
	if r.Charge != nil && r.Charge.ID != "" {
		out.ChargeID = r.Charge.ID
	}
	return out
}

func fromStripeError(se *stripe.Error) *Error {
	return &Error{
		Type:        string(se.Type),
		Code:        string(se.Code),
		DeclineCode: string(se.DeclineCode),
		Message:     se.Msg,
		HTTPStatus:  se.HTTPStatusCode,
	}
}

// convertError maps Stripe errors onto this package's error types.
func convertError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return fmt.Errorf("%w: %v", ErrProcessorUnavailable, err)
	}
	if se.Code == stripe.ErrorCodeChargeAlreadyRefunded {
		return ErrChargeAlreadyRefunded
	}
	if se.Type == stripe.ErrorTypeAPI || se.HTTPStatusCode >= 500 {
		return fmt.Errorf("%w: %s", ErrProcessorUnavailable, se.Msg)
	}
	return fromStripeError(se)
}
