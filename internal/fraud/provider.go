package fraud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/card"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/risk"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotApplicable means the provider has nothing to say about this
	// request (for example an IP reputation check without an IP). It is
	// not counted as a failure.
	ErrNotApplicable = errors.New("provider not applicable to request")
	ErrBadResponse   = errors.New("malformed provider response")
)

// Request is the card-free view of a payment that fraud providers see.
// The full PAN never leaves the validation service.
type Request struct {
	BIN             string
	Last4           string
	CardFingerprint string
	Amount          decimal.Decimal
	Currency        string
	Email           string
	IPAddress       string
	DeviceID        string
	BillingAddress  *card.Address
}

// Provider scores a request against one external or local signal source.
type Provider interface {
	Name() string
	Configured() bool
	Assess(ctx context.Context, req Request) (*risk.ProviderResult, error)
}

type StatusError struct {
	Provider string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Provider, e.Status)
}

const maxBodyBytes = 1 << 20

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// newJSONRequest builds a request with a JSON-encoded body.
func newJSONRequest(method, url string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func doJSON(ctx context.Context, client *http.Client, provider string, req *http.Request, out any) error {
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Provider: provider, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s read failed: %w", provider, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadResponse, provider, err)
	}
	return nil
}

// providerLevel buckets a single provider's score. Providers report only
// LOW, MEDIUM or HIGH.
func providerLevel(score int) risk.Level {
	switch {
	case score >= 75:
		return risk.LevelHigh
	case score >= 50:
		return risk.LevelMedium
	default:
		return risk.LevelLow
	}
}
