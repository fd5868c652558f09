package binlookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/bin"
)

var (
	ErrInvalidBIN        = errors.New("bin must be 6 to 8 digits")
	ErrLookupUnavailable = errors.New("bin lookup unavailable")
	ErrNotFound          = errors.New("bin not found")
	ErrRateLimited       = errors.New("provider rate limited")
)

// Provider resolves a BIN against one external source.
type Provider interface {
	Name() string
	// Configured is false when the provider lacks credentials and must be skipped.
	Configured() bool
	Lookup(ctx context.Context, bin string) (*bin.Record, error)
}

// StatusError is returned for unexpected HTTP statuses.
type StatusError struct {
	Provider string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Provider, e.Status)
}

// maxBodyBytes bounds provider responses.
const maxBodyBytes = 1 << 20

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func getJSON(ctx context.Context, client *http.Client, provider string, req *http.Request, out any) error {
	req = req.WithContext(ctx)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &StatusError{Provider: provider, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s read failed: %w", provider, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s decode failed: %w", provider, err)
	}
	return nil
}

func confidenceFor(r *bin.Record) bin.Confidence {
	switch {
	case r.Issuer != "" && !r.CountryUnknown() && r.Type != "":
		return bin.ConfidenceHigh
	case !r.CountryUnknown() || r.Issuer != "":
		return bin.ConfidenceMedium
	default:
		return bin.ConfidenceLow
	}
}
