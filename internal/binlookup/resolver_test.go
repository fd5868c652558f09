package binlookup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/config"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/bin"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/risk"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/cache"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.Init("test")
}

// stubProvider is a scripted Provider.
type stubProvider struct {
	name       string
	configured bool
	record     *bin.Record
	err        error
	delay      time.Duration
	calls      int32
}

func (s *stubProvider) Name() string     { return s.name }
func (s *stubProvider) Configured() bool { return s.configured }

func (s *stubProvider) Lookup(ctx context.Context, number string) (*bin.Record, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	rec := *s.record
	rec.BIN = number
	return &rec, nil
}

func newTestResolver(providers ...Provider) *Resolver {
	c := cache.New(cache.NewMemoryStore(100), "bin")
	return NewResolver(providers, DefaultStaticTable(), c, time.Hour, 200*time.Millisecond)
}

func TestResolve_InvalidBIN(t *testing.T) {
	r := newTestResolver()

	for _, in := range []string{"", "12345", "123456789", "12ab56"} {
		_, err := r.Resolve(context.Background(), in)
		assert.ErrorIs(t, err, ErrInvalidBIN, in)
	}
}

func TestResolve_FirstConfiguredProviderWins(t *testing.T) {
	skipped := &stubProvider{name: "skipped", configured: false, record: &bin.Record{Issuer: "nope"}}
	first := &stubProvider{name: "first", configured: true, record: &bin.Record{Issuer: "First Bank", CountryCode: "US", Source: "first"}}
	second := &stubProvider{name: "second", configured: true, record: &bin.Record{Issuer: "Second Bank", Source: "second"}}

	r := newTestResolver(skipped, first, second)
	rec, err := r.Resolve(context.Background(), "411111")

	require.NoError(t, err)
	assert.Equal(t, "First Bank", rec.Issuer)
	assert.Equal(t, int32(0), atomic.LoadInt32(&skipped.calls))
	assert.Equal(t, int32(0), atomic.LoadInt32(&second.calls))
}

func TestResolve_FallsThroughFailures(t *testing.T) {
	failing := &stubProvider{name: "failing", configured: true, err: errors.New("boom")}
	slow := &stubProvider{name: "slow", configured: true, delay: time.Second, record: &bin.Record{}}
	good := &stubProvider{name: "good", configured: true, record: &bin.Record{Issuer: "Good Bank", CountryCode: "GB", Source: "good"}}

	r := newTestResolver(failing, slow, good)
	start := time.Now()
	rec, err := r.Resolve(context.Background(), "411111")

	require.NoError(t, err)
	assert.Equal(t, "Good Bank", rec.Issuer)
	assert.Less(t, time.Since(start), 900*time.Millisecond, "slow provider must be cut off by its timeout")
}

func TestResolve_CachesRemoteResult(t *testing.T) {
	p := &stubProvider{name: "p", configured: true, record: &bin.Record{Issuer: "Bank", CountryCode: "US", Source: "p"}}
	r := newTestResolver(p)

	_, err := r.Resolve(context.Background(), "411111")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "411111")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&p.calls))
}

func TestResolve_StaticFallbackLowConfidence(t *testing.T) {
	failing := &stubProvider{name: "failing", configured: true, err: errors.New("down")}
	r := newTestResolver(failing)

	rec, err := r.Resolve(context.Background(), "424242")
	require.NoError(t, err)
	assert.Equal(t, bin.ConfidenceLow, rec.Confidence)
	assert.Equal(t, "static_table", rec.Source)
	assert.Equal(t, "Stripe Test Bank", rec.Issuer)

	// Static results are not cached
	_, _ = r.Resolve(context.Background(), "424242")
	assert.Equal(t, int32(2), atomic.LoadInt32(&failing.calls))
}

func TestResolve_Unavailable(t *testing.T) {
	failing := &stubProvider{name: "failing", configured: true, err: errors.New("down")}
	r := newTestResolver(failing)

	_, err := r.Resolve(context.Background(), "999999")
	assert.ErrorIs(t, err, ErrLookupUnavailable)
}

func TestResolve_ComputesRiskIndicators(t *testing.T) {
	p := &stubProvider{name: "p", configured: true, record: &bin.Record{Issuer: "Bank", CountryCode: "NG", Prepaid: true, Source: "p"}}
	r := newTestResolver(p)

	rec, err := r.Resolve(context.Background(), "411111")
	require.NoError(t, err)
	assert.Equal(t, risk.LevelHigh, rec.RiskIndicators.Level)
	assert.Equal(t, 50, rec.RiskIndicators.Score)
}

func TestStaticTable_NarrowestRangeWins(t *testing.T) {
	table := DefaultStaticTable()

	rec, ok := table.Lookup("42424242")
	require.True(t, ok)
	assert.Equal(t, "Stripe Test Bank", rec.Issuer)

	rec, ok = table.Lookup("411111")
	require.True(t, ok)
	assert.Equal(t, "VISA", rec.Brand)
	assert.Equal(t, "credit", rec.Type)
	assert.Equal(t, bin.ConfidenceLow, rec.Confidence)
	assert.True(t, rec.CountryUnknown())

	rec, ok = table.Lookup("622126")
	require.True(t, ok)
	assert.Equal(t, "DISCOVER", rec.Brand)

	_, ok = table.Lookup("999999")
	assert.False(t, ok)
}

// ==================== HTTP Provider Tests ====================

func TestBinlistProvider_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/45717360", r.URL.Path)
		assert.Equal(t, "3", r.Header.Get("Accept-Version"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"scheme":"visa","type":"debit","brand":"Visa/Dankort","prepaid":false,
			"country":{"alpha2":"DK","name":"Denmark","currency":"DKK"},"bank":{"name":"Jyske Bank"}}`))
	}))
	defer srv.Close()

	p := NewBinlistProvider(srv.URL, time.Second)
	assert.True(t, p.Configured())

	rec, err := p.Lookup(context.Background(), "45717360")
	require.NoError(t, err)
	assert.Equal(t, "VISA", rec.Brand)
	assert.Equal(t, "debit", rec.Type)
	assert.Equal(t, "DK", rec.CountryCode)
	assert.Equal(t, "Jyske Bank", rec.Issuer)
	assert.Equal(t, bin.ConfidenceHigh, rec.Confidence)
}

func TestBinlistProvider_StatusMapping(t *testing.T) {
	status := http.StatusNotFound
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	p := NewBinlistProvider(srv.URL, time.Second)

	_, err := p.Lookup(context.Background(), "000000")
	assert.ErrorIs(t, err, ErrNotFound)

	status = http.StatusTooManyRequests
	_, err = p.Lookup(context.Background(), "000000")
	assert.ErrorIs(t, err, ErrRateLimited)

	status = http.StatusBadGateway
	_, err = p.Lookup(context.Background(), "000000")
	var se *StatusError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Status)
}

func TestNeutrinoProvider_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "510510", r.URL.Query().Get("bin-number"))
		assert.Equal(t, "user", r.Header.Get("User-ID"))
		assert.Equal(t, "key", r.Header.Get("API-Key"))
		_, _ = w.Write([]byte(`{"valid":true,"card-brand":"MASTERCARD","card-type":"DEBIT","issuer":"ACME",
			"country":"United States","country-code":"US","currency-code":"USD","is-prepaid":true,"is-commercial":false}`))
	}))
	defer srv.Close()

	p := NewNeutrinoProvider(srv.URL, "user", "key", time.Second)
	rec, err := p.Lookup(context.Background(), "510510")

	require.NoError(t, err)
	assert.True(t, rec.Prepaid)
	assert.Equal(t, "prepaid", rec.Type)
	assert.Equal(t, "US", rec.CountryCode)
}

func TestNeutrinoProvider_NotConfiguredWithoutKeys(t *testing.T) {
	assert.False(t, NewNeutrinoProvider("https://example", "", "", time.Second).Configured())
}

func TestAPILayerProvider_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("apikey"))
		_, _ = w.Write([]byte(`{"bank_name":"Chase","country":"United States","type":"Credit","scheme":"Visa","bin":"414720"}`))
	}))
	defer srv.Close()

	p := NewAPILayerProvider(srv.URL, "secret", time.Second)
	rec, err := p.Lookup(context.Background(), "414720")

	require.NoError(t, err)
	assert.Equal(t, "VISA", rec.Brand)
	assert.Equal(t, "credit", rec.Type)
	assert.Equal(t, "US", rec.CountryCode)
}

func TestBuildProviders(t *testing.T) {
	providers, err := BuildProviders(config.BINConfig{
		Providers: []string{"apilayer", "binlist"},
		Timeout:   time.Second,
	})
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "apilayer", providers[0].Name())
	assert.Equal(t, "binlist", providers[1].Name())

	_, err = BuildProviders(config.BINConfig{Providers: []string{"mystery"}})
	assert.Error(t, err)
}
