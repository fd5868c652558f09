package binlookup

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/bin"
)

type neutrinoResponse struct {
	Valid        bool   `json:"valid"`
	CardBrand    string `json:"card-brand"`
	CardType     string `json:"card-type"`
	CardCategory string `json:"card-category"`
	Issuer       string `json:"issuer"`
	Country      string `json:"country"`
	CountryCode  string `json:"country-code"`
	CurrencyCode string `json:"currency-code"`
	IsCommercial bool   `json:"is-commercial"`
	IsPrepaid    bool   `json:"is-prepaid"`
}

// NeutrinoProvider queries the Neutrino API bin-lookup endpoint.
type NeutrinoProvider struct {
	endpoint string
	userID   string
	apiKey   string
	client   *http.Client
}

func NewNeutrinoProvider(endpoint, userID, apiKey string, timeout time.Duration) *NeutrinoProvider {
	return &NeutrinoProvider{
		endpoint: endpoint,
		userID:   userID,
		apiKey:   apiKey,
		client:   newHTTPClient(timeout),
	}
}

func (p *NeutrinoProvider) Name() string { return "neutrino" }

func (p *NeutrinoProvider) Configured() bool {
	return p.endpoint != "" && p.userID != "" && p.apiKey != ""
}

func (p *NeutrinoProvider) Lookup(ctx context.Context, number string) (*bin.Record, error) {
	q := url.Values{}
	q.Set("bin-number", number)

	req, err := http.NewRequest(http.MethodGet, p.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-ID", p.userID)
	req.Header.Set("API-Key", p.apiKey)

	var resp neutrinoResponse
	if err := getJSON(ctx, p.client, p.Name(), req, &resp); err != nil {
		return nil, err
	}
	if !resp.Valid {
		return nil, ErrNotFound
	}

	rec := &bin.Record{
		BIN:         number,
		Brand:       strings.ToUpper(resp.CardBrand),
		Type:        strings.ToLower(resp.CardType),
		Issuer:      resp.Issuer,
		Country:     resp.Country,
		CountryCode: strings.ToUpper(resp.CountryCode),
		Currency:    resp.CurrencyCode,
		Prepaid:     resp.IsPrepaid,
		Commercial:  resp.IsCommercial,
		Source:      p.Name(),
	}
	if rec.Prepaid {
		rec.Type = "prepaid"
	}
	rec.Confidence = confidenceFor(rec)
	return rec, nil
}
