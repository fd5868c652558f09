package binlookup

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/bin"
)

type binlistResponse struct {
	Scheme  string `json:"scheme"`
	Type    string `json:"type"`
	Brand   string `json:"brand"`
	Prepaid *bool  `json:"prepaid"`
	Country struct {
		Alpha2   string `json:"alpha2"`
		Name     string `json:"name"`
		Currency string `json:"currency"`
	} `json:"country"`
	Bank struct {
		Name string `json:"name"`
	} `json:"bank"`
}

// BinlistProvider queries the public lookup.binlist.net API. It needs no key.
type BinlistProvider struct {
	baseURL string
	client  *http.Client
}

func NewBinlistProvider(baseURL string, timeout time.Duration) *BinlistProvider {
	return &BinlistProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(timeout),
	}
}

func (p *BinlistProvider) Name() string     { return "binlist" }
func (p *BinlistProvider) Configured() bool { return p.baseURL != "" }

func (p *BinlistProvider) Lookup(ctx context.Context, number string) (*bin.Record, error) {
	req, err := http.NewRequest(http.MethodGet, p.baseURL+"/"+number, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept-Version", "3")

	var resp binlistResponse
	if err := getJSON(ctx, p.client, p.Name(), req, &resp); err != nil {
		return nil, err
	}

	rec := &bin.Record{
		BIN:         number,
		Brand:       strings.ToUpper(resp.Scheme),
		Type:        strings.ToLower(resp.Type),
		Issuer:      resp.Bank.Name,
		Country:     resp.Country.Name,
		CountryCode: strings.ToUpper(resp.Country.Alpha2),
		Currency:    resp.Country.Currency,
		Source:      p.Name(),
	}
	if resp.Prepaid != nil && *resp.Prepaid {
		rec.Prepaid = true
		rec.Type = "prepaid"
	}
	rec.Commercial = strings.Contains(strings.ToLower(resp.Brand), "business") ||
		strings.Contains(strings.ToLower(resp.Brand), "corporate")
	rec.Confidence = confidenceFor(rec)
	return rec, nil
}
