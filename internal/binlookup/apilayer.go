package binlookup

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/bin"
)

type apilayerResponse struct {
	BankName string `json:"bank_name"`
	Country  string `json:"country"`
	Type     string `json:"type"`
	Scheme   string `json:"scheme"`
	BIN      string `json:"bin"`
}

// countryCodes covers the names apilayer returns most often; anything else
// leaves the code empty and the country is treated as unknown.
var countryCodes = map[string]string{
	"united states": "US", "united kingdom": "GB", "canada": "CA",
	"germany": "DE", "france": "FR", "spain": "ES", "italy": "IT",
	"netherlands": "NL", "australia": "AU", "japan": "JP", "india": "IN",
	"brazil": "BR", "mexico": "MX", "indonesia": "ID", "singapore": "SG",
	"nigeria": "NG", "russia": "RU", "russian federation": "RU",
}

// APILayerProvider queries the apilayer bincheck API.
type APILayerProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewAPILayerProvider(baseURL, apiKey string, timeout time.Duration) *APILayerProvider {
	return &APILayerProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  newHTTPClient(timeout),
	}
}

func (p *APILayerProvider) Name() string     { return "apilayer" }
func (p *APILayerProvider) Configured() bool { return p.baseURL != "" && p.apiKey != "" }

func (p *APILayerProvider) Lookup(ctx context.Context, number string) (*bin.Record, error) {
	req, err := http.NewRequest(http.MethodGet, p.baseURL+"/"+number, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", p.apiKey)

	var resp apilayerResponse
	if err := getJSON(ctx, p.client, p.Name(), req, &resp); err != nil {
		return nil, err
	}
	if resp.Scheme == "" && resp.BankName == "" {
		return nil, ErrNotFound
	}

	typ := strings.ToLower(resp.Type)
	rec := &bin.Record{
		BIN:         number,
		Brand:       strings.ToUpper(resp.Scheme),
		Type:        typ,
		Issuer:      resp.BankName,
		Country:     resp.Country,
		CountryCode: countryCodes[strings.ToLower(resp.Country)],
		Prepaid:     typ == "prepaid",
		Source:      p.Name(),
	}
	rec.Confidence = confidenceFor(rec)
	return rec, nil
}
