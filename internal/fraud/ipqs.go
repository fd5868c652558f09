package fraud

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/risk"
)

type ipqsResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	FraudScore  int    `json:"fraud_score"`
	CountryCode string `json:"country_code"`
	Proxy       bool   `json:"proxy"`
	VPN         bool   `json:"vpn"`
	Tor         bool   `json:"tor"`
	RecentAbuse bool   `json:"recent_abuse"`
	BotStatus   bool   `json:"bot_status"`
}

// IPQSProvider checks the caller IP against IPQualityScore's proxy and
// reputation API.
type IPQSProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewIPQSProvider(baseURL, apiKey string, timeout time.Duration) *IPQSProvider {
	return &IPQSProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  newHTTPClient(timeout),
	}
}

func (p *IPQSProvider) Name() string     { return "ipqs" }
func (p *IPQSProvider) Configured() bool { return p.baseURL != "" && p.apiKey != "" }

func (p *IPQSProvider) Assess(ctx context.Context, in Request) (*risk.ProviderResult, error) {
	if in.IPAddress == "" {
		return nil, ErrNotApplicable
	}

	q := url.Values{}
	q.Set("strictness", "1")
	if in.Email != "" {
		q.Set("email", in.Email)
	}
	endpoint := p.baseURL + "/" + url.PathEscape(p.apiKey) + "/" + url.PathEscape(in.IPAddress) + "?" + q.Encode()

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var resp ipqsResponse
	if err := doJSON(ctx, p.client, p.Name(), req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "request rejected"
		}
		return nil, errors.New("ipqs: " + msg)
	}

	var factors []string
	if resp.Proxy {
		factors = append(factors, "Proxy IP detected")
	}
	if resp.VPN {
		factors = append(factors, "VPN IP detected")
	}
	if resp.Tor {
		factors = append(factors, "Tor exit node")
	}
	if resp.RecentAbuse {
		factors = append(factors, "IP linked to recent abuse")
	}
	if resp.BotStatus {
		factors = append(factors, "Bot activity from IP")
	}

	score := risk.Clamp(resp.FraudScore)
	return &risk.ProviderResult{
		Provider: p.Name(),
		Score:    score,
		Level:    providerLevel(score),
		Factors:  factors,
		Raw: map[string]any{
			"fraudScore":  resp.FraudScore,
			"countryCode": resp.CountryCode,
			"proxy":       resp.Proxy,
			"vpn":         resp.VPN,
			"tor":         resp.Tor,
		},
	}, nil
}
