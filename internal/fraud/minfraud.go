package fraud

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/risk"
)

type minFraudRequest struct {
	Device     *minFraudDevice  `json:"device,omitempty"`
	Email      *minFraudEmail   `json:"email,omitempty"`
	Billing    *minFraudBilling `json:"billing,omitempty"`
	CreditCard minFraudCard     `json:"credit_card"`
	Order      minFraudOrder    `json:"order"`
}

type minFraudDevice struct {
	IPAddress string `json:"ip_address"`
}

type minFraudEmail struct {
	Address string `json:"address"`
}

type minFraudBilling struct {
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	Region  string `json:"region,omitempty"`
	Postal  string `json:"postal,omitempty"`
	Country string `json:"country,omitempty"`
}

type minFraudCard struct {
	IssuerIDNumber string `json:"issuer_id_number,omitempty"`
	LastDigits     string `json:"last_digits,omitempty"`
}

type minFraudOrder struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type minFraudResponse struct {
	ID        string  `json:"id"`
	RiskScore float64 `json:"risk_score"`
	IPAddress struct {
		Risk float64 `json:"risk"`
	} `json:"ip_address"`
	Warnings []struct {
		Code    string `json:"code"`
		Warning string `json:"warning"`
	} `json:"warnings"`
}

// MinFraudProvider calls the MaxMind minFraud Score web service.
type MinFraudProvider struct {
	url        string
	accountID  string
	licenseKey string
	client     *http.Client
}

func NewMinFraudProvider(url, accountID, licenseKey string, timeout time.Duration) *MinFraudProvider {
	return &MinFraudProvider{
		url:        url,
		accountID:  accountID,
		licenseKey: licenseKey,
		client:     newHTTPClient(timeout),
	}
}

func (p *MinFraudProvider) Name() string { return "minfraud" }

func (p *MinFraudProvider) Configured() bool {
	return p.url != "" && p.accountID != "" && p.licenseKey != ""
}

func (p *MinFraudProvider) Assess(ctx context.Context, in Request) (*risk.ProviderResult, error) {
	amount, _ := in.Amount.Float64()
	body := minFraudRequest{
		CreditCard: minFraudCard{IssuerIDNumber: in.BIN, LastDigits: in.Last4},
		Order:      minFraudOrder{Amount: amount, Currency: in.Currency},
	}
	if in.IPAddress != "" {
		body.Device = &minFraudDevice{IPAddress: in.IPAddress}
	}
	if in.Email != "" {
		body.Email = &minFraudEmail{Address: in.Email}
	}
	if a := in.BillingAddress; a != nil {
		body.Billing = &minFraudBilling{
			Address: a.Line1,
			City:    a.City,
			Region:  a.State,
			Postal:  a.PostalCode,
			Country: a.Country,
		}
	}

	req, err := newJSONRequest(http.MethodPost, p.url, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(p.accountID, p.licenseKey)

	var resp minFraudResponse
	if err := doJSON(ctx, p.client, p.Name(), req, &resp); err != nil {
		return nil, err
	}
	if resp.RiskScore < 0 || resp.RiskScore > 100 {
		return nil, fmt.Errorf("%w: minfraud risk_score %v", ErrBadResponse, resp.RiskScore)
	}

	score := risk.Clamp(int(math.Round(resp.RiskScore)))
	var factors []string
	if resp.IPAddress.Risk >= 50 {
		factors = append(factors, fmt.Sprintf("High IP risk (%.0f)", resp.IPAddress.Risk))
	}
	for _, w := range resp.Warnings {
		factors = append(factors, "minFraud warning: "+w.Code)
	}

	return &risk.ProviderResult{
		Provider: p.Name(),
		Score:    score,
		Level:    providerLevel(score),
		Factors:  factors,
		Raw: map[string]any{
			"id":        resp.ID,
			"riskScore": resp.RiskScore,
			"ipRisk":    resp.IPAddress.Risk,
		},
	}, nil
}
