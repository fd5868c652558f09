package fraud

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/risk"
)

// Decision Manager verdicts.
const (
	DecisionAccept = "ACCEPT"
	DecisionReview = "REVIEW"
	DecisionReject = "REJECT"
)

// afsFactors describes the Advanced Fraud Screen factor codes.
var afsFactors = map[string]string{
	"A": "Excessive address change",
	"B": "Card BIN or authorization risk",
	"C": "High number of account numbers",
	"D": "Email address impact",
	"E": "Positive list match",
	"F": "Negative list match",
	"G": "Geolocation inconsistency",
	"H": "Excessive name changes",
	"I": "Internet inconsistency",
	"N": "Nonsensical input",
	"O": "Obscenities in input",
	"P": "Phone inconsistency",
	"Q": "Phone inconsistency",
	"R": "Risky order",
	"T": "Time hedge",
	"U": "Unverifiable address",
	"V": "Velocity",
	"W": "Marked as suspicious",
	"Y": "Gift order pattern",
	"Z": "Invalid value",
}

type dmRequest struct {
	MerchantID            string           `json:"merchantID"`
	MerchantReferenceCode string           `json:"merchantReferenceCode"`
	BillTo                dmBillTo         `json:"billTo"`
	Card                  dmCard           `json:"card"`
	PurchaseTotals        dmPurchaseTotals `json:"purchaseTotals"`
	DeviceFingerprintID   string           `json:"deviceFingerprintID,omitempty"`
}

type dmBillTo struct {
	Street1    string `json:"street1,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
	Email      string `json:"email,omitempty"`
	IPAddress  string `json:"ipAddress,omitempty"`
}

type dmCard struct {
	BIN   string `json:"bin"`
	Last4 string `json:"last4"`
}

type dmPurchaseTotals struct {
	Currency         string `json:"currency"`
	GrandTotalAmount string `json:"grandTotalAmount"`
}

type dmResponse struct {
	RequestID  string `json:"requestID"`
	Decision   string `json:"decision"`
	ReasonCode int    `json:"reasonCode"`
	AFSReply   *struct {
		AFSResult     string `json:"afsResult"`
		AFSFactorCode string `json:"afsFactorCode"`
		HostSeverity  string `json:"hostSeverity"`
		BinCountry    string `json:"binCountry"`
		IPCountry     string `json:"ipCountry"`
	} `json:"afsReply"`
}

// DecisionManagerProvider calls a Decision Manager style risk endpoint that
// answers ACCEPT, REVIEW or REJECT with an AFS score and factor codes.
type DecisionManagerProvider struct {
	url        string
	merchantID string
	apiKey     string
	client     *http.Client
}

func NewDecisionManagerProvider(url, merchantID, apiKey string, timeout time.Duration) *DecisionManagerProvider {
	return &DecisionManagerProvider{
		url:        url,
		merchantID: merchantID,
		apiKey:     apiKey,
		client:     newHTTPClient(timeout),
	}
}

func (p *DecisionManagerProvider) Name() string { return "decision_manager" }

func (p *DecisionManagerProvider) Configured() bool {
	return p.url != "" && p.merchantID != "" && p.apiKey != ""
}

func (p *DecisionManagerProvider) Assess(ctx context.Context, in Request) (*risk.ProviderResult, error) {
	body := dmRequest{
		MerchantID:            p.merchantID,
		MerchantReferenceCode: in.CardFingerprint,
		BillTo: dmBillTo{
			Email:     in.Email,
			IPAddress: in.IPAddress,
		},
		Card: dmCard{BIN: in.BIN, Last4: in.Last4},
		PurchaseTotals: dmPurchaseTotals{
			Currency:         strings.ToUpper(in.Currency),
			GrandTotalAmount: in.Amount.StringFixed(2),
		},
		DeviceFingerprintID: in.DeviceID,
	}
	if a := in.BillingAddress; a != nil {
		body.BillTo.Street1 = a.Line1
		body.BillTo.City = a.City
		body.BillTo.State = a.State
		body.BillTo.PostalCode = a.PostalCode
		body.BillTo.Country = a.Country
	}

	req, err := newJSONRequest(http.MethodPost, p.url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", p.apiKey)

	var resp dmResponse
	if err := doJSON(ctx, p.client, p.Name(), req, &resp); err != nil {
		return nil, err
	}

	return p.interpret(resp)
}

func (p *DecisionManagerProvider) interpret(resp dmResponse) (*risk.ProviderResult, error) {
	var score int
	var factors []string
	raw := map[string]any{
		"requestId":  resp.RequestID,
		"decision":   resp.Decision,
		"reasonCode": resp.ReasonCode,
	}

	if resp.AFSReply != nil {
		if resp.AFSReply.AFSResult != "" {
			n, err := strconv.Atoi(resp.AFSReply.AFSResult)
			if err != nil {
				return nil, fmt.Errorf("%w: decision_manager afsResult %q", ErrBadResponse, resp.AFSReply.AFSResult)
			}
			score = n
		}
		factors = afsFactorDescriptions(resp.AFSReply.AFSFactorCode)
		raw["afsResult"] = resp.AFSReply.AFSResult
		raw["afsFactorCode"] = resp.AFSReply.AFSFactorCode
		raw["hostSeverity"] = resp.AFSReply.HostSeverity
	}

	// The verdict sets a floor under the AFS score.
	switch strings.ToUpper(resp.Decision) {
	case DecisionReject:
		score = max(score, 80)
		factors = append(factors, "Decision Manager rejected the order")
	case DecisionReview:
		score = max(score, 50)
		factors = append(factors, "Decision Manager flagged the order for review")
	case DecisionAccept:
	default:
		return nil, fmt.Errorf("%w: decision_manager decision %q", ErrBadResponse, resp.Decision)
	}

	score = risk.Clamp(score)
	return &risk.ProviderResult{
		Provider: p.Name(),
		Score:    score,
		Level:    providerLevel(score),
		Factors:  factors,
		Raw:      raw,
	}, nil
}

// afsFactorDescriptions expands "^"-separated factor codes. Unknown codes
// are kept verbatim.
func afsFactorDescriptions(codes string) []string {
	if codes == "" {
		return nil
	}
	var out []string
	for _, code := range strings.Split(codes, "^") {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if desc, ok := afsFactors[code]; ok {
			out = append(out, desc)
		} else {
			out = append(out, "AFS factor "+code)
		}
	}
	return out
}
