package service

import (
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/bin"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/card"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/risk"
)

// RiskScorer folds structural checks, BIN metadata and fraud signals into
// one deterministic assessment.
type RiskScorer interface {
	// Score treats a nil binRecord with nil binErr, or a nil fraud
	// assessment, as a step that was not run.
	Score(checks card.Checks, binRecord *bin.Record, binErr error, fraud *risk.FraudAssessment) *risk.Assessment
}

type riskScorer struct {
	weights risk.Weights
}

func NewRiskScorer(weights risk.Weights) RiskScorer {
	return &riskScorer{weights: weights}
}

// scoreSheet accumulates points and factors.
type scoreSheet struct {
	points  int
	factors []string
}

func (s *scoreSheet) add(points int, factor string) {
	s.points += points
	s.factors = append(s.factors, factor)
}

func (r *riskScorer) Score(checks card.Checks, binRecord *bin.Record, binErr error, fraud *risk.FraudAssessment) *risk.Assessment {
	w := r.weights
	var sheet scoreSheet

	if !checks.Format.Valid {
		sheet.add(w.Format, "Invalid card number format")
	}
	if !checks.Luhn.Valid {
		sheet.add(w.Luhn, "Card number failed checksum")
	}
	if !checks.Expiry.Valid {
		sheet.add(w.Expiry, checks.Expiry.Message)
	}
	if !checks.CVV.Valid {
		sheet.add(w.CVV, checks.CVV.Message)
	}
	if !checks.Amount.Valid {
		sheet.add(w.Amount, checks.Amount.Message)
	}
	if !checks.BillingAddress.Valid && !checks.BillingAddress.Skipped {
		sheet.add(w.BillingAddress, checks.BillingAddress.Message)
	}
	if !checks.HolderName.Valid {
		sheet.add(w.MinorFactor, checks.HolderName.Message)
	}

	highRiskCountry := false
	switch {
	case binErr != nil:
		sheet.add(w.MinorFactor, "BIN lookup unavailable")
	case binRecord != nil:
		if binRecord.Prepaid {
			sheet.add(w.Prepaid, "Prepaid card")
		}
		if binRecord.CountryUnknown() {
			sheet.add(w.BinCountry, "Unknown issuing country")
		} else if bin.IsHighRiskCountry(binRecord.CountryCode) {
			highRiskCountry = true
			sheet.add(w.BinCountry, "High-risk issuing country: "+binRecord.CountryCode)
		}
		if binRecord.Commercial {
			sheet.add(w.MinorFactor, "Commercial card")
		}
		if binRecord.Issuer == "" {
			sheet.add(w.MinorFactor, "Issuer unknown")
		}
	}

	var providers []risk.ProviderResult
	if fraud != nil {
		providers = fraud.Providers
		switch fraud.Level {
		case risk.LevelHigh:
			sheet.add(w.FraudHigh, "High fraud risk from providers")
		case risk.LevelMedium:
			sheet.add(w.FraudMedium, "Elevated fraud risk from providers")
		case risk.LevelUnknown:
			sheet.add(w.MinorFactor, "Fraud screening unavailable")
		}
		if fraud.Available() {
			seen := make(map[string]struct{}, len(sheet.factors))
			for _, f := range sheet.factors {
				seen[f] = struct{}{}
			}
			for _, f := range fraud.Factors {
				if _, dup := seen[f]; dup {
					continue
				}
				seen[f] = struct{}{}
				sheet.add(w.MinorFactor, f)
			}
		}
	}

	score := risk.Clamp(sheet.points)
	level := risk.LevelForScore(score)

	return &risk.Assessment{
		Score:           score,
		Level:           level,
		Factors:         risk.Dedup(sheet.factors),
		Providers:       providers,
		Recommendations: recommendations(checks, binRecord, highRiskCountry, fraud, level),
	}
}

// recommendations are emitted in fixed priority order.
func recommendations(checks card.Checks, binRecord *bin.Record, highRiskCountry bool, fraud *risk.FraudAssessment, level risk.Level) []risk.Recommendation {
	var recs []risk.Recommendation
	add := func(t risk.RecommendationType, p risk.Priority, msg string) {
		recs = append(recs, risk.Recommendation{Type: t, Priority: p, Message: msg})
	}

	if !checks.Format.Valid || !checks.Luhn.Valid {
		add(risk.RecommendReject, risk.PriorityHigh, "Card number is invalid")
	}
	if !checks.Expiry.Valid {
		add(risk.RecommendReject, risk.PriorityHigh, "Card is expired or expiry date is invalid")
	}
	if !checks.Amount.Valid {
		add(risk.RecommendReject, risk.PriorityHigh, "Amount or currency is invalid")
	}

	if fraud != nil {
		switch fraud.Level {
		case risk.LevelHigh:
			add(risk.RecommendManualReview, risk.PriorityHigh, "Fraud providers report high risk")
		case risk.LevelUnknown:
			add(risk.RecommendManualReview, risk.PriorityMedium, "Fraud screening unavailable, review manually")
		}
	}

	if !checks.CVV.Valid {
		add(risk.RecommendAdditionalVerification, risk.PriorityMedium, "Verify the card security code")
	}
	if highRiskCountry {
		add(risk.RecommendAdditionalVerification, risk.PriorityMedium, "Card issued in a high-risk country, verify cardholder identity")
	}
	if binRecord != nil && binRecord.Prepaid {
		add(risk.RecommendPolicyCheck, risk.PriorityMedium, "Prepaid card, check merchant policy")
	}
	if !checks.HolderName.Valid {
		add(risk.RecommendAdditionalVerification, risk.PriorityLow, "Confirm the cardholder name")
	}

	switch level {
	case risk.LevelHigh:
		if !hasType(recs, risk.RecommendReject) {
			add(risk.RecommendReject, risk.PriorityHigh, "Overall risk is high")
		}
	case risk.LevelMedium:
		if !hasType(recs, risk.RecommendAdditionalVerification) {
			add(risk.RecommendAdditionalVerification, risk.PriorityMedium, "Overall risk is elevated, request additional verification")
		}
	}

	if approvable(recs, level) {
		add(risk.RecommendApprove, risk.PriorityLow, "No significant risk detected")
	}
	return recs
}

// approvable holds for a low overall level when every recommendation so far
// is a low-priority verification hint.
func approvable(recs []risk.Recommendation, level risk.Level) bool {
	if level != risk.LevelVeryLow && level != risk.LevelLow {
		return false
	}
	for _, r := range recs {
		if r.Type == risk.RecommendReject || r.Type == risk.RecommendManualReview || r.Priority != risk.PriorityLow {
			return false
		}
	}
	return true
}

func hasType(recs []risk.Recommendation, t risk.RecommendationType) bool {
	for _, r := range recs {
		if r.Type == t {
			return true
		}
	}
	return false
}

// Approved is the success rule: every structural check that can invalidate
// a payment passed and the composite level is not HIGH.
func Approved(checks card.Checks, a *risk.Assessment) bool {
	return checks.StructurallyValid() && a.Level != risk.LevelHigh
}
