package bin

import "github.com/1-ManArmy/onelast-ai-sub000/internal/domain/risk"

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Record is issuer metadata for a BIN prefix. Values are treated as
// immutable once resolved; caches hold serialized copies.
type Record struct {
	BIN            string         `json:"bin"`
	Brand          string         `json:"brand"`
	Type           string         `json:"type"`
	Issuer         string         `json:"issuer"`
	Country        string         `json:"country"`
	CountryCode    string         `json:"countryCode"`
	Currency       string         `json:"currency"`
	Prepaid        bool           `json:"prepaid"`
	Commercial     bool           `json:"commercial"`
	Confidence     Confidence     `json:"confidence"`
	Source         string         `json:"source"`
	RiskIndicators RiskIndicators `json:"riskIndicators"`
}

type RiskIndicators struct {
	Factors []string   `json:"factors"`
	Score   int        `json:"score"`
	Level   risk.Level `json:"level"`
}

// HighRiskCountries are ISO alpha-2 codes that attract extra scrutiny.
var HighRiskCountries = map[string]struct{}{
	"AF": {}, "BY": {}, "CU": {}, "IR": {}, "KP": {}, "LY": {},
	"MM": {}, "NG": {}, "RU": {}, "SD": {}, "SO": {}, "SY": {},
	"VE": {}, "YE": {}, "ZW": {},
}

func IsHighRiskCountry(code string) bool {
	_, ok := HighRiskCountries[code]
	return ok
}

// CountryUnknown reports whether the record carries no usable country.
func (r *Record) CountryUnknown() bool {
	return r.CountryCode == "" || r.CountryCode == "XX"
}

// Indicators computes the record's own risk indicators: unknown country +25,
// high-risk country +30, prepaid +20, commercial +10, missing issuer +15.
func Indicators(r *Record) RiskIndicators {
	var (
		score   int
		factors []string
	)

	if r.CountryUnknown() {
		score += 25
		factors = append(factors, "Unknown issuing country")
	} else if IsHighRiskCountry(r.CountryCode) {
		score += 30
		factors = append(factors, "High-risk issuing country: "+r.CountryCode)
	}
	if r.Prepaid {
		score += 20
		factors = append(factors, "Prepaid card")
	}
	if r.Commercial {
		score += 10
		factors = append(factors, "Commercial card")
	}
	if r.Issuer == "" {
		score += 15
		factors = append(factors, "Issuer unknown")
	}

	level := risk.LevelLow
	switch {
	case score >= 50:
		level = risk.LevelHigh
	case score >= 25:
		level = risk.LevelMedium
	}

	if factors == nil {
		factors = []string{}
	}

	return RiskIndicators{Factors: factors, Score: risk.Clamp(score), Level: level}
}
