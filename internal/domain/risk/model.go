package risk

import "time"

type Level string

const (
	LevelVeryLow Level = "VERY_LOW"
	LevelLow     Level = "LOW"
	LevelMedium  Level = "MEDIUM"
	LevelHigh    Level = "HIGH"
	LevelUnknown Level = "UNKNOWN"
)

type RecommendationType string

const (
	RecommendReject                 RecommendationType = "REJECT"
	RecommendManualReview           RecommendationType = "MANUAL_REVIEW"
	RecommendAdditionalVerification RecommendationType = "ADDITIONAL_VERIFICATION"
	RecommendApprove                RecommendationType = "APPROVE"
	RecommendPolicyCheck            RecommendationType = "POLICY_CHECK"
)

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

type Recommendation struct {
	Type     RecommendationType `json:"type"`
	Priority Priority           `json:"priority"`
	Message  string             `json:"message"`
}

// ProviderResult is one fraud provider's normalized opinion.
type ProviderResult struct {
	Provider  string         `json:"provider"`
	Score     int            `json:"score"`
	Level     Level          `json:"level"`
	Factors   []string       `json:"factors"`
	Raw       map[string]any `json:"raw,omitempty"`
	LatencyMs int64          `json:"latencyMs"`
}

// FraudAssessment is the folded output of every provider that answered.
type FraudAssessment struct {
	Score              int              `json:"score"`
	Level              Level            `json:"level"`
	Factors            []string         `json:"factors"`
	Providers          []ProviderResult `json:"providers"`
	ProvidersQueried   int              `json:"providersQueried"`
	ProvidersResponded int              `json:"providersResponded"`
	ProvidersFailed    []string         `json:"providersFailed,omitempty"`
	Summary            string           `json:"summary"`
	Recommendations    []Recommendation `json:"recommendations"`
	AssessedAt         time.Time        `json:"assessedAt"`
}

// Available reports whether at least one provider answered.
func (f *FraudAssessment) Available() bool {
	return f != nil && f.Level != LevelUnknown
}

// Assessment is the composite decision over structural checks,
// BIN metadata and fraud signals.
type Assessment struct {
	Score           int              `json:"score"`
	Level           Level            `json:"level"`
	Factors         []string         `json:"factors"`
	Providers       []ProviderResult `json:"providers,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Weights are the additive points applied by the scoring engine.
type Weights struct {
	Format         int `mapstructure:"format" json:"format"`
	Luhn           int `mapstructure:"luhn" json:"luhn"`
	Expiry         int `mapstructure:"expiry" json:"expiry"`
	CVV            int `mapstructure:"cvv" json:"cvv"`
	Amount         int `mapstructure:"amount" json:"amount"`
	BillingAddress int `mapstructure:"billing_address" json:"billingAddress"`
	FraudHigh      int `mapstructure:"fraud_high" json:"fraudHigh"`
	FraudMedium    int `mapstructure:"fraud_medium" json:"fraudMedium"`
	Prepaid        int `mapstructure:"prepaid" json:"prepaid"`
	BinCountry     int `mapstructure:"bin_country" json:"binCountry"`
	MinorFactor    int `mapstructure:"minor_factor" json:"minorFactor"`
}

func DefaultWeights() Weights {
	return Weights{
		Format:         50,
		Luhn:           40,
		Expiry:         30,
		CVV:            20,
		Amount:         15,
		BillingAddress: 10,
		FraudHigh:      60,
		FraudMedium:    30,
		Prepaid:        15,
		BinCountry:     20,
		MinorFactor:    5,
	}
}

// LevelForScore buckets a composite score: 70 HIGH, 40 MEDIUM, 20 LOW.
func LevelForScore(score int) Level {
	switch {
	case score >= 70:
		return LevelHigh
	case score >= 40:
		return LevelMedium
	case score >= 20:
		return LevelLow
	default:
		return LevelVeryLow
	}
}

// FraudLevelForScore buckets an aggregated provider score: 75 HIGH, 50 MEDIUM, 25 LOW.
func FraudLevelForScore(score int) Level {
	switch {
	case score >= 75:
		return LevelHigh
	case score >= 50:
		return LevelMedium
	case score >= 25:
		return LevelLow
	default:
		return LevelVeryLow
	}
}

// Rank orders levels for comparisons; UNKNOWN ranks below VERY_LOW.
func Rank(l Level) int {
	switch l {
	case LevelHigh:
		return 4
	case LevelMedium:
		return 3
	case LevelLow:
		return 2
	case LevelVeryLow:
		return 1
	default:
		return 0
	}
}

func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Dedup returns factors in first-seen order without repeats.
func Dedup(factors []string) []string {
	seen := make(map[string]struct{}, len(factors))
	out := make([]string, 0, len(factors))
	for _, f := range factors {
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
