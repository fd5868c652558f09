package bin

import (
	"testing"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/risk"
	"github.com/stretchr/testify/assert"
)

func TestIndicators_CleanRecord(t *testing.T) {
	r := &Record{CountryCode: "US", Issuer: "JPMORGAN CHASE"}
	ind := Indicators(r)

	assert.Equal(t, 0, ind.Score)
	assert.Equal(t, risk.LevelLow, ind.Level)
	assert.Empty(t, ind.Factors)
}

func TestIndicators_HighRiskPrepaid(t *testing.T) {
	r := &Record{CountryCode: "NG", Prepaid: true, Issuer: "ACME"}
	ind := Indicators(r)

	assert.Equal(t, 50, ind.Score)
	assert.Equal(t, risk.LevelHigh, ind.Level)
	assert.Contains(t, ind.Factors, "Prepaid card")
}

func TestIndicators_UnknownCountryMissingIssuer(t *testing.T) {
	r := &Record{}
	ind := Indicators(r)

	assert.Equal(t, 40, ind.Score)
	assert.Equal(t, risk.LevelMedium, ind.Level)
	assert.Contains(t, ind.Factors, "Unknown issuing country")
	assert.Contains(t, ind.Factors, "Issuer unknown")
}

func TestIsHighRiskCountry(t *testing.T) {
	assert.True(t, IsHighRiskCountry("KP"))
	assert.False(t, IsHighRiskCountry("DE"))
}
