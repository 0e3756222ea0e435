package tierpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/apperr"
	"sentinel/internal/spread"
)

func TestDefaultFreeTierIsCuratedSubset(t *testing.T) {
	m := Default()
	_, err := m.Authorize(TierFree, ToolAnalyzeSecurity)
	require.NoError(t, err)

	_, err = m.Authorize(TierFree, ToolScanTrades)
	assert.ErrorIs(t, err, apperr.ErrTierDenied)
}

func TestDefaultMaxTierIsUnlimitedAndAllSpreads(t *testing.T) {
	m := Default()
	rule, err := m.Authorize(TierMax, ToolOptionsRiskAnalysis)
	require.NoError(t, err)
	assert.Equal(t, Unlimited, rule.MonthlyQuota)
	assert.NoError(t, rule.AuthorizeSpread(spread.TypeIronCondor))
}

func TestProTierExcludesWingSpreads(t *testing.T) {
	m := Default()
	rule, err := m.Authorize(TierPro, ToolOptionsRiskAnalysis)
	require.NoError(t, err)
	assert.NoError(t, rule.AuthorizeSpread(spread.TypeCallCredit))
	assert.ErrorIs(t, rule.AuthorizeSpread(spread.TypeIronCondor), apperr.ErrTierDenied)
}

func TestParseTierRejectsUnknown(t *testing.T) {
	_, err := ParseTier("enterprise")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
