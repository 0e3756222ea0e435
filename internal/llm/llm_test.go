package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"sentinel/internal/rank"
	"sentinel/internal/signal"
)

func TestDeterministicClientScoresMatchBaseline(t *testing.T) {
	client := NewDeterministicClient()
	signals := []signal.Signal{
		{Name: "a", Strength: signal.StrengthStrongBullish, Category: signal.CategoryMACross},
	}
	result, err := client.ScoreSignals(context.Background(), signals, rank.MarketContext{})
	require.NoError(t, err)
	require.Equal(t, 85, result.Scores["a"])
	require.Equal(t, rank.OutlookNeutral, result.Outlook)
}

func TestExtractJSONTrimsProse(t *testing.T) {
	raw := "here you go: {\"scores\":{\"a\":10}} thanks"
	require.Equal(t, `{"scores":{"a":10}}`, extractJSON(raw))
}

func TestNewOpenAIClientAppliesDefaults(t *testing.T) {
	c := NewOpenAIClient()
	require.Equal(t, ProviderOpenAI, c.Provider)
	require.Equal(t, DefaultOpenAIModel, c.Model)
	require.Equal(t, DefaultOpenAIBaseURL, c.BaseURL)
}

func TestNewOpenAIClientOverridesModel(t *testing.T) {
	c := NewOpenAIClient(WithModel("gpt-4o"))
	require.Equal(t, "gpt-4o", c.Model)
}
