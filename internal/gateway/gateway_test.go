package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/bar"
	"sentinel/internal/brief"
	"sentinel/internal/llm"
	"sentinel/internal/logging"
	"sentinel/internal/quote"
	"sentinel/internal/rank"
	"sentinel/internal/scanner"
	"sentinel/internal/store"
	"sentinel/internal/tierpolicy"
)

// seedDailySeries populates a fixture with enough bars for the indicator
// engine's longest lookback, mirroring scanner_test.go's fixture idiom.
func seedDailySeries(t *testing.T, fixture *quote.FixtureSource, symbol string, period quote.Period) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]bar.Bar, 0, 260)
	price := 100.0
	for i := 0; i < 260; i++ {
		price += 0.25
		bars = append(bars, bar.Bar{
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
			Open:      price, High: price + 1, Low: price - 1, Close: price, Volume: 1_500_000,
		})
	}
	s, err := bar.New(symbol, string(period), bars)
	require.NoError(t, err)
	fixture.Seed(symbol, period, s)
}

func newTestGateway(t *testing.T) (*Gateway, *quote.FixtureSource, *store.Store) {
	t.Helper()
	fixture := quote.NewFixtureSource()
	logger := logging.NewConsole("gateway_test")
	ranker := rank.NewRanker(llm.NewDeterministicClient(), logger)
	analyzer := scanner.NewAnalyzer(fixture, ranker, logger)
	sc := scanner.NewScanner(analyzer)
	briefGen := brief.NewGenerator(fixture, analyzer, logger)

	st, err := store.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	gw := New(st, tierpolicy.Default(), analyzer, sc, fixture, briefGen, nil, logger)
	return gw, fixture, st
}

func TestExecuteUnknownToolIsValidationError(t *testing.T) {
	gw, _, _ := newTestGateway(t)
	_, err := gw.Execute(context.Background(), Identity{UserID: "u1", Tier: tierpolicy.TierFree}, tierpolicy.Tool("not_a_tool"), nil)
	assert.Error(t, err)
}

func TestExecuteFreeTierDeniedToolReturnsTierError(t *testing.T) {
	gw, _, _ := newTestGateway(t)
	_, err := gw.Execute(context.Background(), Identity{UserID: "u1", Tier: tierpolicy.TierFree}, tierpolicy.ToolScanTrades, []byte(`{}`))
	assert.Error(t, err)
}

func TestExecuteAnalyzeSecuritySucceedsAndPersistsRun(t *testing.T) {
	gw, fixture, st := newTestGateway(t)
	seedDailySeries(t, fixture, "AAPL", defaultPeriod)

	resp, err := gw.Execute(context.Background(), Identity{UserID: "u1", Tier: tierpolicy.TierFree}, tierpolicy.ToolAnalyzeSecurity, []byte(`{"symbol":"AAPL"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, 1, resp.Usage.Count)
	assert.Contains(t, string(resp.Result), `"schema_version":1`)

	run, err := st.GetRun(resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.RunSuccess, run.Status)
}

func TestExecuteIncrementsQuotaOnlyOnSuccess(t *testing.T) {
	gw, fixture, _ := newTestGateway(t)
	seedDailySeries(t, fixture, "AAPL", defaultPeriod)
	ident := Identity{UserID: "u1", Tier: tierpolicy.TierFree}

	// a missing symbol fails the handler's validation, so the run ends in
	// error and the counter must not move.
	_, err := gw.Execute(context.Background(), ident, tierpolicy.ToolAnalyzeSecurity, []byte(`{}`))
	assert.Error(t, err)

	resp, err := gw.Execute(context.Background(), ident, tierpolicy.ToolAnalyzeSecurity, []byte(`{"symbol":"AAPL"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Usage.Count, "only the successful call should have incremented the counter")
}

func TestExecuteQuotaExceededRejectsWithoutDispatch(t *testing.T) {
	gw, fixture, _ := newTestGateway(t)
	seedDailySeries(t, fixture, "AAPL", defaultPeriod)
	ident := Identity{UserID: "u1", Tier: tierpolicy.TierFree}

	rule, err := gw.Tiers.Authorize(tierpolicy.TierFree, tierpolicy.ToolAnalyzeSecurity)
	require.NoError(t, err)
	require.NotEqual(t, tierpolicy.Unlimited, rule.MonthlyQuota, "test assumes free tier has a finite quota")

	for i := 0; i < rule.MonthlyQuota; i++ {
		_, err := gw.Execute(context.Background(), ident, tierpolicy.ToolAnalyzeSecurity, []byte(`{"symbol":"AAPL"}`))
		require.NoError(t, err)
	}

	_, err = gw.Execute(context.Background(), ident, tierpolicy.ToolAnalyzeSecurity, []byte(`{"symbol":"AAPL"}`))
	assert.Error(t, err)
}

func TestExecuteFreeTierShapesResultSignalCap(t *testing.T) {
	gw, fixture, _ := newTestGateway(t)
	seedDailySeries(t, fixture, "AAPL", defaultPeriod)

	resp, err := gw.Execute(context.Background(), Identity{UserID: "u1", Tier: tierpolicy.TierFree}, tierpolicy.ToolAnalyzeSecurity, []byte(`{"symbol":"AAPL"}`))
	require.NoError(t, err)

	var envelope struct {
		Data AnalyzeSecurityResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &envelope))
	assert.LessOrEqual(t, len(envelope.Data.Signals), 3)
}

func TestExecuteDataFetchErrorDoesNotPersistPublicCache(t *testing.T) {
	gw, _, st := newTestGateway(t)
	_, err := gw.Execute(context.Background(), Identity{UserID: "u1", Tier: tierpolicy.TierPro}, tierpolicy.ToolAnalyzeSecurity, []byte(`{"symbol":"NOPE"}`))
	assert.Error(t, err)

	_, getErr := st.GetPublicLatestRun(string(tierpolicy.ToolAnalyzeSecurity), "NOPE")
	assert.Error(t, getErr, "a failed run must never seed the public landing cache")
}
