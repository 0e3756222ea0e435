package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/bar"
	"sentinel/internal/brief"
	"sentinel/internal/gateway"
	"sentinel/internal/llm"
	"sentinel/internal/logging"
	"sentinel/internal/quote"
	"sentinel/internal/rank"
	"sentinel/internal/scanner"
	"sentinel/internal/store"
	"sentinel/internal/tierpolicy"
)

var testJWTSecret = []byte("test-secret")

func signToken(t *testing.T, userID, tier, totpSecret string) string {
	t.Helper()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Tier:       tier,
		TOTPSecret: totpSecret,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(testJWTSecret)
	require.NoError(t, err)
	return tok
}

func newTestServer(t *testing.T) (*Server, *quote.FixtureSource, *store.Store) {
	return newTestServerWithOTP(t, nil)
}

func newTestServerWithOTP(t *testing.T, otp gateway.OTPVerifier) (*Server, *quote.FixtureSource, *store.Store) {
	t.Helper()
	fixture := quote.NewFixtureSource()
	logger := logging.NewConsole("httpapi_test")
	ranker := rank.NewRanker(llm.NewDeterministicClient(), logger)
	analyzer := scanner.NewAnalyzer(fixture, ranker, logger)
	sc := scanner.NewScanner(analyzer)
	briefGen := brief.NewGenerator(fixture, analyzer, logger)

	st, err := store.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	gw := gateway.New(st, tierpolicy.Default(), analyzer, sc, fixture, briefGen, otp, logger)

	accessLogger := logrus.New()
	accessLogger.SetOutput(bytes.NewBuffer(nil))

	return New(gw, st, logger, accessLogger, testJWTSecret), fixture, st
}

func seedSeries(t *testing.T, fixture *quote.FixtureSource, symbol string, period quote.Period) {
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

func doRequest(srv *Server, method, path, body, bearer string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	srv.Engine.ServeHTTP(rec, req)
	return rec
}

func TestExecuteWithoutTokenIsUnauthorized(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(srv, http.MethodPost, "/execute", `{"tool":"analyze_security"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExecuteWithValidTokenDispatches(t *testing.T) {
	srv, fixture, _ := newTestServer(t)
	seedSeries(t, fixture, "AAPL", quote.Period1mo)
	tok := signToken(t, "u1", string(tierpolicy.TierFree), "")

	body := `{"tool":"analyze_security","parameters":{"symbol":"AAPL"}}`
	rec := doRequest(srv, http.MethodPost, "/execute", body, tok)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp gateway.ExecuteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
}

func TestExecuteTierDeniedReturns403(t *testing.T) {
	srv, _, _ := newTestServer(t)
	tok := signToken(t, "u1", string(tierpolicy.TierFree), "")

	body := `{"tool":"scan_trades","parameters":{}}`
	rec := doRequest(srv, http.MethodPost, "/execute", body, tok)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExecuteMalformedTokenIsUnauthorized(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(srv, http.MethodPost, "/execute", `{"tool":"analyze_security"}`, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPresetsRequireProOrMaxTier(t *testing.T) {
	srv, _, _ := newTestServer(t)
	tok := signToken(t, "u1", string(tierpolicy.TierFree), "")

	rec := doRequest(srv, http.MethodGet, "/presets", "", tok)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPresetCRUDRoundTripForProTier(t *testing.T) {
	srv, _, _ := newTestServer(t)
	tok := signToken(t, "u1", string(tierpolicy.TierPro), "")

	createBody := `{"name":"Swing setup","tool":"scan_trades","params":{"min_score":70}}`
	rec := doRequest(srv, http.MethodPost, "/presets", createBody, tok)
	require.Equal(t, http.StatusOK, rec.Code)

	var created presetDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Swing setup", created.Name)

	rec = doRequest(srv, http.MethodGet, "/presets", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Presets []presetDTO `json:"presets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Presets, 1)

	rec = doRequest(srv, http.MethodDelete, "/presets/"+created.ID, "", tok)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeletePresetRequiresOTPForEnrolledMaxTier(t *testing.T) {
	srv, _, st := newTestServerWithOTP(t, gateway.NewTOTPVerifier())
	preset, err := st.CreatePreset("u1", "Needs OTP", "scan_trades", `{}`, false)
	require.NoError(t, err)

	tok := signToken(t, "u1", string(tierpolicy.TierMax), "JBSWY3DPEHPK3PXP")

	rec := doRequest(srv, http.MethodDelete, "/presets/"+preset.ID, "", tok)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLatestRunsIsPublic(t *testing.T) {
	srv, _, st := newTestServer(t)
	require.NoError(t, st.UpsertPublicLatestRun("analyze_security", "AAPL", `{"schema_version":1}`))

	rec := doRequest(srv, http.MethodGet, "/latest-runs", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs []latestRunEntry `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "AAPL", body.Runs[0].Symbol)
}
