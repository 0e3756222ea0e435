package quote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/valyala/fastjson"

	"sentinel/internal/bar"
)

const alpacaDataBaseURL = "https://data.alpaca.markets"

// globalAlpacaAPIKey/APISecret hold a process-wide credential override:
// SetAlpacaCredentials lets the process configure Alpaca once at startup,
// ahead of any environment variable.
var (
	globalAlpacaAPIKey    string
	globalAlpacaAPISecret string
)

// SetAlpacaCredentials sets process-wide Alpaca credentials, taking
// precedence over the environment variables AlpacaSource falls back to.
func SetAlpacaCredentials(apiKey, apiSecret string) {
	globalAlpacaAPIKey = apiKey
	globalAlpacaAPISecret = apiSecret
}

func resolveAlpacaCredentials() (string, string) {
	apiKey := globalAlpacaAPIKey
	apiSecret := globalAlpacaAPISecret
	if apiKey == "" {
		apiKey = os.Getenv("ALPACA_API_KEY")
	}
	if apiSecret == "" {
		apiSecret = os.Getenv("ALPACA_API_SECRET")
	}
	if apiKey == "" {
		apiKey = os.Getenv("APCA_API_KEY_ID")
	}
	if apiSecret == "" {
		apiSecret = os.Getenv("APCA_API_SECRET_KEY")
	}
	return apiKey, apiSecret
}

// AlpacaSource is the production QuoteSource adapter: an http.Client with
// Alpaca auth headers, decoding the bars array with fastjson instead of
// encoding/json to keep the hot per-bar path allocation-light.
type AlpacaSource struct {
	httpClient *http.Client
	apiKey     string
	apiSecret  string
}

// NewAlpacaSource builds an AlpacaSource, resolving credentials through
// the global-then-env fallback chain.
func NewAlpacaSource() *AlpacaSource {
	apiKey, apiSecret := resolveAlpacaCredentials()
	return &AlpacaSource{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		apiSecret:  apiSecret,
	}
}

func periodToAlpacaParams(p Period) (timeframe string, lookback time.Duration, limit int) {
	switch p {
	case Period15m:
		return "15Min", 3 * 24 * time.Hour, 300
	case Period1h:
		return "1Hour", 10 * 24 * time.Hour, 300
	case Period4h:
		return "4Hour", 40 * 24 * time.Hour, 300
	case Period1d:
		return "1Day", 90 * 24 * time.Hour, 200
	case Period5d:
		return "1Day", 10 * 24 * time.Hour, 10
	case Period1mo:
		return "1Day", 60 * 24 * time.Hour, 60
	case Period3mo:
		return "1Day", 120 * 24 * time.Hour, 120
	case Period6mo:
		return "1Day", 210 * 24 * time.Hour, 210
	case Period1y, PeriodYTD:
		return "1Day", 400 * 24 * time.Hour, 400
	case Period2y:
		return "1Day", 760 * 24 * time.Hour, 760
	case Period5y:
		return "1Week", 5 * 365 * 24 * time.Hour, 260
	case Period10y, PeriodMax:
		return "1Week", 10 * 365 * 24 * time.Hour, 520
	default:
		return "1Day", 90 * 24 * time.Hour, 200
	}
}

func (a *AlpacaSource) Fetch(ctx context.Context, symbol string, period Period) (bar.Series, error) {
	timeframe, lookback, limit := periodToAlpacaParams(period)
	start := time.Now().Add(-lookback)

	url := fmt.Sprintf("%s/v2/stocks/%s/bars?timeframe=%s&start=%s&limit=%d",
		alpacaDataBaseURL, symbol, timeframe, start.Format(time.RFC3339), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return bar.Series{}, fmt.Errorf("quote alpaca %s: build request: %w", symbol, err)
	}
	req.Header.Set("APCA-API-KEY-ID", a.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", a.apiSecret)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return bar.Series{}, fmt.Errorf("quote alpaca %s: request failed: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return bar.Series{}, fmt.Errorf("quote alpaca %s: read body: %w", symbol, err)
	}
	if resp.StatusCode != http.StatusOK {
		return bar.Series{}, fmt.Errorf("quote alpaca %s: status %d: %s", symbol, resp.StatusCode, string(body))
	}

	bars, err := parseAlpacaBars(body)
	if err != nil {
		return bar.Series{}, fmt.Errorf("quote alpaca %s: parse response: %w", symbol, err)
	}

	return bar.New(symbol, string(period), bars)
}

// parseAlpacaBars decodes the {"bars":[{"t":...,"o":...}]} payload with
// fastjson, avoiding a reflection-based unmarshal on the hot per-bar path.
func parseAlpacaBars(body []byte) ([]bar.Bar, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, err
	}
	barsArr := v.GetArray("bars")
	out := make([]bar.Bar, 0, len(barsArr))
	for _, bv := range barsArr {
		ts, err := time.Parse(time.RFC3339, string(bv.GetStringBytes("t")))
		if err != nil {
			continue
		}
		out = append(out, bar.Bar{
			Timestamp: ts,
			Open:      bv.GetFloat64("o"),
			High:      bv.GetFloat64("h"),
			Low:       bv.GetFloat64("l"),
			Close:     bv.GetFloat64("c"),
			Volume:    bv.GetFloat64("v"),
		})
	}
	return out, nil
}

// FetchChain is not backed by a real vendor integration in this engine;
// the options domain is served through fixture data in tests and should
// be backed by a dedicated options-chain vendor in production. Returning
// an empty chain here would silently look successful, so this explicitly
// signals the gap.
func (a *AlpacaSource) FetchChain(ctx context.Context, symbol string, expiration string) (OptionChain, error) {
	return OptionChain{}, fmt.Errorf("quote alpaca %s: option chain vendor not configured", symbol)
}
