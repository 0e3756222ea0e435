// Command sentinel is the engine's process entrypoint: it wires the
// analytical pipeline, the sqlite-backed store, the tier policy, and the
// gin HTTP surface together, then serves the external API until an
// interrupt arrives.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"sentinel/internal/brief"
	"sentinel/internal/gateway"
	"sentinel/internal/httpapi"
	"sentinel/internal/llm"
	"sentinel/internal/logging"
	"sentinel/internal/metrics"
	"sentinel/internal/quote"
	"sentinel/internal/rank"
	"sentinel/internal/scanner"
	"sentinel/internal/store"
	"sentinel/internal/tierpolicy"
)

// janitorInterval is how often the orphan-run sweep runs; maxRunAge
// bounds how long a `running` row may sit before it's considered
// orphaned (abandoned by a crashed process).
const (
	janitorInterval = 2 * time.Minute
	maxRunAge       = 5 * time.Minute
)

func main() {
	_ = godotenv.Load()

	logger := logging.NewConsole("sentinel")
	metrics.Init()

	st, err := store.Open(getenv("DATABASE_URL", "sentinel.db"))
	if err != nil {
		logger.Err(err, "failed to open store")
		os.Exit(1)
	}
	defer st.Close()

	tiers := loadTierMatrix(logger)

	source := buildQuoteSource(logger)
	ranker := rank.NewRanker(buildLLMScorer(logger), logger)
	analyzer := scanner.NewAnalyzer(source, ranker, logger)
	sc := scanner.NewScanner(analyzer)
	briefGen := brief.NewGenerator(source, analyzer, logger)

	var otp gateway.OTPVerifier
	if getenv("ENABLE_TOTP", "true") == "true" {
		otp = gateway.NewTOTPVerifier()
	}

	gw := gateway.New(st, tiers, analyzer, sc, source, briefGen, otp, logger)

	accessLogger := logrus.New()
	accessLogger.SetFormatter(&logrus.JSONFormatter{})

	jwtSecret := []byte(getenv("JWT_SECRET", "dev-secret-change-me"))
	srv := httpapi.New(gw, st, logger, accessLogger, jwtSecret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runJanitor(ctx, st, logger)

	addr := ":" + getenv("PORT", "8080")
	httpServer := &http.Server{Addr: addr, Handler: srv.Engine}

	go func() {
		logger.Infof("sentinel listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Err(err, "http server exited")
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Err(err, "graceful shutdown failed")
	}
}

// loadTierMatrix loads an optional tier-matrix override file:
// TIER_MATRIX_PATH replaces the built-in matrix wholesale when set.
func loadTierMatrix(logger logging.Logger) tierpolicy.Matrix {
	path := os.Getenv("TIER_MATRIX_PATH")
	if path == "" {
		return tierpolicy.Default()
	}
	m, err := tierpolicy.LoadOverride(path)
	if err != nil {
		logger.Err(err, "failed to load tier matrix override, falling back to default")
		return tierpolicy.Default()
	}
	return m
}

// buildQuoteSource assembles the QuoteSource decorator chain: retry
// wraps the vendor adapter, caching wraps retry. QUOTE_PROVIDER_FIXTURE
// opts into the deterministic fixture source for local
// development/testing without live credentials.
func buildQuoteSource(logger logging.Logger) quote.Source {
	var inner quote.Source
	if getenv("QUOTE_PROVIDER_FIXTURE", "false") == "true" {
		inner = quote.NewFixtureSource()
	} else {
		if key := os.Getenv("QUOTE_PROVIDER_API_KEY"); key != "" {
			quote.SetAlpacaCredentials(key, os.Getenv("QUOTE_PROVIDER_API_SECRET"))
		}
		inner = quote.NewAlpacaSource()
	}
	retrying := quote.NewRetryingSource(inner, logger)
	return quote.NewCachingSource(retrying)
}

// buildLLMScorer wires an LLMScorer only when LLM_API_KEY is configured;
// otherwise AI requests silently fall back to the deterministic scorer,
// keeping LLM scoring a pure, optional overlay on top of it.
func buildLLMScorer(logger logging.Logger) rank.LLMScorer {
	key := os.Getenv("LLM_API_KEY")
	if key == "" {
		return nil
	}
	client := llm.NewOpenAIClient(
		llm.WithAPIKey(key),
		llm.WithProvider(getenv("LLM_PROVIDER", "openai")),
		llm.WithModel(getenv("LLM_MODEL", "gpt-4o-mini")),
		llm.WithLogger(logger),
	)
	return llm.NewChatScorer(client.Client)
}

// runJanitor schedules the orphan-run sweep on a ticker. SweepOrphans
// itself is a plain scheduled call, not a goroutine loop, so the
// entrypoint owns its cadence and lifecycle.
func runJanitor(ctx context.Context, st *store.Store, logger logging.Logger) {
	ticker := time.NewTicker(janitorInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := st.SweepOrphans(maxRunAge)
				if err != nil {
					logger.Err(err, "janitor sweep failed")
					continue
				}
				if n > 0 {
					logger.Infof("janitor swept %d orphaned runs", n)
				}
			}
		}
	}()
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
