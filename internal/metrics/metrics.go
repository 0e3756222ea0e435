// Package metrics exposes the engine's prometheus collectors on a custom
// registry: promauto.With (never the global DefaultRegisterer) plus
// label vectors keyed by the dimensions callers actually need to slice
// by.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for the engine, so
// /metrics wires a single handler against a known collector set.
var Registry = prometheus.NewRegistry()

var (
	// RunDuration tracks ExecutionGateway dispatch latency per tool and
	// terminal status.
	RunDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sentinel",
			Subsystem: "gateway",
			Name:      "run_duration_seconds",
			Help:      "ExecutionGateway dispatch duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"tool", "status"},
	)

	// RunsTotal counts every dispatch by tool and terminal status.
	RunsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "gateway",
			Name:      "runs_total",
			Help:      "Total number of /execute dispatches",
		},
		[]string{"tool", "status"},
	)

	// QuotaRejectionsTotal counts 429 QuotaExceeded responses per tool and tier.
	QuotaRejectionsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "gateway",
			Name:      "quota_rejections_total",
			Help:      "Total number of requests rejected with QuotaExceeded",
		},
		[]string{"tool", "tier"},
	)

	// TierDenialsTotal counts 403 TierDenied responses per tool and tier.
	TierDenialsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "gateway",
			Name:      "tier_denials_total",
			Help:      "Total number of requests rejected with TierDenied",
		},
		[]string{"tool", "tier"},
	)

	// QuoteCacheHitsTotal and QuoteCacheMissesTotal back the quote-cache
	// hit-rate metric operators watch to judge cache effectiveness.
	QuoteCacheHitsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "quote",
			Name:      "cache_hits_total",
			Help:      "Total number of QuoteSource cache hits",
		},
		[]string{"period"},
	)
	QuoteCacheMissesTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "quote",
			Name:      "cache_misses_total",
			Help:      "Total number of QuoteSource cache misses",
		},
		[]string{"period"},
	)

	// ScannerInFlight tracks the number of per-symbol pipelines currently
	// holding a fan-out semaphore slot, bounded by scanner.MaxConcurrency.
	ScannerInFlight = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sentinel",
			Subsystem: "scanner",
			Name:      "in_flight_pipelines",
			Help:      "Number of per-symbol pipelines currently running in a fan-out",
		},
	)

	// LLMCallDuration and LLMErrorsTotal track the optional LLM
	// re-ranking overlay's latency and failure rate per provider.
	LLMCallDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sentinel",
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "LLM scoring call duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 20, 30},
		},
		[]string{"provider"},
	)
	LLMErrorsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "llm",
			Name:      "errors_total",
			Help:      "Total number of LLM scoring failures that fell back to the deterministic baseline",
		},
		[]string{"provider"},
	)
)

// RecordRun observes one completed dispatch's duration and increments its
// counter, scoped by tool and terminal status.
func RecordRun(tool, status string, durationSeconds float64) {
	RunDuration.WithLabelValues(tool, status).Observe(durationSeconds)
	RunsTotal.WithLabelValues(tool, status).Inc()
}

// RecordQuotaRejection increments the quota-rejection counter for tool/tier.
func RecordQuotaRejection(tool, tier string) {
	QuotaRejectionsTotal.WithLabelValues(tool, tier).Inc()
}

// RecordTierDenial increments the tier-denial counter for tool/tier.
func RecordTierDenial(tool, tier string) {
	TierDenialsTotal.WithLabelValues(tool, tier).Inc()
}

// RecordQuoteCacheResult increments the hit or miss counter for period.
func RecordQuoteCacheResult(period string, hit bool) {
	if hit {
		QuoteCacheHitsTotal.WithLabelValues(period).Inc()
		return
	}
	QuoteCacheMissesTotal.WithLabelValues(period).Inc()
}

// RecordLLMCall observes an LLM scoring call's duration and, on failure,
// increments the error counter.
func RecordLLMCall(provider string, durationSeconds float64, failed bool) {
	LLMCallDuration.WithLabelValues(provider).Observe(durationSeconds)
	if failed {
		LLMErrorsTotal.WithLabelValues(provider).Inc()
	}
}

// Init registers the standard go/process collectors alongside the
// engine-specific ones.
func Init() {
	Registry.MustRegister(prometheus.NewGoCollector())
	Registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
}
