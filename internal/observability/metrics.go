package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_http_requests_total",
			Help: "HTTP requests by route pattern and status.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studio_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)
	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "studio_http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		},
	)

	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_questions_total",
			Help: "Total number of questions by pipeline outcome.",
		},
		[]string{"outcome"},
	)
	generationLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "studio_generation_latency_seconds",
			Help:    "Latency of calls to the text-generation service.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
	)
	statementDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "studio_statement_duration_seconds",
			Help:    "Execution time of generated statements against the data source.",
			Buckets: prometheus.DefBuckets,
		},
	)
	resultRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "studio_result_rows",
			Help:    "Rows returned per executed statement.",
			Buckets: []float64{0, 1, 10, 100, 1000, 10000, 100000},
		},
	)
	translationCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_translation_cache_total",
			Help: "Translation cache lookups by result.",
		},
		[]string{"result"},
	)
	generationTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_generation_tokens_total",
			Help: "Tokens reported by the text-generation service.",
		},
		[]string{"kind"},
	)
	authFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studio_auth_failures_total",
			Help: "Rejected API requests by reason.",
		},
		[]string{"reason"},
	)
	sessionsOpenedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "studio_sessions_opened_total",
			Help: "Total number of data source sessions opened.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		httpInFlight,
		questionsTotal,
		generationLatencySeconds,
		statementDurationSeconds,
		resultRows,
		translationCacheTotal,
		generationTokensTotal,
		authFailuresTotal,
		sessionsOpenedTotal,
	)
}

// ObserveQuestion records the final outcome of one question ("ok",
// "data_source_error", "generation_error", "generation_timeout",
// "execution_error", "rejected").
func ObserveQuestion(outcome string) {
	questionsTotal.WithLabelValues(outcome).Inc()
}

func ObserveGeneration(elapsed time.Duration) {
	generationLatencySeconds.Observe(elapsed.Seconds())
}

func ObserveGenerationTokens(prompt, completion int) {
	if prompt > 0 {
		generationTokensTotal.WithLabelValues("prompt").Add(float64(prompt))
	}
	if completion > 0 {
		generationTokensTotal.WithLabelValues("completion").Add(float64(completion))
	}
}

func ObserveStatement(elapsed time.Duration, rows int) {
	statementDurationSeconds.Observe(elapsed.Seconds())
	if rows < 0 {
		rows = 0
	}
	resultRows.Observe(float64(rows))
}

func ObserveTranslationCache(hit bool) {
	if hit {
		translationCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	translationCacheTotal.WithLabelValues("miss").Inc()
}

func ObserveAuthFailure(reason string) {
	authFailuresTotal.WithLabelValues(reason).Inc()
}

func IncrementSessionsOpened() {
	sessionsOpenedTotal.Inc()
}
