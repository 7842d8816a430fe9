// Package metrics exposes engine counters for Prometheus scraping. Collectors
// register on the default registry; the web server serves them at /metrics.
// The package depends on nothing else in the repo so any layer can record.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rlm_queries_total",
		Help: "Queries answered, including forced iteration-limit answers.",
	})

	QueryIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rlm_query_iterations",
		Help:    "Root-model iterations per query.",
		Buckets: prometheus.LinearBuckets(1, 2, 12),
	})

	SubCallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rlm_sub_calls_total",
		Help: "Sub-model calls issued by sandboxed code.",
	})

	TokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rlm_tokens_total",
		Help: "Tokens consumed, by model tier and direction.",
	}, []string{"tier", "direction"})

	SandboxExecutionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rlm_sandbox_executions_total",
		Help: "Sandbox worker processes launched.",
	})

	SandboxTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rlm_sandbox_timeouts_total",
		Help: "Sandbox executions killed at the wall-clock timeout.",
	})

	RetryAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rlm_retry_attempts_total",
		Help: "Model call retries after transient or rate-limit failures.",
	})
)

// RecordQuery folds one finished query into the counters. Iterations of 0
// means the caller did not keep a trajectory and skips the histogram.
func RecordQuery(iterations, subCalls, rootIn, rootOut, subIn, subOut int) {
	QueriesTotal.Inc()
	SubCallsTotal.Add(float64(subCalls))
	if iterations > 0 {
		QueryIterations.Observe(float64(iterations))
	}
	TokensTotal.WithLabelValues("root", "input").Add(float64(rootIn))
	TokensTotal.WithLabelValues("root", "output").Add(float64(rootOut))
	TokensTotal.WithLabelValues("sub", "input").Add(float64(subIn))
	TokensTotal.WithLabelValues("sub", "output").Add(float64(subOut))
}
