// Package metrics defines the service's Prometheus collectors and the
// standalone server that exposes them for scraping. Every metric name is
// prefixed with the "jobfilter" namespace.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jobfilter"

var (
	latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	oracleBuckets  = prometheus.ExponentialBuckets(0.0001, 4, 9)
	resultBuckets  = []float64{0, 1, 5, 10, 25, 50, 100, 200}
)

type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec   // method, path, status
	HTTPRequestDuration  *prometheus.HistogramVec // method, path
	HTTPRequestsInFlight prometheus.Gauge

	FilterQueriesTotal *prometheus.CounterVec // result_type: ok, zero_result, overflow, error
	FilterLatency      prometheus.Histogram
	FilterResultsCount prometheus.Histogram
	FilterCacheTotal   *prometheus.CounterVec // result: hit, miss
	JobOutcomesTotal   *prometheus.CounterVec // outcome: kept, rejected, failed

	OracleCallsTotal    *prometheus.CounterVec // status: ok, error
	OracleLatency       prometheus.Histogram
	CircuitBreakerState *prometheus.GaugeVec // name; value is resilience.State

	IndexesProvisioned prometheus.Counter
	CatalogJobs        prometheus.Gauge
}

// New registers the collectors with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors with reg. It panics if they are
// already registered there.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request latency.", Buckets: latencyBuckets,
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_in_flight",
			Help: "HTTP requests being served.",
		}),

		FilterQueriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "filter_queries_total",
			Help: "Filter queries by outcome.",
		}, []string{"result_type"}),
		FilterLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "filter_latency_seconds",
			Help: "Time to assemble a filter result.", Buckets: latencyBuckets,
		}),
		FilterResultsCount: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "filter_results_count",
			Help: "Jobs returned per filter query.", Buckets: resultBuckets,
		}),
		FilterCacheTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "filter_cache_requests_total",
			Help: "Result cache lookups by result.",
		}, []string{"result"}),
		JobOutcomesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "filter_job_outcomes_total",
			Help: "Per-job rule evaluation outcomes.",
		}, []string{"outcome"}),

		OracleCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "oracle", Name: "calls_total",
			Help: "Membership store round trips by status.",
		}, []string{"status"}),
		OracleLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "oracle", Name: "latency_seconds",
			Help: "Membership store round-trip latency.", Buckets: oracleBuckets,
		}),
		CircuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "circuit_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"name"}),

		IndexesProvisioned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "indexes_provisioned_total",
			Help: "Membership indexes built at startup.",
		}),
		CatalogJobs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "catalog_jobs",
			Help: "Jobs in the loaded catalog.",
		}),
	}
}
