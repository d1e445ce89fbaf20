package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nexa",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nexa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nexa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	webhookResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nexa",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Webhook deliveries by outcome.",
		},
		[]string{"outcome"},
	)

	extractionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nexa",
			Subsystem: "insights",
			Name:      "extraction_duration_seconds",
			Help:      "Duration of transcript extractions.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"outcome"},
	)

	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nexa",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Call-log sync runs by outcome.",
		},
		[]string{"outcome"},
	)

	syncProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nexa",
			Subsystem: "sync",
			Name:      "calls_processed_total",
			Help:      "Call logs ingested by the sync loop.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		webhookResults,
		extractionDuration,
		syncRuns,
		syncProcessed,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// IncrementInFlight marks one more HTTP request in progress.
func IncrementInFlight() { httpInFlight.Inc() }

// DecrementInFlight marks an HTTP request finished.
func DecrementInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records one handled request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordWebhook counts a webhook delivery outcome (processed, duplicate,
// rejected, failed).
func RecordWebhook(outcome string) {
	webhookResults.WithLabelValues(outcome).Inc()
}

// ObserveExtraction records one transcript extraction.
func ObserveExtraction(outcome string, duration time.Duration) {
	extractionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordSyncRun counts a sync run outcome (ok, failed).
func RecordSyncRun(outcome string) {
	syncRuns.WithLabelValues(outcome).Inc()
}

// AddSyncProcessed counts call logs ingested by the sync loop.
func AddSyncProcessed(n int) {
	syncProcessed.Add(float64(n))
}
