// Package metrics exposes Prometheus instrumentation for remote calls,
// rate-limit pauses, enrichment passes and write-backs.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Remote API
	RemoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discat_remote_requests_total",
			Help: "Total number of Discogs API requests by method and status code",
		},
		[]string{"method", "status"},
	)

	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discat_remote_request_duration_seconds",
			Help:    "Duration of Discogs API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	RateLimitRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "discat_ratelimit_remaining",
			Help: "Last observed X-Discogs-Ratelimit-Remaining value",
		},
	)

	RateLimitPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discat_ratelimit_pauses_total",
			Help: "Number of cooldown pauses taken after the quota dropped below the low-water mark",
		},
	)

	// Enrichment
	EnrichmentItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discat_enrichment_items_total",
			Help: "Work-set items processed by enrichment pass and outcome",
		},
		[]string{"pass", "outcome"}, // outcome: fetched, fallback, failed
	)

	// Write-back
	WriteBacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discat_writebacks_total",
			Help: "Write-back requests by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: field, folder
	)

	// Reconciliation
	ReconcileItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "discat_reconcile_items",
			Help: "Items per partition in the most recent reconciliation",
		},
		[]string{"partition"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discat_run_duration_seconds",
			Help:    "Duration of runs by kind and final status",
			Buckets: []float64{1, 10, 30, 60, 300, 900, 1800, 3600},
		},
		[]string{"kind", "status"},
	)
)

// RecordRequest records one remote call.
func RecordRequest(method string, status int, d time.Duration) {
	RemoteRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	RemoteRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RecordReconcile stores the partition sizes of a reconciliation.
func RecordReconcile(newCount, changed, unchanged int) {
	ReconcileItems.WithLabelValues("new").Set(float64(newCount))
	ReconcileItems.WithLabelValues("changed").Set(float64(changed))
	ReconcileItems.WithLabelValues("unchanged").Set(float64(unchanged))
}
