package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Dual-write outcomes.
const (
	OutcomeOK       = "ok"
	OutcomePartial  = "partial"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Device ingestion and index consistency metrics.
var (
	DualWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devsearch",
			Name:      "dual_writes_total",
			Help:      "Device writes by index operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devsearch",
			Name:      "search_requests_total",
			Help:      "Keyword searches by outcome",
		},
		[]string{"outcome"},
	)

	SearchHits = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "devsearch",
			Name:      "search_hits",
			Help:      "Number of hits returned per keyword search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 1000},
		},
	)

	OutboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "devsearch",
			Name:      "outbox_pending",
			Help:      "Index outbox markers waiting to be drained",
		},
	)

	OutboxExhausted = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "devsearch",
			Name:      "outbox_exhausted",
			Help:      "Index outbox markers that reached the attempt limit",
		},
	)

	ReconciledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "devsearch",
			Name:      "reconciled_total",
			Help:      "Index repairs by source (worker, sweep), op and status",
		},
		[]string{"source", "op", "status"},
	)
)

var registerDevices sync.Once

// RegisterDeviceMetrics registers the device metrics with the default registry.
// Safe to call more than once.
func RegisterDeviceMetrics() {
	registerDevices.Do(func() {
		prometheus.MustRegister(
			DualWritesTotal,
			SearchRequestsTotal,
			SearchHits,
			OutboxPending,
			OutboxExhausted,
			ReconciledTotal,
		)
	})
}
