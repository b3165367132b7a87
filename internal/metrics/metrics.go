// Package metrics holds the Prometheus collectors shared by the edge and
// backend processes.
//
// Collectors are package-level so any component can record without plumbing.
// They are exported on /metrics only after Register is called.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tallybridge"

// Outcome and result label values.
const (
	OutcomeDelivered = "delivered"
	OutcomeQueued    = "queued"

	ResultDelivered = "delivered"
	ResultFailed    = "failed"
)

var (
	DeliveryOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_outcomes_total",
			Help:      "Foreground deliveries by outcome (delivered or queued)",
		},
		[]string{"outcome"},
	)

	RetrySendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_sends_total",
			Help:      "Queued items sent by the retry worker, by result",
		},
		[]string{"result"},
	)

	RetryCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_cycles_total",
			Help:      "Retry worker wake-ups",
		},
	)

	QueuePending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_pending",
			Help:      "Pending queue items seen at the last retry check",
		},
	)

	TaskAdmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_admissions_total",
			Help:      "Uploaded documents by admission status",
		},
		[]string{"status"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "code"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

var registerOnce sync.Once

// Register registers every collector with reg. Later calls are no-ops, so
// commands that share a process may each call it.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			DeliveryOutcomesTotal,
			RetrySendsTotal,
			RetryCyclesTotal,
			QueuePending,
			TaskAdmissionsTotal,
			HTTPRequestsTotal,
			HTTPRequestDuration,
		)
	})
}
