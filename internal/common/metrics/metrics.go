// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "junction_dispatch_total",
			Help: "Total number of dispatches by backend type and outcome",
		},
		[]string{"type", "outcome"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "junction_dispatch_duration_seconds",
			Help:    "Duration of dispatches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	ConnectionsEstablished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "junction_connections_established_total",
			Help: "Total number of backend connections established",
		},
		[]string{"type"},
	)

	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "junction_connections_active",
			Help: "Number of cached backend connections",
		},
	)

	SelectionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "junction_selection_total",
			Help: "Total number of backend selections by outcome",
		},
		[]string{"outcome"},
	)
)
