package service

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "citizencard",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "API requests by method and outcome kind",
		},
		[]string{"method", "outcome"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "citizencard",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "API request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "citizencard",
			Subsystem: "client",
			Name:      "requests_in_flight",
			Help:      "API requests dispatched and not yet settled",
		},
	)
)

var registerOnce sync.Once

// RegisterMetrics registers the client collectors once.
func RegisterMetrics(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(RequestsTotal, RequestDuration, RequestsInFlight)
	})
}
