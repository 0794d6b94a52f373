// Package metrics exposes prometheus instrumentation for the runtime.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fluxion_sessions_started_total",
		Help: "Number of flow sessions started.",
	})

	SessionsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fluxion_sessions_completed_total",
		Help: "Number of flow sessions that reached a terminal block.",
	})

	SessionsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxion_sessions_failed_total",
		Help: "Number of flow sessions that ended in error.",
	}, []string{"reason"})

	SessionsAwaiting = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fluxion_sessions_awaiting",
		Help: "Number of sessions currently parked on an await.",
	})

	GasUsed = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fluxion_gas_used",
		Help:    "Gas consumed per interpreter run.",
		Buckets: prometheus.ExponentialBuckets(16, 4, 8),
	})

	AllocationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fluxion_allocation_failures_total",
		Help: "Resource allocations that found no eligible resource.",
	}, []string{"kind"})

	AdapterLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fluxion_adapter_latency_seconds",
		Help:    "Latency of adapter executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"adapter"})

	AwaitTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fluxion_await_timeouts_total",
		Help: "Awaits that expired before a resume arrived.",
	})
)
