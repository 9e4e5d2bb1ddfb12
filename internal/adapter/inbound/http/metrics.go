package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the policy engine. Pass to
// components that need to record metrics.
type Metrics struct {
	DecisionsTotal           *prometheus.CounterVec
	OverrideTransitionsTotal *prometheus.CounterVec
	BreakDeductionsTotal     *prometheus.CounterVec
	RequestDuration          *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		DecisionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shiftgate",
				Name:      "clock_decisions_total",
				Help:      "Total clock action validations",
			},
			[]string{"action", "outcome"}, // outcome=allow/deny
		),
		OverrideTransitionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shiftgate",
				Name:      "override_transitions_total",
				Help:      "Total override request state transitions",
			},
			[]string{"status"},
		),
		BreakDeductionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "shiftgate",
				Name:      "break_deductions_total",
				Help:      "Total break deduction computations",
			},
			[]string{"mode"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "shiftgate",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

// RegisterNotifyDrops exposes the notifier's drop counter through the
// registry. The counter lives in the notifier; the metric just reads it.
func RegisterNotifyDrops(reg prometheus.Registerer, dropped func() int64) {
	reg.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: "shiftgate",
			Name:      "notify_drops_total",
			Help:      "Total notifications dropped due to backpressure",
		},
		func() float64 { return float64(dropped()) },
	))
}
