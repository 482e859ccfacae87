package eradius

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus instrumentation for a Client. All observers are
// safe to call on a nil receiver, so an uninstrumented client pays nothing.
//
// Results are labelled with both outcome and reason. Rejects caused by
// internal faults or unreachable backends therefore stay separable from
// genuine protocol rejects; dashboards that only care about server verdicts
// can filter on reason="PROTOCOL_REJECT".
type Metrics struct {
	// Results counts terminal outcomes by outcome code and reject reason.
	Results *prometheus.CounterVec

	// Timeouts counts per-candidate reply timeouts, including those that
	// were recovered by failing over to the next candidate.
	Timeouts *prometheus.CounterVec

	// ExchangeDuration observes the round-trip time of each exchange
	// attempt, timeouts included.
	ExchangeDuration *prometheus.HistogramVec

	// WorkerPanics counts defects recovered at the worker boundary.
	WorkerPanics prometheus.Counter
}

// NewMetrics creates client metrics registered with reg. If reg is nil the
// default Prometheus registerer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "eradius"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Results: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "results_total",
				Help:      "Total number of terminal authentication outcomes",
			},
			[]string{"outcome", "reason"},
		),
		Timeouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "timeouts_total",
				Help:      "Total number of per-candidate reply timeouts",
			},
			[]string{"server"},
		),
		ExchangeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "exchange_duration_seconds",
				Help:      "Round-trip time of RADIUS exchange attempts",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"server"},
		),
		WorkerPanics: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_panics_total",
				Help:      "Total number of panics recovered at the worker boundary",
			},
		),
	}
}

func (m *Metrics) observeResult(code OutcomeCode, reason RejectReason) {
	if m == nil {
		return
	}
	m.Results.WithLabelValues(code.String(), reason.String()).Inc()
}

func (m *Metrics) observeTimeout(server string) {
	if m == nil {
		return
	}
	m.Timeouts.WithLabelValues(server).Inc()
}

func (m *Metrics) observeExchange(server string, d time.Duration) {
	if m == nil {
		return
	}
	m.ExchangeDuration.WithLabelValues(server).Observe(d.Seconds())
}

func (m *Metrics) observePanic() {
	if m == nil {
		return
	}
	m.WorkerPanics.Inc()
}
