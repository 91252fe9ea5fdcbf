package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	GateDecisions        *prometheus.CounterVec
	ClaimResolveDuration prometheus.Histogram
	AuthEventsLogged     prometheus.Counter
	AuthEventsRejected   prometheus.Counter
	AuthEventsDropped    *prometheus.CounterVec
	AuthEventsForwarded  prometheus.Counter
	AuthSinkFailures     prometheus.Counter
	AuthSinkDuration     prometheus.Histogram
	AuthSinkCircuitState prometheus.Gauge
	RateLimited          *prometheus.CounterVec
}

// New creates and registers all metrics on reg. Pass prometheus.DefaultRegisterer
// in main and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		GateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lmsgate_gate_decisions_total",
			Help: "Access gate decisions by outcome and reason",
		}, []string{"outcome", "reason"}),
		ClaimResolveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lmsgate_claim_resolve_duration_seconds",
			Help:    "Latency of session claim resolution",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}),
		AuthEventsLogged: factory.NewCounter(prometheus.CounterOpts{
			Name: "lmsgate_auth_events_logged_total",
			Help: "Auth events accepted and written to the operational log",
		}),
		AuthEventsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "lmsgate_auth_events_rejected_total",
			Help: "Auth event submissions rejected because the body was not valid JSON",
		}),
		AuthEventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lmsgate_auth_events_dropped_total",
			Help: "Auth events not forwarded to the sink",
		}, []string{"reason"}),
		AuthEventsForwarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "lmsgate_auth_events_forwarded_total",
			Help: "Auth events successfully written to the sink",
		}),
		AuthSinkFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "lmsgate_auth_sink_failures_total",
			Help: "Auth event sink write failures",
		}),
		AuthSinkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lmsgate_auth_sink_write_duration_seconds",
			Help:    "Latency of auth event sink writes",
			Buckets: prometheus.DefBuckets,
		}),
		AuthSinkCircuitState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lmsgate_auth_sink_circuit_open",
			Help: "Auth sink circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lmsgate_rate_limited_total",
			Help: "Requests rejected by the per-IP rate limiter",
		}, []string{"route"}),
	}
}

// ObserveGateDecision counts one access gate evaluation.
func (m *Metrics) ObserveGateDecision(outcome, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	m.GateDecisions.WithLabelValues(outcome, reason).Inc()
}

// ObserveClaimResolve records how long a claim lookup took.
func (m *Metrics) ObserveClaimResolve(seconds float64) {
	if m == nil {
		return
	}
	m.ClaimResolveDuration.Observe(seconds)
}

// IncAuthEventsLogged increments the logged counter.
func (m *Metrics) IncAuthEventsLogged() {
	if m == nil {
		return
	}
	m.AuthEventsLogged.Inc()
}

// IncAuthEventsRejected increments the rejected counter.
func (m *Metrics) IncAuthEventsRejected() {
	if m == nil {
		return
	}
	m.AuthEventsRejected.Inc()
}

// IncAuthEventsDropped increments the dropped counter for reason
// ("buffer_full", "circuit_open").
func (m *Metrics) IncAuthEventsDropped(reason string) {
	if m == nil {
		return
	}
	m.AuthEventsDropped.WithLabelValues(reason).Inc()
}

// ObserveSinkWrite records a successful sink write.
func (m *Metrics) ObserveSinkWrite(seconds float64) {
	if m == nil {
		return
	}
	m.AuthEventsForwarded.Inc()
	m.AuthSinkDuration.Observe(seconds)
}

// IncSinkFailures increments the sink failure counter.
func (m *Metrics) IncSinkFailures() {
	if m == nil {
		return
	}
	m.AuthSinkFailures.Inc()
}

// SetSinkCircuitOpen sets the circuit breaker state gauge.
func (m *Metrics) SetSinkCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.AuthSinkCircuitState.Set(1)
	} else {
		m.AuthSinkCircuitState.Set(0)
	}
}

// IncRateLimited counts one rejected request on route.
func (m *Metrics) IncRateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(route).Inc()
}
