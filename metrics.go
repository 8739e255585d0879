package asyncmodbus

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "modbus_client"

// Metrics holds the collectors shared by all clients created with it. Every
// series carries the transport endpoint of the client as label.
type Metrics struct {
	requests  *prometheus.CounterVec
	responses *prometheus.CounterVec
	unmatched *prometheus.CounterVec
	discards  *prometheus.CounterVec
	failures  *prometheus.CounterVec
	pending   *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered. Collectors already registered by an earlier
// call are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	labels := []string{"transport"}
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Requests written to the transport.",
		}, labels),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "responses_total",
			Help:      "Responses matched to a pending call.",
		}, labels),
		unmatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "unmatched_responses_total",
			Help:      "Responses without a pending call.",
		}, labels),
		discards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "framing_discards_total",
			Help:      "Candidate frames dropped by the framer.",
		}, labels),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connection_failures_total",
			Help:      "Failed connects and lost connections.",
		}, labels),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "pending_calls",
			Help:      "Calls waiting for a response.",
		}, labels),
	}
	if reg != nil {
		m.requests = register(reg, m.requests)
		m.responses = register(reg, m.responses)
		m.unmatched = register(reg, m.unmatched)
		m.discards = register(reg, m.discards)
		m.failures = register(reg, m.failures)
		m.pending = register(reg, m.pending)
	}
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	slog.Warn("metrics not registered", "error", err)
	return c
}

// clientMetrics are the series of one client.
type clientMetrics struct {
	requests  prometheus.Counter
	responses prometheus.Counter
	unmatched prometheus.Counter
	discards  prometheus.Counter
	failures  prometheus.Counter
	pending   prometheus.Gauge
}

func (m *Metrics) forTransport(transport string) clientMetrics {
	if m == nil {
		m = NewMetrics(nil)
	}
	return clientMetrics{
		requests:  m.requests.WithLabelValues(transport),
		responses: m.responses.WithLabelValues(transport),
		unmatched: m.unmatched.WithLabelValues(transport),
		discards:  m.discards.WithLabelValues(transport),
		failures:  m.failures.WithLabelValues(transport),
		pending:   m.pending.WithLabelValues(transport),
	}
}
