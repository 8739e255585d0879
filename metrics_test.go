package asyncmodbus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewMetrics(reg)
	second := NewMetrics(reg)

	assert.Same(t, first.requests, second.requests)
	assert.Same(t, first.pending, second.pending)

	a := first.forTransport("tcp://a:502")
	b := second.forTransport("tcp://b:502")
	a.requests.Inc()
	a.requests.Inc()
	b.requests.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(first.requests.WithLabelValues("tcp://a:502")))
	assert.Equal(t, 1.0, testutil.ToFloat64(first.requests.WithLabelValues("tcp://b:502")))
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "modbus_client_requests_total"))
}

func TestNilMetricsAreUsable(t *testing.T) {
	m := (*Metrics)(nil).forTransport("pipe://test")
	m.failures.Inc()
	m.pending.Set(3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.pending))
}
