package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Inbound("ignored")
	m.Inbound("ignored")
	m.OutboundAttempt("retry")
	m.Outbound("sent")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.inbound.WithLabelValues("ignored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboundAttempts.WithLabelValues("retry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outbound.WithLabelValues("sent")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Inbound("x")
		m.OutboundAttempt("x")
		m.Outbound("x")
	})
}
