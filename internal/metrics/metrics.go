// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the counters recorded by the dispatcher and delivery client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	inbound          *prometheus.CounterVec
	outboundAttempts *prometheus.CounterVec
	outbound         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agendabot",
			Name:      "inbound_messages_total",
			Help:      "Inbound chat messages by dispatch outcome.",
		}, []string{"outcome"}),
		outboundAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agendabot",
			Name:      "outbound_attempts_total",
			Help:      "HTTP attempts made to the send API by result.",
		}, []string{"result"}),
		outbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agendabot",
			Name:      "outbound_messages_total",
			Help:      "Logical outbound messages by final result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.inbound, m.outboundAttempts, m.outbound)
	}
	return m
}

func (m *Metrics) Inbound(outcome string) {
	if m == nil {
		return
	}
	m.inbound.WithLabelValues(outcome).Inc()
}

func (m *Metrics) OutboundAttempt(result string) {
	if m == nil {
		return
	}
	m.outboundAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) Outbound(result string) {
	if m == nil {
		return
	}
	m.outbound.WithLabelValues(result).Inc()
}
