package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	gatewayRequests *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
	verifications   *prometheus.CounterVec
	transitions     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conference",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Calls made to the payment gateway by operation and result.",
		}, []string{"operation", "result"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "conference",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Latency of payment gateway calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conference",
			Subsystem: "payments",
			Name:      "verifications_total",
			Help:      "Verification calls by result code.",
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conference",
			Subsystem: "payments",
			Name:      "confirmed_total",
			Help:      "Domain transitions applied after a confirmed payment, by purpose.",
		}, []string{"purpose"}),
	}

	reg.MustRegister(m.gatewayRequests, m.gatewayLatency, m.verifications, m.transitions)
	return m
}

func (m *Metrics) ObserveGatewayCall(operation, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.gatewayRequests.WithLabelValues(operation, result).Inc()
	m.gatewayLatency.WithLabelValues(operation).Observe(took.Seconds())
}

func (m *Metrics) ObserveVerification(result string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveConfirmation(purpose string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(purpose).Inc()
}
