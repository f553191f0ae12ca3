package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for proxy calls and bookings.
type SchedulingMetrics struct {
	proxyCalls   *prometheus.CounterVec
	proxyLatency *prometheus.HistogramVec
	bookingTotal *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		proxyCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicops",
			Subsystem: "scheduling",
			Name:      "proxy_calls_total",
			Help:      "Total calls to the scheduling proxy",
		}, []string{"operation", "status"}),
		proxyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicops",
			Subsystem: "scheduling",
			Name:      "proxy_call_latency_seconds",
			Help:      "Latency of scheduling proxy calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicops",
			Subsystem: "scheduling",
			Name:      "booking_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.proxyCalls, m.proxyLatency, m.bookingTotal)
	return m
}

func (m *SchedulingMetrics) ObserveProxyCall(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.proxyCalls.WithLabelValues(operation, status).Inc()
	m.proxyLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *SchedulingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(outcome).Inc()
}
