package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConciergeMetrics exposes counters/histograms for the dispatch pipeline.
type ConciergeMetrics struct {
	interventionsTotal    *prometheus.CounterVec
	vetoesTotal           prometheus.Counter
	medicalRedirectsTotal *prometheus.CounterVec
	specialistErrorsTotal *prometheus.CounterVec
	auditFailuresTotal    prometheus.Counter
	turnDuration          prometheus.Histogram
}

func NewConciergeMetrics(reg prometheus.Registerer) *ConciergeMetrics {
	m := &ConciergeMetrics{
		interventionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vitracka",
			Subsystem: "concierge",
			Name:      "safety_interventions_total",
			Help:      "Total sentinel interventions by trigger category and severity",
		}, []string{"category", "severity"}),
		vetoesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vitracka",
			Subsystem: "concierge",
			Name:      "response_vetoes_total",
			Help:      "Total composed replies replaced by the sentinel veto",
		}),
		medicalRedirectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vitracka",
			Subsystem: "concierge",
			Name:      "medical_redirects_total",
			Help:      "Total medical boundary redirects by topic",
		}, []string{"topic"}),
		specialistErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vitracka",
			Subsystem: "concierge",
			Name:      "specialist_errors_total",
			Help:      "Total specialist handler failures excluded from composition",
		}, []string{"agent"}),
		auditFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vitracka",
			Subsystem: "concierge",
			Name:      "audit_write_failures_total",
			Help:      "Total audit persistence failures on the safety path",
		}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vitracka",
			Subsystem: "concierge",
			Name:      "turn_duration_seconds",
			Help:      "Latency of full concierge turns",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.interventionsTotal,
		m.vetoesTotal,
		m.medicalRedirectsTotal,
		m.specialistErrorsTotal,
		m.auditFailuresTotal,
		m.turnDuration,
	)
	return m
}

func (m *ConciergeMetrics) ObserveIntervention(category, severity string) {
	if m == nil {
		return
	}
	m.interventionsTotal.WithLabelValues(category, severity).Inc()
}

func (m *ConciergeMetrics) ObserveVeto() {
	if m == nil {
		return
	}
	m.vetoesTotal.Inc()
}

func (m *ConciergeMetrics) ObserveMedicalRedirect(topic string) {
	if m == nil {
		return
	}
	m.medicalRedirectsTotal.WithLabelValues(topic).Inc()
}

func (m *ConciergeMetrics) ObserveSpecialistError(agent string) {
	if m == nil {
		return
	}
	m.specialistErrorsTotal.WithLabelValues(agent).Inc()
}

func (m *ConciergeMetrics) ObserveAuditFailure() {
	if m == nil {
		return
	}
	m.auditFailuresTotal.Inc()
}

func (m *ConciergeMetrics) ObserveTurnDuration(seconds float64) {
	if m == nil {
		return
	}
	m.turnDuration.Observe(seconds)
}
