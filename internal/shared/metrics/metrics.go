package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry collects every metric exported by the service. A dedicated
// registry keeps tests independent from the global default registerer.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	analysisTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mirror",
		Name:      "analysis_total",
		Help:      "Diagnoses evaluated, labelled by rule branch.",
	}, []string{"rule"})

	narrativeTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mirror",
		Name:      "narrative_total",
		Help:      "Narrative generation attempts by provider and outcome.",
	}, []string{"provider", "outcome"})

	narrativeDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mirror",
		Name:      "narrative_duration_seconds",
		Help:      "Narrative generation latency.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"provider"})

	intakeTransitions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mirror",
		Name:      "intake_transitions_total",
		Help:      "Intake session transitions by target state and result.",
	}, []string{"to", "result"})

	leadsCreated = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "mirror",
		Name:      "leads_created_total",
		Help:      "Consultation leads persisted.",
	})

	leadsProcessed = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mirror",
		Name:      "leads_processed_total",
		Help:      "Lead notification jobs handled by the worker.",
	}, []string{"outcome"})
)

// IncAnalysis records one evaluated diagnosis.
func IncAnalysis(rule string) {
	analysisTotal.WithLabelValues(rule).Inc()
}

// ObserveNarrative records one narrative attempt and its latency.
func ObserveNarrative(provider, outcome string, elapsed time.Duration) {
	narrativeTotal.WithLabelValues(provider, outcome).Inc()
	narrativeDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// IncIntakeTransition records an attempted FSM transition.
func IncIntakeTransition(to string, ok bool) {
	result := "ok"
	if !ok {
		result = "rejected"
	}
	intakeTransitions.WithLabelValues(to, result).Inc()
}

// IncLeadCreated increments the lead counter.
func IncLeadCreated() {
	leadsCreated.Inc()
}

// IncLeadProcessed records a worker outcome: notified, skipped or failed.
func IncLeadProcessed(outcome string) {
	leadsProcessed.WithLabelValues(outcome).Inc()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
