// Package metrics exposes Prometheus collectors for analysis activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "timesherpa"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	analyses        *prometheus.CounterVec
	modelLatency    *prometheus.HistogramVec
	suggestions     *prometheus.CounterVec
	scheduledEvents *prometheus.CounterVec
}

// New constructs Metrics and registers the collectors with reg. Collectors
// already registered under the same name are reused, so several instances
// can share prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Analyses performed, by mode and by whether the model result or the fallback was used.",
		}, []string{"mode", "source"}),
		modelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_request_duration_seconds",
			Help:      "Latency of generative model calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		suggestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggestions_classified_total",
			Help:      "Suggestions classified, by type.",
		}, []string{"type"}),
		scheduledEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_events_total",
			Help:      "Calendar events created from suggestions, by result.",
		}, []string{"type", "result"}),
	}
	m.analyses = register(reg, m.analyses)
	m.modelLatency = register(reg, m.modelLatency)
	m.suggestions = register(reg, m.suggestions)
	m.scheduledEvents = register(reg, m.scheduledEvents)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveAnalysis counts one analysis. source is "model" or "fallback".
func (m *Metrics) ObserveAnalysis(mode, source string) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(mode, source).Inc()
}

// ObserveModelCall records the latency of one generate call.
func (m *Metrics) ObserveModelCall(err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.modelLatency.WithLabelValues(status).Observe(d.Seconds())
}

// ObserveSuggestion counts one classified suggestion.
func (m *Metrics) ObserveSuggestion(kind string) {
	if m == nil {
		return
	}
	m.suggestions.WithLabelValues(kind).Inc()
}

// ObserveScheduled counts one scheduling attempt.
func (m *Metrics) ObserveScheduled(kind string, success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.scheduledEvents.WithLabelValues(kind, result).Inc()
}
