package detection

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the service's Prometheus collectors.
type Metrics struct {
	requests    *prometheus.CounterVec
	cache       *prometheus.CounterVec
	stages      *prometheus.HistogramVec
	predictions *prometheus.CounterVec
	confidence  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceguard",
			Name:      "requests_total",
			Help:      "Detection requests by outcome (ok or error kind).",
		}, []string{"outcome"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceguard",
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by result.",
		}, []string{"result"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voiceguard",
			Name:      "stage_duration_seconds",
			Help:      "Time spent per pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"stage"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceguard",
			Name:      "predictions_total",
			Help:      "Computed predictions by label and language.",
		}, []string{"label", "language"}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "voiceguard",
			Name:      "prediction_confidence",
			Help:      "Confidence of computed predictions.",
			Buckets:   prometheus.LinearBuckets(0.5, 0.05, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.cache, m.stages, m.predictions, m.confidence)
	}
	return m
}

func (m *Metrics) request(outcome string) {
	if m != nil {
		m.requests.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) cacheLookup(result string) {
	if m != nil {
		m.cache.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) stage(name string, seconds float64) {
	if m != nil {
		m.stages.WithLabelValues(name).Observe(seconds)
	}
}

func (m *Metrics) prediction(label, language string, confidence float64) {
	if m != nil {
		m.predictions.WithLabelValues(label, language).Inc()
		m.confidence.Observe(confidence)
	}
}
