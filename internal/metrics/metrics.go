package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	StageSession    = "session"
	StageRetrieve   = "retrieve"
	StageGenerate   = "generate"
	StageTranscript = "transcript"
)

// Metrics owns a private registry so tests can build as many as they need.
type Metrics struct {
	registry      *prometheus.Registry
	asks          *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	references    prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		asks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "csassist",
			Name:      "asks_total",
			Help:      "Questions handled, by outcome.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "csassist",
			Name:      "stage_duration_seconds",
			Help:      "Latency of each step of answering a question.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"stage", "outcome"}),
		references: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "csassist",
			Name:      "references_returned",
			Help:      "Number of references found per question.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),
	}
	m.registry.MustRegister(m.asks, m.stageDuration, m.references)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveAsk(err error) {
	if m == nil {
		return
	}
	m.asks.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) ObserveStage(stage string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, outcome(err)).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveReferences(n int) {
	if m == nil {
		return
	}
	m.references.Observe(float64(n))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
