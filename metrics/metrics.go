package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors exported by the server.
type Metrics struct {
	registry *prometheus.Registry

	Generations        *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	StoreOps           *prometheus.CounterVec
}

// New registers all collectors on a private registry so tests can build
// independent instances.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "essay_reader",
			Name:      "generations_total",
			Help:      "Essay generation requests by outcome.",
		}, []string{"outcome"}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "essay_reader",
			Name:      "generation_duration_seconds",
			Help:      "Time spent waiting on the text generation provider.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
		}),
		StoreOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "essay_reader",
			Name:      "saved_essay_ops_total",
			Help:      "Saved-essay store operations by op and outcome.",
		}, []string{"op", "outcome"}),
	}
	reg.MustRegister(m.Generations, m.GenerationDuration, m.StoreOps)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveStore records one store operation.
func (m *Metrics) ObserveStore(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.StoreOps.WithLabelValues(op, outcome).Inc()
}
