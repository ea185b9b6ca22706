package progress

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes progress as Prometheus metrics on its own registry.
// WriteTextfile stores them for the node exporter textfile collector, which
// suits a batch job that is not scraped while it runs.
type Metrics struct {
	registry  *prometheus.Registry
	planned   *prometheus.GaugeVec
	completed *prometheus.GaugeVec
	failed    *prometheus.GaugeVec
	finished  *prometheus.CounterVec

	mu sync.Mutex
}

// NewMetrics creates the progress metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		planned: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tabcollate",
			Name:      "combinations_planned",
			Help:      "Number of combinations the route calls for.",
		}, []string{"target"}),
		completed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tabcollate",
			Name:      "combinations_completed",
			Help:      "Number of combinations collected and validated.",
		}, []string{"target"}),
		failed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tabcollate",
			Name:      "combinations_failed",
			Help:      "Number of combinations that could not be collected.",
		}, []string{"target"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tabcollate",
			Name:      "runs_finished_total",
			Help:      "Number of finished runs.",
		}, []string{"target"}),
	}
	m.registry.MustRegister(m.planned, m.completed, m.failed, m.finished)
	return m
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Notify implements Reporter.
func (m *Metrics) Notify(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.planned.WithLabelValues(e.Target).Set(float64(e.Planned))
	m.completed.WithLabelValues(e.Target).Set(float64(e.Completed))
	m.failed.WithLabelValues(e.Target).Set(float64(e.Failed))
	if e.Kind == KindFinished {
		m.finished.WithLabelValues(e.Target).Inc()
	}
}

// WriteTextfile writes the metrics to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
