package progress

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsNamespace prefixes every exported metric
const MetricsNamespace = "migrate"

// MetricsSink exports tracker events as Prometheus metrics on its own
// registry.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type MetricsSink struct {
	registry *prometheus.Registry

	itemsTotal         *prometheus.CounterVec
	processTotal       *prometheus.GaugeVec
	processCompletions *prometheus.CounterVec
	moduleSuccess      *prometheus.GaugeVec
}

// NewMetricsSink creates a sink with a fresh registry
func NewMetricsSink() *MetricsSink {
	s := &MetricsSink{registry: prometheus.NewRegistry()}

	s.itemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "items_total",
			Help:      "Items processed by a migration process, by outcome.",
		},
		[]string{"module", "process", "outcome"},
	)
	s.processTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "process_items",
			Help:      "Items expected by a migration process.",
		},
		[]string{"module", "process"},
	)
	s.processCompletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "process_completions_total",
			Help:      "Completed migration processes, by outcome.",
		},
		[]string{"module", "process", "outcome"},
	)
	s.moduleSuccess = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "module_success",
			Help:      "1 if the last run of a module succeeded, 0 otherwise.",
		},
		[]string{"module"},
	)

	s.registry.MustRegister(s.itemsTotal, s.processTotal, s.processCompletions, s.moduleSuccess)
	return s
}

// Registry returns the registry holding the sink's metrics
func (s *MetricsSink) Registry() *prometheus.Registry {
	return s.registry
}

// Handler serves the registry in the Prometheus exposition format
func (s *MetricsSink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Notify implements Sink
func (s *MetricsSink) Notify(e Event) {
	module := string(e.Module)
	switch e.Type {
	case EventProcessAdded:
		s.processTotal.WithLabelValues(module, e.Process.Name).Set(float64(e.Process.Total))
	case EventItemTicked:
		s.itemsTotal.WithLabelValues(module, e.Process.Name, outcome(e.Success)).Inc()
	case EventProcessCompleted:
		s.processCompletions.WithLabelValues(module, e.Process.Name, outcome(e.Success)).Inc()
	case EventModuleCompleted:
		v := 0.0
		if e.Success {
			v = 1
		}
		s.moduleSuccess.WithLabelValues(module).Set(v)
	}
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
