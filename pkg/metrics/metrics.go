// Package metrics exposes Prometheus instruments for flow operations and runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stepflow"

const (
	ResultOK    = "ok"
	ResultError = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	migrations        *prometheus.CounterVec
	stepsRecorded     *prometheus.CounterVec
}

// New creates the instruments on a registry of their own, together with the
// Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Flow operations applied, by operation type and result.",
			},
			[]string{"operation", "result"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Time spent applying a flow operation.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"operation"},
		),
		migrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "migrations_total",
				Help:      "Flow version documents migrated on load, by stored schema version.",
			},
			[]string{"from_version"},
		),
		stepsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "run_steps_recorded_total",
				Help:      "Step outputs written to run journals, by status.",
			},
			[]string{"status"},
		),
	}

	m.registry.MustRegister(
		m.operations,
		m.operationDuration,
		m.migrations,
		m.stepsRecorded,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveOperation(operation string, elapsed time.Duration, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}

	m.operations.WithLabelValues(operation, result).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) MigratedOnLoad(fromVersion string) {
	if fromVersion == "" {
		fromVersion = "none"
	}

	m.migrations.WithLabelValues(fromVersion).Inc()
}

func (m *Metrics) StepRecorded(status string) {
	m.stepsRecorded.WithLabelValues(status).Inc()
}
