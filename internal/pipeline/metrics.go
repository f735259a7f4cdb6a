package pipeline

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	ResolverExecutions *prometheus.CounterVec
	FunctionExecutions *prometheus.CounterVec
	FunctionDuration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// creates unregistered collectors. Registering twice with the same reg
// returns the prometheus.AlreadyRegisteredError.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ResolverExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipegraph_resolver_executions_total",
				Help: "Total number of resolver pipeline executions",
			},
			[]string{"resolver", "status"},
		),
		FunctionExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipegraph_function_executions_total",
				Help: "Total number of pipeline function executions",
			},
			[]string{"resolver", "function", "status"},
		),
		FunctionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipegraph_function_duration_seconds",
				Help:    "Duration of pipeline function executions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resolver", "function"},
		),
	}
	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{m.ResolverExecutions, m.FunctionExecutions, m.FunctionDuration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register pipeline metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) resolverDone(key FieldKey, err error) {
	if m == nil {
		return
	}
	m.ResolverExecutions.WithLabelValues(key.String(), status(err)).Inc()
}

func (m *Metrics) functionDone(key FieldKey, function string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.FunctionExecutions.WithLabelValues(key.String(), function, status(err)).Inc()
	m.FunctionDuration.WithLabelValues(key.String(), function).Observe(d.Seconds())
}

func status(err error) string {
	if err != nil {
		return statusError
	}
	return statusOK
}
