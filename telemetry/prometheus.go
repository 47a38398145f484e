package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/davidroman0O/depender"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// PrometheusMetrics holds the collectors updated by its middleware.
type PrometheusMetrics struct {
	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewPrometheusMetrics creates and registers the step collectors:
//
//	<namespace>_step_executions_total{step,status}
//	<namespace>_step_duration_seconds{step}
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_executions_total",
			Help:      "Number of step executions by outcome.",
		}, []string{"step", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Step execution time in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(m.executions); err != nil {
		return nil, err
	}
	if err := reg.Register(m.duration); err != nil {
		reg.Unregister(m.executions)
		return nil, err
	}
	return m, nil
}

// Middleware counts every execution and observes its duration.
func (m *PrometheusMetrics) Middleware() depender.StepMiddleware {
	return func(next depender.StepRunnerFunc) depender.StepRunnerFunc {
		return func(ctx *depender.StepContext) (any, error) {
			id := ctx.Step.Identifier()
			start := time.Now()

			value, err := next(ctx)

			m.duration.WithLabelValues(id).Observe(time.Since(start).Seconds())
			status := statusSuccess
			if err != nil {
				status = statusFailure
			}
			m.executions.WithLabelValues(id, status).Inc()

			return value, err
		}
	}
}

// NewPrometheusMiddleware registers the step collectors on reg and returns
// the middleware that updates them.
func NewPrometheusMiddleware(reg prometheus.Registerer, namespace string) (depender.StepMiddleware, error) {
	m, err := NewPrometheusMetrics(reg, namespace)
	if err != nil {
		return nil, err
	}
	return m.Middleware(), nil
}
