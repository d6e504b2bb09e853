package observability

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Failure kinds used as the "kind" label of codeflow_trace_failures_total.
const (
	FailureInstrumentation = "instrumentation"
	FailureTimeout         = "timeout"
	FailureEventLimit      = "event_limit"
	FailureExecution       = "execution"
	FailureCanceled        = "canceled"
	FailureInput           = "input"
	FailureOther           = "other"
)

// Metrics holds the Prometheus collectors of the trace engine.
type Metrics struct {
	traces   *prometheus.CounterVec
	failures *prometheus.CounterVec
	events   prometheus.Histogram
	duration prometheus.Histogram
	inflight prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		traces: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codeflow_traces_total",
				Help: "Trace builds by outcome status",
			},
			[]string{"status", "algorithm"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "codeflow_trace_failures_total",
				Help: "Failed trace builds by failure kind",
			},
			[]string{"kind"},
		),
		events: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "codeflow_trace_events",
			Help:    "Number of events in successful traces",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "codeflow_execution_duration_seconds",
			Help:    "Execution time of instrumented programs",
			Buckets: prometheus.DefBuckets,
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "codeflow_traces_in_flight",
			Help: "Trace builds currently running",
		}),
	}
	for _, c := range []prometheus.Collector{m.traces, m.failures, m.events, m.duration, m.inflight} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return m, nil
}

// Hooks returns trace hooks updating the collectors.
func (m *Metrics) Hooks() domain.TraceHooks {
	return domain.TraceHooks{
		OnTraceStart: func(ctx context.Context, _ *domain.TraceRequest) {
			m.inflight.Inc()
		},
		OnTraceComplete: func(ctx context.Context, res *domain.TraceResult) {
			m.inflight.Dec()
			m.traces.WithLabelValues(string(res.Status), string(res.Algorithm)).Inc()
			m.events.Observe(float64(len(res.Events)))
			m.duration.Observe(float64(res.ExecutionTime) / 1000)
		},
		OnTraceFailed: func(ctx context.Context, _ *domain.TraceRequest, err error) {
			m.inflight.Dec()
			m.traces.WithLabelValues(string(domain.StatusError), "").Inc()
			m.failures.WithLabelValues(FailureKind(err)).Inc()
		},
	}
}

// FailureKind maps a trace error to its metric label.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrInstrumentation):
		return FailureInstrumentation
	case errors.Is(err, domain.ErrExecutionTimeout):
		return FailureTimeout
	case errors.Is(err, domain.ErrEventLimitExceeded):
		return FailureEventLimit
	case errors.Is(err, domain.ErrExecution):
		return FailureExecution
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureCanceled
	case errors.Is(err, domain.ErrEmptySource), errors.Is(err, domain.ErrSourceTooLarge):
		return FailureInput
	}
	return FailureOther
}
