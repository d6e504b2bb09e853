package observability_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/aretw0/codeflow/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	ctx := context.Background()
	req := &domain.TraceRequest{SourceText: "let x = 1;"}
	hooks := m.Hooks()

	hooks.OnTraceStart(ctx, req)
	hooks.OnTraceComplete(ctx, &domain.TraceResult{
		Status:        domain.StatusSuccess,
		Algorithm:     domain.BubbleSort,
		Events:        make([]domain.TraceEvent, 12),
		ExecutionTime: 3,
	})
	hooks.OnTraceStart(ctx, req)
	hooks.OnTraceFailed(ctx, req, &domain.ExecutionError{Message: "boom", Cause: domain.ErrExecutionTimeout})

	expected := `
# HELP codeflow_trace_failures_total Failed trace builds by failure kind
# TYPE codeflow_trace_failures_total counter
codeflow_trace_failures_total{kind="timeout"} 1
# HELP codeflow_traces_in_flight Trace builds currently running
# TYPE codeflow_traces_in_flight gauge
codeflow_traces_in_flight 0
`
	assert.NoError(t, testutil.GatherAndCompare(reg, bytes.NewBufferString(expected),
		"codeflow_trace_failures_total", "codeflow_traces_in_flight"))
	series, err := testutil.GatherAndCount(reg, "codeflow_traces_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)

	_, err = observability.NewMetrics(reg)
	assert.Error(t, err, "registering twice must fail")
}

func TestFailureKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&domain.InstrumentationError{Message: "x"}, observability.FailureInstrumentation},
		{&domain.ExecutionError{Message: "x", Cause: domain.ErrExecutionTimeout}, observability.FailureTimeout},
		{&domain.ExecutionError{Message: "x", Cause: fmt.Errorf("%w: 5", domain.ErrEventLimitExceeded)}, observability.FailureEventLimit},
		{&domain.ExecutionError{Message: "TypeError"}, observability.FailureExecution},
		{context.Canceled, observability.FailureCanceled},
		{domain.ErrEmptySource, observability.FailureInput},
		{fmt.Errorf("disk"), observability.FailureOther},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, observability.FailureKind(tt.err))
		})
	}
}

func TestChain(t *testing.T) {
	var order []string
	set := func(name string) domain.TraceHooks {
		return domain.TraceHooks{
			OnTraceStart: func(context.Context, *domain.TraceRequest) { order = append(order, name) },
		}
	}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	hooks := observability.Chain(set("a"), domain.TraceHooks{}, set("b"), observability.LoggingHooks(logger))
	hooks.OnTraceStart(context.Background(), &domain.TraceRequest{SourceText: "x"})
	hooks.OnTraceFailed(context.Background(), &domain.TraceRequest{}, domain.ErrSourceTooLarge)
	hooks.OnTraceComplete(context.Background(), &domain.TraceResult{Status: domain.StatusSuccess})

	assert.Equal(t, []string{"a", "b"}, order)
	assert.Contains(t, buf.String(), "trace_start")
	assert.Contains(t, buf.String(), "kind=input")
	assert.Contains(t, buf.String(), "trace_complete")
}
