package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/codeflow/pkg/domain"
)

// Chain combines hook sets. Each callback runs the non-nil callbacks of every
// set, in order.
func Chain(sets ...domain.TraceHooks) domain.TraceHooks {
	return domain.TraceHooks{
		OnTraceStart: func(ctx context.Context, req *domain.TraceRequest) {
			for _, h := range sets {
				if h.OnTraceStart != nil {
					h.OnTraceStart(ctx, req)
				}
			}
		},
		OnTraceComplete: func(ctx context.Context, res *domain.TraceResult) {
			for _, h := range sets {
				if h.OnTraceComplete != nil {
					h.OnTraceComplete(ctx, res)
				}
			}
		},
		OnTraceFailed: func(ctx context.Context, req *domain.TraceRequest, err error) {
			for _, h := range sets {
				if h.OnTraceFailed != nil {
					h.OnTraceFailed(ctx, req, err)
				}
			}
		},
	}
}

// LoggingHooks audits trace builds on logger.
func LoggingHooks(logger *slog.Logger) domain.TraceHooks {
	return domain.TraceHooks{
		OnTraceStart: func(ctx context.Context, req *domain.TraceRequest) {
			logger.DebugContext(ctx, "trace_start",
				"source_bytes", len(req.SourceText),
				"breakpoints", len(req.Breakpoints),
			)
		},
		OnTraceComplete: func(ctx context.Context, res *domain.TraceResult) {
			logger.InfoContext(ctx, "trace_complete",
				"algorithm", res.Algorithm,
				"events", len(res.Events),
				"execution_ms", res.ExecutionTime,
			)
		},
		OnTraceFailed: func(ctx context.Context, _ *domain.TraceRequest, err error) {
			logger.WarnContext(ctx, "trace_failed",
				"kind", FailureKind(err),
				"err", err,
			)
		},
	}
}
