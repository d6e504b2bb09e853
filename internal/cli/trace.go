package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/codeflow"
	"github.com/aretw0/codeflow/internal/presentation/graph"
	"github.com/aretw0/codeflow/internal/presentation/tui"
	"github.com/aretw0/codeflow/pkg/domain"
)

// TraceOptions configures the trace command.
type TraceOptions struct {
	Options
	Path        string
	Array       string
	Breakpoints []int
	JSON        bool
	Graph       bool
	Watch       bool
}

// RunTrace traces the file at opts.Path once, or on every change with Watch.
func RunTrace(opts TraceOptions, out io.Writer) error {
	rt, cleanup, err := setup(opts.Options, slog.LevelWarn)
	if err != nil {
		return err
	}
	defer cleanup()

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	if opts.Watch {
		if opts.JSON || opts.Graph {
			return fmt.Errorf("--watch cannot be combined with --json or --graph")
		}
		return handleExecutionError(RunWatch(sigCtx, rt, opts, out))
	}
	return traceFile(sigCtx, rt.Engine, opts, out)
}

// traceFile traces one file and writes a report or the JSON result to out.
// A program that fails at runtime is reported and returned as an error so
// the process exits non-zero.
func traceFile(ctx context.Context, eng *codeflow.Engine, opts TraceOptions, out io.Writer) error {
	src, err := os.ReadFile(opts.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", opts.Path, err)
	}
	result, err := eng.Trace(ctx, domain.TraceRequest{
		SourceText:       string(src),
		TrackedArrayName: opts.Array,
		Breakpoints:      opts.Breakpoints,
	})
	if err != nil {
		return err
	}

	switch {
	case opts.JSON:
		if err := writeJSON(out, result); err != nil {
			return err
		}
	case opts.Graph:
		if _, err := io.WriteString(out, graph.GenerateMermaid(result.Events, nil)); err != nil {
			return err
		}
	default:
		if err := writeReport(out, filepath.Base(opts.Path), result); err != nil {
			return err
		}
	}

	if result.Status == domain.StatusError {
		return &domain.ExecutionError{Message: result.Error}
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

// writeReport renders through glamour on a terminal and as plain markdown otherwise.
func writeReport(out io.Writer, name string, result *domain.TraceResult) error {
	md := tui.Report(name, result)
	if isTerminal(out) {
		render, err := tui.NewRenderer(0)
		if err != nil {
			return err
		}
		if rendered, err := render(md); err == nil {
			md = rendered
		}
	}
	_, err := io.WriteString(out, md)
	return err
}
