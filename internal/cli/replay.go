package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/codeflow"
	"github.com/aretw0/codeflow/internal/presentation/tui"
	"github.com/aretw0/codeflow/pkg/domain"
	tea "github.com/charmbracelet/bubbletea"
)

// ReplayOptions configures the replay command.
type ReplayOptions struct {
	Options
	Path        string
	Array       string
	Breakpoints []int
	// Headless prints every step and exits.
	Headless bool
	// Plain uses the line prompt instead of the full-screen stepper.
	Plain bool
}

// RunReplay records the file at opts.Path and replays it step by step.
func RunReplay(opts ReplayOptions, in io.Reader, out io.Writer) error {
	rt, cleanup, err := setup(opts.Options, slog.LevelWarn)
	if err != nil {
		return err
	}
	defer cleanup()

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	src, err := os.ReadFile(opts.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", opts.Path, err)
	}
	rec, err := rt.Engine.Record(sigCtx, domain.TraceRequest{
		SourceText:       string(src),
		TrackedArrayName: opts.Array,
		Breakpoints:      opts.Breakpoints,
	})
	if err != nil {
		return err
	}
	rt.Logger.Info("Recording created", "recording_id", rec.ID, "events", len(rec.Result.Events))

	if rec.Result.Status == domain.StatusError {
		return &domain.ExecutionError{Message: rec.Result.Error}
	}

	if opts.Headless || opts.Plain || !isTerminal(out) {
		r := codeflow.NewRunner()
		r.Input = in
		r.Output = out
		r.Headless = opts.Headless
		if isTerminal(out) {
			if render, err := tui.NewRenderer(0); err == nil {
				r.Renderer = render
			}
		}
		return handleExecutionError(r.Run(sigCtx, rt.Engine, rec.ID))
	}

	tui.PrintBanner(out)
	model := tui.NewStepper(sigCtx, rt.Engine, rec, filepath.Base(opts.Path))
	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(sigCtx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	if _, err := p.Run(); err != nil && sigCtx.Err() == nil {
		return fmt.Errorf("replay UI failed: %w", err)
	}
	return nil
}
