package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/aretw0/codeflow/internal/config"
	"github.com/aretw0/codeflow/internal/logging"
	"golang.org/x/term"
)

// Options are the flags shared by every command.
type Options struct {
	ConfigPath string
	Debug      bool
	LogFile    string
	// Executor overrides executor.kind when set.
	Executor string
}

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sc.sigCh:
			sc.mu.Lock()
			sc.sigVal = sig
			sc.mu.Unlock()
			sc.Cancel()
		case <-sc.Context.Done():
			// Context cancelled elsewhere
		}
		sc.stop.Do(func() {
			signal.Stop(sc.sigCh)
		})
	}()

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// loadConfig reads the configuration and applies flag overrides.
func loadConfig(opts Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return cfg, err
	}
	if opts.Executor != "" {
		cfg.Executor.Kind = opts.Executor
	}
	if opts.LogFile != "" {
		cfg.Log.File = opts.LogFile
	}
	if opts.Debug {
		cfg.Log.Level = "debug"
	}
	return cfg, cfg.Validate()
}

// createLogger configures the application logger: text on stderr, plus JSON
// lines appended to the log file when one is configured. Commands that own
// the terminal pass a floor so info records do not interleave with their UI.
func createLogger(cfg config.LogConfig, floor slog.Level) (*slog.Logger, io.Closer, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	stderrLevel := max(level, floor)
	if cfg.File == "" {
		return slog.New(logging.NewTextHandler(os.Stderr, stderrLevel)), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := logging.NewFanout(
		logging.NewTextHandler(os.Stderr, stderrLevel),
		logging.NewJSONHandler(f, level),
	)
	return logger, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// setup loads configuration, builds the logger and assembles the engine.
func setup(opts Options, floor slog.Level) (*Runtime, func(), error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	logger, logCloser, err := createLogger(cfg.Log, floor)
	if err != nil {
		return nil, nil, err
	}
	rt, err := createEngine(cfg, logger)
	if err != nil {
		logCloser.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if err := rt.Close(); err != nil {
			logger.Warn("Engine close failed", "err", err)
		}
		logCloser.Close()
	}
	return rt, cleanup, nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// handleExecutionError turns interruptions into a clean exit.
func handleExecutionError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
