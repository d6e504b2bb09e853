// Package process runs instrumented programs in an external node process.
//
// The child receives a bootstrap script on stdin. Hook calls come back as
// protocol records on stdout (see Marker); all other stdout lines are program
// output. The child never blocks on the host: a hook error stops decoding and
// kills the process.
package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/aretw0/codeflow/pkg/ports"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTimeout bounds a single run.
	DefaultTimeout = 15 * time.Second

	maxRecordBytes = 16 << 20
	maxStderrBytes = 64 << 10
)

// Executor implements ports.Executor on top of node.
type Executor struct {
	cfg Config
}

// New creates an executor from cfg. Empty fields take DefaultConfig values.
func New(cfg Config) *Executor {
	def := DefaultConfig()
	if cfg.Command == "" {
		cfg.Command = def.Command
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Executor{cfg: cfg}
}

// Available reports whether the configured runtime can be found.
func (e *Executor) Available() error {
	if _, err := exec.LookPath(e.cfg.Command); err != nil {
		return fmt.Errorf("runtime %q not available: %w", e.cfg.Command, err)
	}
	return nil
}

// Execute runs program in a fresh child process.
func (e *Executor) Execute(ctx context.Context, program domain.Program, hooks ports.Hooks) (*domain.Execution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	script, err := bootstrap(program.Prelude, program.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to encode program: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	args := append(append([]string{}, e.cfg.Args...), "-")
	cmd := exec.CommandContext(runCtx, e.cfg.Command, args...)
	cmd.Stdin = strings.NewReader(script)
	cmd.Env = e.cfg.env()
	cmd.Dir = e.cfg.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", e.cfg.Command, err)
	}

	dec := newDecoder(hooks)
	var errOut bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 64*1024), maxRecordBytes)
		for sc.Scan() {
			if err := dec.feed(sc.Text()); err != nil {
				cancel()
			}
		}
		if err := sc.Err(); err != nil {
			cancel()
			_, _ = io.Copy(io.Discard, stdout)
			return err
		}
		return nil
	})
	g.Go(func() error {
		_, err := io.Copy(&errOut, io.LimitReader(stderr, maxStderrBytes))
		_, _ = io.Copy(io.Discard, stderr)
		return err
	})
	readErr := g.Wait()
	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	switch {
	case dec.err != nil:
		return nil, &domain.ExecutionError{Message: dec.err.Error(), Cause: dec.err}
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return nil, &domain.ExecutionError{
			Message: fmt.Sprintf("execution timed out after %s", e.cfg.Timeout),
			Cause:   domain.ErrExecutionTimeout,
		}
	case dec.failure != "":
		return nil, &domain.ExecutionError{Message: dec.failure}
	case waitErr != nil:
		msg := strings.TrimSpace(errOut.String())
		if msg == "" {
			msg = waitErr.Error()
		}
		return nil, &domain.ExecutionError{Message: msg, Cause: waitErr}
	case readErr != nil:
		return nil, &domain.ExecutionError{Message: fmt.Sprintf("failed to read program output: %v", readErr), Cause: readErr}
	}
	return &domain.Execution{Output: dec.Output(), Elapsed: elapsed}, nil
}
