package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	httpAdapter "github.com/aretw0/codeflow/pkg/adapters/http"
	mcpAdapter "github.com/aretw0/codeflow/pkg/adapters/mcp"
)

// shutdownTimeout bounds graceful shutdown of the servers.
const shutdownTimeout = 5 * time.Second

// ServeOptions configures the serve command.
type ServeOptions struct {
	Options
	// Addr overrides server.addr when set.
	Addr string
}

// NewServerHandler builds the HTTP handler of rt with rate limiting and metrics.
func NewServerHandler(rt *Runtime) http.Handler {
	opts := []httpAdapter.Option{
		httpAdapter.WithLogger(rt.Logger),
		httpAdapter.WithMetrics(rt.Registry),
	}
	if rl := rt.Config.Server.RateLimit; rl > 0 {
		opts = append(opts, httpAdapter.WithRateLimiter(httpAdapter.NewRateLimiter(rl, rt.Config.Server.Burst)))
	}
	return httpAdapter.NewHandler(rt.Engine, opts...)
}

// RunServe starts the HTTP server and blocks until SIGINT or SIGTERM.
func RunServe(opts ServeOptions, out io.Writer) error {
	rt, cleanup, err := setup(opts.Options, slog.LevelDebug)
	if err != nil {
		return err
	}
	defer cleanup()

	addr := rt.Config.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewServerHandler(rt),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	serverErrors := make(chan error, 1)
	go func() {
		printSystemMessage(out, "Starting codeflow server on %s", srv.Addr)
		rt.Logger.Info("HTTP server listening",
			"addr", srv.Addr,
			"executor", rt.Config.Executor.Kind,
			"store", rt.Config.Store.Kind,
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-sigCtx.Done():
		printSystemMessage(out, "Start shutdown... Signal: %v", sigCtx.Signal())
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			rt.Logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("error killing server: %w", err)
			}
		}
		printSystemMessage(out, "codeflow server stopped gracefully")
		return nil
	}
}

// MCPOptions configures the mcp command.
type MCPOptions struct {
	Options
	Transport string
	Addr      string
}

// RunMCP serves the MCP tools over stdio or SSE.
func RunMCP(opts MCPOptions) error {
	// Stdout belongs to JSON-RPC on stdio; logs stay on stderr.
	rt, cleanup, err := setup(opts.Options, slog.LevelWarn)
	if err != nil {
		return err
	}
	defer cleanup()

	server := mcpAdapter.NewServer(rt.Engine, mcpAdapter.WithLogger(rt.Logger))
	switch opts.Transport {
	case "", "stdio":
		return server.ServeStdio()
	case "sse":
		sigCtx := NewSignalContext(context.Background())
		defer sigCtx.Cancel()
		return server.ServeSSE(sigCtx, opts.Addr)
	default:
		return fmt.Errorf("unknown transport %q (use stdio or sse)", opts.Transport)
	}
}
