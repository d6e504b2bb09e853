package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/codeflow"
	"github.com/aretw0/codeflow/internal/logging"
	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/aretw0/codeflow/pkg/templates"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

// TraceResponse is the structured result of trace_code and run_template.
type TraceResponse struct {
	Status        domain.Status         `json:"status" jsonschema_description:"success or error"`
	Output        string                `json:"output" jsonschema_description:"Console output of the program"`
	Error         string                `json:"error,omitempty" jsonschema_description:"Runtime failure message"`
	Algorithm     domain.AlgorithmLabel `json:"algorithm" jsonschema_description:"Detected algorithm family"`
	TrackedArray  string                `json:"trackedArray" jsonschema_description:"Array whose states are recorded"`
	ExecutionTime int64                 `json:"executionTime" jsonschema_description:"Milliseconds spent executing"`
	Steps         int                   `json:"steps" jsonschema_description:"Number of trace events"`
	Stats         *domain.Stats         `json:"stats,omitempty" jsonschema_description:"Derived analytics"`
	Events        []domain.TraceEvent   `json:"events,omitempty" jsonschema_description:"Trace events, when requested"`
}

// TraceCodeArgs are the arguments of trace_code.
type TraceCodeArgs struct {
	Code          string `json:"code"`
	TrackedArray  string `json:"tracked_array,omitempty"`
	Breakpoints   []int  `json:"breakpoints,omitempty"`
	IncludeEvents bool   `json:"include_events,omitempty"`
}

// RenderTemplateArgs are the arguments of render_template.
type RenderTemplateArgs struct {
	Algorithm string `json:"algorithm"`
	Input     string `json:"input"`
	Run       bool   `json:"run,omitempty"`
}

// Engine defines the interface required by the MCP server to interact with codeflow.
type Engine interface {
	Trace(ctx context.Context, req domain.TraceRequest) (*domain.TraceResult, error)
	RenderTemplate(name, input string) (string, error)
}

// Server wraps the codeflow Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("codeflow-mcp", strings.TrimSpace(codeflow.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://localhost" + addr
	if !strings.HasPrefix(addr, ":") {
		baseURL = "http://" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: trace_code
	traceTool := mcp.NewTool("trace_code",
		mcp.WithDescription("Instrument and run a JavaScript snippet, returning its execution trace summary."),
		mcp.WithString("code", mcp.Required(), mcp.Description("JavaScript source to trace")),
		mcp.WithString("tracked_array", mcp.Description("Name of the array whose states are recorded (optional)")),
		mcp.WithArray("breakpoints", mcp.Description("1-based line numbers flagged as breakpoints"), mcp.WithNumberItems()),
		mcp.WithBoolean("include_events", mcp.Description("Include the full event list")),
		mcp.WithOutputSchema[TraceResponse](),
	)
	s.mcpServer.AddTool(traceTool, mcp.NewStructuredToolHandler(s.handleTraceCode))

	// TOOL: render_template
	renderTool := mcp.NewTool("render_template",
		mcp.WithDescription("Render a built-in sorting algorithm for an input list. With run=true the program is traced."),
		mcp.WithString("algorithm", mcp.Required(), mcp.Description("Template name"), mcp.Enum(templates.Names()...)),
		mcp.WithString("input", mcp.Required(), mcp.Description("Comma separated elements, e.g. 5,3,8,1")),
		mcp.WithBoolean("run", mcp.Description("Trace the rendered program")),
	)
	s.mcpServer.AddTool(renderTool, mcp.NewTypedToolHandler(s.handleRenderTemplate))

	// TOOL: list_templates
	s.mcpServer.AddTool(mcp.NewTool("list_templates",
		mcp.WithDescription("List the built-in algorithm templates."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, err := json.Marshal(templateSummaries())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleTraceCode(ctx context.Context, request mcp.CallToolRequest, args TraceCodeArgs) (TraceResponse, error) {
	if strings.TrimSpace(args.Code) == "" {
		return TraceResponse{}, domain.ErrEmptySource
	}
	result, err := s.engine.Trace(ctx, domain.TraceRequest{
		SourceText:       args.Code,
		TrackedArrayName: args.TrackedArray,
		Breakpoints:      args.Breakpoints,
	})
	if err != nil {
		s.logger.Warn("MCP trace_code rejected", "err", err)
		return TraceResponse{}, fmt.Errorf("trace failed: %w", err)
	}
	return newTraceResponse(result, args.IncludeEvents), nil
}

func (s *Server) handleRenderTemplate(ctx context.Context, request mcp.CallToolRequest, args RenderTemplateArgs) (*mcp.CallToolResult, error) {
	src, err := s.engine.RenderTemplate(args.Algorithm, args.Input)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !args.Run {
		return mcp.NewToolResultText(src), nil
	}
	result, err := s.engine.Trace(ctx, domain.TraceRequest{SourceText: src})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("trace failed: %v", err)), nil
	}
	resp := newTraceResponse(result, false)
	jsonBytes, err := json.Marshal(resp)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultStructured(resp, string(jsonBytes)), nil
}

func newTraceResponse(result *domain.TraceResult, events bool) TraceResponse {
	resp := TraceResponse{
		Status:        result.Status,
		Output:        result.Output,
		Error:         result.Error,
		Algorithm:     result.Algorithm,
		TrackedArray:  result.TrackedArray,
		ExecutionTime: result.ExecutionTime,
		Steps:         len(result.Events),
		Stats:         result.Stats,
	}
	if events {
		resp.Events = result.Events
	}
	return resp
}

type templateSummary struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func templateSummaries() []templateSummary {
	list := templates.Default().List()
	out := make([]templateSummary, len(list))
	for i, t := range list {
		out[i] = templateSummary{Name: t.Name, Title: t.Title, Description: t.Description}
	}
	return out
}

func (s *Server) registerResources() {
	// EXPOSE: codeflow://templates
	s.mcpServer.AddResource(mcp.NewResource("codeflow://templates", "Algorithm Templates",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(templateSummaries())
		if err != nil {
			return nil, fmt.Errorf("failed to list templates: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "codeflow://templates",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
