package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/codeflow"
	"github.com/aretw0/codeflow/internal/logging"
	"github.com/aretw0/codeflow/internal/presentation/graph"
	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/aretw0/codeflow/pkg/session"
	"github.com/aretw0/codeflow/pkg/templates"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes bounds request bodies; source size limits are enforced by the engine.
const maxBodyBytes = 1 << 20

// Engine defines the interface for the codeflow trace core.
type Engine interface {
	Trace(ctx context.Context, req domain.TraceRequest) (*domain.TraceResult, error)
	Record(ctx context.Context, req domain.TraceRequest) (*domain.Recording, error)
	Recording(ctx context.Context, id string) (*domain.Recording, error)
	Recordings(ctx context.Context) ([]string, error)
	DeleteRecording(ctx context.Context, id string) error
	Step(ctx context.Context, id string, action domain.StepAction) (*session.View, error)
	View(ctx context.Context, id string) (*session.View, error)
	RenderTemplate(name, input string) (string, error)
}

var _ Engine = (*codeflow.Engine)(nil)

// Server serves the codeflow HTTP API.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	logger   *slog.Logger
	limiter  *RateLimiter
	gatherer prometheus.Gatherer
	validate *validator.Validate
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRateLimiter limits requests per client.
func WithRateLimiter(l *RateLimiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithMetrics exposes g on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:   engine,
		Streams:  NewStreamManager(),
		logger:   logging.NewNop(),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		r.Post("/debug", s.Debug)
		r.Get("/templates", s.ListTemplates)
		r.Post("/templates/{name}", s.RunTemplate)

		r.Route("/recordings", func(r chi.Router) {
			r.Post("/", s.CreateRecording)
			r.Get("/", s.ListRecordings)
			r.Get("/{id}", s.GetRecording)
			r.Delete("/{id}", s.DeleteRecording)
			r.Get("/{id}/step", s.GetStep)
			r.Post("/{id}/step/{action}", s.Step)
			r.Get("/{id}/events", s.SubscribeEvents)
			r.Get("/{id}/graph", s.GetGraph)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TraceRequest is the body of POST /debug and POST /recordings.
// Code and Language are the field names of the original debugger frontend.
type TraceRequest struct {
	SourceText       string `json:"sourceText"`
	Code             string `json:"code"`
	Language         string `json:"language" validate:"omitempty,oneof=JavaScript javascript js"`
	TrackedArrayName string `json:"trackedArrayName" validate:"omitempty,max=64"`
	Breakpoints      []int  `json:"breakpoints" validate:"omitempty,max=1000,dive,gte=1"`
}

func (t TraceRequest) domain() domain.TraceRequest {
	src := t.SourceText
	if src == "" {
		src = t.Code
	}
	return domain.TraceRequest{
		SourceText:       src,
		TrackedArrayName: t.TrackedArrayName,
		Breakpoints:      t.Breakpoints,
	}
}

// TemplateRequest is the body of POST /templates/{name}.
type TemplateRequest struct {
	Input string `json:"input" validate:"required"`
	Run   bool   `json:"run"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status     domain.Status `json:"status"`
	Error      string        `json:"error"`
	Line       int           `json:"line,omitempty"`
	Column     int           `json:"column,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`
}

// Debug handles POST /debug: one trace build, nothing stored.
func (s *Server) Debug(w http.ResponseWriter, r *http.Request) {
	var body TraceRequest
	if !s.decode(w, r, &body) {
		return
	}
	req := body.domain()
	if strings.TrimSpace(req.SourceText) == "" {
		s.fail(w, http.StatusBadRequest, "Code cannot be empty")
		return
	}

	result, err := s.Engine.Trace(r.Context(), req)
	if err != nil {
		s.traceError(w, err)
		return
	}
	s.writeResult(w, result)
}

// CreateRecording handles POST /recordings: trace and store.
func (s *Server) CreateRecording(w http.ResponseWriter, r *http.Request) {
	var body TraceRequest
	if !s.decode(w, r, &body) {
		return
	}
	req := body.domain()
	if strings.TrimSpace(req.SourceText) == "" {
		s.fail(w, http.StatusBadRequest, "Code cannot be empty")
		return
	}

	rec, err := s.Engine.Record(r.Context(), req)
	if err != nil {
		s.traceError(w, err)
		return
	}
	status := http.StatusCreated
	if rec.Result.Status == domain.StatusError {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Location", "/recordings/"+rec.ID)
	s.writeJSON(w, status, rec)
}

// ListRecordings handles GET /recordings.
func (s *Server) ListRecordings(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.Recordings(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"recordings": ids})
}

// GetRecording handles GET /recordings/{id}.
func (s *Server) GetRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Engine.Recording(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// DeleteRecording handles DELETE /recordings/{id}.
func (s *Server) DeleteRecording(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.DeleteRecording(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetStep handles GET /recordings/{id}/step: the current replay position.
func (s *Server) GetStep(w http.ResponseWriter, r *http.Request) {
	view, err := s.Engine.View(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

// Step handles POST /recordings/{id}/step/{action}.
func (s *Server) Step(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	action := domain.StepAction(chi.URLParam(r, "action"))
	view, err := s.Engine.Step(r.Context(), id, action)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if view.Moved {
		if data, err := json.Marshal(view); err == nil {
			s.Streams.Broadcast(id, string(data))
		}
	}
	s.writeJSON(w, http.StatusOK, view)
}

// GetGraph handles GET /recordings/{id}/graph: the Mermaid call graph of the
// recording with the active call stack highlighted.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.Engine.Recording(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	view, err := s.Engine.View(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(rec.Result.Events, &graph.GraphOverlay{CallStack: view.CallStack})))
}

// ListTemplates handles GET /templates.
func (s *Server) ListTemplates(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, templates.Default().List())
}

// RunTemplate handles POST /templates/{name}: render, and trace when run is set.
func (s *Server) RunTemplate(w http.ResponseWriter, r *http.Request) {
	var body TemplateRequest
	if !s.decode(w, r, &body) {
		return
	}
	src, err := s.Engine.RenderTemplate(chi.URLParam(r, "name"), body.Input)
	switch {
	case errors.Is(err, domain.ErrUnknownTemplate):
		s.fail(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if !body.Run {
		s.writeJSON(w, http.StatusOK, map[string]string{"source": src})
		return
	}
	result, err := s.Engine.Trace(r.Context(), domain.TraceRequest{SourceText: src})
	if err != nil {
		s.traceError(w, err)
		return
	}
	s.writeResult(w, result)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"app":       "codeflow-http",
		"version":   strings.TrimSpace(codeflow.Version),
		"templates": templates.Names(),
	})
}

// SubscribeEvents handles GET /recordings/{id}/events (SSE): every step taken
// on the recording by any client is pushed as a replay view.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.fail(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.Engine.View(r.Context(), id); err != nil {
		s.storeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()
	s.logger.Info("SSE: Subscribing to replay steps", "recording_id", id)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "recording_id", id)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: step\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// -- Helpers --

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid JSON format")
		s.logger.Warn("Invalid request body", "path", r.URL.Path, "err", err)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("Invalid request: %v", err))
		return false
	}
	return true
}

// writeResult maps a status "error" result to 500, as the original servlet did.
func (s *Server) writeResult(w http.ResponseWriter, result *domain.TraceResult) {
	status := http.StatusOK
	if result.Status == domain.StatusError {
		status = http.StatusInternalServerError
	}
	s.writeJSON(w, status, result)
}

func (s *Server) traceError(w http.ResponseWriter, err error) {
	var ie *domain.InstrumentationError
	switch {
	case errors.As(err, &ie):
		s.writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Status:     domain.StatusError,
			Error:      ie.Message,
			Line:       ie.Line,
			Column:     ie.Column,
			Suggestion: ie.Suggestion,
		})
	case errors.Is(err, domain.ErrEmptySource):
		s.fail(w, http.StatusBadRequest, "Code cannot be empty")
	case errors.Is(err, domain.ErrSourceTooLarge):
		s.fail(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.fail(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("Trace failed", "err", err)
		s.fail(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrRecordingNotFound):
		s.fail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnknownAction):
		s.fail(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("Recording operation failed", "err", err)
		s.fail(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, ErrorResponse{Status: domain.StatusError, Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}
