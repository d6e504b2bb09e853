package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/codeflow"
	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/aretw0/codeflow/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sumSource = `function sum(a, b) {
  return a + b;
}
let total = sum(2, 3);
console.log(total);`

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestDebug(t *testing.T) {
	h := NewHandler(codeflow.New())

	t.Run("success with code alias", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/debug", map[string]any{"code": sumSource, "language": "javascript"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		res := decodeBody[domain.TraceResult](t, w)
		assert.Equal(t, domain.StatusSuccess, res.Status)
		assert.Equal(t, "5\n", res.Output)
		assert.NotEmpty(t, res.Events)
	})

	t.Run("empty code", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/debug", map[string]any{"sourceText": "  "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Code cannot be empty", decodeBody[ErrorResponse](t, w).Error)
	})

	t.Run("invalid json", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/debug", "{not json")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/debug", map[string]any{"code": sumSource, "breakpoints": []int{0}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		w = do(t, h, http.MethodPost, "/debug", map[string]any{"code": sumSource, "language": "python"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("instrumentation failure", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/debug", map[string]any{"code": "function f() {\n  let a = 1;\n"})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		res := decodeBody[ErrorResponse](t, w)
		assert.Equal(t, domain.StatusError, res.Status)
		assert.Equal(t, 1, res.Line)
		assert.NotEmpty(t, res.Suggestion)
	})

	t.Run("execution failure", func(t *testing.T) {
		w := do(t, h, http.MethodPost, "/debug", map[string]any{"code": "let o = null;\nconsole.log(o.x);"})
		require.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())
		res := decodeBody[domain.TraceResult](t, w)
		assert.Equal(t, domain.StatusError, res.Status)
		assert.NotEmpty(t, res.Error)
		assert.Empty(t, res.Events)
	})
}

func TestDebug_TooLarge(t *testing.T) {
	h := NewHandler(codeflow.New(codeflow.WithMaxSourceBytes(10)))
	w := do(t, h, http.MethodPost, "/debug", map[string]any{"code": sumSource})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRecordings(t *testing.T) {
	h := NewHandler(codeflow.New())

	w := do(t, h, http.MethodPost, "/recordings", map[string]any{"sourceText": sumSource, "breakpoints": []int{2}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rec := decodeBody[domain.Recording](t, w)
	require.NotEmpty(t, rec.ID)
	assert.Equal(t, "/recordings/"+rec.ID, w.Header().Get("Location"))

	w = do(t, h, http.MethodGet, "/recordings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{rec.ID}, decodeBody[map[string][]string](t, w)["recordings"])

	w = do(t, h, http.MethodGet, "/recordings/"+rec.ID+"/step", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decodeBody[session.View](t, w)
	assert.Equal(t, -1, view.Cursor)
	assert.Nil(t, view.Event)

	w = do(t, h, http.MethodPost, "/recordings/"+rec.ID+"/step/continue", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view = decodeBody[session.View](t, w)
	assert.True(t, view.Moved)
	assert.Equal(t, 2, view.Line)

	w = do(t, h, http.MethodGet, "/recordings/"+rec.ID+"/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `fn_main -- "1" --> fn_sum`)
	assert.Contains(t, w.Body.String(), "class fn_sum current;")

	w = do(t, h, http.MethodPost, "/recordings/"+rec.ID+"/step/sideways", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/recordings/"+rec.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, view.Cursor, decodeBody[domain.Recording](t, w).Cursor)

	w = do(t, h, http.MethodDelete, "/recordings/"+rec.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	for _, path := range []string{"/recordings/" + rec.ID, "/recordings/" + rec.ID + "/step"} {
		w = do(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
	w = do(t, h, http.MethodPost, "/recordings/"+rec.ID+"/step/forward", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTemplates(t *testing.T) {
	h := NewHandler(codeflow.New())

	w := do(t, h, http.MethodGet, "/templates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"bubble"`)

	w = do(t, h, http.MethodPost, "/templates/bubble", map[string]any{"input": "3,1,2"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, decodeBody[map[string]string](t, w)["source"], "[3, 1, 2]")

	w = do(t, h, http.MethodPost, "/templates/bubble", map[string]any{"input": "3,1,2", "run": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeBody[domain.TraceResult](t, w)
	assert.Equal(t, domain.BubbleSort, res.Algorithm)
	assert.Equal(t, "[1,2,3]\n", res.Output)

	w = do(t, h, http.MethodPost, "/templates/bogo", map[string]any{"input": "1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, h, http.MethodPost, "/templates/bubble", map[string]any{"input": "1,,2"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, h, http.MethodPost, "/templates/bubble", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthInfoMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "codeflow_test_total", Help: "test"}))
	h := NewHandler(codeflow.New(), WithMetrics(reg))

	w := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decodeBody[map[string]any](t, w)
	assert.Equal(t, strings.TrimSpace(codeflow.Version), info["version"])

	w = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "codeflow_test_total")

	w = do(t, h, http.MethodOptions, "/debug", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	h := NewHandler(codeflow.New(), WithRateLimiter(NewRateLimiter(0.001, 2)))

	for i := 0; i < 2; i++ {
		w := do(t, h, http.MethodGet, "/templates", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
	w := do(t, h, http.MethodGet, "/templates", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Health checks bypass the limiter.
	w = do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Now()
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	now = now.Add(idleClientTTL + time.Second)
	assert.True(t, rl.Allow("b"))
	rl.mu.Lock()
	_, ok := rl.clients["a"]
	rl.mu.Unlock()
	assert.False(t, ok)
}

func TestSubscribeEvents(t *testing.T) {
	eng := codeflow.New()
	rec, err := eng.Record(context.Background(), domain.TraceRequest{SourceText: sumSource})
	require.NoError(t, err)

	srv := httptest.NewServer(NewHandler(eng))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/recordings/"+rec.ID+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			if line == "" {
				return event, data
			}
			if v, ok := strings.CutPrefix(line, "event: "); ok {
				event = v
			}
			if v, ok := strings.CutPrefix(line, "data: "); ok {
				data = v
			}
		}
	}

	event, data := readEvent()
	assert.Equal(t, "ping", event)
	assert.Equal(t, "connected", data)

	stepResp, err := http.Post(srv.URL+"/recordings/"+rec.ID+"/step/forward", "application/json", nil)
	require.NoError(t, err)
	stepResp.Body.Close()
	require.Equal(t, http.StatusOK, stepResp.StatusCode)

	event, data = readEvent()
	assert.Equal(t, "step", event)
	var view session.View
	require.NoError(t, json.Unmarshal([]byte(data), &view))
	assert.Equal(t, rec.ID, view.RecordingID)
	assert.Equal(t, 0, view.Cursor)
}

func TestSubscribeEvents_UnknownRecording(t *testing.T) {
	h := NewHandler(codeflow.New())
	w := do(t, h, http.MethodGet, "/recordings/missing/events", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamManager(t *testing.T) {
	sm := NewStreamManager()
	ch, cancel := sm.Subscribe("r1")
	assert.Equal(t, 1, sm.Subscribers("r1"))

	sm.Broadcast("r1", "hello")
	sm.Broadcast("r2", "ignored")
	assert.Equal(t, "hello", <-ch)

	for i := 0; i < 20; i++ {
		sm.Broadcast("r1", "flood")
	}
	assert.Len(t, ch, cap(ch))

	cancel()
	cancel()
	assert.Equal(t, 0, sm.Subscribers("r1"))
}
