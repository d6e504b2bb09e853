package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanout_WritesToAllHandlers(t *testing.T) {
	var text, js bytes.Buffer
	logger := NewFanout(
		NewTextHandler(&text, slog.LevelInfo),
		NewJSONHandler(&js, slog.LevelDebug),
	)

	logger.Debug("only json")
	logger.Warn("both", "error", "boom")

	assert.NotContains(t, text.String(), "only json")
	assert.Contains(t, text.String(), "err=boom")

	lines := bytes.Split(bytes.TrimSpace(js.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &rec))
	assert.Equal(t, "both", rec["msg"])
	assert.Equal(t, "boom", rec["err"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
