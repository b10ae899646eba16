package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, level, format string) *bytes.Buffer {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	var buf bytes.Buffer
	SetupWriter(&buf, level, format)
	return &buf
}

func TestFromContextAddsRequestID(t *testing.T) {
	buf := capture(t, "info", "json")
	ctx := WithRequestID(context.Background(), "req-7")

	FromContext(ctx).Info("filtered")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-7", line["request_id"])
	assert.Equal(t, "filtered", line["msg"])
}

func TestRequestIDMissing(t *testing.T) {
	assert.Empty(t, RequestID(context.Background()))
}

func TestWithComponent(t *testing.T) {
	buf := capture(t, "info", "text")
	WithComponent("result-cache").Info("hit")
	assert.Contains(t, buf.String(), "component=result-cache")
}

func TestLevels(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"info":    slog.LevelInfo,
		"warn+2":  slog.LevelWarn + 2,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}

	buf := capture(t, "warn", "text")
	slog.Info("dropped")
	slog.Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewDoesNotTouchDefault(t *testing.T) {
	prev := slog.Default()
	var buf bytes.Buffer
	l := New(&buf, "debug", "json")
	l.Debug("probe", "component", "oracle")

	assert.Same(t, prev, slog.Default())
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "DEBUG", line["level"])
	assert.Equal(t, "oracle", line["component"])
}
