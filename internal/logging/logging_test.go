package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: " error ", want: slog.LevelError},
		{in: "loud", want: slog.LevelInfo, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestZapLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, zapcore.ErrorLevel, zapLevel(slog.LevelError))
	assert.Equal(t, zapcore.WarnLevel, zapLevel(slog.LevelWarn))
	assert.Equal(t, zapcore.InfoLevel, zapLevel(slog.LevelInfo))
	assert.Equal(t, zapcore.Level(-4), zapLevel(slog.LevelDebug))
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(data), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestNew_WritesJSONWithTraceIDs(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "log.json")
	logger, sync, err := New(slog.LevelInfo, WithOutputPaths(path))
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")

	logger.DebugContext(ctx, "Hidden")
	logger.InfoContext(ctx, "Page fetched", "record_type", "Note", "records", 3)
	span.End()
	sync()

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, "Page fetched", lines[0]["msg"])
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "Note", lines[0]["record_type"])
	assert.Equal(t, span.SpanContext().TraceID().String(), lines[0]["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), lines[0]["span_id"])
}

func TestNew_DebugLevel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "log.json")
	logger, sync, err := New(slog.LevelDebug, WithOutputPaths(path))
	require.NoError(t, err)

	logger.Debug("Worker started", "worker", "w1")
	sync()

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, "debug", lines[0]["level"])
}

func TestContextLogger(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Default(), FromContext(context.Background()))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := NewContext(context.Background(), logger)
	FromContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), "hello")
}
