package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/phrazzld/inkwell-api/internal/config"
	"github.com/phrazzld/inkwell-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWithWriter(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	var buf bytes.Buffer
	l, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "warn"}, &buf)
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown", "job_id", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "abc", entry["job_id"])
	assert.Equal(t, "inkwell-api", entry["service"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	_, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "loud"}, io.Discard)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"fatal": slog.LevelError,
	}
	for name, want := range tests {
		got, err := logger.ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestContextHelpers(t *testing.T) {
	t.Parallel()

	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))
	scoped := slog.New(slog.NewTextHandler(io.Discard, nil))

	assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))

	ctx := logger.WithLogger(context.Background(), scoped)
	assert.Same(t, scoped, logger.FromContextOrDefault(ctx, fallback))
	assert.Same(t, scoped, logger.FromContext(ctx))
	assert.NotNil(t, logger.FromContext(context.Background()))
}
