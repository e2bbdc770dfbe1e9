package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sale_inviter/internal/config"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)

	log.With("component", "scheduler").Debug("cycle skipped", "reason", "missing settings")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "cycle skipped", entry["msg"])
	assert.Equal(t, "scheduler", entry["component"])
	assert.Equal(t, "missing settings", entry["reason"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	log.Info("hidden")
	log.Warn("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "shown")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LoggingConfig{Level: "info", Format: "console"}, &buf)

	log.Info("scheduler started", "interval", "10m0s")

	out := buf.String()
	assert.Contains(t, out, "scheduler started")
	assert.Contains(t, out, "interval")
	assert.False(t, json.Valid([]byte(strings.TrimSpace(out))))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}
