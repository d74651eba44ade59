package log_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/dukex/sqlgems/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected slog.Level
	}{
		{input: "debug", expected: slog.LevelDebug},
		{input: "INFO", expected: slog.LevelInfo},
		{input: "warn", expected: slog.LevelWarn},
		{input: "error", expected: slog.LevelError},
		{input: "verbose", expected: slog.LevelInfo},
		{input: "", expected: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, log.ParseLevel(tt.input))
		})
	}
}

// Not parallel: installs the default logger.
func TestSetupWithWriter(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer

	log.SetupWithWriter(&buf, "warn", "json")
	log.WithModule("compiler").Info("dropped")
	log.WithModule("compiler").Warn("kept", "node_id", "rule")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "compiler", entry["module"])
	assert.Equal(t, "rule", entry["node_id"])

	buf.Reset()
	log.SetupWithWriter(&buf, "info", "text")
	slog.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
