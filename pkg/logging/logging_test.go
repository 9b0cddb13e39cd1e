package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(Config{Level: slog.LevelInfo, Format: FormatText, Output: &buf})

		log.Info("server started", "port", 4000)

		assert.Contains(t, buf.String(), "server started")
		assert.Contains(t, buf.String(), "port=4000")
	})

	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Output: &buf})

		log.Warn("invalid token", "error", "signature mismatch")

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "invalid token", entry["msg"])
		assert.Equal(t, "WARN", entry["level"])
	})

	t.Run("level filters output", func(t *testing.T) {
		var buf bytes.Buffer
		log := New(Config{Level: slog.LevelWarn, Format: FormatText, Output: &buf})

		log.Info("hidden")
		log.Warn("visible")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "visible")
	})
}

func TestNop(t *testing.T) {
	log := Nop()
	require.NotNil(t, log)
	log.Error("discarded")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, ParseLevel(tc.in), "level %q", tc.in)
	}
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("json"))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatText, ParseFormat("anything"))
}
