package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"0", slog.LevelError},
		{"1", slog.LevelWarn},
		{"2", slog.LevelInfo},
		{"3", slog.LevelDebug},
		{"", slog.LevelWarn},        // Default
		{"invalid", slog.LevelWarn}, // Default
		{"99", slog.LevelWarn},      // Default
		{"-1", slog.LevelWarn},      // Default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseLogLevel(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel("2")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestSetLogLevel(t *testing.T) {
	original := Level()
	defer SetLogLevel(original)

	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelError, slog.LevelInfo, slog.LevelWarn} {
		SetLogLevel(level)
		assert.Equal(t, level, Level())
	}
}

func TestJSONOutput(t *testing.T) {
	original := Level()
	defer func() {
		SetLogLevel(original)
		SetOutput(os.Stderr)
		require.NoError(t, SetFormat("text"))
	}()

	var buf bytes.Buffer
	SetOutput(&buf)
	require.NoError(t, SetFormat("json"))
	SetLogLevel(slog.LevelInfo)

	Logger().Debug("hidden")
	Logger().Info("tool called", "tool", "realizar_operacion")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "tool called", entry["msg"])
	assert.Equal(t, "realizar_operacion", entry["tool"])
	assert.Equal(t, "mathtutor", entry["prefix"])

	assert.Error(t, SetFormat("xml"))
}

func TestLogger(t *testing.T) {
	require.NotNil(t, Logger())
	assert.Same(t, Logger(), Logger())
}
