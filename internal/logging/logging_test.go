package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petcontract/config"
)

func TestNew_JSONWhenNotATerminal(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LogConfig{Level: "info"}, &buf)
	require.NoError(t, err)

	logger.Info("scenario finished", "scenario", "pets: lifecycle", "passed", true)
	logger.Debug("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "scenario finished", line["msg"])
	assert.Equal(t, "pets: lifecycle", line["scenario"])
	assert.Equal(t, true, line["passed"])
}

func TestNew_Pretty(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LogConfig{Level: "debug", Format: "pretty"}, &buf)
	require.NoError(t, err)

	logger.Debug("step finished", "step", "create pet")

	out := buf.String()
	assert.Contains(t, out, "step finished")
	assert.Contains(t, out, "step=")
	assert.NotContains(t, out, "\033[", "no colors when not a terminal")
}

func TestNew_Errors(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown log level")

	_, err = New(config.LogConfig{Format: "xml"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown log format")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}
