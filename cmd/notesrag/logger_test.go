package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "prod", "info", "").Info("hello", "note_id", 7)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.EqualValues(t, 7, line["note_id"])

	buf.Reset()
	newLogger(&buf, "dev", "warn", "text").Info("dropped")
	assert.Empty(t, buf.String())

	newLogger(&buf, "dev", "debug", "text").Debug("kept")
	assert.Contains(t, buf.String(), "kept")
	assert.NotEqual(t, byte('{'), buf.Bytes()[0])
}
