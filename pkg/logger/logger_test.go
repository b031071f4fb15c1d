package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSONHasNoColorCodes(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, false, true)

	log.Info("relay starting")
	require.NoError(t, log.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "relay starting", entry["msg"])
	assert.Contains(t, entry, "time")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestNewLoggerConsoleIsColored(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, false, false)

	log.Info("relay starting")
	require.NoError(t, log.Sync())

	assert.Contains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "relay starting")
}

func TestNewLoggerDebugLevel(t *testing.T) {
	var quiet, verbose bytes.Buffer

	q := newLogger(&quiet, false, true)
	q.Debug("hidden")
	require.NoError(t, q.Sync())
	assert.Empty(t, quiet.String())

	v := newLogger(&verbose, true, true)
	v.Debug("shown")
	require.NoError(t, v.Sync())
	assert.Contains(t, verbose.String(), "shown")
}
