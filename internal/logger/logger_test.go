package logger

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWithSinkWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithSink(Config{Level: "warn"}, zapcore.AddSync(&buf))

	log.Info("dropped")
	log.Warn("kept", zap.String("table", "orders"))
	require.NoError(t, log.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "warn", entry["log.level"])
	assert.Equal(t, "orders", entry["table"])
	assert.Contains(t, entry, "@timestamp")
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithSink(Config{Level: "chatty", Format: "console"}, zapcore.AddSync(&buf))
	log.Debug("hidden")
	log.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewFileOutput(t *testing.T) {
	_, err := New(Config{Output: "file"})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "runner.log")
	log, err := New(Config{Output: "file", FilePath: path})
	require.NoError(t, err)
	log.Info("hello")
	require.NoError(t, log.Sync())
	assert.FileExists(t, path)
}
