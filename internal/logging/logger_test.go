package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, raw string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "line: %s", line)
		out = append(out, entry)
	}
	return out
}

func TestNewLogger_WritesToDirectory(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug, DefaultRotationConfig())
	require.NoError(t, err)

	logger.Info("hello", "key", "value")
	require.NoError(t, logger.Close())

	content, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)

	entries := decodeLines(t, string(content))
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0]["msg"])
	assert.Equal(t, "value", entries[0]["key"])
}

func TestNewLogger_EmptyDirUsesStderr(t *testing.T) {
	logger, err := NewLogger("", LevelInfo, DefaultRotationConfig())
	require.NoError(t, err)
	assert.Nil(t, logger.out)
	assert.NoError(t, logger.Close())
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelWarn)

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	entries := decodeLines(t, buf.String())
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "ERROR", entries[1]["level"])
}

func TestLogger_ChildAttributes(t *testing.T) {
	var buf bytes.Buffer
	root := NewWriterLogger(&buf, LevelDebug)

	child := root.WithGeneration(4).WithWorker("steady", 2).WithProducer("alice")
	child.Info("scanned", "items", 3)
	root.Info("root only")

	entries := decodeLines(t, buf.String())
	require.Len(t, entries, 2)

	assert.EqualValues(t, 4, entries[0]["generation"])
	assert.Equal(t, "steady", entries[0]["worker_kind"])
	assert.EqualValues(t, 2, entries[0]["worker_slot"])
	assert.Equal(t, "alice", entries[0]["producer"])
	assert.EqualValues(t, 3, entries[0]["items"])

	_, hasProducer := entries[1]["producer"]
	assert.False(t, hasProducer, "parent logger must not inherit child attributes")
}

func TestLogger_WithSkipsNonStringKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, LevelInfo).With(42, "ignored", "kept", true)
	logger.Info("msg")

	entries := decodeLines(t, buf.String())
	require.Len(t, entries, 1)
	assert.Equal(t, true, entries[0]["kept"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   LevelDebug,
		"WARN":    LevelWarn,
		"Error":   LevelError,
		"info":    LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
	assert.Len(t, ValidLevels(), 4)
}
