package cmd

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/audiowatch/internal/logging"
)

func writeDaemonLog(t *testing.T, dir string) string {
	t.Helper()

	logger, err := logging.NewLogger(dir, logging.LevelDebug, logging.DefaultRotationConfig())
	require.NoError(t, err)

	worker := logger.WithGeneration(3).WithWorker("steady", 0)
	worker.Debug("cycle started")
	worker.WithProducer("alice").Info("item notified", "item", "101")
	worker.WithProducer("bob").Warn("item deferred", "item", "201", "reason", "channel_not_found")
	logger.Error("supervisor giving up", "error", "too many open files")
	require.NoError(t, logger.Close())

	return filepath.Join(dir, logging.LogFileName)
}

func TestDisplayLogs_Filters(t *testing.T) {
	path := writeDaemonLog(t, t.TempDir())

	tests := []struct {
		name   string
		filter logFilter
		tail   int
		want   []string
	}{
		{
			name:   "everything",
			filter: logFilter{minLevel: -1},
			want:   []string{"cycle started", "item notified", "item deferred", "supervisor giving up"},
		},
		{
			name:   "tail",
			filter: logFilter{minLevel: -1},
			tail:   2,
			want:   []string{"item deferred", "supervisor giving up"},
		},
		{
			name:   "minimum level",
			filter: logFilter{minLevel: levelPriority(logging.LevelWarn)},
			want:   []string{"item deferred", "supervisor giving up"},
		},
		{
			name:   "producer",
			filter: logFilter{minLevel: -1, producer: "alice"},
			want:   []string{"item notified"},
		},
		{
			name:   "grep searches fields",
			filter: logFilter{minLevel: -1, grep: regexp.MustCompile("channel_not_found")},
			want:   []string{"item deferred"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, displayLogs(&buf, path, tt.tail, tt.filter, false))

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			require.Len(t, lines, len(tt.want))
			for i, want := range tt.want {
				assert.Contains(t, lines[i], want)
			}
		})
	}
}

func TestDisplayLogs_NoMatch(t *testing.T) {
	path := writeDaemonLog(t, t.TempDir())

	var buf bytes.Buffer
	require.NoError(t, displayLogs(&buf, path, 0, logFilter{minLevel: -1, producer: "carol"}, false))
	assert.Equal(t, "No matching log entries found.\n", buf.String())
}

func TestFormatLogEntry(t *testing.T) {
	slot := 4
	e := &logEntry{
		Time:       time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
		Level:      "warn",
		Msg:        "item deferred",
		Producer:   "bob",
		Generation: 2,
		WorkerKind: "ondemand",
		WorkerSlot: &slot,
		Extra:      map[string]any{"reason": "delivery_failed", "item": "9"},
	}

	got := formatLogEntry(e, false)
	assert.Equal(t, "[15:04:05.000] [WARN] item deferred gen=2 worker=ondemand/4 producer=bob item=9 reason=delivery_failed", got)
}

func TestRenderLogLine_NonJSON(t *testing.T) {
	line, ok := renderLogLine("panic: boom\n", logFilter{minLevel: -1}, false)
	assert.True(t, ok)
	assert.Equal(t, "panic: boom", line)

	_, ok = renderLogLine("   ", logFilter{minLevel: -1}, false)
	assert.False(t, ok)
}

func TestLogsCommand(t *testing.T) {
	setupCLI(t)
	dir := t.TempDir()
	writeDaemonLog(t, dir)
	t.Setenv("AUDIOWATCH_LOGGING_DIR", dir)

	out, err := executeCommand(rootCmd, "logs", "-n", "0", "--producer", "alice", "--level", "", "--grep", "", "--since", "")
	require.NoError(t, err)
	assert.Contains(t, out, "item notified")
	assert.Contains(t, out, "producer=alice")
	assert.NotContains(t, out, "bob")
}

func TestLogsCommand_NoDirectory(t *testing.T) {
	setupCLI(t)

	out, err := executeCommand(rootCmd, "logs", "--producer", "")
	require.NoError(t, err)
	assert.Contains(t, out, "logging.dir is not set")
}
