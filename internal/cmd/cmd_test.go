package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/audiowatch/internal/ledger"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// setupCLI isolates viper and the config and data directories. It returns
// the ledger path the commands will use.
func setupCLI(t *testing.T) string {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	dataHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", dataHome)
	return filepath.Join(dataHome, "audiowatch", "monitored_artists.json")
}

func TestRootCommand(t *testing.T) {
	require.NotNil(t, rootCmd)
	assert.Equal(t, "audiowatch", rootCmd.Use)

	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "track", "list", "config"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestTrack(t *testing.T) {
	path := setupCLI(t)

	out, err := executeCommand(rootCmd, "track", "alice")
	require.NoError(t, err)
	assert.Equal(t, "Now monitoring alice\n", out)

	out, err = executeCommand(rootCmd, "track", "alice")
	require.NoError(t, err)
	assert.Equal(t, "Already monitoring alice\n", out)

	out, err = executeCommand(rootCmd, "track", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Now monitoring Alice\n", out, "names are case-sensitive")

	doc, err := ledger.NewFileStore(afero.NewOsFs(), path).Load()
	require.NoError(t, err)
	assert.Equal(t, ledger.Document{"alice": {}, "Alice": {}}, doc)
}

func TestTrack_RejectsBlankName(t *testing.T) {
	setupCLI(t)

	_, err := executeCommand(rootCmd, "track", "   ")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	path := setupCLI(t)

	l, err := ledger.Open(ledger.NewFileStore(afero.NewOsFs(), path))
	require.NoError(t, err)
	require.NoError(t, l.AddProducer("bob"))
	require.NoError(t, l.AddProducer("alice"))
	require.NoError(t, l.Record("alice", "101"))
	require.NoError(t, l.Record("alice", "102"))

	t.Run("json", func(t *testing.T) {
		out, err := executeCommand(rootCmd, "list", "-o", "json")
		require.NoError(t, err)

		var got []ledger.Summary
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, []ledger.Summary{{Producer: "alice", Count: 2}, {Producer: "bob", Count: 0}}, got)
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := executeCommand(rootCmd, "list", "-o", "yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "- producer: alice\n  notified: 2\n")
		assert.Contains(t, out, "- producer: bob\n  notified: 0\n")
	})

	t.Run("table", func(t *testing.T) {
		out, err := executeCommand(rootCmd, "list", "-o", "table")
		require.NoError(t, err)
		assert.Contains(t, out, "PRODUCER")
		assert.Contains(t, out, "alice")
		assert.Contains(t, out, "2 producers, 2 items notified")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := executeCommand(rootCmd, "list", "-o", "csv")
		assert.Error(t, err)
	})
}

func TestList_Empty(t *testing.T) {
	setupCLI(t)

	out, err := executeCommand(rootCmd, "list", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)

	out, err = executeCommand(rootCmd, "list", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "No producers tracked")
}

func TestRenderTable_Unstyled(t *testing.T) {
	out := renderTable([]ledger.Summary{{Producer: "alice", Count: 3}}, false)
	assert.Contains(t, out, "NOTIFIED")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "1 producers, 3 items notified")
	assert.NotContains(t, out, "\x1b[", "no escape codes without a terminal")
}

func TestConfigShow_HidesCredentials(t *testing.T) {
	setupCLI(t)
	t.Setenv("AUDIOWATCH_DELIVERY_TOKEN", "super-secret-token")
	t.Setenv("AUDIOWATCH_MONITOR_WORKERS", "7")

	out, err := executeCommand(rootCmd, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "workers: 7")
	assert.Contains(t, out, "poll_interval: 2s")
	assert.NotContains(t, out, "super-secret-token")
}

func TestConfigPath(t *testing.T) {
	setupCLI(t)

	out, err := executeCommand(rootCmd, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join("audiowatch", "config.yaml"))
}

func TestRun_RequiresCredentials(t *testing.T) {
	setupCLI(t)

	_, err := executeCommand(rootCmd, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delivery.token")
}
