package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/audiowatch/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View daemon logs",
	Long: `View and filter the daemon's JSON log file.

The log file lives in logging.dir; when logging.dir is empty the daemon logs
to stderr and there is nothing to read.

Examples:
  # Show the last 50 entries
  audiowatch logs

  # Everything one producer did in the last hour
  audiowatch logs --producer alice --since 1h -n 0

  # Follow warnings and errors as they happen
  audiowatch logs -f --level warn

  # Search message and fields
  audiowatch logs --grep "deferred|failed"`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsTail     int
	logsFollow   bool
	logsLevel    string
	logsSince    string
	logsGrep     string
	logsProducer string
)

func init() {
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "number of entries to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "follow log output")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "only entries newer than this duration (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "only entries matching this regex")
	logsCmd.Flags().StringVar(&logsProducer, "producer", "", "only entries for this producer")
	rootCmd.AddCommand(logsCmd)
}

// logEntry is one parsed JSON log line.
type logEntry struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"`
	Msg        string         `json:"msg"`
	Producer   string         `json:"producer,omitempty"`
	Generation uint64         `json:"generation,omitempty"`
	WorkerKind string         `json:"worker_kind,omitempty"`
	WorkerSlot *int           `json:"worker_slot,omitempty"`
	Extra      map[string]any `json:"-"`
}

var knownLogFields = []string{"time", "level", "msg", "producer", "generation", "worker_kind", "worker_slot"}

// UnmarshalJSON decodes the known fields and keeps the rest in Extra.
func (e *logEntry) UnmarshalJSON(data []byte) error {
	type alias logEntry
	if err := json.Unmarshal(data, (*alias)(e)); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range knownLogFields {
		delete(all, k)
	}
	if len(all) > 0 {
		e.Extra = all
	}
	return nil
}

// logFilter selects entries for display.
type logFilter struct {
	minLevel int
	since    time.Time
	grep     *regexp.Regexp
	producer string
}

func (f logFilter) match(e *logEntry) bool {
	if f.minLevel >= 0 && levelPriority(e.Level) < f.minLevel {
		return false
	}
	if !f.since.IsZero() && e.Time.Before(f.since) {
		return false
	}
	if f.producer != "" && e.Producer != f.producer {
		return false
	}
	if f.grep != nil {
		text := e.Msg
		for _, v := range e.Extra {
			text += " " + fmt.Sprint(v)
		}
		if !f.grep.MatchString(text) {
			return false
		}
	}
	return true
}

var (
	timeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	fieldStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	levelStyle = map[string]lipgloss.Style{
		logging.LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		logging.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		logging.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		logging.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
)

// levelPriority orders levels for --level filtering; unknown levels are -1.
func levelPriority(level string) int {
	return slices.Index(logging.ValidLevels(), strings.ToUpper(level))
}

// formatLogEntry renders e on one line. Styling is applied only when styled.
func formatLogEntry(e *logEntry, styled bool) string {
	paint := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	level := strings.ToUpper(e.Level)
	parts := []string{
		paint(timeStyle, "["+e.Time.Format("15:04:05.000")+"]"),
		paint(levelStyle[level], "["+level+"]"),
		e.Msg,
	}

	if e.Generation != 0 {
		parts = append(parts, paint(fieldStyle, fmt.Sprintf("gen=%d", e.Generation)))
	}
	if e.WorkerKind != "" && e.WorkerSlot != nil {
		parts = append(parts, paint(fieldStyle, fmt.Sprintf("worker=%s/%d", e.WorkerKind, *e.WorkerSlot)))
	}
	if e.Producer != "" {
		parts = append(parts, paint(fieldStyle, "producer="+e.Producer))
	}

	keys := make([]string, 0, len(e.Extra))
	for k := range e.Extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		parts = append(parts, paint(fieldStyle, k+"=")+fmt.Sprint(e.Extra[k]))
	}

	return strings.Join(parts, " ")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if cfg.Logging.Dir == "" {
		fmt.Fprintln(out, "logging.dir is not set; the daemon logs to stderr.")
		return nil
	}
	logPath := filepath.Join(cfg.Logging.Dir, logging.LogFileName)
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Fprintf(out, "No log file at %s\n", logPath)
		return nil
	}

	filter := logFilter{minLevel: -1, producer: logsProducer}
	if logsLevel != "" {
		filter.minLevel = levelPriority(logging.ParseLevel(logsLevel))
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		filter.since = time.Now().Add(-d)
	}
	if logsGrep != "" {
		filter.grep, err = regexp.Compile(logsGrep)
		if err != nil {
			return fmt.Errorf("invalid grep pattern: %w", err)
		}
	}

	styled := isTerminal(out)
	if logsFollow {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return followLogs(ctx, out, logPath, filter, styled)
	}
	return displayLogs(out, logPath, logsTail, filter, styled)
}

// displayLogs prints the last tail matching entries of logPath.
func displayLogs(w io.Writer, logPath string, tail int, filter logFilter, styled bool) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line, ok := renderLogLine(scanner.Text(), filter, styled); ok {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading log file: %w", err)
	}

	if tail > 0 && len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}
	if len(lines) == 0 {
		fmt.Fprintln(w, "No matching log entries found.")
		return nil
	}
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	return nil
}

// followLogs prints entries appended to logPath until ctx is done. A
// rotation recreates the file, which is then reopened from the start.
func followLogs(ctx context.Context, w io.Writer, logPath string, filter logFilter, styled bool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(logPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(logPath), err)
	}

	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}
	reader := bufio.NewReader(file)

	drain := func() error {
		for {
			line, err := reader.ReadString('\n')
			if err == io.EOF {
				// Keep a partial line for the next write.
				if line != "" {
					reader = bufio.NewReader(io.MultiReader(strings.NewReader(line), file))
				}
				return nil
			}
			if err != nil {
				return fmt.Errorf("error reading log file: %w", err)
			}
			if out, ok := renderLogLine(line, filter, styled); ok {
				fmt.Fprintln(w, out)
			}
		}
	}

	target := filepath.Clean(logPath)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				reopened, err := os.Open(logPath)
				if err != nil {
					continue
				}
				_ = file.Close()
				file = reopened
				reader = bufio.NewReader(file)
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := drain(); err != nil {
					return err
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("log watcher: %w", err)
		}
	}
}

// renderLogLine parses and filters one raw line. Lines that are not JSON are
// shown as-is.
func renderLogLine(raw string, filter logFilter, styled bool) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	var e logEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return raw, true
	}
	if !filter.match(&e) {
		return "", false
	}
	return formatLogEntry(&e, styled), true
}
