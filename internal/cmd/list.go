package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Iron-Ham/audiowatch/internal/ledger"
	"github.com/Iron-Ham/audiowatch/internal/util"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List monitored producers",
	Long: `List every tracked producer with the number of items already notified.

Output formats:
  table  aligned table (default)
  yaml   one entry per producer
  json   array of {"producer", "notified"} objects`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var listOutput string

// maxProducerWidth caps the producer column in table output.
const maxProducerWidth = 40

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "output format: table, yaml, json")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l, err := openLedger(cfg)
	if err != nil {
		return err
	}

	return writeSummaries(cmd.OutOrStdout(), listOutput, l.Summaries())
}

// writeSummaries renders summaries in the requested format.
func writeSummaries(w io.Writer, format string, summaries []ledger.Summary) error {
	switch format {
	case "json":
		if summaries == nil {
			summaries = []ledger.Summary{}
		}
		data, err := json.MarshalIndent(summaries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode summaries: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		data, err := yaml.Marshal(summaries)
		if err != nil {
			return fmt.Errorf("failed to encode summaries: %w", err)
		}
		_, err = w.Write(data)
		return err
	case "table", "":
		_, err := fmt.Fprintln(w, renderTable(summaries, isTerminal(w)))
		return err
	default:
		return fmt.Errorf("unknown output format %q (want table, yaml, or json)", format)
	}
}

// renderTable draws summaries as a bordered table. Colors are only applied
// when styled is true.
func renderTable(summaries []ledger.Summary, styled bool) string {
	if len(summaries) == 0 {
		msg := "No producers tracked. Use 'audiowatch track <producer>' to add one."
		if styled {
			return mutedStyle.Render(msg)
		}
		return msg
	}

	rows := make([][]string, 0, len(summaries))
	total := 0
	for _, s := range summaries {
		rows = append(rows, []string{util.FitWidth(s.Producer, maxProducerWidth), strconv.Itoa(s.Count)})
		total += s.Count
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PRODUCER", "NOTIFIED").
		Rows(rows...)
	if styled {
		t = t.BorderStyle(mutedStyle).StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	} else {
		t = t.StyleFunc(func(row, col int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		})
	}

	return fmt.Sprintf("%s\n%d producers, %d items notified", t.String(), len(summaries), total)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
