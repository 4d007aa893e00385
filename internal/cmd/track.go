package cmd

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/audiowatch/internal/errors"
	"github.com/spf13/cobra"
)

var trackCmd = &cobra.Command{
	Use:   "track <producer>",
	Short: "Start monitoring a producer",
	Long: `Add a producer to the ledger. The name must match the catalog exactly;
matching is case-sensitive.

A running daemon notices the change and scans the producer on one of its
on-demand sessions without waiting for the next relaunch.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrack,
}

func init() {
	rootCmd.AddCommand(trackCmd)
}

func runTrack(cmd *cobra.Command, args []string) error {
	producer := strings.TrimSpace(args[0])
	if producer == "" {
		return fmt.Errorf("producer name must not be empty")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l, err := openLedger(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := l.AddProducer(producer); err != nil {
		if errors.Is(err, errors.ErrAlreadyTracked) {
			fmt.Fprintf(out, "Already monitoring %s\n", producer)
			return nil
		}
		return fmt.Errorf("failed to track %s: %w", producer, err)
	}

	fmt.Fprintf(out, "Now monitoring %s\n", producer)
	return nil
}
