package cmd

import (
	"fmt"

	"github.com/Iron-Ham/audiowatch/internal/config"
	"github.com/Iron-Ham/audiowatch/internal/ledger"
	"github.com/spf13/afero"
)

// loadConfig reads the validated configuration from viper.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openLedger opens the on-disk ledger behind the cross-process file lock, so
// CLI commands and a running daemon can share it.
func openLedger(cfg *config.Config) (*ledger.Ledger, error) {
	store := ledger.NewFileStore(afero.NewOsFs(), cfg.Ledger.Path, ledger.WithFileLock())
	l, err := ledger.Open(store)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", cfg.Ledger.Path, err)
	}
	return l, nil
}
