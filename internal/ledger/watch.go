package ledger

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/audiowatch/internal/logging"
)

// defaultDebounce coalesces the burst of events a temp-file rename produces.
const defaultDebounce = 200 * time.Millisecond

// Watcher reloads a Ledger whenever its file changes on disk and reports
// producers that appeared since the last reload.
type Watcher struct {
	ledger   *Ledger
	watcher  *fsnotify.Watcher
	onAdded  func([]string)
	logger   *logging.Logger
	debounce time.Duration
}

// NewWatcher watches the directory holding the ledger file. onAdded is called
// from the Run goroutine with the newly seen producers.
func NewWatcher(l *Ledger, onAdded func([]string), logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory; the file itself is replaced by rename on every write.
	dir := filepath.Dir(l.store.Path())
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	return &Watcher{
		ledger:   l,
		watcher:  fw,
		onAdded:  onAdded,
		logger:   logger,
		debounce: defaultDebounce,
	}, nil
}

// Run processes file events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.watcher.Close() }()

	target := filepath.Clean(w.ledger.store.Path())
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			added, err := w.ledger.Reload()
			if err != nil {
				w.logger.Warn("ledger reload failed", "error", err)
				continue
			}
			if len(added) > 0 {
				w.logger.Info("ledger gained producers", "producers", added)
				if w.onAdded != nil {
					w.onAdded(added)
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("ledger watcher error", "error", err)
		}
	}
}
