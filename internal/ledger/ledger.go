package ledger

import (
	"maps"
	"slices"
	"sync"

	"github.com/Iron-Ham/audiowatch/internal/errors"
)

// Summary is one row of the tracked-producer listing.
type Summary struct {
	Producer string `json:"producer" yaml:"producer"`
	Count    int    `json:"notified" yaml:"notified"`
}

// Ledger is the deduplication record: for each tracked producer, the set of
// item identifiers a notification was dispatched for. Sets only grow.
//
// Every mutation is persisted through the FileStore before it becomes
// visible in memory, so a failed write leaves the ledger exactly as it was.
type Ledger struct {
	mu      sync.Mutex
	store   *FileStore
	entries Document
	seen    map[string]map[string]struct{}
}

// Open loads the ledger from store.
func Open(store *FileStore) (*Ledger, error) {
	doc, err := store.Load()
	if err != nil {
		return nil, err
	}
	l := &Ledger{store: store}
	l.adopt(doc)
	return l, nil
}

// Has reports whether id was already notified for producer.
func (l *Ledger) Has(producer, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	set, ok := l.seen[producer]
	if !ok {
		return false, errors.NewLedgerError("lookup", errors.ErrNotTracked).WithProducer(producer).WithItem(id)
	}
	_, found := set[id]
	return found, nil
}

// Record marks id as notified for producer and persists the ledger. Recording
// an id twice is a no-op. If the write fails the in-memory state is
// unchanged and the returned error wraps ErrPersist.
func (l *Ledger) Record(producer, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	set, ok := l.seen[producer]
	if !ok {
		return errors.NewLedgerError("record", errors.ErrNotTracked).WithProducer(producer).WithItem(id)
	}
	if _, found := set[id]; found {
		return nil
	}

	doc, err := l.store.Update(func(disk Document) (Document, error) {
		next := merge(l.entries, disk)
		if !slices.Contains(next[producer], id) {
			next[producer] = append(next[producer], id)
		}
		return next, nil
	})
	if err != nil {
		return wrapLedgerError("record", err, producer, id)
	}
	l.adopt(doc)
	return nil
}

// AddProducer starts tracking name with an empty item set. It fails with
// ErrAlreadyTracked if name is already tracked here or on disk.
func (l *Ledger) AddProducer(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[name]; ok {
		return errors.NewLedgerError("add producer", errors.ErrAlreadyTracked).WithProducer(name)
	}

	doc, err := l.store.Update(func(disk Document) (Document, error) {
		if _, ok := disk[name]; ok {
			return nil, errors.NewLedgerError("add producer", errors.ErrAlreadyTracked).WithProducer(name)
		}
		next := merge(l.entries, disk)
		next[name] = []string{}
		return next, nil
	})
	if err != nil {
		if errors.Is(err, errors.ErrAlreadyTracked) {
			// Another process tracked it first; pick up its state.
			if reloaded, loadErr := l.store.Load(); loadErr == nil {
				l.adopt(merge(l.entries, reloaded))
			}
			return err
		}
		return wrapLedgerError("add producer", err, name, "")
	}
	l.adopt(doc)
	return nil
}

// Snapshot returns a deep copy of every producer's notified identifiers.
func (l *Ledger) Snapshot() map[string][]string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string][]string, len(l.entries))
	for producer, ids := range l.entries {
		out[producer] = slices.Clone(ids)
	}
	return out
}

// Producers returns the tracked producer names in lexicographic order.
func (l *Ledger) Producers() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.Sorted(maps.Keys(l.entries))
}

// Summaries returns producer names with their notified counts, sorted by name.
func (l *Ledger) Summaries() []Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Summary, 0, len(l.entries))
	for _, producer := range slices.Sorted(maps.Keys(l.entries)) {
		out = append(out, Summary{Producer: producer, Count: len(l.entries[producer])})
	}
	return out
}

// Reload merges the persisted document into memory and returns the
// producers that were not known before, sorted. It is how a running daemon
// picks up producers tracked by another process.
func (l *Ledger) Reload() ([]string, error) {
	disk, err := l.store.Load()
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var added []string
	for producer := range disk {
		if _, ok := l.seen[producer]; !ok {
			added = append(added, producer)
		}
	}
	l.adopt(merge(l.entries, disk))
	slices.Sort(added)
	return added, nil
}

// adopt replaces the in-memory state with doc. The caller must hold mu
// unless l is not yet shared.
func (l *Ledger) adopt(doc Document) {
	seen := make(map[string]map[string]struct{}, len(doc))
	for producer, ids := range doc {
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		seen[producer] = set
	}
	l.entries = doc
	l.seen = seen
}

// merge returns the union of two documents. Identifiers from base keep their
// order; identifiers only in other are appended in their order.
func merge(base, other Document) Document {
	out := make(Document, len(base)+len(other))
	for producer, ids := range base {
		out[producer] = slices.Clone(ids)
	}
	for producer, ids := range other {
		current := out[producer]
		for _, id := range ids {
			if !slices.Contains(current, id) {
				current = append(current, id)
			}
		}
		out[producer] = current
	}
	for producer, ids := range out {
		if ids == nil {
			out[producer] = []string{}
		}
	}
	return out
}

// wrapLedgerError attaches producer/item context to store failures that do
// not carry it yet.
func wrapLedgerError(op string, err error, producer, id string) error {
	var le *errors.LedgerError
	if errors.As(err, &le) {
		if le.Producer == "" {
			le.WithProducer(producer)
		}
		if le.ItemID == "" && id != "" {
			le.WithItem(id)
		}
		return le
	}
	return errors.NewLedgerError(op, err).WithProducer(producer).WithItem(id)
}
