package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"
	"github.com/spf13/afero"

	"github.com/Iron-Ham/audiowatch/internal/errors"
)

// Document is the persisted form of the ledger: producer name to the ordered
// list of item identifiers already notified.
type Document map[string][]string

// FileStore reads and atomically rewrites the ledger document.
type FileStore struct {
	fs      afero.Fs
	path    string
	lock    *flock.Flock
	backoff func() backoff.BackOff
}

// StoreOption configures a FileStore.
type StoreOption func(*FileStore)

// WithFileLock serializes every read-modify-write against other processes
// through an flock on <path>.lock. Only meaningful on the OS filesystem.
func WithFileLock() StoreOption {
	return func(s *FileStore) {
		s.lock = flock.New(s.path + ".lock")
	}
}

// WithBackOff sets the retry policy for failed writes. The factory is called
// once per write.
func WithBackOff(factory func() backoff.BackOff) StoreOption {
	return func(s *FileStore) {
		s.backoff = factory
	}
}

// NewFileStore creates a store for the JSON document at path on fs.
func NewFileStore(fs afero.Fs, path string, opts ...StoreOption) *FileStore {
	s := &FileStore{
		fs:      fs,
		path:    path,
		backoff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	return backoff.WithMaxRetries(b, 4)
}

// Path returns the document location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the document under the file lock. A missing file is an empty
// document.
func (s *FileStore) Load() (Document, error) {
	var doc Document
	err := s.withLock(func() error {
		var err error
		doc, err = s.read()
		return err
	})
	return doc, err
}

// Update reads the persisted document, passes it to fn, and writes the
// result back, all under the file lock. Nothing is written if fn fails. The
// written document is returned so the caller can adopt it.
func (s *FileStore) Update(fn func(Document) (Document, error)) (Document, error) {
	var next Document
	err := s.withLock(func() error {
		current, err := s.read()
		if err != nil {
			return err
		}
		next, err = fn(current)
		if err != nil {
			return err
		}
		return s.write(next)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *FileStore) withLock(fn func() error) error {
	if s.lock == nil {
		return fn()
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.NewLedgerError("create ledger directory", errors.Join(errors.ErrPersist, err))
	}
	if err := s.lock.Lock(); err != nil {
		return errors.NewLedgerError("acquire ledger lock", errors.Join(errors.ErrPersist, err))
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

func (s *FileStore) read() (Document, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if os.IsNotExist(err) {
		return Document{}, nil
	}
	if err != nil {
		return nil, errors.NewLedgerError("read ledger", err)
	}

	doc := Document{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewLedgerError("decode "+s.path, errors.Join(errors.ErrLedgerCorrupted, err))
	}
	for producer, ids := range doc {
		if ids == nil {
			doc[producer] = []string{}
		}
	}
	return doc, nil
}

// write persists doc via temp file and rename, retrying per the backoff
// policy. The final failure wraps ErrPersist.
func (s *FileStore) write(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.NewLedgerError("encode ledger", err)
	}

	tmp := s.path + ".tmp"
	op := func() error {
		if err := s.fs.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
		if err := afero.WriteFile(s.fs, tmp, data, 0644); err != nil {
			return fmt.Errorf("write temp file: %w", err)
		}
		if err := s.fs.Rename(tmp, s.path); err != nil {
			_ = s.fs.Remove(tmp) // best-effort cleanup
			return fmt.Errorf("rename temp file: %w", err)
		}
		return nil
	}

	if err := backoff.Retry(op, s.backoff()); err != nil {
		return errors.NewLedgerError("persist ledger", errors.Join(errors.ErrPersist, err))
	}
	return nil
}
