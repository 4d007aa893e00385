// Package monitor implements the worker that polls a fixed set of producers
// on one browser handle and announces each new item exactly once per
// successful ledger record.
package monitor

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/Iron-Ham/audiowatch/internal/artifact"
	"github.com/Iron-Ham/audiowatch/internal/catalog"
	"github.com/Iron-Ham/audiowatch/internal/delivery"
	"github.com/Iron-Ham/audiowatch/internal/errors"
	"github.com/Iron-Ham/audiowatch/internal/event"
	"github.com/Iron-Ham/audiowatch/internal/logging"
	"github.com/Iron-Ham/audiowatch/internal/session"
)

// Deferral reasons reported in item.deferred events.
const (
	ReasonChannelNotFound = "channel_not_found"
	ReasonDeliveryFailed  = "delivery_failed"
	ReasonRecordFailed    = "record_failed"
	ReasonDetailFailed    = "detail_failed"
)

// Scanner reads listings and detail pages.
type Scanner interface {
	Scan(ctx context.Context, h session.Handle, producer string) ([]catalog.ItemReference, error)
	Capture(ctx context.Context, h session.Handle, id string) ([]byte, error)
	DetailURL(id string) string
}

// Fetcher downloads an item's artifact, returning nil when there is none.
type Fetcher interface {
	Fetch(ctx context.Context, id string) *artifact.Artifact
}

// Ledger is the deduplication record the worker consults and updates.
type Ledger interface {
	Has(producer, id string) (bool, error)
	Record(producer, id string) error
}

// Deps are the collaborators a worker needs. All fields are required.
type Deps struct {
	Scanner   Scanner
	Fetcher   Fetcher
	Ledger    Ledger
	Deliverer delivery.Deliverer
}

// Assignment is what a worker owns for its lifetime.
type Assignment struct {
	Kind       Kind
	Slot       int
	Generation uint64
	Handle     session.Handle
	Producers  []string
	// Channel is the delivery channel name.
	Channel string
}

// Item is a discovered item ready to be announced.
type Item struct {
	ID       string
	Name     string
	Producer string
	Language string
	URL      string
	Snapshot []byte
	Artifact *artifact.Artifact
}

// Notification converts the item into its outbound form.
func (it Item) Notification() delivery.Notification {
	n := delivery.Notification{
		Producer: it.Producer,
		Name:     it.Name,
		Language: it.Language,
		ItemID:   it.ID,
		URL:      it.URL,
	}
	if len(it.Snapshot) > 0 {
		n.Snapshot = &delivery.Attachment{Name: it.ID + ".png", ContentType: "image/png", Data: it.Snapshot}
	}
	if it.Artifact != nil {
		n.Artifact = &delivery.Attachment{Name: it.Artifact.Name, ContentType: it.Artifact.ContentType, Data: it.Artifact.Data}
	}
	return n
}

// Worker loops over its producers until its context is cancelled, its pool
// generation goes stale, or its handle is closed.
type Worker struct {
	assignment Assignment
	deps       Deps
	cfg        *config
	logger     *logging.Logger

	mu        sync.Mutex
	producers []string

	state atomic.Int32
	wake  chan struct{}
	// pending holds captured items whose delivery or record failed so the
	// retry does not redo the detail capture.
	pending *xsync.Map[pendingKey, Item]
}

type pendingKey struct {
	producer string
	id       string
}

// New creates a worker. It panics if a dependency or the handle is nil.
func New(a Assignment, deps Deps, opts ...Option) *Worker {
	if a.Handle == nil {
		panic("monitor: session handle must not be nil")
	}
	if deps.Scanner == nil || deps.Fetcher == nil || deps.Ledger == nil || deps.Deliverer == nil {
		panic("monitor: all dependencies must be non-nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NopLogger()
	}
	if cfg.current == nil {
		gen := a.Generation
		cfg.current = func() uint64 { return gen }
	}

	if a.Kind == "" {
		a.Kind = KindSteady
	}
	w := &Worker{
		assignment: a,
		deps:       deps,
		cfg:        cfg,
		logger:     cfg.logger.WithGeneration(a.Generation).WithWorker(string(a.Kind), a.Slot),
		producers:  slices.Clone(a.Producers),
		wake:       make(chan struct{}, 1),
		pending:    xsync.NewMap[pendingKey, Item](),
	}
	w.state.Store(int32(StateIdle))
	return w
}

// State returns the worker's current state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Kind returns the worker kind.
func (w *Worker) Kind() Kind {
	return w.assignment.Kind
}

// Slot returns the worker's slot index within its kind.
func (w *Worker) Slot() int {
	return w.assignment.Slot
}

// Producers returns the producers the worker currently owns, in scan order.
func (w *Worker) Producers() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.producers)
}

// Adopt hands producer to the worker and wakes it if it is sleeping. It is
// used for producers tracked after the partition was computed. Adopting an
// owned producer is a no-op.
func (w *Worker) Adopt(producer string) {
	w.mu.Lock()
	if slices.Contains(w.producers, producer) {
		w.mu.Unlock()
		return
	}
	w.producers = append(w.producers, producer)
	w.mu.Unlock()

	w.logger.Info("producer adopted", "producer", producer)
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run executes cycles until the worker must stop. The returned error tells
// the supervisor why: the context error, or one wrapping
// errors.ErrStaleGeneration or errors.ErrSessionClosed.
func (w *Worker) Run(ctx context.Context) error {
	defer w.setState(StateStopped)
	w.logger.Debug("worker started", "producers", len(w.Producers()))

	for {
		for _, producer := range w.Producers() {
			if err := w.alive(ctx); err != nil {
				return err
			}
			if err := w.cycleProducer(ctx, producer); err != nil {
				w.logger.Warn("worker stopping", "error", err)
				return err
			}
		}

		if err := w.alive(ctx); err != nil {
			return err
		}
		w.setState(StateSleeping)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.cfg.clock.After(w.cfg.pollInterval):
		case <-w.wake:
		}
	}
}

// alive checks the context and the pool generation.
func (w *Worker) alive(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if current := w.cfg.current(); current != w.assignment.Generation {
		return errors.NewSessionError(
			fmt.Sprintf("generation advanced to %d", current),
			errors.ErrStaleGeneration,
		).WithGeneration(w.assignment.Generation).WithHandle(w.assignment.Handle.ID())
	}
	return nil
}

// cycleProducer runs one scan-diff-notify pass for producer. Failures are
// contained here; only a closed session is returned.
func (w *Worker) cycleProducer(ctx context.Context, producer string) (err error) {
	log := w.logger.WithProducer(producer)
	defer func() {
		if r := recover(); r != nil {
			log.Error("producer cycle panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			err = nil
		}
	}()

	start := w.cfg.clock.Now()
	w.setState(StateScanning)
	refs, err := w.deps.Scanner.Scan(ctx, w.assignment.Handle, producer)
	if err != nil {
		if errors.Is(err, errors.ErrSessionClosed) {
			return err
		}
		log.Warn("scan failed", "error", err)
		return nil
	}

	w.setState(StateDiffing)
	fresh := 0
	listed := make(map[string]struct{}, len(refs))
	attempted := make(map[string]struct{})
	for _, ref := range refs {
		if ctx.Err() != nil {
			return nil
		}
		id, ok := catalog.ParseIdentifier(ref.Href)
		if !ok {
			continue
		}
		listed[id] = struct{}{}
		if _, done := attempted[id]; done {
			continue
		}

		seen, err := w.deps.Ledger.Has(producer, id)
		if err != nil {
			log.Warn("ledger lookup failed", "item", id, "error", err)
			return nil
		}
		if seen {
			continue
		}
		name := catalog.DisplayName(ref.Text)
		if name == "" {
			continue
		}

		attempted[id] = struct{}{}
		fresh++
		if err := w.announce(ctx, log, producer, id, name); err != nil {
			return err
		}
		w.setState(StateDiffing)
	}

	// An empty listing is indistinguishable from a timed-out scan, so it
	// keeps the deferred captures.
	if len(listed) > 0 {
		w.evictUnlisted(producer, listed)
	}
	w.publish(event.NewScanCompletedEvent(producer, len(refs), fresh, w.cfg.clock.Since(start)))
	return nil
}

// announce captures, delivers, and records one new item. It returns an error
// only when the session is closed.
func (w *Worker) announce(ctx context.Context, log *logging.Logger, producer, id, name string) error {
	key := pendingKey{producer: producer, id: id}
	item, cached := w.pending.Load(key)
	if !cached {
		w.setState(StateDetailing)
		shot, err := w.deps.Scanner.Capture(ctx, w.assignment.Handle, id)
		if err != nil {
			if errors.Is(err, errors.ErrSessionClosed) {
				return err
			}
			log.Warn("detail capture failed", "item", id, "error", err)
			w.publish(event.NewItemDeferredEvent(producer, id, ReasonDetailFailed))
			return nil
		}

		w.setState(StateFetching)
		item = Item{
			ID:       id,
			Name:     name,
			Producer: producer,
			Language: w.cfg.detect(name),
			URL:      w.deps.Scanner.DetailURL(id),
			Snapshot: shot,
			Artifact: w.deps.Fetcher.Fetch(ctx, id),
		}
	}

	w.setState(StateNotifying)
	dctx, cancel := context.WithTimeout(ctx, w.cfg.deliveryTimeout)
	err := w.deps.Deliverer.Deliver(dctx, w.assignment.Channel, item.Notification())
	cancel()
	if err != nil {
		w.pending.Store(key, item)
		reason := ReasonDeliveryFailed
		if errors.Is(err, errors.ErrChannelNotFound) {
			reason = ReasonChannelNotFound
		}
		log.Warn("delivery deferred", "item", id, "reason", reason, "error", err)
		w.publish(event.NewItemDeferredEvent(producer, id, reason))
		return nil
	}

	if err := w.deps.Ledger.Record(producer, id); err != nil {
		// Delivered but not durable: the item will be announced again.
		w.pending.Store(key, item)
		log.Error("record failed after delivery", "item", id, "error", err)
		w.publish(event.NewItemDeferredEvent(producer, id, ReasonRecordFailed))
		return nil
	}

	w.pending.Delete(key)
	log.Info("item notified", "item", id, "name", name, "artifact", item.Artifact != nil)
	w.publish(event.NewItemNotifiedEvent(producer, id, item.Artifact != nil))
	return nil
}

// evictUnlisted drops deferred captures of producer's items that are no
// longer listed.
func (w *Worker) evictUnlisted(producer string, listed map[string]struct{}) {
	w.pending.Range(func(k pendingKey, _ Item) bool {
		if _, ok := listed[k.id]; k.producer == producer && !ok {
			w.pending.Delete(k)
			w.logger.Debug("dropped deferred item no longer listed", "producer", producer, "item", k.id)
		}
		return true
	})
}

// Pending returns the number of captured items awaiting redelivery.
func (w *Worker) Pending() int {
	return w.pending.Size()
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
}

func (w *Worker) publish(e event.Event) {
	if w.cfg.bus != nil {
		w.cfg.bus.Publish(e)
	}
}
