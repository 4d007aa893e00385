// Package supervisor owns the browser session pool and the monitor workers
// running on it.
//
// On every tick the supervisor checks that the pool is alive. When there is
// no pool, or the pool died, it stops the previous generation's workers and
// waits for them, closes the old pool, launches a new one under the next
// generation number, partitions the current producer set over the steady
// workers, and starts them together with the on-demand workers. Launch
// failures are retried after a fixed delay; only resource exhaustion ends
// Run.
package supervisor

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/audiowatch/internal/assign"
	"github.com/Iron-Ham/audiowatch/internal/delivery"
	"github.com/Iron-Ham/audiowatch/internal/errors"
	"github.com/Iron-Ham/audiowatch/internal/event"
	"github.com/Iron-Ham/audiowatch/internal/ledger"
	"github.com/Iron-Ham/audiowatch/internal/logging"
	"github.com/Iron-Ham/audiowatch/internal/monitor"
	"github.com/Iron-Ham/audiowatch/internal/session"
)

// Ledger is the subset of the ledger the supervisor and its workers use.
type Ledger interface {
	monitor.Ledger
	AddProducer(name string) error
	Producers() []string
	Summaries() []ledger.Summary
}

// Deps are the worker collaborators the supervisor wires into every
// generation.
type Deps struct {
	Scanner   monitor.Scanner
	Fetcher   monitor.Fetcher
	Deliverer delivery.Deliverer
}

// Assignment is a snapshot of who owns which producers.
type Assignment struct {
	Generation uint64
	// Steady holds each steady worker's producers, by slot.
	Steady [][]string
	// OnDemand holds the producers adopted by each on-demand worker, by slot.
	OnDemand [][]string
}

// generation is one launched pool and the workers running on it.
type generation struct {
	id       uint64
	pool     session.Pool
	cancel   context.CancelFunc
	group    *errgroup.Group
	steady   []*monitor.Worker
	onDemand []*monitor.Worker
	// lost is set when a worker's handle closed under it. A lost generation
	// is relaunched even if the pool still answers the liveness probe.
	lost atomic.Bool
}

// owns reports whether any worker of g owns producer.
func (g *generation) owns(producer string) bool {
	for _, w := range slices.Concat(g.steady, g.onDemand) {
		if slices.Contains(w.Producers(), producer) {
			return true
		}
	}
	return false
}

// Supervisor runs the session pool lifecycle.
type Supervisor struct {
	launcher session.Launcher
	ledger   Ledger
	deps     Deps
	cfg      *config
	logger   *logging.Logger
	router   *assign.Router

	generation atomic.Uint64
	state      atomic.Int32
	faults     chan struct{}

	// mu serializes generation installs with Track and Absorb so a producer
	// is never missed or owned twice.
	mu     sync.Mutex
	active *generation
}

// New creates a supervisor. It panics if launcher, ledger, or a dependency
// is nil.
func New(launcher session.Launcher, l Ledger, deps Deps, opts ...Option) *Supervisor {
	if launcher == nil {
		panic("supervisor: Launcher must not be nil")
	}
	if l == nil {
		panic("supervisor: Ledger must not be nil")
	}
	if deps.Scanner == nil || deps.Fetcher == nil || deps.Deliverer == nil {
		panic("supervisor: all worker dependencies must be non-nil")
	}

	cfg := &config{
		interval:        defaultInterval,
		retryDelay:      defaultRetryDelay,
		livenessTimeout: defaultLivenessTimeout,
		workers:         defaultWorkers,
		onDemand:        defaultOnDemand,
		clock:           clockwork.NewRealClock(),
		logger:          logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NopLogger()
	}
	if cfg.bus == nil {
		cfg.bus = event.NewBus(cfg.logger)
	}

	return &Supervisor{
		launcher: launcher,
		ledger:   l,
		deps:     deps,
		cfg:      cfg,
		logger:   cfg.logger,
		router:   assign.NewRouter(cfg.onDemand),
		faults:   make(chan struct{}, 1),
	}
}

// Generation returns the number of the most recent launch attempt. Zero
// means nothing was launched yet.
func (s *Supervisor) Generation() uint64 {
	return s.generation.Load()
}

// State returns the current pool state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Assignment returns the live generation's producer ownership. It is empty
// when no pool is active.
func (s *Supervisor) Assignment() Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil {
		return Assignment{}
	}
	a := Assignment{Generation: s.active.id}
	for _, w := range s.active.steady {
		a.Steady = append(a.Steady, w.Producers())
	}
	for _, w := range s.active.onDemand {
		a.OnDemand = append(a.OnDemand, w.Producers())
	}
	return a
}

// Run supervises until ctx is cancelled, then stops all workers and closes
// the pool. It returns nil on cancellation and an error only for
// unrecoverable resource exhaustion.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.teardown()

	ticker := s.cfg.clock.NewTicker(s.cfg.interval)
	defer ticker.Stop()

	for {
		if err := s.check(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("supervisor giving up", "error", err)
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
		case <-s.faults:
			s.logger.Debug("worker fault, checking pool")
		}
	}
}

// check relaunches the pool if there is none or it is no longer alive.
func (s *Supervisor) check(ctx context.Context) error {
	s.mu.Lock()
	current := s.active
	s.mu.Unlock()

	if current != nil {
		lost := current.lost.Load()
		if !lost {
			probeCtx, cancel := context.WithTimeout(ctx, s.cfg.livenessTimeout)
			alive := current.pool.Alive(probeCtx)
			cancel()
			if alive {
				return nil
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if lost {
			s.logger.Warn("worker session lost", "generation", current.id)
		} else {
			s.logger.Warn("session pool lost", "generation", current.id)
		}
		s.setState(StateRelaunching)
	}

	s.teardown()
	return s.launchWithRetry(ctx)
}

// launchWithRetry repeats launch on a fixed delay until it succeeds, ctx is
// done, or the failure is fatal.
func (s *Supervisor) launchWithRetry(ctx context.Context) error {
	s.setState(StateLaunching)

	op := func() error {
		err := s.launch(ctx)
		if err != nil && errors.IsFatal(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("pool launch failed, retrying", "generation", s.Generation(), "retry_in", wait, "error", err)
		s.publish(event.NewPoolFailedEvent(s.Generation(), err))
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(s.cfg.retryDelay), ctx)
	err := backoff.RetryNotifyWithTimer(op, b, notify, &clockTimer{clock: s.cfg.clock})
	if err != nil && errors.IsFatal(err) {
		s.publish(event.NewPoolFailedEvent(s.Generation(), err))
	}
	return err
}

// launch makes one attempt to bring up a generation.
func (s *Supervisor) launch(ctx context.Context) error {
	id := s.generation.Add(1)
	log := s.logger.WithGeneration(id)

	pool, err := s.launcher.Launch(ctx)
	if err != nil {
		return sessionError("launch pool", err, id)
	}

	want := s.cfg.workers + s.cfg.onDemand
	handles, err := pool.NewHandles(ctx, want)
	if err == nil && len(handles) < want {
		err = fmt.Errorf("pool opened %d of %d handles: %w", len(handles), want, errors.ErrSessionClosed)
	}
	if err != nil {
		if cerr := pool.Close(); cerr != nil {
			log.Warn("failed to release partial pool", "error", cerr)
		}
		return sessionError("open handles", err, id)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	g := &generation{
		id:     id,
		pool:   pool,
		cancel: cancel,
		group:  &errgroup.Group{},
	}

	s.mu.Lock()
	partition := assign.Partition(s.ledger.Producers(), s.cfg.workers)
	for slot, bucket := range partition {
		g.steady = append(g.steady, s.newWorker(monitor.KindSteady, slot, id, handles[slot], bucket))
	}
	for slot := 0; slot < s.cfg.onDemand; slot++ {
		g.onDemand = append(g.onDemand, s.newWorker(monitor.KindOnDemand, slot, id, handles[s.cfg.workers+slot], nil))
	}
	s.active = g
	s.mu.Unlock()

	for _, w := range slices.Concat(g.steady, g.onDemand) {
		s.startWorker(workerCtx, g, w)
	}

	producers := 0
	for _, bucket := range partition {
		producers += len(bucket)
	}
	s.setState(StateActive)
	log.Info("session pool active", "workers", len(g.steady), "ondemand", len(g.onDemand), "producers", producers)
	s.publish(event.NewPoolLaunchedEvent(id, len(g.steady), producers))
	return nil
}

func (s *Supervisor) newWorker(kind monitor.Kind, slot int, gen uint64, h session.Handle, producers []string) *monitor.Worker {
	opts := []monitor.Option{
		monitor.WithClock(s.cfg.clock),
		monitor.WithBus(s.cfg.bus),
		monitor.WithLogger(s.logger),
		monitor.WithCurrentGeneration(s.Generation),
	}
	opts = append(opts, s.cfg.workerOpts...)

	return monitor.New(monitor.Assignment{
		Kind:       kind,
		Slot:       slot,
		Generation: gen,
		Handle:     h,
		Producers:  producers,
		Channel:    s.cfg.channel,
	}, monitor.Deps{
		Scanner:   s.deps.Scanner,
		Fetcher:   s.deps.Fetcher,
		Ledger:    s.ledger,
		Deliverer: s.deps.Deliverer,
	}, opts...)
}

// startWorker runs w in g's group and observes its exit. A closed session
// marks the generation lost and triggers an immediate check.
func (s *Supervisor) startWorker(ctx context.Context, g *generation, w *monitor.Worker) {
	g.group.Go(func() error {
		err := w.Run(ctx)
		s.publish(event.NewWorkerExitedEvent(g.id, string(w.Kind()), w.Slot(), err))

		if errors.Is(err, errors.ErrSessionClosed) && ctx.Err() == nil {
			g.lost.Store(true)
			select {
			case s.faults <- struct{}{}:
			default:
			}
		}
		if ctx.Err() == nil {
			s.logger.Warn("worker exited", "generation", g.id, "worker_kind", w.Kind(), "worker_slot", w.Slot(), "error", err)
		}
		return err
	})
}

// teardown stops the active generation: cancel, wait for every worker, then
// close the pool. Close failures are logged only.
func (s *Supervisor) teardown() {
	s.mu.Lock()
	g := s.active
	s.active = nil
	s.mu.Unlock()
	if g == nil {
		return
	}

	g.cancel()
	_ = g.group.Wait()
	if err := g.pool.Close(); err != nil {
		s.logger.Warn("failed to close session pool", "generation", g.id, "error", err)
	}
	s.logger.Info("session pool released", "generation", g.id)
}

// Track adds producer to the ledger and, if a pool is active, hands it to
// the next on-demand worker so it is scanned without waiting for a
// relaunch. It returns an error wrapping ErrAlreadyTracked if the producer
// is known, or ctx's error if ctx is already done.
func (s *Supervisor) Track(ctx context.Context, producer string) error {
	if producer == "" {
		return errors.NewLedgerError("add producer", errors.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.AddProducer(producer); err != nil {
		return err
	}
	s.logger.Info("producer tracked", "producer", producer)
	s.routeLocked(producer)
	return nil
}

// Absorb routes producers that entered the ledger from elsewhere, such as
// another process running track. Producers already owned are skipped.
func (s *Supervisor) Absorb(producers []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range producers {
		s.routeLocked(p)
	}
}

// Summaries lists tracked producers with their notified counts.
func (s *Supervisor) Summaries() []ledger.Summary {
	return s.ledger.Summaries()
}

// routeLocked assigns producer to an on-demand worker of the active
// generation. Without an active generation the next partition picks it up.
// The caller must hold mu.
func (s *Supervisor) routeLocked(producer string) {
	if s.active == nil || s.active.owns(producer) {
		return
	}
	slot := s.router.Next()
	s.active.onDemand[slot].Adopt(producer)
	s.publish(event.NewProducerTrackedEvent(producer, slot))
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
}

func (s *Supervisor) publish(e event.Event) {
	s.cfg.bus.Publish(e)
}

// sessionError wraps err with the generation unless it already carries one.
func sessionError(op string, err error, gen uint64) error {
	var se *errors.SessionError
	if errors.As(err, &se) && se.Generation == 0 {
		se.WithGeneration(gen)
		return fmt.Errorf("%s: %w", op, se)
	}
	return errors.NewSessionError(op, err).WithGeneration(gen)
}

// clockTimer drives backoff waits from a clockwork clock.
type clockTimer struct {
	clock clockwork.Clock
	timer clockwork.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = t.clock.NewTimer(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.Chan()
}
