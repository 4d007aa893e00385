package supervisor

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Iron-Ham/audiowatch/internal/event"
	"github.com/Iron-Ham/audiowatch/internal/logging"
	"github.com/Iron-Ham/audiowatch/internal/monitor"
)

const (
	defaultInterval        = 10 * time.Second
	defaultRetryDelay      = 5 * time.Second
	defaultLivenessTimeout = 5 * time.Second
	defaultWorkers         = 20
	defaultOnDemand        = 20
)

// Option configures a Supervisor.
type Option func(*config)

type config struct {
	interval        time.Duration
	retryDelay      time.Duration
	livenessTimeout time.Duration
	workers         int
	onDemand        int
	channel         string
	clock           clockwork.Clock
	bus             *event.Bus
	logger          *logging.Logger
	workerOpts      []monitor.Option
}

// WithInterval sets how often pool liveness is checked.
func WithInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithRetryDelay sets the fixed wait between failed launch attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// WithLivenessTimeout bounds one liveness probe.
func WithLivenessTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.livenessTimeout = d
		}
	}
}

// WithWorkers sets the steady worker count (partition buckets) and the
// on-demand session count. Values below 1 are raised to 1.
func WithWorkers(steady, onDemand int) Option {
	return func(c *config) {
		c.workers = max(steady, 1)
		c.onDemand = max(onDemand, 1)
	}
}

// WithChannel sets the delivery channel name passed to every worker.
func WithChannel(name string) Option {
	return func(c *config) {
		c.channel = name
	}
}

// WithClock sets the clock for the supervision ticker and launch retries.
// Workers get the same clock.
func WithClock(clock clockwork.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithBus publishes pool and worker events. Workers publish on it too.
func WithBus(bus *event.Bus) Option {
	return func(c *config) {
		c.bus = bus
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithWorkerOptions adds options applied to every worker.
func WithWorkerOptions(opts ...monitor.Option) Option {
	return func(c *config) {
		c.workerOpts = append(c.workerOpts, opts...)
	}
}
