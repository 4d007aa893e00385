package monitor

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Iron-Ham/audiowatch/internal/event"
	"github.com/Iron-Ham/audiowatch/internal/language"
	"github.com/Iron-Ham/audiowatch/internal/logging"
)

// defaultPollInterval is the sleep between cycles.
const defaultPollInterval = 2 * time.Second

// defaultDeliveryTimeout bounds one Deliver call.
const defaultDeliveryTimeout = 20 * time.Second

// Option configures a Worker.
type Option func(*config)

type config struct {
	pollInterval    time.Duration
	deliveryTimeout time.Duration
	clock           clockwork.Clock
	bus             *event.Bus
	logger          *logging.Logger
	detect          func(string) string
	current         func() uint64
}

func defaultConfig() *config {
	return &config{
		pollInterval:    defaultPollInterval,
		deliveryTimeout: defaultDeliveryTimeout,
		clock:           clockwork.NewRealClock(),
		logger:          logging.NopLogger(),
		detect:          language.Detect,
	}
}

// WithPollInterval sets the sleep between cycles. Non-positive values keep
// the default (2s).
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithDeliveryTimeout bounds each delivery attempt.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.deliveryTimeout = d
		}
	}
}

// WithClock sets the clock used for the inter-cycle sleep.
func WithClock(clock clockwork.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithBus publishes scan and item events.
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

// WithLanguageDetector replaces the display-name language detector.
func WithLanguageDetector(detect func(string) string) Option {
	return func(c *config) {
		c.detect = detect
	}
}

// WithCurrentGeneration sets the source of the live pool generation. The
// worker exits as soon as it differs from the generation it started with.
func WithCurrentGeneration(current func() uint64) Option {
	return func(c *config) {
		c.current = current
	}
}
