package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/audiowatch/internal/artifact"
	"github.com/Iron-Ham/audiowatch/internal/catalog"
	"github.com/Iron-Ham/audiowatch/internal/config"
	"github.com/Iron-Ham/audiowatch/internal/delivery"
	"github.com/Iron-Ham/audiowatch/internal/discord"
	"github.com/Iron-Ham/audiowatch/internal/errors"
	"github.com/Iron-Ham/audiowatch/internal/event"
	"github.com/Iron-Ham/audiowatch/internal/ledger"
	"github.com/Iron-Ham/audiowatch/internal/logging"
	"github.com/Iron-Ham/audiowatch/internal/metrics"
	"github.com/Iron-Ham/audiowatch/internal/monitor"
	"github.com/Iron-Ham/audiowatch/internal/session"
	"github.com/Iron-Ham/audiowatch/internal/supervisor"
)

// metricsShutdownTimeout bounds the graceful stop of the /metrics server.
const metricsShutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the monitoring daemon",
	Long: `Start the monitoring daemon in the foreground.

The daemon launches a browser session pool, partitions the tracked producers
across monitor workers, and delivers a notification for every new item.
It runs until interrupted (SIGINT or SIGTERM).`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lock, err := session.AcquireProfileLock(cfg.Browser.ProfileDir, logger)
	if err != nil {
		return fmt.Errorf("browser profile unavailable: %w", err)
	}
	defer func() { _ = lock.Release() }()

	launcher := session.NewChromeLauncher(session.ChromeOptions{
		ProfileDir: cfg.Browser.ProfileDir,
		Headless:   cfg.Browser.Headless,
		ExecPath:   cfg.Browser.ExecPath,
	}, logger)

	var bot *discord.Bot
	var deliverer delivery.Deliverer
	switch cfg.Delivery.Mode {
	case "webhook":
		deliverer = delivery.NewWebhookDeliverer(cfg.Delivery.WebhookURL, cfg.Delivery.Timeout, maxAttachmentBytes(cfg), logger)
	default:
		bot, err = discord.NewBot(cfg.Delivery.Token, logger)
		if err != nil {
			return err
		}
		if err := bot.Open(); err != nil {
			return err
		}
		defer func() { _ = bot.Close() }()
		deliverer = bot
	}

	d, err := newDaemon(cfg, logger, launcher, deliverer)
	if err != nil {
		return err
	}
	defer d.close()

	if bot != nil && cfg.Delivery.Commands {
		if err := bot.RegisterCommands(d.supervisor); err != nil {
			logger.Warn("slash commands unavailable", "error", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Monitoring %d producers (ledger: %s)\n", len(d.ledger.Producers()), cfg.Ledger.Path)
	return d.run(ctx)
}

// daemon holds the long-running components of `audiowatch run`.
type daemon struct {
	cfg        *config.Config
	logger     *logging.Logger
	bus        *event.Bus
	metrics    *metrics.Collector
	ledger     *ledger.Ledger
	supervisor *supervisor.Supervisor
	watcher    *ledger.Watcher
}

// newDaemon wires the ledger, catalog scanner, artifact fetcher, and
// supervisor around the given browser launcher and deliverer.
func newDaemon(cfg *config.Config, logger *logging.Logger, launcher session.Launcher, deliverer delivery.Deliverer) (*daemon, error) {
	l, err := openLedger(cfg)
	if err != nil {
		return nil, err
	}

	bus := event.NewBus(logger)
	collector := metrics.New()
	collector.Attach(bus)

	scanner := catalog.NewScanner(catalog.Options{
		BaseURL:           cfg.Catalog.BaseURL,
		RevealCount:       cfg.Monitor.RevealCount,
		RevealDistance:    cfg.Monitor.RevealDistance,
		SettleDelay:       cfg.Monitor.SettleDelay,
		RevealDelay:       cfg.Monitor.RevealDelay,
		DetailSettleDelay: cfg.Monitor.DetailSettleDelay,
		NavigationTimeout: cfg.Monitor.NavigationTimeout,
	}, nil, logger)

	fetcher := artifact.NewFetcher(artifact.Options{
		BaseURL:  cfg.Artifact.BaseURL,
		Timeout:  cfg.Artifact.Timeout,
		MaxBytes: maxAttachmentBytes(cfg),
	}, logger)

	sup := supervisor.New(launcher, l, supervisor.Deps{
		Scanner:   scanner,
		Fetcher:   fetcher,
		Deliverer: deliverer,
	},
		supervisor.WithInterval(cfg.Supervisor.Interval),
		supervisor.WithRetryDelay(cfg.Supervisor.RetryDelay),
		supervisor.WithLivenessTimeout(cfg.Supervisor.LivenessTimeout),
		supervisor.WithWorkers(cfg.Monitor.Workers, cfg.Monitor.OnDemandSessions),
		supervisor.WithChannel(cfg.Delivery.Channel),
		supervisor.WithBus(bus),
		supervisor.WithLogger(logger),
		supervisor.WithWorkerOptions(
			monitor.WithPollInterval(cfg.Monitor.PollInterval),
			monitor.WithDeliveryTimeout(cfg.Delivery.Timeout),
		),
	)

	watcher, err := ledger.NewWatcher(l, sup.Absorb, logger)
	if err != nil {
		collector.Detach()
		return nil, err
	}

	return &daemon{
		cfg:        cfg,
		logger:     logger,
		bus:        bus,
		metrics:    collector,
		ledger:     l,
		supervisor: sup,
		watcher:    watcher,
	}, nil
}

// run blocks until ctx is cancelled or the supervisor gives up.
func (d *daemon) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return d.supervisor.Run(ctx) })
	g.Go(func() error { return d.watcher.Run(ctx) })
	if d.cfg.Metrics.Addr != "" {
		d.serveMetrics(ctx, g)
	}

	d.logger.Info("daemon started",
		"producers", len(d.ledger.Producers()),
		"workers", d.cfg.Monitor.Workers,
		"ondemand", d.cfg.Monitor.OnDemandSessions,
	)
	err := g.Wait()
	d.logger.Info("daemon stopped", "error", err)
	return err
}

func (d *daemon) serveMetrics(ctx context.Context, g *errgroup.Group) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.metrics.Handler())
	srv := &http.Server{
		Addr:              d.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		d.logger.Info("metrics endpoint listening", "addr", d.cfg.Metrics.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func (d *daemon) close() {
	d.metrics.Detach()
}

func maxAttachmentBytes(cfg *config.Config) int64 {
	return int64(cfg.Artifact.MaxAttachmentMB) * 1024 * 1024
}
