package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete audiowatch configuration
type Config struct {
	Monitor    MonitorConfig    `mapstructure:"monitor" yaml:"monitor"`
	Supervisor SupervisorConfig `mapstructure:"supervisor" yaml:"supervisor"`
	Catalog    CatalogConfig    `mapstructure:"catalog" yaml:"catalog"`
	Artifact   ArtifactConfig   `mapstructure:"artifact" yaml:"artifact"`
	Delivery   DeliveryConfig   `mapstructure:"delivery" yaml:"delivery"`
	Ledger     LedgerConfig     `mapstructure:"ledger" yaml:"ledger"`
	Browser    BrowserConfig    `mapstructure:"browser" yaml:"browser"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
}

// MonitorConfig controls the monitor workers and the catalog scan
type MonitorConfig struct {
	// PollInterval is how long a worker sleeps after finishing its producers
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// RevealCount is the number of scroll actions performed before extracting
	// references. The catalog renders results lazily, so too few reveals
	// under-discovers items.
	RevealCount int `mapstructure:"reveal_count" yaml:"reveal_count"`
	// RevealDistance is the scroll distance in pixels per reveal action
	RevealDistance int `mapstructure:"reveal_distance" yaml:"reveal_distance"`
	// SettleDelay is the wait after navigating to a listing
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	// RevealDelay is the wait after each reveal action
	RevealDelay time.Duration `mapstructure:"reveal_delay" yaml:"reveal_delay"`
	// DetailSettleDelay is the wait after navigating to an item detail view
	DetailSettleDelay time.Duration `mapstructure:"detail_settle_delay" yaml:"detail_settle_delay"`
	// NavigationTimeout bounds every page navigation
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// Workers is the number of steady-state monitor workers (partition buckets)
	Workers int `mapstructure:"workers" yaml:"workers"`
	// OnDemandSessions is the number of sessions reserved for newly tracked producers
	OnDemandSessions int `mapstructure:"ondemand_sessions" yaml:"ondemand_sessions"`
}

// SupervisorConfig controls session pool supervision
type SupervisorConfig struct {
	// Interval is how often pool liveness is checked
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	// RetryDelay is the fixed wait after a failed launch
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	// LivenessTimeout bounds a single liveness probe
	LivenessTimeout time.Duration `mapstructure:"liveness_timeout" yaml:"liveness_timeout"`
}

// CatalogConfig points at the remote catalog
type CatalogConfig struct {
	// BaseURL is the catalog origin, e.g. https://create.roblox.com
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// ArtifactConfig controls audio artifact retrieval
type ArtifactConfig struct {
	// BaseURL is the artifact delivery origin
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// Timeout bounds a single fetch
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// MaxAttachmentMB drops artifacts larger than this (0 = no limit)
	MaxAttachmentMB int `mapstructure:"max_attachment_mb" yaml:"max_attachment_mb"`
}

// DeliveryConfig controls where notifications go
type DeliveryConfig struct {
	// Mode selects the deliverer: "bot" or "webhook"
	Mode string `mapstructure:"mode" yaml:"mode"`
	// Channel is the delivery channel name the bot looks up
	Channel string `mapstructure:"channel" yaml:"channel"`
	// Token is the bot token (bot mode)
	Token string `mapstructure:"token" yaml:"-"`
	// WebhookURL is the webhook endpoint (webhook mode)
	WebhookURL string `mapstructure:"webhook_url" yaml:"-"`
	// Commands registers the /track and /list slash commands (bot mode)
	Commands bool `mapstructure:"commands" yaml:"commands"`
	// Timeout bounds a single delivery
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LedgerConfig controls the persisted deduplication ledger
type LedgerConfig struct {
	// Path is the JSON document location. Empty means <data dir>/monitored_artists.json
	Path string `mapstructure:"path" yaml:"path"`
}

// BrowserConfig controls the browser session pool
type BrowserConfig struct {
	// ProfileDir is the persistent browser profile. Empty means <data dir>/profile
	ProfileDir string `mapstructure:"profile_dir" yaml:"profile_dir"`
	// Headless runs the browser without a window
	Headless bool `mapstructure:"headless" yaml:"headless"`
	// ExecPath overrides the browser executable (empty = auto-detect)
	ExecPath string `mapstructure:"exec_path" yaml:"exec_path"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is where audiowatch.log is written (empty = stderr)
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB is the rotation threshold
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics (empty = disabled)
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Monitor: MonitorConfig{
			PollInterval:      2 * time.Second,
			RevealCount:       6,
			RevealDistance:    4000,
			SettleDelay:       4 * time.Second,
			RevealDelay:       1200 * time.Millisecond,
			DetailSettleDelay: 3 * time.Second,
			NavigationTimeout: 60 * time.Second,
			Workers:           20,
			OnDemandSessions:  20,
		},
		Supervisor: SupervisorConfig{
			Interval:        10 * time.Second,
			RetryDelay:      5 * time.Second,
			LivenessTimeout: 5 * time.Second,
		},
		Catalog: CatalogConfig{
			BaseURL: "https://create.roblox.com",
		},
		Artifact: ArtifactConfig{
			BaseURL:         "https://assetdelivery.roblox.com",
			Timeout:         30 * time.Second,
			MaxAttachmentMB: 8,
		},
		Delivery: DeliveryConfig{
			Mode:     "bot",
			Channel:  "new-audio",
			Commands: true,
			Timeout:  20 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Monitor defaults
	viper.SetDefault("monitor.poll_interval", defaults.Monitor.PollInterval)
	viper.SetDefault("monitor.reveal_count", defaults.Monitor.RevealCount)
	viper.SetDefault("monitor.reveal_distance", defaults.Monitor.RevealDistance)
	viper.SetDefault("monitor.settle_delay", defaults.Monitor.SettleDelay)
	viper.SetDefault("monitor.reveal_delay", defaults.Monitor.RevealDelay)
	viper.SetDefault("monitor.detail_settle_delay", defaults.Monitor.DetailSettleDelay)
	viper.SetDefault("monitor.navigation_timeout", defaults.Monitor.NavigationTimeout)
	viper.SetDefault("monitor.workers", defaults.Monitor.Workers)
	viper.SetDefault("monitor.ondemand_sessions", defaults.Monitor.OnDemandSessions)

	// Supervisor defaults
	viper.SetDefault("supervisor.interval", defaults.Supervisor.Interval)
	viper.SetDefault("supervisor.retry_delay", defaults.Supervisor.RetryDelay)
	viper.SetDefault("supervisor.liveness_timeout", defaults.Supervisor.LivenessTimeout)

	// Catalog and artifact defaults
	viper.SetDefault("catalog.base_url", defaults.Catalog.BaseURL)
	viper.SetDefault("artifact.base_url", defaults.Artifact.BaseURL)
	viper.SetDefault("artifact.timeout", defaults.Artifact.Timeout)
	viper.SetDefault("artifact.max_attachment_mb", defaults.Artifact.MaxAttachmentMB)

	// Delivery defaults
	viper.SetDefault("delivery.mode", defaults.Delivery.Mode)
	viper.SetDefault("delivery.channel", defaults.Delivery.Channel)
	viper.SetDefault("delivery.token", defaults.Delivery.Token)
	viper.SetDefault("delivery.webhook_url", defaults.Delivery.WebhookURL)
	viper.SetDefault("delivery.commands", defaults.Delivery.Commands)
	viper.SetDefault("delivery.timeout", defaults.Delivery.Timeout)

	// Storage defaults
	viper.SetDefault("ledger.path", defaults.Ledger.Path)
	viper.SetDefault("browser.profile_dir", defaults.Browser.ProfileDir)
	viper.SetDefault("browser.headless", defaults.Browser.Headless)
	viper.SetDefault("browser.exec_path", defaults.Browser.ExecPath)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Metrics defaults
	viper.SetDefault("metrics.addr", defaults.Metrics.Addr)
}

// Load reads the configuration from viper into a Config struct, fills derived
// paths, and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.resolvePaths()

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// resolvePaths fills empty storage paths with locations under DataDir.
func (c *Config) resolvePaths() {
	if c.Ledger.Path == "" {
		c.Ledger.Path = filepath.Join(DataDir(), "monitored_artists.json")
	}
	if c.Browser.ProfileDir == "" {
		c.Browser.ProfileDir = filepath.Join(DataDir(), "profile")
	}
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "audiowatch")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".audiowatch"
	}
	return filepath.Join(home, ".config", "audiowatch")
}

// DataDir returns the path to the user's data directory
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "audiowatch")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".audiowatch"
	}
	return filepath.Join(home, ".local", "share", "audiowatch")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidDeliveryModes returns the list of valid delivery mode values
func ValidDeliveryModes() []string {
	return []string{"bot", "webhook"}
}
