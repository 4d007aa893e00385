package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "monitor.workers")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateMonitor()...)
	errors = append(errors, c.validateSupervisor()...)
	errors = append(errors, c.validateEndpoints()...)
	errors = append(errors, c.validateDelivery()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func positiveDuration(field string, d time.Duration) []ValidationError {
	if d > 0 {
		return nil
	}
	return []ValidationError{{Field: field, Value: d, Message: "must be positive"}}
}

func nonNegativeDuration(field string, d time.Duration) []ValidationError {
	if d >= 0 {
		return nil
	}
	return []ValidationError{{Field: field, Value: d, Message: "must be non-negative"}}
}

// validateMonitor validates the MonitorConfig
func (c *Config) validateMonitor() []ValidationError {
	var errors []ValidationError
	m := c.Monitor

	errors = append(errors, positiveDuration("monitor.poll_interval", m.PollInterval)...)
	errors = append(errors, positiveDuration("monitor.navigation_timeout", m.NavigationTimeout)...)
	errors = append(errors, nonNegativeDuration("monitor.settle_delay", m.SettleDelay)...)
	errors = append(errors, nonNegativeDuration("monitor.reveal_delay", m.RevealDelay)...)
	errors = append(errors, nonNegativeDuration("monitor.detail_settle_delay", m.DetailSettleDelay)...)

	if m.RevealCount < 0 {
		errors = append(errors, ValidationError{
			Field:   "monitor.reveal_count",
			Value:   m.RevealCount,
			Message: "must be non-negative",
		})
	}
	if m.Workers < 1 {
		errors = append(errors, ValidationError{
			Field:   "monitor.workers",
			Value:   m.Workers,
			Message: "must be at least 1",
		})
	}
	if m.OnDemandSessions < 1 {
		errors = append(errors, ValidationError{
			Field:   "monitor.ondemand_sessions",
			Value:   m.OnDemandSessions,
			Message: "must be at least 1",
		})
	}

	return errors
}

// validateSupervisor validates the SupervisorConfig
func (c *Config) validateSupervisor() []ValidationError {
	var errors []ValidationError
	errors = append(errors, positiveDuration("supervisor.interval", c.Supervisor.Interval)...)
	errors = append(errors, positiveDuration("supervisor.retry_delay", c.Supervisor.RetryDelay)...)
	errors = append(errors, positiveDuration("supervisor.liveness_timeout", c.Supervisor.LivenessTimeout)...)
	return errors
}

// validateEndpoints validates the catalog and artifact endpoints
func (c *Config) validateEndpoints() []ValidationError {
	var errors []ValidationError

	endpoints := []struct{ field, raw string }{
		{"catalog.base_url", c.Catalog.BaseURL},
		{"artifact.base_url", c.Artifact.BaseURL},
	}
	for _, ep := range endpoints {
		if u, err := url.Parse(ep.raw); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   ep.field,
				Value:   ep.raw,
				Message: "must be an absolute URL",
			})
		}
	}

	errors = append(errors, positiveDuration("artifact.timeout", c.Artifact.Timeout)...)
	if c.Artifact.MaxAttachmentMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "artifact.max_attachment_mb",
			Value:   c.Artifact.MaxAttachmentMB,
			Message: "must be non-negative",
		})
	}
	return errors
}

// validateDelivery validates the DeliveryConfig
func (c *Config) validateDelivery() []ValidationError {
	var errors []ValidationError
	d := c.Delivery

	if !slices.Contains(ValidDeliveryModes(), d.Mode) {
		errors = append(errors, ValidationError{
			Field:   "delivery.mode",
			Value:   d.Mode,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidDeliveryModes(), ", ")),
		})
	}
	if d.Mode == "bot" && strings.TrimSpace(d.Channel) == "" {
		errors = append(errors, ValidationError{
			Field:   "delivery.channel",
			Value:   d.Channel,
			Message: "must be set in bot mode",
		})
	}
	errors = append(errors, positiveDuration("delivery.timeout", d.Timeout)...)

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// RequireCredentials checks that the selected delivery mode has what it needs
// to connect. It is separate from Validate because read-only commands such as
// list and track work without credentials.
func (c *Config) RequireCredentials() error {
	switch c.Delivery.Mode {
	case "bot":
		if c.Delivery.Token == "" {
			return ValidationError{Field: "delivery.token", Value: "", Message: "must be set in bot mode"}
		}
	case "webhook":
		if c.Delivery.WebhookURL == "" {
			return ValidationError{Field: "delivery.webhook_url", Value: "", Message: "must be set in webhook mode"}
		}
	}
	return nil
}
