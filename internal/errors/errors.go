// Package errors provides centralized error definitions and error handling utilities
// for audiowatch. It defines the sentinel errors shared by the monitoring engine,
// typed errors that carry context about the failing producer, item, or session,
// and classification helpers used to decide between skipping and escalating.
//
// # Error Types
//
// Domain-specific errors represent errors from specific subsystems:
//   - LedgerError: errors reading or persisting the deduplication ledger
//   - SessionError: errors related to the browser session pool and its handles
//   - DeliveryError: errors delivering a notification to the configured channel
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewLedgerError("persist failed", errors.ErrPersist).
//	    WithProducer("alice").WithItem("101")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrChannelNotFound) { ... }
//
//	var sessionErr *errors.SessionError
//	if errors.As(err, &sessionErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
//
// # Error Classification
//
// The monitoring engine sorts failures into four buckets:
//   - Transient I/O: skipped locally and retried on the next cycle
//   - Session invalid: terminates the worker, recovered by the supervisor
//   - Persistence: the notification is not considered complete
//   - Malformed input: silently discarded, never surfaced as an error
package errors

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require the process to stop.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Ledger-related sentinel errors
var (
	// ErrNotTracked indicates that the producer is not present in the ledger.
	ErrNotTracked = New("producer not tracked")
	// ErrAlreadyTracked indicates that the producer is already present in the ledger.
	ErrAlreadyTracked = New("producer already tracked")
	// ErrPersist indicates that the ledger could not be durably written.
	ErrPersist = New("ledger persistence failed")
	// ErrLedgerCorrupted indicates that the persisted ledger could not be decoded.
	ErrLedgerCorrupted = New("ledger data corrupted")
)

// Session-related sentinel errors
var (
	// ErrSessionClosed indicates that the session pool backing a handle is gone.
	ErrSessionClosed = New("session closed")
	// ErrStaleGeneration indicates that a worker outlived its pool generation.
	ErrStaleGeneration = New("stale pool generation")
	// ErrResourceExhausted indicates that the host ran out of a resource
	// required to launch a session pool.
	ErrResourceExhausted = New("resource exhausted")
)

// Delivery-related sentinel errors
var (
	// ErrChannelNotFound indicates that the configured delivery channel does not exist.
	ErrChannelNotFound = New("delivery channel not found")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// format renders "<kind> [k=v, ...]: message: cause".
func (e *baseError) format(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// LedgerError represents errors reading or writing the deduplication ledger.
//
// Example:
//
//	err := errors.NewLedgerError("record failed", errors.ErrPersist).WithProducer("alice")
//	fmt.Println(err) // "ledger error [producer=alice]: record failed: ledger persistence failed"
type LedgerError struct {
	baseError
	Producer string
	ItemID   string
}

// NewLedgerError creates a new LedgerError. Persistence failures are
// retryable: the item stays eligible and is retried on the next cycle.
func NewLedgerError(message string, cause error) *LedgerError {
	return &LedgerError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: errors.Is(cause, ErrPersist),
		},
	}
}

// WithProducer adds a producer name to the error context.
func (e *LedgerError) WithProducer(producer string) *LedgerError {
	e.Producer = producer
	return e
}

// WithItem adds an item identifier to the error context.
func (e *LedgerError) WithItem(id string) *LedgerError {
	e.ItemID = id
	return e
}

// Error returns the formatted error message.
func (e *LedgerError) Error() string {
	var parts []string
	if e.Producer != "" {
		parts = append(parts, "producer="+e.Producer)
	}
	if e.ItemID != "" {
		parts = append(parts, "item="+e.ItemID)
	}
	return e.format("ledger error", parts)
}

// SessionError represents errors related to the session pool or one of its handles.
type SessionError struct {
	baseError
	Generation uint64
	Handle     string
}

// NewSessionError creates a new SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: !errors.Is(cause, ErrResourceExhausted),
		},
	}
}

// WithGeneration adds the pool generation to the error context.
func (e *SessionError) WithGeneration(gen uint64) *SessionError {
	e.Generation = gen
	return e
}

// WithHandle adds a handle identifier to the error context.
func (e *SessionError) WithHandle(id string) *SessionError {
	e.Handle = id
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	var parts []string
	if e.Generation != 0 {
		parts = append(parts, fmt.Sprintf("generation=%d", e.Generation))
	}
	if e.Handle != "" {
		parts = append(parts, "handle="+e.Handle)
	}
	return e.format("session error", parts)
}

// DeliveryError represents errors delivering a notification.
type DeliveryError struct {
	baseError
	Channel string
	ItemID  string
}

// NewDeliveryError creates a new DeliveryError. Delivery failures are
// transient: the item is not recorded and is retried on the next cycle.
func NewDeliveryError(message string, cause error) *DeliveryError {
	return &DeliveryError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityWarning,
			retryable: true,
		},
	}
}

// WithChannel adds the channel name to the error context.
func (e *DeliveryError) WithChannel(channel string) *DeliveryError {
	e.Channel = channel
	return e
}

// WithItem adds an item identifier to the error context.
func (e *DeliveryError) WithItem(id string) *DeliveryError {
	e.ItemID = id
	return e
}

// Error returns the formatted error message.
func (e *DeliveryError) Error() string {
	var parts []string
	if e.Channel != "" {
		parts = append(parts, "channel="+e.Channel)
	}
	if e.ItemID != "" {
		parts = append(parts, "item="+e.ItemID)
	}
	return e.format("delivery error", parts)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

type retryable interface {
	IsRetryable() bool
}

type severe interface {
	Severity() Severity
}

// IsRetryable reports whether err is a transient failure that the next
// polling cycle may recover from.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r retryable
	if As(err, &r) {
		return r.IsRetryable()
	}
	return Is(err, ErrTimeout) || Is(err, ErrChannelNotFound)
}

// GetSeverity returns the severity of err, defaulting to SeverityError for
// errors that do not carry one.
func GetSeverity(err error) Severity {
	if IsFatal(err) {
		return SeverityCritical
	}
	var s severe
	if As(err, &s) {
		return s.Severity()
	}
	return SeverityError
}

// IsFatal reports whether err should stop the process rather than be retried.
// Only resource exhaustion qualifies.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return Is(err, ErrResourceExhausted) ||
		Is(err, syscall.EMFILE) ||
		Is(err, syscall.ENFILE) ||
		Is(err, syscall.ENOMEM)
}
