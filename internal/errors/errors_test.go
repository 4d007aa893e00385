package errors

import (
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.severity.String())
		})
	}
}

func TestLedgerError(t *testing.T) {
	err := NewLedgerError("record failed", ErrPersist).WithProducer("alice").WithItem("101")

	assert.Equal(t, "ledger error [producer=alice, item=101]: record failed: ledger persistence failed", err.Error())
	assert.True(t, Is(err, ErrPersist))
	assert.True(t, err.IsRetryable(), "persistence failures are retried next cycle")

	var target *LedgerError
	require.True(t, As(fmt.Errorf("wrapped: %w", err), &target))
	assert.Equal(t, "alice", target.Producer)
}

func TestLedgerError_NotTrackedIsNotRetryable(t *testing.T) {
	err := NewLedgerError("lookup failed", ErrNotTracked)
	assert.False(t, err.IsRetryable())
	assert.Equal(t, "ledger error: lookup failed: producer not tracked", err.Error())
}

func TestSessionError(t *testing.T) {
	err := NewSessionError("tab closed", ErrSessionClosed).WithGeneration(3).WithHandle("monitor-2")

	assert.Equal(t, "session error [generation=3, handle=monitor-2]: tab closed: session closed", err.Error())
	assert.True(t, err.IsRetryable())
	assert.True(t, Is(err, ErrSessionClosed))

	exhausted := NewSessionError("launch failed", ErrResourceExhausted)
	assert.False(t, exhausted.IsRetryable())
}

func TestDeliveryError(t *testing.T) {
	err := NewDeliveryError("send failed", ErrChannelNotFound).WithChannel("new-audio").WithItem("7")

	assert.Equal(t, "delivery error [channel=new-audio, item=7]: send failed: delivery channel not found", err.Error())
	assert.Equal(t, SeverityWarning, err.Severity())
	assert.True(t, IsRetryable(err))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout sentinel", ErrTimeout, true},
		{"wrapped channel not found", fmt.Errorf("deliver: %w", ErrChannelNotFound), true},
		{"plain error", New("boom"), false},
		{"ledger persist", NewLedgerError("x", ErrPersist), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(ErrSessionClosed))
	assert.True(t, IsFatal(ErrResourceExhausted))
	assert.True(t, IsFatal(fmt.Errorf("spawn chrome: %w", syscall.EMFILE)))
	assert.Equal(t, SeverityCritical, GetSeverity(fmt.Errorf("x: %w", syscall.ENOMEM)))
	assert.Equal(t, SeverityError, GetSeverity(New("plain")))
}
