package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a "category.action" identifier, e.g. "item.notified".
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeProducerTracked = "producer.tracked"
	TypeScanCompleted   = "scan.completed"
	TypeItemNotified    = "item.notified"
	TypeItemDeferred    = "item.deferred"
	TypePoolLaunched    = "pool.launched"
	TypePoolFailed      = "pool.failed"
	TypeWorkerExited    = "worker.exited"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{eventType: eventType, timestamp: time.Now()}
}

// -----------------------------------------------------------------------------
// Producer Events
// -----------------------------------------------------------------------------

// ProducerTrackedEvent is emitted when a producer is routed to an on-demand slot.
type ProducerTrackedEvent struct {
	baseEvent
	Producer string
	Slot     int
}

// NewProducerTrackedEvent creates a ProducerTrackedEvent.
func NewProducerTrackedEvent(producer string, slot int) ProducerTrackedEvent {
	return ProducerTrackedEvent{
		baseEvent: newBaseEvent(TypeProducerTracked),
		Producer:  producer,
		Slot:      slot,
	}
}

// ScanCompletedEvent is emitted after a worker scans one producer.
// References is the raw listing size; New counts unseen identifiers.
type ScanCompletedEvent struct {
	baseEvent
	Producer   string
	References int
	New        int
	Duration   time.Duration
}

// NewScanCompletedEvent creates a ScanCompletedEvent.
func NewScanCompletedEvent(producer string, refs, fresh int, d time.Duration) ScanCompletedEvent {
	return ScanCompletedEvent{
		baseEvent:  newBaseEvent(TypeScanCompleted),
		Producer:   producer,
		References: refs,
		New:        fresh,
		Duration:   d,
	}
}

// -----------------------------------------------------------------------------
// Item Events
// -----------------------------------------------------------------------------

// ItemNotifiedEvent is emitted once an item was delivered and recorded.
type ItemNotifiedEvent struct {
	baseEvent
	Producer    string
	ItemID      string
	HasArtifact bool
}

// NewItemNotifiedEvent creates an ItemNotifiedEvent.
func NewItemNotifiedEvent(producer, itemID string, hasArtifact bool) ItemNotifiedEvent {
	return ItemNotifiedEvent{
		baseEvent:   newBaseEvent(TypeItemNotified),
		Producer:    producer,
		ItemID:      itemID,
		HasArtifact: hasArtifact,
	}
}

// ItemDeferredEvent is emitted when an item stays unrecorded and will be
// retried next cycle. Reason is one of "channel_not_found", "delivery_failed",
// "record_failed", "detail_failed".
type ItemDeferredEvent struct {
	baseEvent
	Producer string
	ItemID   string
	Reason   string
}

// NewItemDeferredEvent creates an ItemDeferredEvent.
func NewItemDeferredEvent(producer, itemID, reason string) ItemDeferredEvent {
	return ItemDeferredEvent{
		baseEvent: newBaseEvent(TypeItemDeferred),
		Producer:  producer,
		ItemID:    itemID,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// Pool Events
// -----------------------------------------------------------------------------

// PoolLaunchedEvent is emitted when a session pool generation becomes active.
type PoolLaunchedEvent struct {
	baseEvent
	Generation uint64
	Workers    int
	Producers  int
}

// NewPoolLaunchedEvent creates a PoolLaunchedEvent.
func NewPoolLaunchedEvent(gen uint64, workers, producers int) PoolLaunchedEvent {
	return PoolLaunchedEvent{
		baseEvent:  newBaseEvent(TypePoolLaunched),
		Generation: gen,
		Workers:    workers,
		Producers:  producers,
	}
}

// PoolFailedEvent is emitted when a launch attempt fails.
type PoolFailedEvent struct {
	baseEvent
	Generation uint64
	Err        error
}

// NewPoolFailedEvent creates a PoolFailedEvent.
func NewPoolFailedEvent(gen uint64, err error) PoolFailedEvent {
	return PoolFailedEvent{
		baseEvent:  newBaseEvent(TypePoolFailed),
		Generation: gen,
		Err:        err,
	}
}

// WorkerExitedEvent is emitted when a monitor worker returns.
type WorkerExitedEvent struct {
	baseEvent
	Generation uint64
	Kind       string
	Slot       int
	Err        error
}

// NewWorkerExitedEvent creates a WorkerExitedEvent.
func NewWorkerExitedEvent(gen uint64, kind string, slot int, err error) WorkerExitedEvent {
	return WorkerExitedEvent{
		baseEvent:  newBaseEvent(TypeWorkerExited),
		Generation: gen,
		Kind:       kind,
		Slot:       slot,
		Err:        err,
	}
}
