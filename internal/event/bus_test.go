package event

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/audiowatch/internal/logging"
)

func TestBus_PublishToSubscribers(t *testing.T) {
	bus := NewBus(nil)

	var got []Event
	bus.Subscribe(TypeItemNotified, func(e Event) { got = append(got, e) })
	bus.Subscribe(TypePoolLaunched, func(e Event) { t.Error("wrong type delivered") })

	bus.Publish(NewItemNotifiedEvent("alice", "101", true))

	require.Len(t, got, 1)
	notified, ok := got[0].(ItemNotifiedEvent)
	require.True(t, ok)
	assert.Equal(t, "alice", notified.Producer)
	assert.Equal(t, "101", notified.ItemID)
	assert.False(t, notified.Timestamp().IsZero())
}

func TestBus_SpecificBeforeWildcard(t *testing.T) {
	bus := NewBus(nil)

	var order []string
	bus.SubscribeAll(func(Event) { order = append(order, "all") })
	bus.Subscribe(TypeScanCompleted, func(Event) { order = append(order, "specific") })

	bus.Publish(NewScanCompletedEvent("bob", 3, 1, 0))

	assert.Equal(t, []string{"specific", "all"}, order)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)

	calls := 0
	id := bus.Subscribe(TypeItemDeferred, func(Event) { calls++ })
	assert.Equal(t, 1, bus.SubscriptionCount())

	assert.True(t, bus.Unsubscribe(id))
	assert.False(t, bus.Unsubscribe(id))
	assert.Equal(t, 0, bus.SubscriptionCount())

	bus.Publish(NewItemDeferredEvent("alice", "1", "channel_not_found"))
	assert.Zero(t, calls)
}

func TestBus_PanicIsolation(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(logging.NewWriterLogger(&buf, logging.LevelError))

	delivered := false
	bus.Subscribe(TypePoolFailed, func(Event) { panic("boom") })
	bus.Subscribe(TypePoolFailed, func(Event) { delivered = true })

	require.NotPanics(t, func() { bus.Publish(NewPoolFailedEvent(2, nil)) })
	assert.True(t, delivered)
	assert.Contains(t, buf.String(), "event handler panicked")
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus(nil)

	var mu sync.Mutex
	count := 0
	bus.SubscribeAll(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			bus.Publish(NewWorkerExitedEvent(1, "steady", slot, nil))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, count)
}
