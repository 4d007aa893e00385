package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Iron-Ham/audiowatch/internal/event"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ItemEvents(t *testing.T) {
	c := New()
	bus := event.NewBus(nil)
	c.Attach(bus)

	bus.Publish(event.NewItemNotifiedEvent("alice", "101", true))
	bus.Publish(event.NewItemNotifiedEvent("alice", "102", false))
	bus.Publish(event.NewItemNotifiedEvent("bob", "201", true))
	bus.Publish(event.NewItemDeferredEvent("alice", "103", "channel_not_found"))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.itemsNotified.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.itemsNotified.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.itemsDeferred.WithLabelValues("channel_not_found")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.itemsDeferred.WithLabelValues("record_failed")))
}

func TestCollector_PoolEvents(t *testing.T) {
	c := New()
	bus := event.NewBus(nil)
	c.Attach(bus)

	bus.Publish(event.NewPoolFailedEvent(1, errors.New("no browser")))
	bus.Publish(event.NewPoolLaunchedEvent(2, 40, 55))
	bus.Publish(event.NewWorkerExitedEvent(2, "steady", 0, nil))
	bus.Publish(event.NewWorkerExitedEvent(2, "steady", 1, errors.New("session closed")))
	bus.Publish(event.NewProducerTrackedEvent("carol", 0))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.poolFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.poolLaunches))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.generation))
	assert.Equal(t, 40.0, testutil.ToFloat64(c.poolWorkers))
	assert.Equal(t, 55.0, testutil.ToFloat64(c.poolProducers))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.workerExits.WithLabelValues("steady", "clean")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.workerExits.WithLabelValues("steady", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.producersTracked))
}

func TestCollector_ScanEvents(t *testing.T) {
	c := New()
	c.Observe(event.NewScanCompletedEvent("alice", 12, 3, 4*time.Second))
	c.Observe(event.NewScanCompletedEvent("bob", 0, 0, time.Second))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.scansCompleted))
	assert.Equal(t, 1, testutil.CollectAndCount(c.scanDuration))
}

func TestCollector_Detach(t *testing.T) {
	c := New()
	bus := event.NewBus(nil)
	c.Attach(bus)
	require.Equal(t, 1, bus.SubscriptionCount())

	c.Detach()
	assert.Equal(t, 0, bus.SubscriptionCount())

	bus.Publish(event.NewPoolLaunchedEvent(1, 2, 3))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.poolLaunches))

	c.Detach()
}

func TestCollector_AttachMovesSubscription(t *testing.T) {
	c := New()
	first := event.NewBus(nil)
	second := event.NewBus(nil)

	c.Attach(first)
	c.Attach(second)

	assert.Equal(t, 0, first.SubscriptionCount())
	assert.Equal(t, 1, second.SubscriptionCount())
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.Observe(event.NewItemNotifiedEvent("alice", "101", true))

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `audiowatch_items_notified_total{artifact="true"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
