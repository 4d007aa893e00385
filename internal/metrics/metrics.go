// Package metrics exposes daemon activity as Prometheus metrics.
//
// A Collector subscribes to the event bus and translates events into
// counters, gauges, and histograms. Nothing in the monitor or supervisor
// packages imports Prometheus directly.
package metrics

import (
	"net/http"
	"sync"

	"github.com/Iron-Ham/audiowatch/internal/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "audiowatch"

// Collector records daemon events into Prometheus metrics.
type Collector struct {
	reg      *prometheus.Registry
	mu       sync.Mutex
	subIDs   []string
	attached *event.Bus

	itemsNotified    *prometheus.CounterVec
	itemsDeferred    *prometheus.CounterVec
	scansCompleted   prometheus.Counter
	scanDuration     prometheus.Histogram
	scanReferences   prometheus.Histogram
	poolLaunches     prometheus.Counter
	poolFailures     prometheus.Counter
	generation       prometheus.Gauge
	poolWorkers      prometheus.Gauge
	poolProducers    prometheus.Gauge
	workerExits      *prometheus.CounterVec
	producersTracked prometheus.Counter
}

// New creates a Collector with its own registry. Go runtime and process
// collectors are registered alongside the daemon metrics.
func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),

		itemsNotified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "items",
			Name:      "notified_total",
			Help:      "Items delivered and recorded, by whether an artifact was attached.",
		}, []string{"artifact"}),
		itemsDeferred: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "items",
			Name:      "deferred_total",
			Help:      "Items left unrecorded for a later cycle, by reason.",
		}, []string{"reason"}),
		scansCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "completed_total",
			Help:      "Producer listing scans completed.",
		}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Wall time of a single producer scan.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8), // 1s .. ~2m
		}),
		scanReferences: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "references",
			Help:      "Item references extracted per scan.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		poolLaunches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "launches_total",
			Help:      "Session pool generations launched.",
		}),
		poolFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "launch_failures_total",
			Help:      "Failed session pool launch attempts.",
		}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "generation",
			Help:      "Generation number of the active session pool.",
		}),
		poolWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "workers",
			Help:      "Workers started for the active generation.",
		}),
		poolProducers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "producers",
			Help:      "Producers partitioned across the active generation.",
		}),
		workerExits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "exits_total",
			Help:      "Monitor worker exits, by worker kind and outcome.",
		}, []string{"kind", "outcome"}),
		producersTracked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "producers",
			Name:      "tracked_total",
			Help:      "Producers routed to an on-demand worker while running.",
		}),
	}

	c.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.itemsNotified,
		c.itemsDeferred,
		c.scansCompleted,
		c.scanDuration,
		c.scanReferences,
		c.poolLaunches,
		c.poolFailures,
		c.generation,
		c.poolWorkers,
		c.poolProducers,
		c.workerExits,
		c.producersTracked,
	)
	return c
}

// Registry returns the registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Attach subscribes the collector to every event on bus. Calling Attach
// again moves the subscription to the new bus.
func (c *Collector) Attach(bus *event.Bus) {
	c.Detach()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.attached = bus
	c.subIDs = append(c.subIDs, bus.SubscribeAll(c.Observe))
}

// Detach removes the collector's subscriptions.
func (c *Collector) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attached == nil {
		return
	}
	for _, id := range c.subIDs {
		c.attached.Unsubscribe(id)
	}
	c.subIDs = nil
	c.attached = nil
}

// Observe records a single event. Unknown event types are ignored.
func (c *Collector) Observe(e event.Event) {
	switch ev := e.(type) {
	case event.ItemNotifiedEvent:
		label := "false"
		if ev.HasArtifact {
			label = "true"
		}
		c.itemsNotified.WithLabelValues(label).Inc()
	case event.ItemDeferredEvent:
		c.itemsDeferred.WithLabelValues(ev.Reason).Inc()
	case event.ScanCompletedEvent:
		c.scansCompleted.Inc()
		c.scanDuration.Observe(ev.Duration.Seconds())
		c.scanReferences.Observe(float64(ev.References))
	case event.PoolLaunchedEvent:
		c.poolLaunches.Inc()
		c.generation.Set(float64(ev.Generation))
		c.poolWorkers.Set(float64(ev.Workers))
		c.poolProducers.Set(float64(ev.Producers))
	case event.PoolFailedEvent:
		c.poolFailures.Inc()
	case event.WorkerExitedEvent:
		outcome := "clean"
		if ev.Err != nil {
			outcome = "error"
		}
		c.workerExits.WithLabelValues(ev.Kind, outcome).Inc()
	case event.ProducerTrackedEvent:
		c.producersTracked.Inc()
	}
}
