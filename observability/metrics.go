// Package observability holds the Prometheus collector for the pipeline and
// the graph. The collector is optional everywhere it is accepted: a nil
// *Collector is a no-op, so tests and embedders that do not scrape metrics
// skip the wiring entirely.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the Prometheus metrics for one pipeline instance.
type Collector struct {
	registry *prometheus.Registry

	eventsSubmitted *prometheus.CounterVec
	eventsProcessed *prometheus.CounterVec
	eventsDropped   prometheus.Counter
	queueDepth      prometheus.Gauge
	processingTime  prometheus.Histogram

	graphNodes    prometheus.Gauge
	graphEdges    prometheus.Gauge
	graphClusters prometheus.Gauge
}

// NewCollector creates a collector with its own registry under the given
// namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		eventsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_submitted_total",
			Help:      "Events accepted by the pipeline, by event type.",
		}, []string{"type"}),
		eventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Events dispatched to a processor, by outcome.",
		}, []string{"status"}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped after exhausting retries.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Events currently waiting in the priority queue.",
		}),
		processingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "Per-event processing duration.",
			Buckets:   prometheus.DefBuckets,
		}),
		graphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Nodes currently in the knowledge graph.",
		}),
		graphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_edges",
			Help:      "Edges currently in the knowledge graph.",
		}),
		graphClusters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_clusters",
			Help:      "Clusters from the last recompute.",
		}),
	}

	registry.MustRegister(
		c.eventsSubmitted, c.eventsProcessed, c.eventsDropped,
		c.queueDepth, c.processingTime,
		c.graphNodes, c.graphEdges, c.graphClusters,
	)
	return c
}

// Registry exposes the collector's registry for scraping.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// EventSubmitted counts an accepted submission.
func (c *Collector) EventSubmitted(eventType string) {
	if c == nil {
		return
	}
	c.eventsSubmitted.WithLabelValues(eventType).Inc()
}

// EventProcessed counts one dispatch outcome ("success" or "failure") and
// observes its duration.
func (c *Collector) EventProcessed(status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.eventsProcessed.WithLabelValues(status).Inc()
	c.processingTime.Observe(duration.Seconds())
}

// EventDropped counts a retry-exhausted drop.
func (c *Collector) EventDropped() {
	if c == nil {
		return
	}
	c.eventsDropped.Inc()
}

// SetQueueDepth records the current queue size.
func (c *Collector) SetQueueDepth(depth int) {
	if c == nil {
		return
	}
	c.queueDepth.Set(float64(depth))
}

// SetGraphSize records the graph gauges after a merge or clear.
func (c *Collector) SetGraphSize(nodes, edges, clusters int) {
	if c == nil {
		return
	}
	c.graphNodes.Set(float64(nodes))
	c.graphEdges.Set(float64(edges))
	c.graphClusters.Set(float64(clusters))
}
