// Package synapse assembles the SDK: entity extraction, the knowledge
// graph, the dual memory store, and the event pipeline behind one client.
// Each subsystem is usable on its own; the client wires the default
// composition.
package synapse

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/devloop-ai/synapse-go-sdk/config"
	"github.com/devloop-ai/synapse-go-sdk/core"
	"github.com/devloop-ai/synapse-go-sdk/embedder"
	"github.com/devloop-ai/synapse-go-sdk/embedder/mock"
	"github.com/devloop-ai/synapse-go-sdk/events"
	"github.com/devloop-ai/synapse-go-sdk/extract"
	"github.com/devloop-ai/synapse-go-sdk/graph"
	"github.com/devloop-ai/synapse-go-sdk/memory"
	"github.com/devloop-ai/synapse-go-sdk/memory/store/chromem"
	"github.com/devloop-ai/synapse-go-sdk/observability"
)

// Client owns the wired subsystems. Create with New, start the pipeline
// with Start, and Close when done.
type Client struct {
	logger  *zap.Logger
	metrics *observability.Collector

	embedder    embedder.Embedder
	memoryStore memory.Store
	graphStore  *graph.Store
	extractor   *extract.Extractor
	processor   *events.Processor

	ownsMemoryStore bool
	cached          *embedder.Cached
}

// Option configures the client.
type Option func(*Client)

// WithLogger sets the logger shared by all subsystems.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics collector shared by all subsystems.
func WithMetrics(metrics *observability.Collector) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// WithEmbedder replaces the default deterministic embedder. The client
// does not wrap a caller-supplied embedder in the cache.
func WithEmbedder(emb embedder.Embedder) Option {
	return func(c *Client) {
		c.embedder = emb
	}
}

// WithMemoryStore replaces the default in-process vector store. The caller
// keeps ownership; Close will not close it.
func WithMemoryStore(store memory.Store) Option {
	return func(c *Client) {
		c.memoryStore = store
	}
}

// New wires a client from cfg (nil means config.Default()). Defaults: a
// cached deterministic embedder and an in-process chromem-backed dual
// memory store.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		logger, err := config.NewLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
		c.logger = logger
	}

	if c.embedder == nil {
		cached, err := embedder.NewCached(mock.New(cfg.Embedder.Dimensions), embedder.CacheConfig{
			MaxEntries: int64(cfg.Embedder.CacheEntries),
		})
		if err != nil {
			return nil, fmt.Errorf("build embedder cache: %w", err)
		}
		c.cached = cached
		c.embedder = cached
	}

	if c.memoryStore == nil {
		store, err := chromem.New(c.embedder, c.logger)
		if err != nil {
			return nil, fmt.Errorf("build memory store: %w", err)
		}
		c.memoryStore = store
		c.ownsMemoryStore = true
	}

	c.extractor = extract.New(c.embedder, &extract.Config{
		SimilarityThreshold: cfg.Extractor.SimilarityThreshold,
		ExtendsConfidence:   cfg.Extractor.ExtendsConfidence,
	}, c.logger)

	c.graphStore = graph.New(c.embedder, &graph.Config{
		ClusterThreshold:     cfg.Graph.ClusterThreshold,
		DefaultTopK:          cfg.Graph.DefaultTopK,
		DefaultMinSimilarity: cfg.Graph.DefaultMinSimilarity,
	}, c.logger, c.metrics)

	c.processor = events.New(c.memoryStore, c.graphStore, c.extractor, &events.Config{
		BatchSize:         cfg.Pipeline.BatchSize,
		BatchInterval:     cfg.Pipeline.BatchInterval,
		MaxRetries:        cfg.Pipeline.MaxRetries,
		CriticalThreshold: cfg.Pipeline.CriticalThreshold,
	}, c.logger, c.metrics)

	return c, nil
}

// Start begins background batch processing.
func (c *Client) Start(ctx context.Context) error {
	return c.processor.Start(ctx)
}

// Submit feeds one event into the pipeline.
func (c *Client) Submit(ctx context.Context, event *core.MemoryEvent) error {
	return c.processor.Submit(ctx, event)
}

// Search runs a semantic query against the knowledge graph.
func (c *Client) Search(ctx context.Context, opts graph.SearchOptions) ([]*graph.SearchResult, error) {
	return c.graphStore.Search(ctx, opts)
}

// FindPath returns the shortest concept path, or nil when none exists.
func (c *Client) FindPath(sourceID, targetID string) []*graph.Node {
	return c.graphStore.FindPath(sourceID, targetID)
}

// Graph exposes the knowledge graph store for direct use.
func (c *Client) Graph() *graph.Store {
	return c.graphStore
}

// Memory exposes the dual memory store for direct queries.
func (c *Client) Memory() memory.Store {
	return c.memoryStore
}

// Extractor exposes the entity extractor for direct use.
func (c *Client) Extractor() *extract.Extractor {
	return c.extractor
}

// NewStream subscribes a filtered view over event submissions.
func (c *Client) NewStream(opts events.StreamOptions) *events.Stream {
	return c.processor.NewStream(opts)
}

// OnError subscribes to pipeline error signals.
func (c *Client) OnError(fn func(*core.MemoryEvent, error)) {
	c.processor.OnError(fn)
}

// OnLearningTrigger subscribes to learning triggers.
func (c *Client) OnLearningTrigger(fn func(core.LearningTrigger)) {
	c.processor.OnLearningTrigger(fn)
}

// Statistics snapshots pipeline health.
func (c *Client) Statistics() events.Statistics {
	return c.processor.Statistics()
}

// GraphStatistics snapshots knowledge graph shape.
func (c *Client) GraphStatistics() graph.Stats {
	return c.graphStore.Statistics()
}

// Close stops the pipeline and releases owned resources.
func (c *Client) Close() error {
	c.processor.Stop()
	if c.cached != nil {
		c.cached.Close()
	}
	if c.ownsMemoryStore {
		return c.memoryStore.Close()
	}
	return nil
}
