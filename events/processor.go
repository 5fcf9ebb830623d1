// Package events is the asynchronous, priority-ordered pipeline between
// activity producers and the knowledge graph / memory store. Producers
// submit MemoryEvents at arbitrary rates; the processor prioritizes,
// batches, dispatches to per-type handlers, applies results to the graph
// and the dual memory store, retries failures, and exposes filtered
// streaming views.
package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/devloop-ai/synapse-go-sdk/core"
	"github.com/devloop-ai/synapse-go-sdk/extract"
	"github.com/devloop-ai/synapse-go-sdk/graph"
	"github.com/devloop-ai/synapse-go-sdk/memory"
	"github.com/devloop-ai/synapse-go-sdk/observability"
)

// Config tunes the pipeline.
type Config struct {
	// BatchSize caps events drained per tick. Default: 10.
	BatchSize int

	// BatchInterval is the drain cadence. Default: 1s.
	BatchInterval time.Duration

	// MaxRetries bounds resubmissions of a failing event. Default: 3.
	MaxRetries int

	// CriticalThreshold is the priority at or above which a submission is
	// also processed immediately on the submitting goroutine. Default: 0.9.
	CriticalThreshold float64
}

// DefaultConfig returns the pipeline defaults.
var DefaultConfig = &Config{
	BatchSize:         10,
	BatchInterval:     time.Second,
	MaxRetries:        3,
	CriticalThreshold: 0.9,
}

// priority buckets map to these numeric priorities before handler and
// confidence adjustments.
var bucketPriority = map[core.PriorityBucket]float64{
	core.PriorityCritical: 0.95,
	core.PriorityHigh:     0.75,
	core.PriorityMedium:   0.5,
	core.PriorityLow:      0.25,
}

const (
	basePriority          = 0.5
	confidenceBoostFloor  = 0.8
	confidenceBoostFactor = 1.2
)

// Processor is the event pipeline. One Processor owns its queue and
// statistics; the graph store and memory store it writes to are shared
// collaborators with their own locking.
type Processor struct {
	config  *Config
	logger  *zap.Logger
	metrics *observability.Collector

	memoryStore memory.Store
	graphStore  *graph.Store

	mu       sync.Mutex
	queue    priorityQueue
	handlers map[core.EventType]Handler
	fallback Handler

	stats    *statsTracker
	sessions *sessionTracker

	streamMu sync.RWMutex
	streams  []*Stream

	errMu       sync.RWMutex
	errorSubs   []func(*core.MemoryEvent, error)
	triggerSubs []func(core.LearningTrigger)

	cron     *cron.Cron
	runCtx   context.Context
	stopRun  context.CancelFunc
	draining atomic.Bool
	started  atomic.Bool
}

// New creates a pipeline wired to the given stores. The extractor feeds the
// default and code_generation handlers. config, logger, and metrics may be
// nil.
func New(memoryStore memory.Store, graphStore *graph.Store, extractor *extract.Extractor, config *Config, logger *zap.Logger, metrics *observability.Collector) *Processor {
	if config == nil {
		config = DefaultConfig
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sessions := newSessionTracker()
	p := &Processor{
		config:      config,
		logger:      logger,
		metrics:     metrics,
		memoryStore: memoryStore,
		graphStore:  graphStore,
		handlers:    make(map[core.EventType]Handler),
		stats:       newStatsTracker(),
		sessions:    sessions,
		fallback: &defaultHandler{
			extractor: extractor,
			sessions:  sessions,
			logger:    logger,
		},
	}

	p.handlers[core.EventCodeGeneration] = &codeGenerationHandler{extractor: extractor}
	p.handlers[core.EventBugFix] = &bugFixHandler{}
	p.handlers[core.EventTeamInteraction] = &teamInteractionHandler{}
	p.handlers[core.EventModeChange] = &modeChangeHandler{}
	return p
}

// Register installs (or replaces) the handler for an event type.
func (p *Processor) Register(eventType core.EventType, handler Handler) {
	p.mu.Lock()
	p.handlers[eventType] = handler
	p.mu.Unlock()
}

// Start begins the periodic batch drain. Draining stops when Stop is called
// or ctx is cancelled.
func (p *Processor) Start(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return fmt.Errorf("processor already started")
	}

	interval := p.config.BatchInterval
	if interval <= 0 {
		interval = DefaultConfig.BatchInterval
	}

	p.runCtx, p.stopRun = context.WithCancel(ctx)
	p.cron = cron.New()
	if _, err := p.cron.AddFunc(fmt.Sprintf("@every %s", interval), p.drainBatch); err != nil {
		p.started.Store(false)
		return fmt.Errorf("schedule batch drain: %w", err)
	}
	p.cron.Start()

	p.logger.Info("event processor started",
		zap.Duration("batchInterval", interval),
		zap.Int("batchSize", p.config.BatchSize))
	return nil
}

// Stop halts the drain schedule, waits for an in-flight batch tick to
// finish, and closes every stream.
func (p *Processor) Stop() {
	if !p.started.CompareAndSwap(true, false) {
		return
	}
	if p.cron != nil {
		<-p.cron.Stop().Done()
	}
	if p.stopRun != nil {
		p.stopRun()
	}

	p.streamMu.Lock()
	streams := p.streams
	p.streams = nil
	p.streamMu.Unlock()
	for _, stream := range streams {
		stream.Close()
	}
	p.logger.Info("event processor stopped")
}

// Submit validates and enqueues an event. Validation errors return
// synchronously and are never retried. Events at or above the critical
// threshold are additionally processed immediately on the calling
// goroutine; they still take their batch turn later and are deliberately
// not deduplicated, so exactly-once consumers dedupe by event ID.
func (p *Processor) Submit(ctx context.Context, event *core.MemoryEvent) error {
	if err := core.ValidateEvent(event); err != nil {
		return err
	}

	priority := p.priorityFor(event)

	p.mu.Lock()
	p.queue.push(queuedEvent{event: event, priority: priority})
	depth := p.queue.len()
	p.mu.Unlock()

	p.stats.recordSubmission(event.Type)
	p.metrics.EventSubmitted(string(event.Type))
	p.metrics.SetQueueDepth(depth)

	p.streamMu.RLock()
	streams := p.streams
	p.streamMu.RUnlock()
	for _, stream := range streams {
		stream.offer(event)
	}

	p.logger.Debug("event submitted",
		zap.String("id", event.ID),
		zap.String("type", string(event.Type)),
		zap.Float64("priority", priority))

	if priority >= p.config.CriticalThreshold {
		p.processOne(ctx, queuedEvent{event: event, priority: priority})
	}
	return nil
}

// priorityFor computes the numeric priority: bucket override of the 0.5
// base, raised to the handler's intrinsic priority, boosted 1.2x (capped at
// 1.0) for high-confidence events.
func (p *Processor) priorityFor(event *core.MemoryEvent) float64 {
	priority := basePriority
	if bucket, ok := bucketPriority[event.Metadata.Priority]; ok {
		priority = bucket
	}

	p.mu.Lock()
	handler, ok := p.handlers[event.Type]
	p.mu.Unlock()
	if ok && handler.Priority() > priority {
		priority = handler.Priority()
	}

	if event.Metadata.Confidence > confidenceBoostFloor {
		priority *= confidenceBoostFactor
		if priority > 1.0 {
			priority = 1.0
		}
	}
	return priority
}

// requeue puts a failed event back without touching submission counters or
// streams. Any queued entry for the same event is replaced by the retry:
// when the immediate critical path fails, its retry takes over the entry
// Submit left in the queue, so a failing event has exactly one retry chain.
func (p *Processor) requeue(item queuedEvent) {
	p.mu.Lock()
	p.queue.remove(item.event.ID)
	p.queue.push(item)
	depth := p.queue.len()
	p.mu.Unlock()
	p.metrics.SetQueueDepth(depth)
}

// drainBatch runs one batch turn. The guard keeps ticks from overlapping;
// it does not block new submissions from interleaving with the in-flight
// batch.
func (p *Processor) drainBatch() {
	if !p.draining.CompareAndSwap(false, true) {
		return
	}
	defer p.draining.Store(false)

	ctx := p.runCtx
	if ctx == nil || ctx.Err() != nil {
		return
	}

	batchSize := p.config.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultConfig.BatchSize
	}

	p.mu.Lock()
	batch := p.queue.popBatch(batchSize)
	depth := p.queue.len()
	p.mu.Unlock()
	p.metrics.SetQueueDepth(depth)

	if len(batch) == 0 {
		return
	}

	// Fan out the whole batch and join before the next tick can start.
	var wg sync.WaitGroup
	for _, item := range batch {
		wg.Add(1)
		go func(item queuedEvent) {
			defer wg.Done()
			p.processOne(ctx, item)
		}(item)
	}
	wg.Wait()
}

// processOne dispatches a single event and applies its result. Handler
// errors and panics become failed results, retried up to MaxRetries, then
// dropped with an error signal. The attempt count rides on the queue entry,
// never on the event: two in-flight copies of one event must not share
// mutable state.
func (p *Processor) processOne(ctx context.Context, item queuedEvent) {
	event := item.event

	p.mu.Lock()
	handler, ok := p.handlers[event.Type]
	p.mu.Unlock()
	if !ok {
		handler = p.fallback
	}

	start := time.Now()
	result := p.dispatch(ctx, handler, event)
	duration := time.Since(start)

	if result.Success {
		p.applyResult(ctx, event, result)
		p.stats.recordProcessing(true, duration)
		p.metrics.EventProcessed("success", duration)
		return
	}

	p.stats.recordProcessing(false, duration)
	p.metrics.EventProcessed("failure", duration)

	if item.retries < p.config.MaxRetries {
		retry := item
		retry.retries++
		p.logger.Warn("event processing failed, retrying",
			zap.String("id", event.ID),
			zap.Int("attempt", retry.retries),
			zap.String("error", result.Error))
		p.requeue(retry)
		return
	}

	p.metrics.EventDropped()
	err := fmt.Errorf("event %s dropped after %d retries: %s", event.ID, item.retries, result.Error)
	p.logger.Error("event dropped", zap.String("id", event.ID), zap.Error(err))
	p.notifyError(event, err)
}

// dispatch invokes the handler, converting errors and panics into failed
// results so nothing crosses the processor boundary as an exception.
func (p *Processor) dispatch(ctx context.Context, handler Handler, event *core.MemoryEvent) (result *core.ProcessingResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("handler panic",
				zap.String("id", event.ID),
				zap.Any("panic", r))
			result = core.FailedResult(fmt.Errorf("handler panic: %v", r))
		}
	}()

	result, err := handler.Process(ctx, event)
	if err != nil {
		return core.FailedResult(err)
	}
	if result == nil {
		return core.FailedResult(fmt.Errorf("handler returned no result"))
	}
	return result
}

// applyResult pushes a successful result out: graph merges, memory updates
// per system target, learning triggers. A rejected memory update is
// signaled and skipped without aborting its siblings.
func (p *Processor) applyResult(ctx context.Context, event *core.MemoryEvent, result *core.ProcessingResult) {
	if p.graphStore != nil {
		for _, update := range result.GraphUpdates {
			if update.Extraction != nil {
				p.graphStore.AddExtraction(update.Extraction)
			}
		}
	}

	if p.memoryStore != nil {
		for i := range result.MemoryUpdates {
			update := &result.MemoryUpdates[i]
			if err := p.applyMemoryUpdate(ctx, update); err != nil {
				p.logger.Warn("memory update rejected",
					zap.String("event", event.ID),
					zap.String("system", string(update.System)),
					zap.String("target", update.Target),
					zap.Error(err))
				p.notifyError(event, err)
			}
		}
	}

	p.errMu.RLock()
	triggerSubs := p.triggerSubs
	p.errMu.RUnlock()
	for _, trigger := range result.LearningTriggers {
		p.logger.Debug("learning trigger",
			zap.String("name", trigger.Name),
			zap.String("session", trigger.SessionID))
		for _, fn := range triggerSubs {
			fn(trigger)
		}
	}
}

func (p *Processor) applyMemoryUpdate(ctx context.Context, update *core.MemoryUpdate) error {
	switch update.System {
	case core.SystemOne:
		return p.memoryStore.UpdateSystem1(ctx, update)
	case core.SystemTwo:
		return p.memoryStore.UpdateSystem2(ctx, update)
	case core.SystemBoth:
		if err := p.memoryStore.UpdateSystem1(ctx, update); err != nil {
			return err
		}
		return p.memoryStore.UpdateSystem2(ctx, update)
	default:
		return fmt.Errorf("unknown system target %q", update.System)
	}
}

// NewStream subscribes a filtered/transformed/buffered view over
// submissions. Streams close with the processor.
func (p *Processor) NewStream(opts StreamOptions) *Stream {
	stream := newStream(opts)
	p.streamMu.Lock()
	p.streams = append(p.streams, stream)
	p.streamMu.Unlock()
	return stream
}

// OnError subscribes to error signals: retry-exhausted drops and rejected
// memory updates.
func (p *Processor) OnError(fn func(*core.MemoryEvent, error)) {
	p.errMu.Lock()
	p.errorSubs = append(p.errorSubs, fn)
	p.errMu.Unlock()
}

// OnLearningTrigger subscribes to learning triggers emitted by processors.
func (p *Processor) OnLearningTrigger(fn func(core.LearningTrigger)) {
	p.errMu.Lock()
	p.triggerSubs = append(p.triggerSubs, fn)
	p.errMu.Unlock()
}

func (p *Processor) notifyError(event *core.MemoryEvent, err error) {
	p.errMu.RLock()
	subs := p.errorSubs
	p.errMu.RUnlock()
	for _, fn := range subs {
		fn(event, err)
	}
}

// Statistics snapshots pipeline health.
func (p *Processor) Statistics() Statistics {
	p.mu.Lock()
	depth := p.queue.len()
	p.mu.Unlock()
	return p.stats.snapshot(depth)
}
