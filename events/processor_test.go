package events

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devloop-ai/synapse-go-sdk/core"
	"github.com/devloop-ai/synapse-go-sdk/memory"
)

// recordingStore captures memory updates and can reject them on demand.
type recordingStore struct {
	mu      sync.Mutex
	updates []core.MemoryUpdate
	failErr error
}

func (s *recordingStore) UpdateSystem1(ctx context.Context, update *core.MemoryUpdate) error {
	return s.record(update)
}

func (s *recordingStore) UpdateSystem2(ctx context.Context, update *core.MemoryUpdate) error {
	return s.record(update)
}

func (s *recordingStore) record(update *core.MemoryUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.updates = append(s.updates, *update)
	return nil
}

func (s *recordingStore) Query(ctx context.Context, opts memory.QueryOptions) ([]*memory.Record, error) {
	return nil, nil
}

func (s *recordingStore) Close() error { return nil }

func (s *recordingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func (s *recordingStore) snapshot() []core.MemoryUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.MemoryUpdate, len(s.updates))
	copy(out, s.updates)
	return out
}

func (s *recordingStore) targets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.updates))
	for i, u := range s.updates {
		out[i] = u.Target
	}
	return out
}

// countingHandler fails (or panics) a configurable way while counting
// attempts.
type countingHandler struct {
	mu       sync.Mutex
	attempts int
	err      error
	panics   bool
}

func (h *countingHandler) Priority() float64 { return 0.2 }

func (h *countingHandler) Process(ctx context.Context, event *core.MemoryEvent) (*core.ProcessingResult, error) {
	h.mu.Lock()
	h.attempts++
	h.mu.Unlock()
	if h.panics {
		panic("handler exploded")
	}
	if h.err != nil {
		return nil, h.err
	}
	return &core.ProcessingResult{Success: true}, nil
}

func (h *countingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts
}

func testEvent(eventType core.EventType, bucket core.PriorityBucket) *core.MemoryEvent {
	return &core.MemoryEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		SessionID: "s1",
		Metadata: core.EventMetadata{
			Confidence: 0.5,
			Source:     "test",
			Priority:   bucket,
		},
	}
}

func TestSubmitRejectsInvalidEvents(t *testing.T) {
	p := New(nil, nil, nil, nil, nil, nil)

	err := p.Submit(context.Background(), nil)
	assert.Error(t, err)

	// Missing source fails validation synchronously.
	ev := testEvent(core.EventTeamInteraction, core.PriorityLow)
	ev.Metadata.Source = ""
	err = p.Submit(context.Background(), ev)
	assert.Error(t, err)
	assert.Zero(t, p.Statistics().QueueSize)

	// Unknown priority bucket fails too.
	ev = testEvent(core.EventTeamInteraction, "urgent")
	assert.Error(t, p.Submit(context.Background(), ev))
}

func TestLowPriorityWaitsForDrain(t *testing.T) {
	store := &recordingStore{}
	p := New(store, nil, nil, nil, nil, nil)
	p.runCtx = context.Background()

	require.NoError(t, p.Submit(context.Background(), testEvent(core.EventTeamInteraction, core.PriorityLow)))
	assert.Zero(t, store.count())
	assert.Equal(t, 1, p.Statistics().QueueSize)

	p.drainBatch()
	assert.Equal(t, 1, store.count())
	assert.Equal(t, []string{"teamPatterns"}, store.targets())
	assert.Zero(t, p.Statistics().QueueSize)
}

func TestCriticalProcessedImmediatelyAndAgainOnDrain(t *testing.T) {
	store := &recordingStore{}
	p := New(store, nil, nil, nil, nil, nil)
	p.runCtx = context.Background()

	// Critical bucket maps to 0.95, at or above the 0.9 threshold: the
	// submission itself processes the event, and it stays queued.
	require.NoError(t, p.Submit(context.Background(), testEvent(core.EventTeamInteraction, core.PriorityCritical)))
	assert.Equal(t, 1, store.count())
	assert.Equal(t, 1, p.Statistics().QueueSize)

	// The batch turn processes it a second time; consumers needing
	// exactly-once dedupe by event ID.
	p.drainBatch()
	assert.Equal(t, 2, store.count())
	assert.Zero(t, p.Statistics().QueueSize)
}

func TestRetriesThenDrops(t *testing.T) {
	handler := &countingHandler{err: fmt.Errorf("storage offline")}
	p := New(nil, nil, nil, nil, nil, nil)
	p.runCtx = context.Background()
	p.Register(core.EventLearningUpdate, handler)

	var dropped []*core.MemoryEvent
	var dropErrs []error
	var mu sync.Mutex
	p.OnError(func(ev *core.MemoryEvent, err error) {
		mu.Lock()
		dropped = append(dropped, ev)
		dropErrs = append(dropErrs, err)
		mu.Unlock()
	})

	ev := testEvent(core.EventLearningUpdate, core.PriorityLow)
	require.NoError(t, p.Submit(context.Background(), ev))

	// Initial attempt plus MaxRetries resubmissions, then the drop.
	for i := 0; i < 4; i++ {
		mu.Lock()
		assert.Empty(t, dropped)
		mu.Unlock()
		p.drainBatch()
	}
	assert.Equal(t, 4, handler.count())

	mu.Lock()
	require.Len(t, dropped, 1)
	assert.Equal(t, ev.ID, dropped[0].ID)
	assert.ErrorContains(t, dropErrs[0], "dropped after 3 retries")
	mu.Unlock()

	// Nothing left to process.
	p.drainBatch()
	assert.Equal(t, 4, handler.count())

	// Resubmissions never re-counted the event.
	assert.Equal(t, int64(1), p.Statistics().TotalByType[core.EventLearningUpdate])
}

func TestFailedCriticalKeepsSingleRetryChain(t *testing.T) {
	handler := &countingHandler{err: fmt.Errorf("storage offline")}
	p := New(nil, nil, nil, nil, nil, nil)
	p.runCtx = context.Background()
	p.Register(core.EventLearningUpdate, handler)

	var dropCount int
	var mu sync.Mutex
	p.OnError(func(ev *core.MemoryEvent, err error) {
		mu.Lock()
		dropCount++
		mu.Unlock()
	})

	// The critical submission processes immediately and fails; the retry
	// takes over the entry Submit queued, so the event is queued exactly
	// once, not alongside a stale pristine copy.
	require.NoError(t, p.Submit(context.Background(), testEvent(core.EventLearningUpdate, core.PriorityCritical)))
	assert.Equal(t, 1, handler.count())
	assert.Equal(t, 1, p.Statistics().QueueSize)

	// Three batch turns exhaust the remaining retries, then one drop.
	for i := 0; i < 3; i++ {
		p.drainBatch()
	}
	assert.Equal(t, 4, handler.count())
	assert.Zero(t, p.Statistics().QueueSize)
	mu.Lock()
	assert.Equal(t, 1, dropCount)
	mu.Unlock()

	p.drainBatch()
	assert.Equal(t, 4, handler.count())
}

func TestHandlerPanicIsContained(t *testing.T) {
	handler := &countingHandler{panics: true}
	p := New(nil, nil, nil, nil, nil, nil)
	p.runCtx = context.Background()
	p.Register(core.EventLearningUpdate, handler)

	var droppedCount int
	var mu sync.Mutex
	p.OnError(func(ev *core.MemoryEvent, err error) {
		mu.Lock()
		droppedCount++
		mu.Unlock()
	})

	require.NoError(t, p.Submit(context.Background(), testEvent(core.EventLearningUpdate, core.PriorityLow)))
	for i := 0; i < 4; i++ {
		p.drainBatch()
	}

	mu.Lock()
	assert.Equal(t, 1, droppedCount)
	mu.Unlock()
}

func TestDefaultHandlerRecordsInteractionAndReasoning(t *testing.T) {
	store := &recordingStore{}
	p := New(store, nil, nil, nil, nil, nil)
	p.runCtx = context.Background()

	// learning_update has no registered handler; the default handler
	// records the raw interaction into the fast store.
	require.NoError(t, p.Submit(context.Background(), testEvent(core.EventLearningUpdate, core.PriorityLow)))
	p.drainBatch()
	assert.Equal(t, []string{"pastInteractions"}, store.targets())

	// Reasoning additionally lands in the slow store.
	ev := testEvent(core.EventPatternRecognition, core.PriorityLow)
	ev.Reasoning = "repeated nil checks suggest a missing invariant"
	require.NoError(t, p.Submit(context.Background(), ev))
	p.drainBatch()

	updates := store.snapshot()
	require.Len(t, updates, 3)
	assert.Equal(t, core.SystemOne, updates[0].System)
	assert.Equal(t, "pastInteractions", updates[1].Target)
	assert.Equal(t, core.SystemOne, updates[1].System)
	assert.Equal(t, "reasoningTraces", updates[2].Target)
	assert.Equal(t, core.SystemTwo, updates[2].System)

	data, ok := updates[2].Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, ev.ID, data["eventId"])
	assert.Equal(t, ev.Reasoning, data["reasoning"])
}

func TestDefaultHandlerDetectsRepetition(t *testing.T) {
	store := &recordingStore{}
	p := New(store, nil, nil, nil, nil, nil)
	p.runCtx = context.Background()

	var triggers []core.LearningTrigger
	var mu sync.Mutex
	p.OnLearningTrigger(func(trigger core.LearningTrigger) {
		mu.Lock()
		triggers = append(triggers, trigger)
		mu.Unlock()
	})

	// Three same-typed events for one session inside the repetition window
	// fire the trigger on the third.
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Submit(context.Background(), testEvent(core.EventLearningUpdate, core.PriorityLow)))
		p.drainBatch()
	}

	mu.Lock()
	require.Len(t, triggers, 1)
	assert.Equal(t, "pattern_detected", triggers[0].Name)
	assert.Equal(t, "s1", triggers[0].SessionID)
	assert.Equal(t, string(core.EventLearningUpdate), triggers[0].Payload["eventType"])
	mu.Unlock()

	// A fresh session starts its own count.
	other := testEvent(core.EventLearningUpdate, core.PriorityLow)
	other.SessionID = "s2"
	require.NoError(t, p.Submit(context.Background(), other))
	p.drainBatch()

	mu.Lock()
	assert.Len(t, triggers, 1)
	mu.Unlock()
}

func TestRejectedMemoryUpdateSignalsWithoutRetry(t *testing.T) {
	store := &recordingStore{failErr: fmt.Errorf("collection full")}
	p := New(store, nil, nil, nil, nil, nil)
	p.runCtx = context.Background()

	var errCount int
	var mu sync.Mutex
	p.OnError(func(ev *core.MemoryEvent, err error) {
		mu.Lock()
		errCount++
		mu.Unlock()
	})

	require.NoError(t, p.Submit(context.Background(), testEvent(core.EventTeamInteraction, core.PriorityLow)))
	p.drainBatch()

	// The handler succeeded; the rejected update is signaled, not retried.
	mu.Lock()
	assert.Equal(t, 1, errCount)
	mu.Unlock()
	assert.Zero(t, p.Statistics().QueueSize)
}

func TestPriorityFor(t *testing.T) {
	p := New(nil, nil, nil, nil, nil, nil)

	// Bucket alone.
	assert.InDelta(t, 0.25, p.priorityFor(testEvent(core.EventLearningUpdate, core.PriorityLow)), 1e-9)
	assert.InDelta(t, 0.95, p.priorityFor(testEvent(core.EventLearningUpdate, core.PriorityCritical)), 1e-9)

	// Handler intrinsic priority raises the bucket value.
	assert.InDelta(t, 0.8, p.priorityFor(testEvent(core.EventCodeGeneration, core.PriorityLow)), 1e-9)
	assert.InDelta(t, 0.9, p.priorityFor(testEvent(core.EventBugFix, core.PriorityLow)), 1e-9)
	assert.InDelta(t, 0.95, p.priorityFor(testEvent(core.EventCodeGeneration, core.PriorityCritical)), 1e-9)

	// Confidence above 0.8 boosts 1.2x, capped at 1.0.
	boosted := testEvent(core.EventLearningUpdate, core.PriorityMedium)
	boosted.Metadata.Confidence = 0.85
	assert.InDelta(t, 0.6, p.priorityFor(boosted), 1e-9)

	capped := testEvent(core.EventLearningUpdate, core.PriorityCritical)
	capped.Metadata.Confidence = 0.85
	assert.InDelta(t, 1.0, p.priorityFor(capped), 1e-9)
}

func TestStatisticsTracking(t *testing.T) {
	store := &recordingStore{}
	p := New(store, nil, nil, nil, nil, nil)
	p.runCtx = context.Background()

	require.NoError(t, p.Submit(context.Background(), testEvent(core.EventTeamInteraction, core.PriorityLow)))
	require.NoError(t, p.Submit(context.Background(), testEvent(core.EventModeChange, core.PriorityLow)))
	p.drainBatch()

	stats := p.Statistics()
	assert.Equal(t, int64(1), stats.TotalByType[core.EventTeamInteraction])
	assert.Equal(t, int64(1), stats.TotalByType[core.EventModeChange])
	assert.InDelta(t, 1.0, stats.SuccessRate, 1e-9)
	assert.False(t, stats.LastProcessed.IsZero())
	assert.Zero(t, stats.QueueSize)

	// A failure pulls the moving success rate below 1.
	handler := &countingHandler{err: fmt.Errorf("boom")}
	p.Register(core.EventLearningUpdate, handler)
	require.NoError(t, p.Submit(context.Background(), testEvent(core.EventLearningUpdate, core.PriorityLow)))
	p.drainBatch()

	assert.Less(t, p.Statistics().SuccessRate, 1.0)
}

func TestBatchSizeBoundsDrain(t *testing.T) {
	store := &recordingStore{}
	cfg := &Config{BatchSize: 2, BatchInterval: time.Second, MaxRetries: 3, CriticalThreshold: 0.9}
	p := New(store, nil, nil, cfg, nil, nil)
	p.runCtx = context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(context.Background(), testEvent(core.EventTeamInteraction, core.PriorityLow)))
	}

	p.drainBatch()
	assert.Equal(t, 2, store.count())
	assert.Equal(t, 3, p.Statistics().QueueSize)

	p.drainBatch()
	p.drainBatch()
	assert.Equal(t, 5, store.count())
	assert.Zero(t, p.Statistics().QueueSize)
}

func TestStartDrainsOnSchedule(t *testing.T) {
	store := &recordingStore{}
	p := New(store, nil, nil, nil, nil, nil)

	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()
	assert.Error(t, p.Start(context.Background()))

	require.NoError(t, p.Submit(context.Background(), testEvent(core.EventTeamInteraction, core.PriorityLow)))

	require.Eventually(t, func() bool {
		return store.count() == 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestStopClosesStreams(t *testing.T) {
	p := New(nil, nil, nil, nil, nil, nil)
	require.NoError(t, p.Start(context.Background()))

	stream := p.NewStream(StreamOptions{})
	p.Stop()

	_, open := <-stream.C()
	assert.False(t, open)

	// Stop is idempotent.
	p.Stop()
}
