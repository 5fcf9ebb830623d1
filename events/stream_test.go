package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devloop-ai/synapse-go-sdk/core"
	"github.com/devloop-ai/synapse-go-sdk/events"
)

func streamEvent(id string, eventType core.EventType) *core.MemoryEvent {
	return &core.MemoryEvent{
		ID:        id,
		Type:      eventType,
		Timestamp: time.Now(),
		Metadata: core.EventMetadata{
			Confidence: 0.5,
			Source:     "test",
			Priority:   core.PriorityLow,
		},
	}
}

// submitAll pushes events through a processor that is never started, so the
// stream sees submissions without any batch processing racing the test.
func submitAll(t *testing.T, p *events.Processor, evs ...*core.MemoryEvent) {
	t.Helper()
	for _, ev := range evs {
		require.NoError(t, p.Submit(context.Background(), ev))
	}
}

func TestStreamFilterAndBatch(t *testing.T) {
	p := events.New(nil, nil, nil, nil, nil, nil)

	stream := p.NewStream(events.StreamOptions{
		Filter: func(e *core.MemoryEvent) bool {
			return e.Type == core.EventCodeGeneration
		},
		BufferSize: 2,
	})
	defer stream.Close()

	// Four alternating events; only the two code_generation ones match, so
	// exactly one batch of two comes out without a flush.
	submitAll(t, p,
		streamEvent("a", core.EventCodeGeneration),
		streamEvent("b", core.EventBugFix),
		streamEvent("c", core.EventCodeGeneration),
		streamEvent("d", core.EventBugFix),
	)

	select {
	case emission := <-stream.C():
		assert.Equal(t, events.EmissionBatch, emission.Kind)
		require.Len(t, emission.Batch, 2)
	case <-time.After(time.Second):
		t.Fatal("expected a batch emission")
	}

	select {
	case emission := <-stream.C():
		t.Fatalf("unexpected second emission: %+v", emission)
	default:
	}
}

func TestStreamTransform(t *testing.T) {
	p := events.New(nil, nil, nil, nil, nil, nil)

	stream := p.NewStream(events.StreamOptions{
		Transform: func(e *core.MemoryEvent) interface{} { return e.ID },
	})
	defer stream.Close()

	submitAll(t, p, streamEvent("only", core.EventBugFix))

	select {
	case emission := <-stream.C():
		assert.Equal(t, events.EmissionData, emission.Kind)
		assert.Equal(t, "only", emission.Data)
	case <-time.After(time.Second):
		t.Fatal("expected an emission")
	}
}

func TestStreamBufferSizeOneEmitsPerItem(t *testing.T) {
	p := events.New(nil, nil, nil, nil, nil, nil)

	// A buffer of one is no buffer: items come out individually, not as
	// batches of one.
	stream := p.NewStream(events.StreamOptions{BufferSize: 1})
	defer stream.Close()

	submitAll(t, p, streamEvent("solo", core.EventBugFix))

	select {
	case emission := <-stream.C():
		assert.Equal(t, events.EmissionData, emission.Kind)
		assert.Nil(t, emission.Batch)
	case <-time.After(time.Second):
		t.Fatal("expected an emission")
	}
}

func TestStreamFlush(t *testing.T) {
	p := events.New(nil, nil, nil, nil, nil, nil)

	stream := p.NewStream(events.StreamOptions{BufferSize: 10})
	defer stream.Close()

	submitAll(t, p,
		streamEvent("a", core.EventBugFix),
		streamEvent("b", core.EventBugFix),
	)

	// Nothing emitted yet: the buffer is below capacity.
	select {
	case emission := <-stream.C():
		t.Fatalf("unexpected emission before flush: %+v", emission)
	default:
	}

	stream.Flush()
	select {
	case emission := <-stream.C():
		assert.Equal(t, events.EmissionBatch, emission.Kind)
		assert.Len(t, emission.Batch, 2)
	case <-time.After(time.Second):
		t.Fatal("expected a flushed batch")
	}

	// Flushing an empty buffer emits nothing.
	stream.Flush()
	select {
	case emission := <-stream.C():
		t.Fatalf("unexpected emission after empty flush: %+v", emission)
	default:
	}
}

func TestStreamCloseDiscardsBuffer(t *testing.T) {
	p := events.New(nil, nil, nil, nil, nil, nil)

	stream := p.NewStream(events.StreamOptions{BufferSize: 10})
	submitAll(t, p, streamEvent("a", core.EventBugFix))

	stream.Close()
	_, open := <-stream.C()
	assert.False(t, open)

	// Submissions after close are ignored, not a panic.
	submitAll(t, p, streamEvent("b", core.EventBugFix))
	assert.Zero(t, stream.Dropped())
}
