package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devloop-ai/synapse-go-sdk/core"
)

func queued(id string, priority float64) queuedEvent {
	return queuedEvent{event: &core.MemoryEvent{ID: id}, priority: priority}
}

func ids(batch []queuedEvent) []string {
	out := make([]string, len(batch))
	for i, item := range batch {
		out[i] = item.event.ID
	}
	return out
}

func TestQueueOrdersByPriority(t *testing.T) {
	var q priorityQueue
	q.push(queued("low", 0.25))
	q.push(queued("critical", 0.95))
	q.push(queued("medium", 0.5))
	q.push(queued("high", 0.75))

	batch := q.popBatch(4)
	assert.Equal(t, []string{"critical", "high", "medium", "low"}, ids(batch))
	assert.Zero(t, q.len())
}

func TestQueueFIFOAmongEqualPriorities(t *testing.T) {
	var q priorityQueue
	q.push(queued("first", 0.5))
	q.push(queued("second", 0.5))
	q.push(queued("third", 0.5))
	q.push(queued("urgent", 0.9))
	q.push(queued("fourth", 0.5))

	batch := q.popBatch(5)
	assert.Equal(t, []string{"urgent", "first", "second", "third", "fourth"}, ids(batch))
}

func TestQueuePopBatchPartial(t *testing.T) {
	var q priorityQueue
	q.push(queued("a", 0.9))
	q.push(queued("b", 0.5))
	q.push(queued("c", 0.1))

	batch := q.popBatch(2)
	require.Equal(t, []string{"a", "b"}, ids(batch))
	assert.Equal(t, 1, q.len())

	batch = q.popBatch(10)
	assert.Equal(t, []string{"c"}, ids(batch))
	assert.Zero(t, q.len())

	assert.Nil(t, q.popBatch(10))
}

func TestQueueRemoveByEventID(t *testing.T) {
	var q priorityQueue
	q.push(queued("a", 0.9))
	q.push(queued("b", 0.5))
	q.push(queued("b", 0.5))
	q.push(queued("c", 0.1))

	q.remove("b")
	assert.Equal(t, []string{"a", "c"}, ids(q.popBatch(10)))

	// Removing an absent ID is a no-op.
	q.push(queued("a", 0.9))
	q.remove("missing")
	assert.Equal(t, 1, q.len())
}
