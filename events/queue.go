package events

import "github.com/devloop-ai/synapse-go-sdk/core"

// queuedEvent pairs an event with its computed priority and the attempt
// state the pipeline tracks for it. The retry count lives here, not on the
// event, so concurrently processed copies of one event never share mutable
// state.
type queuedEvent struct {
	event    *core.MemoryEvent
	priority float64
	retries  int
}

// priorityQueue orders events by descending priority. Equal-priority
// entries keep FIFO order: a new entry inserts before the first entry with
// strictly lower priority. Linear insertion; queue depth at target scale is
// tens of events. Not goroutine-safe; the processor serializes access.
type priorityQueue struct {
	items []queuedEvent
}

func (q *priorityQueue) push(entry queuedEvent) {
	for i, item := range q.items {
		if item.priority < entry.priority {
			q.items = append(q.items, queuedEvent{})
			copy(q.items[i+1:], q.items[i:])
			q.items[i] = entry
			return
		}
	}
	q.items = append(q.items, entry)
}

// remove deletes every queued entry for the given event ID, preserving the
// order of the rest.
func (q *priorityQueue) remove(eventID string) {
	kept := q.items[:0]
	for _, item := range q.items {
		if item.event.ID != eventID {
			kept = append(kept, item)
		}
	}
	q.items = kept
}

// popBatch removes and returns up to n highest-priority events.
func (q *priorityQueue) popBatch(n int) []queuedEvent {
	if n > len(q.items) {
		n = len(q.items)
	}
	if n == 0 {
		return nil
	}
	batch := make([]queuedEvent, n)
	copy(batch, q.items[:n])
	remaining := copy(q.items, q.items[n:])
	q.items = q.items[:remaining]
	return batch
}

func (q *priorityQueue) len() int {
	return len(q.items)
}
