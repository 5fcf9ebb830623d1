package events

import (
	"sync"

	"github.com/devloop-ai/synapse-go-sdk/core"
)

// StreamOptions configures a live view over submitted events.
type StreamOptions struct {
	// Filter drops non-matching events before transform. Nil passes all.
	Filter func(*core.MemoryEvent) bool

	// Transform maps an event to the emitted item. Nil emits the event.
	Transform func(*core.MemoryEvent) interface{}

	// BufferSize > 1 accumulates items and emits them as one batch when
	// full. 0 or 1 emits each item individually.
	BufferSize int
}

// EmissionKind distinguishes single-item from batch emissions.
type EmissionKind string

const (
	EmissionData  EmissionKind = "data"
	EmissionBatch EmissionKind = "batch"
)

// Emission is one delivery on a stream's channel.
type Emission struct {
	Kind EmissionKind

	// Data is set for EmissionData.
	Data interface{}

	// Batch is set for EmissionBatch.
	Batch []interface{}
}

// streamChannelCap bounds an unread stream before deliveries drop.
const streamChannelCap = 64

// Stream is a filtered, transformed, optionally buffered view over event
// submissions. Consumers range over C(); slow consumers lose deliveries
// rather than blocking the pipeline (Dropped reports how many).
type Stream struct {
	opts StreamOptions

	mu      sync.Mutex
	buffer  []interface{}
	closed  bool
	dropped int64

	ch chan Emission
}

func newStream(opts StreamOptions) *Stream {
	return &Stream{
		opts: opts,
		ch:   make(chan Emission, streamChannelCap),
	}
}

// C is the delivery channel. It closes when the stream is closed.
func (s *Stream) C() <-chan Emission {
	return s.ch
}

// offer feeds one submitted event through filter, transform, and buffering.
func (s *Stream) offer(event *core.MemoryEvent) {
	if s.opts.Filter != nil && !s.opts.Filter(event) {
		return
	}

	var item interface{} = event
	if s.opts.Transform != nil {
		item = s.opts.Transform(event)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if s.opts.BufferSize > 1 {
		s.buffer = append(s.buffer, item)
		if len(s.buffer) < s.opts.BufferSize {
			return
		}
		batch := s.buffer
		s.buffer = nil
		s.emitLocked(Emission{Kind: EmissionBatch, Batch: batch})
		return
	}

	s.emitLocked(Emission{Kind: EmissionData, Data: item})
}

// Flush emits the partially filled buffer as a batch immediately.
func (s *Stream) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.buffer) == 0 {
		return
	}
	batch := s.buffer
	s.buffer = nil
	s.emitLocked(Emission{Kind: EmissionBatch, Batch: batch})
}

// Close detaches the stream and closes its channel. Buffered items not yet
// emitted are discarded; call Flush first to keep them.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.buffer = nil
	close(s.ch)
}

// Dropped reports deliveries lost to a full channel.
func (s *Stream) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Stream) emitLocked(emission Emission) {
	select {
	case s.ch <- emission:
	default:
		s.dropped++
	}
}
