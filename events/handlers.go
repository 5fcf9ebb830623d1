package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devloop-ai/synapse-go-sdk/core"
	"github.com/devloop-ai/synapse-go-sdk/extract"
)

// Handler processes one event kind. Priority is the handler's intrinsic
// priority: submissions of its event type are raised to at least this
// value. Process returns the result contract; a returned error (or panic)
// is converted by the pipeline into a failed result and retried.
type Handler interface {
	Priority() float64
	Process(ctx context.Context, event *core.MemoryEvent) (*core.ProcessingResult, error)
}

// sessionTracker detects repetition: three or more same-typed events inside
// a 60 second window for one session. Each session keeps a rolling buffer
// capped at 100 entries.
type sessionTracker struct {
	mu       sync.Mutex
	sessions map[string][]sessionEntry
}

type sessionEntry struct {
	eventType core.EventType
	at        time.Time
}

const (
	repetitionWindow    = 60 * time.Second
	repetitionThreshold = 3
	sessionBufferCap    = 100
)

func newSessionTracker() *sessionTracker {
	return &sessionTracker{sessions: make(map[string][]sessionEntry)}
}

// observe records an event and reports whether it completes a repetition.
func (t *sessionTracker) observe(sessionID string, eventType core.EventType, at time.Time) bool {
	if sessionID == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	buffer := append(t.sessions[sessionID], sessionEntry{eventType: eventType, at: at})
	if len(buffer) > sessionBufferCap {
		buffer = buffer[len(buffer)-sessionBufferCap:]
	}
	t.sessions[sessionID] = buffer

	count := 0
	cutoff := at.Add(-repetitionWindow)
	for _, entry := range buffer {
		if entry.eventType == eventType && !entry.at.Before(cutoff) {
			count++
		}
	}
	return count >= repetitionThreshold
}

// eventSummary is the raw-event projection recorded into pastInteractions.
func eventSummary(event *core.MemoryEvent) map[string]interface{} {
	summary := map[string]interface{}{
		"id":        event.ID,
		"type":      string(event.Type),
		"timestamp": event.Timestamp.Format(time.RFC3339Nano),
		"source":    event.Metadata.Source,
	}
	if event.UserID != "" {
		summary["userId"] = event.UserID
	}
	if event.SessionID != "" {
		summary["sessionId"] = event.SessionID
	}
	if len(event.Metadata.Tags) > 0 {
		summary["tags"] = event.Metadata.Tags
	}
	return summary
}

// defaultHandler serves every event type without a registered handler.
type defaultHandler struct {
	extractor *extract.Extractor
	sessions  *sessionTracker
	logger    *zap.Logger
}

func (h *defaultHandler) Priority() float64 { return 0.5 }

func (h *defaultHandler) Process(ctx context.Context, event *core.MemoryEvent) (*core.ProcessingResult, error) {
	result := &core.ProcessingResult{Success: true}

	if event.Data != nil && h.extractor != nil {
		if text, ok := event.Data.Text(); ok {
			extraction, err := h.extractor.Extract(ctx, text, string(event.Type))
			if err != nil {
				return nil, fmt.Errorf("extract: %w", err)
			}
			if len(extraction.Entities) > 0 {
				result.GraphUpdates = append(result.GraphUpdates, core.GraphUpdate{Extraction: extraction})
			}
		}
	}

	result.MemoryUpdates = append(result.MemoryUpdates, core.MemoryUpdate{
		Type:      "interaction",
		Operation: core.OpAdd,
		System:    core.SystemOne,
		Target:    "pastInteractions",
		Data:      eventSummary(event),
	})

	if event.Reasoning != "" {
		result.MemoryUpdates = append(result.MemoryUpdates, core.MemoryUpdate{
			Type:      "reasoning",
			Operation: core.OpAdd,
			System:    core.SystemTwo,
			Target:    "reasoningTraces",
			Data: map[string]interface{}{
				"eventId":   event.ID,
				"reasoning": event.Reasoning,
			},
		})
	}

	if h.sessions.observe(event.SessionID, event.Type, event.Timestamp) {
		result.LearningTriggers = append(result.LearningTriggers, core.LearningTrigger{
			Name:      "pattern_detected",
			SessionID: event.SessionID,
			Payload: map[string]interface{}{
				"eventType": string(event.Type),
				"window":    repetitionWindow.String(),
			},
		})
	}
	return result, nil
}

// codeGenerationHandler records generated code as fast patterns and merges
// extracted entities into the knowledge graph.
type codeGenerationHandler struct {
	extractor *extract.Extractor
}

func (h *codeGenerationHandler) Priority() float64 { return 0.8 }

func (h *codeGenerationHandler) Process(ctx context.Context, event *core.MemoryEvent) (*core.ProcessingResult, error) {
	result := &core.ProcessingResult{Success: true}

	result.MemoryUpdates = append(result.MemoryUpdates, core.MemoryUpdate{
		Type:      "code_pattern",
		Operation: core.OpAdd,
		System:    core.SystemOne,
		Target:    "codePatterns",
		Data:      eventSummary(event),
	})

	if event.Data != nil && h.extractor != nil {
		if code, ok := event.Data.Text(); ok {
			extraction, err := h.extractor.Extract(ctx, code, "code_generation")
			if err != nil {
				return nil, fmt.Errorf("extract generated code: %w", err)
			}
			if len(extraction.Entities) > 0 {
				result.GraphUpdates = append(result.GraphUpdates, core.GraphUpdate{Extraction: extraction})
			}
		}
	}
	return result, nil
}

// bugFixHandler records fixes as error patterns, with the fix reasoning (if
// any) going to the slow store.
type bugFixHandler struct{}

func (h *bugFixHandler) Priority() float64 { return 0.9 }

func (h *bugFixHandler) Process(ctx context.Context, event *core.MemoryEvent) (*core.ProcessingResult, error) {
	result := &core.ProcessingResult{Success: true}

	result.MemoryUpdates = append(result.MemoryUpdates, core.MemoryUpdate{
		Type:      "error_pattern",
		Operation: core.OpAdd,
		System:    core.SystemOne,
		Target:    "errorPatterns",
		Data:      eventSummary(event),
	})
	if event.Reasoning != "" {
		result.MemoryUpdates = append(result.MemoryUpdates, core.MemoryUpdate{
			Type:      "reasoning",
			Operation: core.OpAdd,
			System:    core.SystemTwo,
			Target:    "reasoningTraces",
			Data: map[string]interface{}{
				"eventId":   event.ID,
				"reasoning": event.Reasoning,
			},
		})
	}
	return result, nil
}

// teamInteractionHandler records team activity as shared patterns.
type teamInteractionHandler struct{}

func (h *teamInteractionHandler) Priority() float64 { return 0.6 }

func (h *teamInteractionHandler) Process(ctx context.Context, event *core.MemoryEvent) (*core.ProcessingResult, error) {
	return &core.ProcessingResult{
		Success: true,
		MemoryUpdates: []core.MemoryUpdate{{
			Type:      "team_pattern",
			Operation: core.OpAdd,
			System:    core.SystemOne,
			Target:    "teamPatterns",
			Data:      eventSummary(event),
		}},
	}, nil
}

// modeChangeHandler records working-mode switches as preferences.
type modeChangeHandler struct{}

func (h *modeChangeHandler) Priority() float64 { return 0.7 }

func (h *modeChangeHandler) Process(ctx context.Context, event *core.MemoryEvent) (*core.ProcessingResult, error) {
	data := eventSummary(event)
	if mode, ok := event.Data.(core.ModeChangeData); ok {
		data["from"] = mode.From
		data["to"] = mode.To
		if mode.Trigger != "" {
			data["trigger"] = mode.Trigger
		}
	}
	return &core.ProcessingResult{
		Success: true,
		MemoryUpdates: []core.MemoryUpdate{{
			Type:      "mode_preference",
			Operation: core.OpAdd,
			System:    core.SystemOne,
			Target:    "modePreferences",
			Data:      data,
		}},
	}, nil
}
