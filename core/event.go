package core

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// EventType identifies the kind of development activity an event records.
type EventType string

const (
	EventCodeGeneration     EventType = "code_generation"
	EventBugFix             EventType = "bug_fix"
	EventQualityImprovement EventType = "quality_improvement"
	EventTeamInteraction    EventType = "team_interaction"
	EventLearningUpdate     EventType = "learning_update"
	EventPatternRecognition EventType = "pattern_recognition"
	EventModeChange         EventType = "mode_change"
)

// PriorityBucket is the producer-declared urgency of an event.
// The pipeline maps buckets to numeric priorities when ordering the queue.
type PriorityBucket string

const (
	PriorityLow      PriorityBucket = "low"
	PriorityMedium   PriorityBucket = "medium"
	PriorityHigh     PriorityBucket = "high"
	PriorityCritical PriorityBucket = "critical"
)

// EventMetadata carries the producer-supplied routing hints for an event.
type EventMetadata struct {
	// Confidence is the producer's confidence in the event content [0.0-1.0].
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`

	// Source identifies the producing subsystem (e.g. "ai-router", "session").
	Source string `json:"source" validate:"required"`

	// Priority is the declared urgency bucket.
	Priority PriorityBucket `json:"priority" validate:"required,oneof=low medium high critical"`

	// Tags are free-form labels for stream filtering.
	Tags []string `json:"tags"`
}

// MemoryEvent is an immutable record of external development activity fed
// into the pipeline. Producers fill every required field; the pipeline only
// touches the transient retry counter.
type MemoryEvent struct {
	ID        string    `json:"id" validate:"required"`
	Type      EventType `json:"type" validate:"required,oneof=code_generation bug_fix quality_improvement team_interaction learning_update pattern_recognition mode_change"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId"`

	// Data is the type-tagged payload. Any producer may submit any event
	// type; untyped producers use RawData.
	Data EventData `json:"data"`

	// Reasoning optionally carries the deliberate reasoning behind the
	// event, recorded into the slow (System2) store.
	Reasoning string `json:"reasoning,omitempty"`

	Metadata EventMetadata `json:"metadata" validate:"required"`
}

// EventData is the tagged payload union. Concrete payload types implement
// the marker; RawData covers producers without a typed payload.
type EventData interface {
	// Text returns the extractable text of the payload, if any. Payloads
	// without source text return ("", false).
	Text() (string, bool)
}

// TextData is a plain-text payload.
type TextData struct {
	Content string `json:"content"`
}

func (d TextData) Text() (string, bool) { return d.Content, d.Content != "" }

// CodeGenerationData describes generated code handed to the pipeline.
type CodeGenerationData struct {
	Code     string `json:"code"`
	Language string `json:"language,omitempty"`
	FilePath string `json:"filePath,omitempty"`
	Accepted bool   `json:"accepted"`
}

func (d CodeGenerationData) Text() (string, bool) { return d.Code, d.Code != "" }

// BugFixData describes a resolved (or attempted) bug fix.
type BugFixData struct {
	Description string `json:"description"`
	Diff        string `json:"diff,omitempty"`
	FilePath    string `json:"filePath,omitempty"`
	Resolved    bool   `json:"resolved"`
}

func (d BugFixData) Text() (string, bool) { return d.Diff, d.Diff != "" }

// TeamInteractionData describes a team or session interaction.
type TeamInteractionData struct {
	Channel      string   `json:"channel,omitempty"`
	Summary      string   `json:"summary"`
	Participants []string `json:"participants,omitempty"`
}

func (d TeamInteractionData) Text() (string, bool) { return "", false }

// ModeChangeData records a switch between assistant working modes.
type ModeChangeData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Trigger string `json:"trigger,omitempty"`
}

func (d ModeChangeData) Text() (string, bool) { return "", false }

// RawData is the generic envelope for producers without a typed payload.
type RawData map[string]interface{}

// Text returns the "text" or "code" field when present.
func (d RawData) Text() (string, bool) {
	for _, key := range []string{"text", "code", "content"} {
		if v, ok := d[key].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

var eventValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidateEvent checks the structural invariants of an event. Violations
// surface synchronously to the submitting caller and are never retried.
func ValidateEvent(event *MemoryEvent) error {
	if event == nil {
		return fmt.Errorf("event is nil")
	}
	if err := eventValidator.Struct(event); err != nil {
		return fmt.Errorf("invalid event %q: %w", event.ID, err)
	}
	return nil
}
