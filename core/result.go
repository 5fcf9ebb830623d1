package core

// SystemTarget selects which half of the dual memory store an update is for.
type SystemTarget string

const (
	SystemOne  SystemTarget = "system1"
	SystemTwo  SystemTarget = "system2"
	SystemBoth SystemTarget = "both"
)

// UpdateOperation is the kind of mutation a MemoryUpdate requests.
type UpdateOperation string

const (
	OpAdd    UpdateOperation = "add"
	OpUpdate UpdateOperation = "update"
	OpRemove UpdateOperation = "remove"
)

// MemoryUpdate is one mutation the pipeline applies to the memory store.
// System selects the store half; Target names the collection inside it
// (e.g. "pastInteractions", "reasoningTraces").
type MemoryUpdate struct {
	Type      string                 `json:"type"`
	Operation UpdateOperation        `json:"operation"`
	System    SystemTarget           `json:"system"`
	Target    string                 `json:"target"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// LearningTrigger is a signal that downstream learning subsystems subscribe
// to (e.g. "pattern_detected").
type LearningTrigger struct {
	Name      string                 `json:"name"`
	SessionID string                 `json:"sessionId,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// GraphUpdate describes a graph mutation a processor wants applied. Most
// processors merge extractions directly; this form exists for processors
// that compute updates without extraction.
type GraphUpdate struct {
	Extraction *Extraction `json:"extraction,omitempty"`
}

// ProcessingResult is the contract every event processor returns. A thrown
// or returned error is converted to a failed result by the pipeline; errors
// never cross the processor boundary unobserved.
type ProcessingResult struct {
	Success          bool              `json:"success"`
	MemoryUpdates    []MemoryUpdate    `json:"memoryUpdates"`
	GraphUpdates     []GraphUpdate     `json:"graphUpdates,omitempty"`
	LearningTriggers []LearningTrigger `json:"learningTriggers,omitempty"`
	Error            string            `json:"error,omitempty"`
}

// FailedResult builds a failed ProcessingResult from an error.
func FailedResult(err error) *ProcessingResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &ProcessingResult{Success: false, Error: msg}
}
