package events

import (
	"sync"
	"time"

	"github.com/devloop-ai/synapse-go-sdk/core"
)

// ewmaAlpha weights the moving averages: each new sample contributes 10%.
const ewmaAlpha = 0.1

// Statistics is a snapshot of pipeline health.
type Statistics struct {
	// TotalByType counts submissions per event type. Retry resubmissions
	// do not count again.
	TotalByType map[core.EventType]int64 `json:"totalByType"`

	// SuccessRate is the exponentially-weighted success ratio [0.0-1.0].
	SuccessRate float64 `json:"successRate"`

	// AvgProcessingTime is the exponentially-weighted per-event duration.
	AvgProcessingTime time.Duration `json:"avgProcessingTime"`

	QueueSize     int       `json:"queueSize"`
	LastProcessed time.Time `json:"lastProcessed"`
}

// statsTracker accumulates pipeline statistics.
type statsTracker struct {
	mu            sync.Mutex
	totalByType   map[core.EventType]int64
	successRate   float64
	avgDuration   float64 // nanoseconds
	sampled       bool
	lastProcessed time.Time
}

func newStatsTracker() *statsTracker {
	return &statsTracker{totalByType: make(map[core.EventType]int64)}
}

func (t *statsTracker) recordSubmission(eventType core.EventType) {
	t.mu.Lock()
	t.totalByType[eventType]++
	t.mu.Unlock()
}

func (t *statsTracker) recordProcessing(success bool, duration time.Duration) {
	sample := 0.0
	if success {
		sample = 1.0
	}

	t.mu.Lock()
	if !t.sampled {
		t.successRate = sample
		t.avgDuration = float64(duration)
		t.sampled = true
	} else {
		t.successRate = ewmaAlpha*sample + (1-ewmaAlpha)*t.successRate
		t.avgDuration = ewmaAlpha*float64(duration) + (1-ewmaAlpha)*t.avgDuration
	}
	t.lastProcessed = time.Now()
	t.mu.Unlock()
}

func (t *statsTracker) snapshot(queueSize int) Statistics {
	t.mu.Lock()
	defer t.mu.Unlock()

	totals := make(map[core.EventType]int64, len(t.totalByType))
	for k, v := range t.totalByType {
		totals[k] = v
	}
	return Statistics{
		TotalByType:       totals,
		SuccessRate:       t.successRate,
		AvgProcessingTime: time.Duration(t.avgDuration),
		QueueSize:         queueSize,
		LastProcessed:     t.lastProcessed,
	}
}
