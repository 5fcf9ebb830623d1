// Package memory defines the boundary to the dual fast/slow memory store
// the pipeline keeps synchronized. System1 holds fast-pattern state
// (pastInteractions, learnedPatterns); System2 holds deliberate-reasoning
// state (reasoningTraces, knowledgeBase). The store's internals (cache
// eviction, trace lifecycle) are not this SDK's concern; the pipeline only
// calls the operations below.
//
// store/chromem provides the local implementation on an embedded vector
// database; production deployments substitute their own Store.
package memory

import (
	"context"
	"time"

	"github.com/devloop-ai/synapse-go-sdk/core"
)

// Record is one stored memory returned from Query.
type Record struct {
	ID        string                 `json:"id"`
	System    core.SystemTarget      `json:"system"`
	Target    string                 `json:"target"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// QueryOptions selects records by store half, collection, and similarity to
// a query text.
type QueryOptions struct {
	System core.SystemTarget
	Target string
	Text   string

	// Limit caps results. Default: 10.
	Limit int
}

// Store is the external dual-store interface the pipeline writes to.
// UpdateSystem1 and UpdateSystem2 apply one mutation each to their half; an
// update with System "both" is applied by the pipeline as two calls.
type Store interface {
	UpdateSystem1(ctx context.Context, update *core.MemoryUpdate) error
	UpdateSystem2(ctx context.Context, update *core.MemoryUpdate) error
	Query(ctx context.Context, opts QueryOptions) ([]*Record, error)
	Close() error
}
