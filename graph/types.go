package graph

import (
	"time"

	"github.com/devloop-ai/synapse-go-sdk/core"
)

// NodeType classifies a graph-resident node. Entity types map onto node
// types through a fixed table at merge time (see nodeTypeTable).
type NodeType string

const (
	NodeFunction      NodeType = "function"
	NodeClass         NodeType = "class"
	NodeVariable      NodeType = "variable"
	NodeConcept       NodeType = "concept"
	NodeBusinessLogic NodeType = "business_logic"
	NodePreference    NodeType = "preference"
	NodeTeamPattern   NodeType = "team_pattern"
)

// nodeTypeTable is the fixed entity-to-node type mapping applied at merge.
var nodeTypeTable = map[core.EntityType]NodeType{
	core.EntityFunction:      NodeFunction,
	core.EntityClass:         NodeClass,
	core.EntityVariable:      NodeVariable,
	core.EntityConcept:       NodeConcept,
	core.EntityBusinessLogic: NodeBusinessLogic,
	core.EntityPreference:    NodePreference,
	core.EntityTeamPattern:   NodeTeamPattern,
}

// NodeMetadata carries the per-node quality signals.
type NodeMetadata struct {
	Complexity float64 `json:"complexity"`
	Quality    float64 `json:"quality"`
	Relevance  float64 `json:"relevance"`
}

// Node is a persisted graph vertex derived from one or more entities.
// Created on merge; access stats update on read; deleted only via Clear.
type Node struct {
	ID           string       `json:"id"`
	Type         NodeType     `json:"type"`
	Name         string       `json:"name"`
	Content      string       `json:"content"`
	Embedding    []float32    `json:"-"`
	Confidence   float64      `json:"confidence"`
	LastAccessed time.Time    `json:"lastAccessed"`
	AccessCount  int          `json:"accessCount"`
	Metadata     NodeMetadata `json:"metadata"`
}

// Edge is the persisted form of a relationship, derived 1:1 at merge time
// with weight = confidence.
type Edge struct {
	ID            string            `json:"id"`
	SourceID      string            `json:"sourceId"`
	TargetID      string            `json:"targetId"`
	Type          core.RelationType `json:"type"`
	Weight        float64           `json:"weight"`
	Confidence    float64           `json:"confidence"`
	Bidirectional bool              `json:"bidirectional"`
}

// Cluster groups nodes by embedding similarity. Clusters are fully
// recomputed on every merge.
type Cluster struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	NodeIDs   []string  `json:"nodeIds"`
	Centroid  []float32 `json:"-"`
	Coherence float64   `json:"coherence"`
}

// Stats summarizes the graph. Density is edges/(n*(n-1)/2) for n >= 2, else
// 0; average degree counts each edge at both endpoints.
type Stats struct {
	TotalNodes    int              `json:"totalNodes"`
	TotalEdges    int              `json:"totalEdges"`
	TotalClusters int              `json:"totalClusters"`
	NodesByType   map[NodeType]int `json:"nodesByType"`
	Density       float64          `json:"density"`
	AverageDegree float64          `json:"averageDegree"`
}

// Notification is the graphUpdated signal published after a merge.
type Notification struct {
	Added      int `json:"added"`
	TotalNodes int `json:"totalNodes"`
	TotalEdges int `json:"totalEdges"`
}

// FilterOp is a search filter operator.
type FilterOp string

const (
	FilterEq       FilterOp = "eq"
	FilterNeq      FilterOp = "neq"
	FilterGt       FilterOp = "gt"
	FilterLt       FilterOp = "lt"
	FilterContains FilterOp = "contains"
	FilterIn       FilterOp = "in"
)

// Filter restricts search results on a node field. Field is one of "id",
// "type", "name", "content", "confidence", "accessCount",
// "metadata.complexity", "metadata.quality", "metadata.relevance".
type Filter struct {
	Field string
	Op    FilterOp
	Value interface{}
}

// SearchOptions configures a semantic search.
type SearchOptions struct {
	Query string

	// TopK caps the result count. Default: 10.
	TopK int

	// MinSimilarity drops nodes below this cosine similarity. Default: 0.5.
	MinSimilarity float64

	Filters []Filter

	// IncludeRelationships attaches the edges touching each result node.
	IncludeRelationships bool
}

// SearchResult is one search hit. Equal similarities order by ascending
// node ID so results are reproducible.
type SearchResult struct {
	Node       *Node   `json:"node"`
	Similarity float64 `json:"similarity"`
	Edges      []*Edge `json:"edges,omitempty"`
}

// Visualization is the read-only projection for rendering layers.
type Visualization struct {
	Nodes    []*Node    `json:"nodes"`
	Edges    []*Edge    `json:"edges"`
	Clusters []*Cluster `json:"clusters"`
}
