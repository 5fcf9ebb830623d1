package core

// EntityType classifies an extracted mention of a code construct or concept.
type EntityType string

const (
	EntityFunction      EntityType = "function"
	EntityClass         EntityType = "class"
	EntityVariable      EntityType = "variable"
	EntityConcept       EntityType = "concept"
	EntityBusinessLogic EntityType = "business_logic"
	EntityPreference    EntityType = "preference"
	EntityTeamPattern   EntityType = "team_pattern"
)

// RelationType classifies a typed directed link between two entities.
type RelationType string

const (
	RelationImplements  RelationType = "implements"
	RelationExtends     RelationType = "extends"
	RelationUses        RelationType = "uses"
	RelationDependsOn   RelationType = "depends_on"
	RelationSimilarTo   RelationType = "similar_to"
	RelationContradicts RelationType = "contradicts"
	RelationImproves    RelationType = "improves"
	RelationReplaces    RelationType = "replaces"
)

// Position is the byte-offset span of an entity in its source text.
type Position struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Entity is a transient extracted mention, produced by one extraction call.
// Entities exist only between extraction and graph merge; the merged form is
// graph.Node.
type Entity struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Type       EntityType        `json:"type"`
	Position   Position          `json:"position"`
	Attributes map[string]string `json:"attributes,omitempty"`

	// Embedding is set by the extractor when an embedder is available.
	Embedding []float32 `json:"-"`
}

// Relationship is the transient form of a typed directed link. Endpoints
// must exist in the same extraction batch or already in the graph at merge
// time.
type Relationship struct {
	ID             string            `json:"id"`
	SourceEntityID string            `json:"sourceEntityId"`
	TargetEntityID string            `json:"targetEntityId"`
	Type           RelationType      `json:"type"`
	Confidence     float64           `json:"confidence"`
	Bidirectional  bool              `json:"bidirectional"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Extraction is the result of one extractor pass over a piece of text.
type Extraction struct {
	Entities      []*Entity       `json:"entities"`
	Relationships []*Relationship `json:"relationships"`

	// Confidence is the batch confidence: 0 when nothing was found,
	// otherwise min(0.95, 0.5 + 0.05*|entities| + 0.3*avg(rel confidence)).
	Confidence float64 `json:"confidence"`
}
