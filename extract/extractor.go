// Package extract scans development text (primarily source code) for typed
// entities and relationships. Extraction is lexical: independent pattern
// passes over the raw text, no parsing. Unparseable input is never an error;
// it just yields an empty, confidence-0 result.
package extract

import (
	"context"
	"regexp"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/devloop-ai/synapse-go-sdk/core"
	"github.com/devloop-ai/synapse-go-sdk/embedder"
)

// Config tunes the extractor.
type Config struct {
	// SimilarityThreshold is the cosine similarity above which two
	// same-typed entities get a bidirectional similar_to relationship.
	// Default: 0.8.
	SimilarityThreshold float64

	// ExtendsConfidence is the confidence assigned to an extends
	// relationship read from an explicit class declaration. Default: 0.9.
	ExtendsConfidence float64
}

// DefaultConfig returns the extractor defaults.
var DefaultConfig = &Config{
	SimilarityThreshold: 0.8,
	ExtendsConfidence:   0.9,
}

// Extractor runs the lexical passes and pairwise similarity detection.
// The embedder is optional; without one, entities carry no embeddings and no
// similar_to relationships are produced.
type Extractor struct {
	embedder embedder.Embedder
	config   *Config
	logger   *zap.Logger
}

// New creates an extractor.
func New(emb embedder.Embedder, config *Config, logger *zap.Logger) *Extractor {
	if config == nil {
		config = DefaultConfig
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{embedder: emb, config: config, logger: logger}
}

// Pattern passes. Each is independent; a line can match several.
var (
	// func name( / function name( / def name(
	functionPattern = regexp.MustCompile(`(?m)\b(?:func|function|def)\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

	// var/let/const name
	variablePattern = regexp.MustCompile(`(?m)\b(?:var|let|const)\s+([A-Za-z_][A-Za-z0-9_]*)\b`)

	// class name [extends parent]
	classPattern = regexp.MustCompile(`(?m)\bclass\s+([A-Za-z_][A-Za-z0-9_]*)(?:\s+extends\s+([A-Za-z_][A-Za-z0-9_]*))?`)

	// import ... "path" / import ... from 'path'
	importPattern = regexp.MustCompile(`(?m)\bimport\b[^\n]*?["']([^"']+)["']`)
)

// Extract scans text for entities and relationships. The returned error is
// only ever a context cancellation; malformed text yields an empty result.
func (e *Extractor) Extract(ctx context.Context, text string, contextHint string) (*core.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entities []*core.Entity
	var relationships []*core.Relationship

	entities = append(entities, matchEntities(functionPattern, text, core.EntityFunction)...)
	entities = append(entities, matchEntities(variablePattern, text, core.EntityVariable)...)

	classEntities, extendsRels := e.matchClasses(text)
	entities = append(entities, classEntities...)
	relationships = append(relationships, extendsRels...)

	entities = append(entities, matchEntities(importPattern, text, core.EntityConcept)...)

	if len(entities) == 0 {
		return &core.Extraction{Entities: []*core.Entity{}, Relationships: []*core.Relationship{}}, nil
	}

	if e.embedder != nil {
		e.embedEntities(ctx, entities)
		relationships = append(relationships, e.similarityRelationships(entities)...)
	}

	extraction := &core.Extraction{
		Entities:      entities,
		Relationships: relationships,
		Confidence:    batchConfidence(entities, relationships),
	}

	e.logger.Debug("extraction complete",
		zap.Int("entities", len(entities)),
		zap.Int("relationships", len(relationships)),
		zap.Float64("confidence", extraction.Confidence),
		zap.String("context", contextHint))

	return extraction, nil
}

// matchEntities runs one pattern pass, yielding an entity per match with the
// byte-offset span of the captured name.
func matchEntities(pattern *regexp.Regexp, text string, entityType core.EntityType) []*core.Entity {
	var entities []*core.Entity
	for _, idx := range pattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := idx[2], idx[3]
		if start < 0 {
			continue
		}
		entities = append(entities, &core.Entity{
			ID:       uuid.New().String(),
			Text:     text[start:end],
			Type:     entityType,
			Position: core.Position{Start: start, End: end},
		})
	}
	return entities
}

// matchClasses handles the class pass. A class-with-parent match synthesizes
// an extends relationship; if the parent is not declared in the same text, a
// placeholder entity is synthesized so the relationship has a valid target.
func (e *Extractor) matchClasses(text string) ([]*core.Entity, []*core.Relationship) {
	var entities []*core.Entity
	var relationships []*core.Relationship
	byName := make(map[string]*core.Entity)

	for _, idx := range classPattern.FindAllStringSubmatchIndex(text, -1) {
		nameStart, nameEnd := idx[2], idx[3]
		class := &core.Entity{
			ID:       uuid.New().String(),
			Text:     text[nameStart:nameEnd],
			Type:     core.EntityClass,
			Position: core.Position{Start: nameStart, End: nameEnd},
		}
		entities = append(entities, class)
		byName[class.Text] = class

		if len(idx) < 6 || idx[4] < 0 {
			continue
		}
		parentName := text[idx[4]:idx[5]]

		parent, ok := byName[parentName]
		if !ok {
			parent = &core.Entity{
				ID:         uuid.New().String(),
				Text:       parentName,
				Type:       core.EntityClass,
				Position:   core.Position{Start: idx[4], End: idx[5]},
				Attributes: map[string]string{"source": "inferred"},
			}
			entities = append(entities, parent)
			byName[parentName] = parent
		}

		relationships = append(relationships, &core.Relationship{
			ID:             uuid.New().String(),
			SourceEntityID: class.ID,
			TargetEntityID: parent.ID,
			Type:           core.RelationExtends,
			Confidence:     e.config.ExtendsConfidence,
		})
	}
	return entities, relationships
}

// embedEntities computes per-entity embeddings. Embedding failures degrade
// to embedding-less entities rather than failing the extraction.
func (e *Extractor) embedEntities(ctx context.Context, entities []*core.Entity) {
	for _, entity := range entities {
		emb, err := e.embedder.Embed(ctx, entity.Text)
		if err != nil {
			e.logger.Warn("entity embedding failed",
				zap.String("entity", entity.Text),
				zap.Error(err))
			continue
		}
		entity.Embedding = emb
	}
}

// similarityRelationships links same-typed entity pairs whose cosine
// similarity exceeds the threshold with a bidirectional similar_to edge
// carrying the similarity value.
func (e *Extractor) similarityRelationships(entities []*core.Entity) []*core.Relationship {
	var relationships []*core.Relationship
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			a, b := entities[i], entities[j]
			if a.Type != b.Type || a.Text == b.Text {
				continue
			}
			if a.Embedding == nil || b.Embedding == nil {
				continue
			}
			sim := embedder.CosineSimilarity(a.Embedding, b.Embedding)
			if sim <= e.config.SimilarityThreshold {
				continue
			}
			relationships = append(relationships, &core.Relationship{
				ID:             uuid.New().String(),
				SourceEntityID: a.ID,
				TargetEntityID: b.ID,
				Type:           core.RelationSimilarTo,
				Confidence:     sim,
				Bidirectional:  true,
			})
		}
	}
	return relationships
}

// batchConfidence is 0 with no entities, otherwise
// min(0.95, 0.5 + 0.05*|entities| + 0.3*avg(relationship confidence)).
func batchConfidence(entities []*core.Entity, relationships []*core.Relationship) float64 {
	if len(entities) == 0 {
		return 0
	}
	var avgRel float64
	if len(relationships) > 0 {
		for _, rel := range relationships {
			avgRel += rel.Confidence
		}
		avgRel /= float64(len(relationships))
	}
	confidence := 0.5 + 0.05*float64(len(entities)) + 0.3*avgRel
	if confidence > 0.95 {
		confidence = 0.95
	}
	return confidence
}
