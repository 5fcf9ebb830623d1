// Package graph maintains the semantic knowledge graph: typed nodes merged
// from extractions, weighted edges, and similarity clusters, with semantic
// search, shortest-path queries, and statistics over the lot.
//
// The store owns its maps exclusively. All mutation goes through
// AddExtraction (or Clear) under the store lock, so concurrent submitters
// and an in-flight batch drain can safely share one store.
package graph

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/devloop-ai/synapse-go-sdk/core"
	"github.com/devloop-ai/synapse-go-sdk/embedder"
	"github.com/devloop-ai/synapse-go-sdk/observability"
)

// Config tunes the graph store.
type Config struct {
	// ClusterThreshold is the cosine similarity at which a cluster seed
	// absorbs an unclustered node. Default: 0.7.
	ClusterThreshold float64

	// DefaultTopK is the search result cap when SearchOptions.TopK is
	// unset. Default: 10.
	DefaultTopK int

	// DefaultMinSimilarity is the search floor when
	// SearchOptions.MinSimilarity is unset. Default: 0.5.
	DefaultMinSimilarity float64
}

// DefaultConfig returns the graph defaults.
var DefaultConfig = &Config{
	ClusterThreshold:     0.7,
	DefaultTopK:          10,
	DefaultMinSimilarity: 0.5,
}

// Store is the knowledge graph store.
type Store struct {
	mu       sync.RWMutex
	nodes    map[string]*Node
	edges    map[string]*Edge
	clusters []*Cluster

	embedder embedder.Embedder
	config   *Config
	logger   *zap.Logger
	metrics  *observability.Collector

	subMu       sync.RWMutex
	subscribers []func(Notification)
}

// New creates an empty graph store. The embedder is used only to embed
// search queries; merged nodes carry the embeddings their entities arrived
// with.
func New(emb embedder.Embedder, config *Config, logger *zap.Logger, metrics *observability.Collector) *Store {
	if config == nil {
		config = DefaultConfig
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		nodes:    make(map[string]*Node),
		edges:    make(map[string]*Edge),
		embedder: emb,
		config:   config,
		logger:   logger,
		metrics:  metrics,
	}
}

// Subscribe registers a graphUpdated subscriber. Subscribers run
// synchronously after each merge, outside the store lock.
func (s *Store) Subscribe(fn func(Notification)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// nodeID derives the deterministic upsert key for an entity.
func nodeID(nodeType NodeType, name string) string {
	return string(nodeType) + ":" + name
}

// edgeID derives the deterministic upsert key for a relationship.
func edgeID(sourceID, targetID string, relType core.RelationType) string {
	return sourceID + "->" + targetID + ":" + string(relType)
}

// AddExtraction merges an extraction into the graph: upserts one node per
// entity and one edge per relationship, recomputes clusters, and notifies
// subscribers with added/total counts.
func (s *Store) AddExtraction(extraction *core.Extraction) Notification {
	if extraction == nil {
		return Notification{}
	}

	now := time.Now()

	s.mu.Lock()

	added := 0
	byEntityID := make(map[string]string, len(extraction.Entities))

	for _, entity := range extraction.Entities {
		nodeType, ok := nodeTypeTable[entity.Type]
		if !ok {
			nodeType = NodeConcept
		}
		id := nodeID(nodeType, entity.Text)
		byEntityID[entity.ID] = id

		if node, exists := s.nodes[id]; exists {
			node.Confidence = extraction.Confidence
			node.AccessCount++
			node.LastAccessed = now
			if len(entity.Embedding) > 0 {
				node.Embedding = entity.Embedding
			}
			continue
		}

		s.nodes[id] = &Node{
			ID:           id,
			Type:         nodeType,
			Name:         entity.Text,
			Content:      entity.Text,
			Embedding:    entity.Embedding,
			Confidence:   extraction.Confidence,
			LastAccessed: now,
			AccessCount:  1,
			Metadata: NodeMetadata{
				Complexity: complexityOf(entity),
				Quality:    0.5,
				Relevance:  extraction.Confidence,
			},
		}
		added++
	}

	for _, rel := range extraction.Relationships {
		sourceID, okSrc := s.resolveEndpoint(byEntityID, rel.SourceEntityID)
		targetID, okDst := s.resolveEndpoint(byEntityID, rel.TargetEntityID)
		if !okSrc || !okDst {
			s.logger.Warn("dropping relationship with unresolved endpoint",
				zap.String("relationship", rel.ID),
				zap.String("type", string(rel.Type)))
			continue
		}

		id := edgeID(sourceID, targetID, rel.Type)
		s.edges[id] = &Edge{
			ID:            id,
			SourceID:      sourceID,
			TargetID:      targetID,
			Type:          rel.Type,
			Weight:        rel.Confidence,
			Confidence:    rel.Confidence,
			Bidirectional: rel.Bidirectional,
		}
	}

	s.recomputeClusters()

	notification := Notification{
		Added:      added,
		TotalNodes: len(s.nodes),
		TotalEdges: len(s.edges),
	}
	clusterCount := len(s.clusters)
	s.mu.Unlock()

	s.metrics.SetGraphSize(notification.TotalNodes, notification.TotalEdges, clusterCount)
	s.logger.Debug("graph updated",
		zap.Int("added", notification.Added),
		zap.Int("totalNodes", notification.TotalNodes),
		zap.Int("totalEdges", notification.TotalEdges))

	s.notify(notification)
	return notification
}

// resolveEndpoint maps a relationship endpoint to a node ID: batch entities
// first, then nodes already in the graph.
func (s *Store) resolveEndpoint(byEntityID map[string]string, endpoint string) (string, bool) {
	if id, ok := byEntityID[endpoint]; ok {
		return id, true
	}
	if _, ok := s.nodes[endpoint]; ok {
		return endpoint, true
	}
	return "", false
}

func (s *Store) notify(n Notification) {
	s.subMu.RLock()
	subs := make([]func(Notification), len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.RUnlock()
	for _, fn := range subs {
		fn(n)
	}
}

// FindPath runs BFS over directed edges from sourceID to targetID,
// traversing an edge in reverse only when it is bidirectional. Returns the
// ordered nodes of the first shortest path found, or nil when no path (or
// either endpoint) exists.
func (s *Store) FindPath(sourceID, targetID string) []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.nodes[sourceID]; !ok {
		return nil
	}
	if _, ok := s.nodes[targetID]; !ok {
		return nil
	}
	if sourceID == targetID {
		return []*Node{s.nodes[sourceID]}
	}

	visited := map[string]bool{sourceID: true}
	parent := make(map[string]string)
	queue := []string{sourceID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, edge := range s.edges {
			var next string
			switch {
			case edge.SourceID == current:
				next = edge.TargetID
			case edge.Bidirectional && edge.TargetID == current:
				next = edge.SourceID
			default:
				continue
			}

			if visited[next] {
				continue
			}
			visited[next] = true
			parent[next] = current
			if next == targetID {
				return s.reconstructPath(sourceID, targetID, parent)
			}
			queue = append(queue, next)
		}
	}
	return nil
}

func (s *Store) reconstructPath(sourceID, targetID string, parent map[string]string) []*Node {
	var ids []string
	for id := targetID; ; id = parent[id] {
		ids = append(ids, id)
		if id == sourceID {
			break
		}
	}
	path := make([]*Node, len(ids))
	for i, id := range ids {
		path[len(ids)-1-i] = s.nodes[id]
	}
	return path
}

// Statistics computes graph-level metrics. An empty graph yields zero
// metrics, never an error.
func (s *Store) Statistics() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalNodes:    len(s.nodes),
		TotalEdges:    len(s.edges),
		TotalClusters: len(s.clusters),
		NodesByType:   make(map[NodeType]int),
	}
	for _, node := range s.nodes {
		stats.NodesByType[node.Type]++
	}

	n := len(s.nodes)
	if n >= 2 {
		stats.Density = float64(len(s.edges)) / (float64(n) * float64(n-1) / 2)
	}
	if n > 0 {
		stats.AverageDegree = float64(2*len(s.edges)) / float64(n)
	}
	return stats
}

// ExportVisualization returns a read-only snapshot of nodes, edges, and
// clusters. It never mutates store state (access counts included).
func (s *Store) ExportVisualization() *Visualization {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vis := &Visualization{
		Nodes:    make([]*Node, 0, len(s.nodes)),
		Edges:    make([]*Edge, 0, len(s.edges)),
		Clusters: make([]*Cluster, 0, len(s.clusters)),
	}
	for _, node := range s.nodes {
		copied := *node
		vis.Nodes = append(vis.Nodes, &copied)
	}
	for _, edge := range s.edges {
		copied := *edge
		vis.Edges = append(vis.Edges, &copied)
	}
	for _, cluster := range s.clusters {
		copied := *cluster
		copied.NodeIDs = append([]string(nil), cluster.NodeIDs...)
		vis.Clusters = append(vis.Clusters, &copied)
	}

	sort.Slice(vis.Nodes, func(i, j int) bool { return vis.Nodes[i].ID < vis.Nodes[j].ID })
	sort.Slice(vis.Edges, func(i, j int) bool { return vis.Edges[i].ID < vis.Edges[j].ID })
	sort.Slice(vis.Clusters, func(i, j int) bool { return vis.Clusters[i].ID < vis.Clusters[j].ID })
	return vis
}

// Clear removes every node, edge, and cluster. This is the only deletion
// path in the store.
func (s *Store) Clear() {
	s.mu.Lock()
	s.nodes = make(map[string]*Node)
	s.edges = make(map[string]*Edge)
	s.clusters = nil
	s.mu.Unlock()
	s.metrics.SetGraphSize(0, 0, 0)
}

// Node returns a copy of the node with the given ID, bumping its access
// stats, or an error when absent.
func (s *Store) Node(id string) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %q not found", id)
	}
	node.AccessCount++
	node.LastAccessed = time.Now()
	copied := *node
	return &copied, nil
}

// touchingEdges collects the edges whose endpoints include nodeID. Caller
// holds the lock.
func (s *Store) touchingEdges(nodeID string) []*Edge {
	var edges []*Edge
	for _, edge := range s.edges {
		if edge.SourceID == nodeID || edge.TargetID == nodeID {
			copied := *edge
			edges = append(edges, &copied)
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return edges
}

func complexityOf(entity *core.Entity) float64 {
	span := entity.Position.End - entity.Position.Start
	complexity := float64(span) / 40
	if complexity > 1 {
		complexity = 1
	}
	return complexity
}
