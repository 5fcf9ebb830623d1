package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/devloop-ai/synapse-go-sdk/embedder"
)

// Search embeds the query and ranks every embedded node by cosine
// similarity. Nodes below MinSimilarity or failing a filter are dropped;
// survivors sort by descending similarity with ascending node ID as the
// tie-break. Returned nodes have their access stats bumped.
func (s *Store) Search(ctx context.Context, opts SearchOptions) ([]*SearchResult, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("search requires an embedder")
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = s.config.DefaultTopK
	}
	minSimilarity := opts.MinSimilarity
	if minSimilarity == 0 {
		minSimilarity = s.config.DefaultMinSimilarity
	}

	queryEmbedding, err := s.embedder.Embed(ctx, opts.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var results []*SearchResult
	for _, node := range s.nodes {
		if len(node.Embedding) == 0 {
			continue
		}
		similarity := embedder.CosineSimilarity(queryEmbedding, node.Embedding)
		if similarity < minSimilarity {
			continue
		}
		if !matchesFilters(node, opts.Filters) {
			continue
		}
		results = append(results, &SearchResult{Node: node, Similarity: similarity})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Node.ID < results[j].Node.ID
	})
	if len(results) > topK {
		results = results[:topK]
	}

	now := time.Now()
	for _, result := range results {
		node := result.Node
		node.AccessCount++
		node.LastAccessed = now

		copied := *node
		result.Node = &copied
		if opts.IncludeRelationships {
			result.Edges = s.touchingEdges(node.ID)
		}
	}
	return results, nil
}

// matchesFilters applies every filter; all must pass.
func matchesFilters(node *Node, filters []Filter) bool {
	for _, filter := range filters {
		if !matchesFilter(node, filter) {
			return false
		}
	}
	return true
}

func matchesFilter(node *Node, filter Filter) bool {
	value, ok := fieldValue(node, filter.Field)
	if !ok {
		return false
	}

	switch filter.Op {
	case FilterEq:
		return equalValues(value, filter.Value)
	case FilterNeq:
		return !equalValues(value, filter.Value)
	case FilterGt:
		a, okA := toFloat(value)
		b, okB := toFloat(filter.Value)
		return okA && okB && a > b
	case FilterLt:
		a, okA := toFloat(value)
		b, okB := toFloat(filter.Value)
		return okA && okB && a < b
	case FilterContains:
		str, okStr := value.(string)
		sub, okSub := filter.Value.(string)
		return okStr && okSub && strings.Contains(str, sub)
	case FilterIn:
		candidates, okList := toSlice(filter.Value)
		if !okList {
			return false
		}
		for _, candidate := range candidates {
			if equalValues(value, candidate) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func fieldValue(node *Node, field string) (interface{}, bool) {
	switch field {
	case "id":
		return node.ID, true
	case "type":
		return string(node.Type), true
	case "name":
		return node.Name, true
	case "content":
		return node.Content, true
	case "confidence":
		return node.Confidence, true
	case "accessCount":
		return node.AccessCount, true
	case "metadata.complexity":
		return node.Metadata.Complexity, true
	case "metadata.quality":
		return node.Metadata.Quality, true
	case "metadata.relevance":
		return node.Metadata.Relevance, true
	default:
		return nil, false
	}
}

func equalValues(a, b interface{}) bool {
	if fa, okA := toFloat(a); okA {
		if fb, okB := toFloat(b); okB {
			return fa == fb
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toSlice(v interface{}) ([]interface{}, bool) {
	switch list := v.(type) {
	case []interface{}:
		return list, true
	case []string:
		out := make([]interface{}, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}
