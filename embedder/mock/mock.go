// Package mock provides a deterministic embedder for tests. Identical text
// always yields the identical unit vector, so similarity assertions are
// reproducible without model files.
package mock

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/devloop-ai/synapse-go-sdk/embedder"
)

// Embedder generates hash-seeded pseudo-random embeddings.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder. dimensions <= 0 defaults to 384 (matching
// all-MiniLM-L6-v2, the local model the SDK ships).
func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &Embedder{dimensions: dimensions}
}

// Embed creates a deterministic unit vector from the text's FNV hash.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, m.dimensions)
	for i := range vec {
		// LCG advance per component
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return embedder.Normalize(vec), nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int {
	return m.dimensions
}
