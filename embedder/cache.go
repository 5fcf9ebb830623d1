package embedder

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// Cached wraps an Embedder with an exact-text ristretto cache. Re-embedding
// identical text is the common case in this pipeline: the extractor embeds
// the same declarations across repeated events, and search re-embeds
// recurring queries.
type Cached struct {
	inner Embedder
	cache *ristretto.Cache
}

// CacheConfig sizes the embedding cache.
type CacheConfig struct {
	// MaxEntries bounds the number of cached embeddings. Default: 4096.
	MaxEntries int64
}

// NewCached wraps inner with an embedding cache.
func NewCached(inner Embedder, cfg CacheConfig) (*Cached, error) {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, embedding on miss.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		if emb, ok := v.([]float32); ok {
			return emb, nil
		}
	}
	emb, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, emb, 1)
	return emb, nil
}

// Dimensions returns the wrapped embedder's vector size.
func (c *Cached) Dimensions() int {
	return c.inner.Dimensions()
}

// Close releases cache resources.
func (c *Cached) Close() {
	c.cache.Close()
}
