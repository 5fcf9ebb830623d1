package mock_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devloop-ai/synapse-go-sdk/embedder"
	"github.com/devloop-ai/synapse-go-sdk/embedder/mock"
)

func TestEmbedDeterministic(t *testing.T) {
	m := mock.New(64)

	a, err := m.Embed(context.Background(), "some text")
	require.NoError(t, err)
	b, err := m.Embed(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := m.Embed(context.Background(), "other text")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestEmbedUnitLength(t *testing.T) {
	m := mock.New(64)

	vec, err := m.Embed(context.Background(), "anything")
	require.NoError(t, err)
	require.Len(t, vec, 64)

	// Cosine similarity with itself is 1 for a unit vector.
	assert.InDelta(t, 1.0, embedder.CosineSimilarity(vec, vec), 1e-6)
}

func TestDefaultDimensions(t *testing.T) {
	assert.Equal(t, 384, mock.New(0).Dimensions())
	assert.Equal(t, 384, mock.New(-5).Dimensions())
	assert.Equal(t, 16, mock.New(16).Dimensions())
}
