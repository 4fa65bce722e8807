package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEmbedder_IsDeterministic(t *testing.T) {
	embedder := NewLocalEmbedder()

	first, err := embedder.Embed(context.Background(), "Tesla is headquartered in Austin")
	require.NoError(t, err)
	second, err := embedder.Embed(context.Background(), "Tesla is headquartered in Austin")
	require.NoError(t, err)

	assert.Equal(t, first.Vector(), second.Vector())
	assert.Equal(t, "local-256-v1", first.ModelVersion())
	assert.Len(t, first.Vector(), LocalDimensions)
}

func TestLocalEmbedder_VectorsAreUnitLength(t *testing.T) {
	embedder := NewLocalEmbedder()

	emb, err := embedder.Embed(context.Background(), "some ordinary sentence about anything")
	require.NoError(t, err)

	var norm float64
	for _, v := range emb.Vector() {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestLocalEmbedder_SharedVocabularyRanksCloser(t *testing.T) {
	embedder := NewLocalEmbedder()
	ctx := context.Background()

	query, err := embedder.Embed(ctx, "where is tesla headquartered")
	require.NoError(t, err)
	related, err := embedder.Embed(ctx, "tesla is headquartered in austin")
	require.NoError(t, err)
	unrelated, err := embedder.Embed(ctx, "the soup needs more salt and pepper")
	require.NoError(t, err)

	simRelated, err := query.CosineSimilarity(related)
	require.NoError(t, err)
	simUnrelated, err := query.CosineSimilarity(unrelated)
	require.NoError(t, err)
	assert.Greater(t, simRelated, simUnrelated)
}

func TestLocalEmbedder_EmptyTextYieldsZeroVector(t *testing.T) {
	embedder := NewLocalEmbedder()

	emb, err := embedder.Embed(context.Background(), "")
	require.NoError(t, err)
	for _, v := range emb.Vector() {
		assert.Zero(t, v)
	}
}
