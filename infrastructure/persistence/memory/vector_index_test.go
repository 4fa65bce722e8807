package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engram-backend/domain/core/valueobjects"
)

func owner(t *testing.T, id string) valueobjects.OwnerID {
	t.Helper()
	ownerID, err := valueobjects.NewOwnerID(id)
	require.NoError(t, err)
	return ownerID
}

func embedding(t *testing.T, vector []float32) valueobjects.Embedding {
	t.Helper()
	emb, err := valueobjects.NewEmbedding(vector, "test-3-v1", 3)
	require.NoError(t, err)
	return emb
}

func TestVectorIndex_SearchRanksByCosineSimilarity(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()
	user := owner(t, "user-1")
	now := time.Now()

	near := valueobjects.NewMemoryID()
	far := valueobjects.NewMemoryID()
	require.NoError(t, idx.Upsert(ctx, user, near, embedding(t, []float32{1, 0.1, 0}), now))
	require.NoError(t, idx.Upsert(ctx, user, far, embedding(t, []float32{0, 0, 1}), now))

	hits, err := idx.Search(ctx, user, embedding(t, []float32{1, 0, 0}), 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, near.String(), hits[0].MemoryID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestVectorIndex_SearchNeverCrossesOwners(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()

	theirMemory := valueobjects.NewMemoryID()
	require.NoError(t, idx.Upsert(ctx, owner(t, "user-2"), theirMemory, embedding(t, []float32{1, 0, 0}), time.Now()))

	hits, err := idx.Search(ctx, owner(t, "user-1"), embedding(t, []float32{1, 0, 0}), 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorIndex_TruncatesToK(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()
	user := owner(t, "user-1")

	for range [5]struct{}{} {
		require.NoError(t, idx.Upsert(ctx, user, valueobjects.NewMemoryID(), embedding(t, []float32{1, 0, 0}), time.Now()))
	}

	hits, err := idx.Search(ctx, user, embedding(t, []float32{1, 0, 0}), 3)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestVectorIndex_EqualSimilarityRanksNewerMemoryFirst(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()
	user := owner(t, "user-1")
	now := time.Now()

	older := valueobjects.NewMemoryID()
	newer := valueobjects.NewMemoryID()
	// Identical vectors so similarity ties exactly.
	require.NoError(t, idx.Upsert(ctx, user, older, embedding(t, []float32{1, 0, 0}), now.Add(-time.Hour)))
	require.NoError(t, idx.Upsert(ctx, user, newer, embedding(t, []float32{1, 0, 0}), now))

	hits, err := idx.Search(ctx, user, embedding(t, []float32{1, 0, 0}), 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, newer.String(), hits[0].MemoryID)
	assert.Equal(t, older.String(), hits[1].MemoryID)
}

func TestVectorIndex_SearchSkipsOtherModelVersions(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()
	user := owner(t, "user-1")

	stale := valueobjects.NewMemoryID()
	oldModel, err := valueobjects.NewEmbedding([]float32{1, 0, 0}, "old-3-v1", 3)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, user, stale, oldModel, time.Now()))

	current := valueobjects.NewMemoryID()
	require.NoError(t, idx.Upsert(ctx, user, current, embedding(t, []float32{1, 0, 0}), time.Now()))

	hits, err := idx.Search(ctx, user, embedding(t, []float32{1, 0, 0}), 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, current.String(), hits[0].MemoryID)
}

func TestVectorIndex_UpsertIsIdempotent(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()
	user := owner(t, "user-1")
	memoryID := valueobjects.NewMemoryID()

	require.NoError(t, idx.Upsert(ctx, user, memoryID, embedding(t, []float32{1, 0, 0}), time.Now()))
	require.NoError(t, idx.Upsert(ctx, user, memoryID, embedding(t, []float32{0, 1, 0}), time.Now()))

	hits, err := idx.Search(ctx, user, embedding(t, []float32{0, 1, 0}), 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
}

func TestVectorIndex_RemoveIsIdempotent(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()
	user := owner(t, "user-1")
	memoryID := valueobjects.NewMemoryID()

	require.NoError(t, idx.Upsert(ctx, user, memoryID, embedding(t, []float32{1, 0, 0}), time.Now()))
	require.NoError(t, idx.Remove(ctx, user, memoryID))
	require.NoError(t, idx.Remove(ctx, user, memoryID))

	has, err := idx.Has(ctx, user, memoryID)
	require.NoError(t, err)
	assert.False(t, has)
}
