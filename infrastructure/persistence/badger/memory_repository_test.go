package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	pkgerrors "engram-backend/pkg/errors"
)

func newRepo(t *testing.T) *MemoryRepository {
	t.Helper()
	repo, err := NewMemoryRepository(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func owner(t *testing.T, id string) valueobjects.OwnerID {
	t.Helper()
	ownerID, err := valueobjects.NewOwnerID(id)
	require.NoError(t, err)
	return ownerID
}

func pendingMemory(t *testing.T, ownerID valueobjects.OwnerID, text string) *entities.Memory {
	t.Helper()
	memory, err := entities.NewMemory(ownerID, text)
	require.NoError(t, err)
	return memory
}

func TestMemoryRepository_SaveGetRoundTrip(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	user := owner(t, "user-1")
	memory := pendingMemory(t, user, "Ada met Charles at the Analytical Engine demo.")

	require.NoError(t, repo.Save(ctx, memory))

	loaded, err := repo.GetByID(ctx, user, memory.ID())
	require.NoError(t, err)
	assert.Equal(t, memory.ID().String(), loaded.ID().String())
	assert.Equal(t, memory.Text(), loaded.Text())
	assert.Equal(t, memory.ContentDigest(), loaded.ContentDigest())
	assert.Equal(t, entities.StatusPending, loaded.Status())
}

func TestMemoryRepository_ForeignOwnerReadsAsAbsent(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	memory := pendingMemory(t, owner(t, "user-1"), "private note")
	require.NoError(t, repo.Save(ctx, memory))

	_, err := repo.GetByID(ctx, owner(t, "user-2"), memory.ID())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestMemoryRepository_FindByDigest(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	user := owner(t, "user-1")
	memory := pendingMemory(t, user, "repeatable text")
	require.NoError(t, repo.Save(ctx, memory))

	found, err := repo.FindByDigest(ctx, user, memory.ContentDigest())
	require.NoError(t, err)
	assert.Equal(t, memory.ID().String(), found.ID().String())

	_, err = repo.FindByDigest(ctx, user, "no-such-digest")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestMemoryRepository_DigestIsOwnerScoped(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	memory := pendingMemory(t, owner(t, "user-1"), "shared wording")
	require.NoError(t, repo.Save(ctx, memory))

	_, err := repo.FindByDigest(ctx, owner(t, "user-2"), memory.ContentDigest())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestMemoryRepository_NonDeletedDigestMatchWins(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	user := owner(t, "user-1")

	dead := pendingMemory(t, user, "same text")
	require.NoError(t, dead.MarkGraphCommitted())
	require.NoError(t, dead.MarkIndexed())
	require.NoError(t, dead.Tombstone())
	require.NoError(t, repo.Save(ctx, dead))

	alive := pendingMemory(t, user, "same text")
	require.NoError(t, repo.Save(ctx, alive))

	found, err := repo.FindByDigest(ctx, user, alive.ContentDigest())
	require.NoError(t, err)
	assert.Equal(t, alive.ID().String(), found.ID().String())
}

func TestMemoryRepository_ListByStatusIsOldestFirst(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	user := owner(t, "user-1")

	var ids []string
	for _, text := range []string{"first", "second", "third"} {
		memory := pendingMemory(t, user, text)
		require.NoError(t, memory.MarkGraphCommitted())
		require.NoError(t, repo.Save(ctx, memory))
		ids = append(ids, memory.ID().String())
		time.Sleep(2 * time.Millisecond)
	}

	listed, err := repo.ListByStatus(ctx, entities.StatusGraphCommitted, 10)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for i, memory := range listed {
		assert.Equal(t, ids[i], memory.ID().String())
	}
}

func TestMemoryRepository_StatusIndexFollowsTransitions(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	user := owner(t, "user-1")

	memory := pendingMemory(t, user, "moving through the pipeline")
	require.NoError(t, memory.MarkGraphCommitted())
	require.NoError(t, repo.Save(ctx, memory))

	require.NoError(t, memory.MarkIndexed())
	require.NoError(t, repo.Save(ctx, memory))

	committed, err := repo.ListByStatus(ctx, entities.StatusGraphCommitted, 10)
	require.NoError(t, err)
	assert.Empty(t, committed)

	indexed, err := repo.ListByStatus(ctx, entities.StatusIndexed, 10)
	require.NoError(t, err)
	assert.Len(t, indexed, 1)
}

func TestMemoryRepository_ListByOwnerIsNewestFirstAndSkipsTombstones(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	user := owner(t, "user-1")

	oldest := pendingMemory(t, user, "oldest")
	require.NoError(t, repo.Save(ctx, oldest))
	time.Sleep(2 * time.Millisecond)

	dead := pendingMemory(t, user, "tombstoned")
	require.NoError(t, dead.MarkGraphCommitted())
	require.NoError(t, dead.MarkIndexed())
	require.NoError(t, dead.Tombstone())
	require.NoError(t, repo.Save(ctx, dead))
	time.Sleep(2 * time.Millisecond)

	newest := pendingMemory(t, user, "newest")
	require.NoError(t, repo.Save(ctx, newest))

	listed, err := repo.ListByOwner(ctx, user, 10)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, newest.ID().String(), listed[0].ID().String())
	assert.Equal(t, oldest.ID().String(), listed[1].ID().String())
}

func TestMemoryRepository_DeletePrunesRecordAndIndexes(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	user := owner(t, "user-1")

	memory := pendingMemory(t, user, "to be pruned")
	require.NoError(t, repo.Save(ctx, memory))
	require.NoError(t, repo.Delete(ctx, user, memory.ID()))

	_, err := repo.GetByID(ctx, user, memory.ID())
	assert.True(t, pkgerrors.IsNotFound(err))
	_, err = repo.FindByDigest(ctx, user, memory.ContentDigest())
	assert.True(t, pkgerrors.IsNotFound(err))

	listed, err := repo.ListByStatus(ctx, entities.StatusPending, 10)
	require.NoError(t, err)
	assert.Empty(t, listed)

	// Deleting again is a no-op.
	require.NoError(t, repo.Delete(ctx, user, memory.ID()))
}

func TestMemoryRepository_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	user := owner(t, "user-1")

	repo, err := NewMemoryRepository(dir, zap.NewNop())
	require.NoError(t, err)
	memory := pendingMemory(t, user, "durable")
	require.NoError(t, repo.Save(ctx, memory))
	require.NoError(t, repo.Close())

	reopened, err := NewMemoryRepository(dir, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.GetByID(ctx, user, memory.ID())
	require.NoError(t, err)
	assert.Equal(t, memory.Text(), loaded.Text())
}
