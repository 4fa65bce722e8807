package commands_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"engram-backend/application/commands"
	"engram-backend/application/ports"
	appservices "engram-backend/application/services"
	"engram-backend/domain/core/aggregates"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	pkgerrors "engram-backend/pkg/errors"
	"engram-backend/tests/fixtures"
	"engram-backend/tests/mocks"
)

type deleteEnv struct {
	ledger      *mocks.MockCapabilityLedger
	memoryRepo  *mocks.MockMemoryRepository
	graphRepo   *mocks.MockGraphRepository
	vectorIndex *mocks.MockVectorIndex
	blobStore   *mocks.MockBlobStore
	publisher   *mocks.MockEventPublisher
	handler     *commands.DeleteMemoryHandler
}

func newDeleteEnv() *deleteEnv {
	env := &deleteEnv{
		ledger:      new(mocks.MockCapabilityLedger),
		memoryRepo:  new(mocks.MockMemoryRepository),
		graphRepo:   new(mocks.MockGraphRepository),
		vectorIndex: new(mocks.MockVectorIndex),
		blobStore:   new(mocks.MockBlobStore),
		publisher:   new(mocks.MockEventPublisher),
	}
	env.handler = commands.NewDeleteMemoryHandler(
		appservices.NewAccessGate(env.ledger, zap.NewNop()),
		env.memoryRepo,
		env.graphRepo,
		env.vectorIndex,
		env.blobStore,
		env.publisher,
		zap.NewNop(),
	)
	return env
}

func allow(env *deleteEnv) {
	env.ledger.On("Check", mock.Anything, mock.Anything, mock.Anything, ports.CapabilityDelete).
		Return(ports.Decision{Allowed: true}, nil)
}

func TestDeleteMemoryHandler_AccessDenied(t *testing.T) {
	env := newDeleteEnv()
	env.ledger.On("Check", mock.Anything, mock.Anything, mock.Anything, ports.CapabilityDelete).
		Return(ports.Decision{Allowed: false, Reason: "capability revoked"}, nil)

	_, err := env.handler.Handle(context.Background(), commands.DeleteMemoryCommand{
		OwnerID:  "owner-1",
		ActorID:  "actor-1",
		MemoryID: valueobjects.NewMemoryID().String(),
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsAccessDenied(err))
	env.memoryRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteMemoryHandler_NotFound(t *testing.T) {
	env := newDeleteEnv()
	allow(env)
	env.memoryRepo.On("GetByID", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, pkgerrors.NewNotFound("memory not found"))

	_, err := env.handler.Handle(context.Background(), commands.DeleteMemoryCommand{
		OwnerID:  "owner-1",
		ActorID:  "actor-1",
		MemoryID: valueobjects.NewMemoryID().String(),
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestDeleteMemoryHandler_PrunesAndTombstones(t *testing.T) {
	env := newDeleteEnv()
	allow(env)

	ownerID, err := valueobjects.NewOwnerID("owner-1")
	require.NoError(t, err)
	memory, err := entities.NewMemory(ownerID, "Tesla is located in Austin.")
	require.NoError(t, err)

	graph, err := aggregates.NewGraph(ownerID)
	require.NoError(t, err)
	node := fixtures.NewEntityBuilder().
		WithOwner("owner-1").
		WithLabel("Tesla").
		WithType(valueobjects.TypeOrganization).
		FromMemory(memory.ID()).
		Build()
	require.NoError(t, graph.AddNode(node))

	tx := new(mocks.MockGraphTx)
	tx.On("Graph").Return(graph)
	tx.On("Commit", mock.Anything).Return(nil)

	env.memoryRepo.On("GetByID", mock.Anything, mock.Anything, memory.ID()).Return(memory, nil)
	env.graphRepo.On("Begin", mock.Anything, ownerID).Return(tx, nil)
	env.vectorIndex.On("Remove", mock.Anything, ownerID, memory.ID()).Return(nil)
	env.memoryRepo.On("Save", mock.Anything, memory).Return(nil)
	env.blobStore.On("Delete", mock.Anything, mock.Anything).Return(nil)
	env.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	result, err := env.handler.Handle(context.Background(), commands.DeleteMemoryCommand{
		OwnerID:  "owner-1",
		ActorID:  "actor-1",
		MemoryID: memory.ID().String(),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.EntitiesPruned)
	assert.Equal(t, 0, result.EdgesPruned)
	assert.True(t, memory.IsDeleted())
	assert.Equal(t, 0, graph.NodeCount())
	tx.AssertExpectations(t)
	env.vectorIndex.AssertExpectations(t)
}

func TestDeleteMemoryHandler_IdempotentOnTombstone(t *testing.T) {
	env := newDeleteEnv()
	allow(env)

	memory := fixtures.NewMemoryBuilder().
		WithOwner("owner-1").
		WithText("already gone").
		WithStatus(entities.StatusDeleted).
		Build()

	env.memoryRepo.On("GetByID", mock.Anything, mock.Anything, memory.ID()).Return(memory, nil)

	result, err := env.handler.Handle(context.Background(), commands.DeleteMemoryCommand{
		OwnerID:  "owner-1",
		ActorID:  "actor-1",
		MemoryID: memory.ID().String(),
	})

	require.NoError(t, err)
	assert.True(t, result.AlreadyDeleted)
	env.graphRepo.AssertNotCalled(t, "Begin", mock.Anything, mock.Anything)
}
