package commands_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"engram-backend/application/commands"
	"engram-backend/application/ports"
	appservices "engram-backend/application/services"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	pkgerrors "engram-backend/pkg/errors"
	"engram-backend/tests/mocks"
)

type ingestEnv struct {
	ledger      *mocks.MockCapabilityLedger
	memoryRepo  *mocks.MockMemoryRepository
	idempotency *mocks.MockIdempotencyStore
	handler     *commands.IngestMemoryHandler
}

// newIngestEnv wires a handler without a saga. These tests cover the
// handler's gating, dedup, and idempotency paths, all of which return
// before the pipeline starts; the saga itself is tested in the sagas
// package.
func newIngestEnv() *ingestEnv {
	env := &ingestEnv{
		ledger:      new(mocks.MockCapabilityLedger),
		memoryRepo:  new(mocks.MockMemoryRepository),
		idempotency: new(mocks.MockIdempotencyStore),
	}
	env.handler = commands.NewIngestMemoryHandler(
		appservices.NewAccessGate(env.ledger, zap.NewNop()),
		env.memoryRepo,
		nil,
		env.idempotency,
		nil,
		zap.NewNop(),
	)
	return env
}

func TestIngestMemoryHandler_RejectsEmptyText(t *testing.T) {
	env := newIngestEnv()

	_, err := env.handler.Handle(context.Background(), commands.IngestMemoryCommand{
		OwnerID: "owner-1",
		ActorID: "actor-1",
		Text:    "",
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	env.ledger.AssertNotCalled(t, "Check", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestMemoryHandler_AccessDenied(t *testing.T) {
	env := newIngestEnv()
	env.ledger.On("Check", mock.Anything, mock.Anything, mock.Anything, ports.CapabilityIngest).
		Return(ports.Decision{Allowed: false, Reason: "no grant"}, nil)

	_, err := env.handler.Handle(context.Background(), commands.IngestMemoryCommand{
		OwnerID: "owner-1",
		ActorID: "actor-1",
		Text:    "Elon Musk leads Tesla.",
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsAccessDenied(err))
	env.memoryRepo.AssertNotCalled(t, "FindByDigest", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestMemoryHandler_LedgerFailureIsNotAGrant(t *testing.T) {
	env := newIngestEnv()
	env.ledger.On("Check", mock.Anything, mock.Anything, mock.Anything, ports.CapabilityIngest).
		Return(ports.Decision{}, pkgerrors.NewInternal("ledger unreachable", nil))

	_, err := env.handler.Handle(context.Background(), commands.IngestMemoryCommand{
		OwnerID: "owner-1",
		ActorID: "actor-1",
		Text:    "some text",
	})

	require.Error(t, err)
	assert.False(t, pkgerrors.IsAccessDenied(err), "a ledger error is surfaced, not converted to a denial")
	env.memoryRepo.AssertNotCalled(t, "FindByDigest", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestMemoryHandler_DedupesIndexedDigest(t *testing.T) {
	env := newIngestEnv()
	env.ledger.On("Check", mock.Anything, mock.Anything, mock.Anything, ports.CapabilityIngest).
		Return(ports.Decision{Allowed: true}, nil)

	ownerID, err := valueobjects.NewOwnerID("owner-1")
	require.NoError(t, err)
	text := "Elon Musk leads Tesla."
	existing, err := entities.NewMemory(ownerID, text)
	require.NoError(t, err)
	require.NoError(t, existing.MarkGraphCommitted())
	require.NoError(t, existing.MarkIndexed())

	env.memoryRepo.On("FindByDigest", mock.Anything, ownerID, entities.DigestText(ownerID, text)).
		Return(existing, nil)

	result, err := env.handler.Handle(context.Background(), commands.IngestMemoryCommand{
		OwnerID: "owner-1",
		ActorID: "actor-1",
		Text:    text,
	})

	require.NoError(t, err)
	assert.True(t, result.Deduplicated)
	assert.Equal(t, existing.ID().String(), result.MemoryID)
	assert.Equal(t, string(entities.StatusIndexed), result.Status)
}

func TestIngestMemoryHandler_IdempotencyKeyReplay(t *testing.T) {
	env := newIngestEnv()
	env.ledger.On("Check", mock.Anything, mock.Anything, mock.Anything, ports.CapabilityIngest).
		Return(ports.Decision{Allowed: true}, nil)

	prior := commands.IngestMemoryResult{
		MemoryID:    valueobjects.NewMemoryID().String(),
		OperationID: "op-1",
		Status:      string(entities.StatusIndexed),
	}
	encoded, err := json.Marshal(prior)
	require.NoError(t, err)

	env.idempotency.On("Reserve", mock.Anything, "owner-1|req-42").Return(false, encoded, nil)

	result, err := env.handler.Handle(context.Background(), commands.IngestMemoryCommand{
		OwnerID:        "owner-1",
		ActorID:        "actor-1",
		Text:           "whatever",
		IdempotencyKey: "req-42",
	})

	require.NoError(t, err)
	assert.True(t, result.Deduplicated)
	assert.Equal(t, prior.MemoryID, result.MemoryID)
	env.memoryRepo.AssertNotCalled(t, "FindByDigest", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestMemoryHandler_InFlightDuplicateConflicts(t *testing.T) {
	env := newIngestEnv()
	env.ledger.On("Check", mock.Anything, mock.Anything, mock.Anything, ports.CapabilityIngest).
		Return(ports.Decision{Allowed: true}, nil)

	env.idempotency.On("Reserve", mock.Anything, "owner-1|req-7").Return(false, nil, nil)

	_, err := env.handler.Handle(context.Background(), commands.IngestMemoryCommand{
		OwnerID:        "owner-1",
		ActorID:        "actor-1",
		Text:           "whatever",
		IdempotencyKey: "req-7",
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
}
