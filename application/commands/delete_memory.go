package commands

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"engram-backend/application/ports"
	appservices "engram-backend/application/services"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/domain/events"
	pkgerrors "engram-backend/pkg/errors"
)

// DeleteMemoryCommand tombstones a memory and prunes graph state that has
// no other supporting evidence
type DeleteMemoryCommand struct {
	OwnerID  string `json:"owner_id" validate:"required,max=128"`
	ActorID  string `json:"actor_id" validate:"required,max=128"`
	MemoryID string `json:"memory_id" validate:"required,uuid"`
}

// DeleteMemoryResult reports what the deletion pruned
type DeleteMemoryResult struct {
	MemoryID       string `json:"memory_id"`
	EntitiesPruned int    `json:"entities_pruned"`
	EdgesPruned    int    `json:"edges_pruned"`
	// AlreadyDeleted is true when the memory was tombstoned before this call
	AlreadyDeleted bool `json:"already_deleted,omitempty"`
}

// DeleteMemoryHandler handles DeleteMemoryCommand. Deletion is idempotent:
// repeating it on a tombstoned memory succeeds without touching the graph.
type DeleteMemoryHandler struct {
	accessGate     *appservices.AccessGate
	memoryRepo     ports.MemoryRepository
	graphRepo      ports.GraphRepository
	vectorIndex    ports.VectorIndex
	blobStore      ports.BlobStore
	eventPublisher ports.EventPublisher
	validate       *validator.Validate
	logger         *zap.Logger
}

// NewDeleteMemoryHandler creates a DeleteMemoryHandler
func NewDeleteMemoryHandler(
	accessGate *appservices.AccessGate,
	memoryRepo ports.MemoryRepository,
	graphRepo ports.GraphRepository,
	vectorIndex ports.VectorIndex,
	blobStore ports.BlobStore,
	eventPublisher ports.EventPublisher,
	logger *zap.Logger,
) *DeleteMemoryHandler {
	return &DeleteMemoryHandler{
		accessGate:     accessGate,
		memoryRepo:     memoryRepo,
		graphRepo:      graphRepo,
		vectorIndex:    vectorIndex,
		blobStore:      blobStore,
		eventPublisher: eventPublisher,
		validate:       validator.New(),
		logger:         logger,
	}
}

// Handle executes the deletion
func (h *DeleteMemoryHandler) Handle(ctx context.Context, cmd DeleteMemoryCommand) (*DeleteMemoryResult, error) {
	if err := h.validate.Struct(cmd); err != nil {
		return nil, pkgerrors.NewValidation(err.Error())
	}

	ownerID, err := valueobjects.NewOwnerID(cmd.OwnerID)
	if err != nil {
		return nil, err
	}
	actorID, err := valueobjects.NewActorID(cmd.ActorID)
	if err != nil {
		return nil, err
	}
	memoryID, err := valueobjects.ParseMemoryID(cmd.MemoryID)
	if err != nil {
		return nil, err
	}

	if err := h.accessGate.Require(ctx, actorID, ownerID, ports.CapabilityDelete); err != nil {
		return nil, err
	}

	memory, err := h.memoryRepo.GetByID(ctx, ownerID, memoryID)
	if err != nil {
		return nil, err
	}
	if memory.IsDeleted() {
		return &DeleteMemoryResult{MemoryID: memoryID.String(), AlreadyDeleted: true}, nil
	}

	// Graph pruning first, under the owner's write lock. Provenance removal
	// only prunes nodes and edges whose sole evidence was this memory.
	tx, err := h.graphRepo.Begin(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "opening graph transaction")
	}
	entitiesPruned, edgesPruned := tx.Graph().RemoveMemoryProvenance(memoryID)
	if err := tx.Commit(ctx); err != nil {
		tx.Rollback()
		return nil, pkgerrors.Wrap(err, "committing graph prune")
	}

	if err := h.vectorIndex.Remove(ctx, ownerID, memoryID); err != nil {
		// The repair pass reconciles a stale index entry; deletion proceeds.
		h.logger.Warn("removing vector index entry failed",
			zap.String("memory_id", memoryID.String()),
			zap.Error(err))
	}

	if err := memory.Tombstone(); err != nil {
		return nil, err
	}
	if err := h.memoryRepo.Save(ctx, memory); err != nil {
		return nil, pkgerrors.Wrap(err, "saving tombstone")
	}

	blobKey := fmt.Sprintf("%s/%s.txt", ownerID.String(), memoryID.String())
	if err := h.blobStore.Delete(ctx, blobKey); err != nil {
		h.logger.Warn("deleting archived blob failed",
			zap.String("blob_key", blobKey),
			zap.Error(err))
	}

	event := events.NewMemoryDeleted(memoryID, ownerID, entitiesPruned, edgesPruned)
	if err := h.eventPublisher.Publish(ctx, event); err != nil {
		h.logger.Warn("publishing deletion event failed", zap.Error(err))
	}

	h.logger.Info("memory deleted",
		zap.String("memory_id", memoryID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.Int("entities_pruned", entitiesPruned),
		zap.Int("edges_pruned", edgesPruned))

	return &DeleteMemoryResult{
		MemoryID:       memoryID.String(),
		EntitiesPruned: entitiesPruned,
		EdgesPruned:    edgesPruned,
	}, nil
}
