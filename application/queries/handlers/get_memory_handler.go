package handlers

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"engram-backend/application/ports"
	"engram-backend/application/queries"
	appservices "engram-backend/application/services"
	"engram-backend/domain/core/valueobjects"
	pkgerrors "engram-backend/pkg/errors"
)

// GetMemoryHandler handles GetMemoryQuery and ListMemoriesQuery
type GetMemoryHandler struct {
	accessGate *appservices.AccessGate
	memoryRepo ports.MemoryRepository
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewGetMemoryHandler creates a GetMemoryHandler
func NewGetMemoryHandler(
	accessGate *appservices.AccessGate,
	memoryRepo ports.MemoryRepository,
	logger *zap.Logger,
) *GetMemoryHandler {
	return &GetMemoryHandler{
		accessGate: accessGate,
		memoryRepo: memoryRepo,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Handle retrieves a single memory. Tombstoned memories return NOT_FOUND
// like memories that never existed.
func (h *GetMemoryHandler) Handle(ctx context.Context, query queries.GetMemoryQuery) (*queries.MemoryView, error) {
	if err := h.validate.Struct(query); err != nil {
		return nil, pkgerrors.NewValidation(err.Error())
	}

	ownerID, err := valueobjects.NewOwnerID(query.OwnerID)
	if err != nil {
		return nil, err
	}
	actorID, err := valueobjects.NewActorID(query.ActorID)
	if err != nil {
		return nil, err
	}
	memoryID, err := valueobjects.ParseMemoryID(query.MemoryID)
	if err != nil {
		return nil, err
	}

	if err := h.accessGate.Require(ctx, actorID, ownerID, ports.CapabilityQuery); err != nil {
		return nil, err
	}

	memory, err := h.memoryRepo.GetByID(ctx, ownerID, memoryID)
	if err != nil {
		return nil, err
	}
	if memory.IsDeleted() {
		return nil, pkgerrors.NewNotFound("memory not found")
	}

	view := memoryView(memory)
	return &view, nil
}

// List returns the owner's non-deleted memories, newest first
func (h *GetMemoryHandler) List(ctx context.Context, query queries.ListMemoriesQuery) (*queries.ListMemoriesResult, error) {
	if err := h.validate.Struct(query); err != nil {
		return nil, pkgerrors.NewValidation(err.Error())
	}

	ownerID, err := valueobjects.NewOwnerID(query.OwnerID)
	if err != nil {
		return nil, err
	}
	actorID, err := valueobjects.NewActorID(query.ActorID)
	if err != nil {
		return nil, err
	}

	if err := h.accessGate.Require(ctx, actorID, ownerID, ports.CapabilityQuery); err != nil {
		return nil, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = queries.DefaultSearchLimit
	}
	if limit > queries.MaxSearchLimit {
		limit = queries.MaxSearchLimit
	}

	// Over-fetch by one to detect truncation.
	memories, err := h.memoryRepo.ListByOwner(ctx, ownerID, limit+1)
	if err != nil {
		return nil, err
	}

	result := &queries.ListMemoriesResult{Memories: []queries.MemoryView{}}
	if len(memories) > limit {
		result.Truncated = true
		memories = memories[:limit]
	}
	for _, memory := range memories {
		result.Memories = append(result.Memories, memoryView(memory))
	}
	return result, nil
}
