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

// HybridSearchHandler handles HybridSearchQuery
type HybridSearchHandler struct {
	accessGate   *appservices.AccessGate
	queryService *appservices.QueryService
	validate     *validator.Validate
	logger       *zap.Logger
}

// NewHybridSearchHandler creates a HybridSearchHandler
func NewHybridSearchHandler(
	accessGate *appservices.AccessGate,
	queryService *appservices.QueryService,
	logger *zap.Logger,
) *HybridSearchHandler {
	return &HybridSearchHandler{
		accessGate:   accessGate,
		queryService: queryService,
		validate:     validator.New(),
		logger:       logger,
	}
}

// Handle executes the query
func (h *HybridSearchHandler) Handle(ctx context.Context, query queries.HybridSearchQuery) (*queries.HybridSearchResult, error) {
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

	return h.queryService.HybridSearch(ctx, ownerID, query)
}
