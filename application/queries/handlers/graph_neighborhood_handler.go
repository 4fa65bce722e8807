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

// GraphNeighborhoodHandler handles GraphNeighborhoodQuery
type GraphNeighborhoodHandler struct {
	accessGate   *appservices.AccessGate
	queryService *appservices.QueryService
	validate     *validator.Validate
	logger       *zap.Logger
}

// NewGraphNeighborhoodHandler creates a GraphNeighborhoodHandler
func NewGraphNeighborhoodHandler(
	accessGate *appservices.AccessGate,
	queryService *appservices.QueryService,
	logger *zap.Logger,
) *GraphNeighborhoodHandler {
	return &GraphNeighborhoodHandler{
		accessGate:   accessGate,
		queryService: queryService,
		validate:     validator.New(),
		logger:       logger,
	}
}

// Handle executes the query
func (h *GraphNeighborhoodHandler) Handle(ctx context.Context, query queries.GraphNeighborhoodQuery) (*queries.GraphNeighborhoodResult, error) {
	if err := h.validate.Struct(query); err != nil {
		return nil, pkgerrors.NewValidation(err.Error())
	}
	if query.EntityID == "" && query.Label == "" {
		return nil, pkgerrors.NewValidation("either entity_id or label is required")
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

	return h.queryService.GraphNeighborhood(ctx, ownerID, query)
}
