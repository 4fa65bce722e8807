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

// GetGraphStatsHandler handles GetGraphStatsQuery
type GetGraphStatsHandler struct {
	accessGate   *appservices.AccessGate
	queryService *appservices.QueryService
	validate     *validator.Validate
	logger       *zap.Logger
}

// NewGetGraphStatsHandler creates a GetGraphStatsHandler
func NewGetGraphStatsHandler(
	accessGate *appservices.AccessGate,
	queryService *appservices.QueryService,
	logger *zap.Logger,
) *GetGraphStatsHandler {
	return &GetGraphStatsHandler{
		accessGate:   accessGate,
		queryService: queryService,
		validate:     validator.New(),
		logger:       logger,
	}
}

// Handle executes the query
func (h *GetGraphStatsHandler) Handle(ctx context.Context, query queries.GetGraphStatsQuery) (*queries.GetGraphStatsResult, error) {
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

	stats, err := h.queryService.Stats(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	return &queries.GetGraphStatsResult{
		NodeCount:     stats.NodeCount,
		EdgeCount:     stats.EdgeCount,
		MemoryCount:   stats.MemoryCount,
		NodesByType:   stats.NodesByType,
		MaxDegree:     stats.MaxDegree,
		AverageDegree: stats.AverageDegree,
		Version:       stats.Version,
	}, nil
}
