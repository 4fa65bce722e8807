// Package handlers holds the query-side handlers. Each handler validates
// its query, enforces the capability check, and delegates to the read
// services.
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

// SemanticSearchHandler handles SemanticSearchQuery
type SemanticSearchHandler struct {
	accessGate   *appservices.AccessGate
	queryService *appservices.QueryService
	validate     *validator.Validate
	logger       *zap.Logger
}

// NewSemanticSearchHandler creates a SemanticSearchHandler
func NewSemanticSearchHandler(
	accessGate *appservices.AccessGate,
	queryService *appservices.QueryService,
	logger *zap.Logger,
) *SemanticSearchHandler {
	return &SemanticSearchHandler{
		accessGate:   accessGate,
		queryService: queryService,
		validate:     validator.New(),
		logger:       logger,
	}
}

// Handle executes the query
func (h *SemanticSearchHandler) Handle(ctx context.Context, query queries.SemanticSearchQuery) (*queries.SemanticSearchResult, error) {
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

	return h.queryService.SemanticSearch(ctx, ownerID, query.Text, query.Limit)
}
