package handlers

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"engram-backend/application/ports"
	"engram-backend/application/queries"
	pkgerrors "engram-backend/pkg/errors"
)

// GetOperationStatusHandler handles GetOperationStatusQuery. Operation
// records carry the actor that started them; other actors get NOT_FOUND
// rather than a peek at someone else's pipeline.
type GetOperationStatusHandler struct {
	operationStore ports.OperationStore
	validate       *validator.Validate
	logger         *zap.Logger
}

// NewGetOperationStatusHandler creates a GetOperationStatusHandler
func NewGetOperationStatusHandler(operationStore ports.OperationStore, logger *zap.Logger) *GetOperationStatusHandler {
	return &GetOperationStatusHandler{
		operationStore: operationStore,
		validate:       validator.New(),
		logger:         logger,
	}
}

// Handle executes the query
func (h *GetOperationStatusHandler) Handle(ctx context.Context, query queries.GetOperationStatusQuery) (*queries.OperationStatusResult, error) {
	if err := h.validate.Struct(query); err != nil {
		return nil, pkgerrors.NewValidation(err.Error())
	}

	op, err := h.operationStore.Get(ctx, query.OperationID)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, pkgerrors.NewNotFound("operation not found")
	}

	if startedBy, ok := op.Metadata["actor_id"].(string); ok && startedBy != query.ActorID {
		return nil, pkgerrors.NewNotFound("operation not found")
	}

	return &queries.OperationStatusResult{
		OperationID: op.OperationID,
		Status:      string(op.Status),
		Stage:       op.Stage,
		StartedAt:   op.StartedAt,
		CompletedAt: op.CompletedAt,
		Result:      op.Result,
		Error:       op.Error,
		Metadata:    op.Metadata,
	}, nil
}
