package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"engram-backend/application/queries"
	queryhandlers "engram-backend/application/queries/handlers"
	"engram-backend/pkg/auth"
	pkgerrors "engram-backend/pkg/errors"
)

// OperationHandler serves async operation status lookups
type OperationHandler struct {
	status *queryhandlers.GetOperationStatusHandler
	logger *zap.Logger
}

// NewOperationHandler creates an OperationHandler
func NewOperationHandler(status *queryhandlers.GetOperationStatusHandler, logger *zap.Logger) *OperationHandler {
	return &OperationHandler{status: status, logger: logger}
}

// Get handles GET /operations/{operationID}
func (h *OperationHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, err := auth.ActorFromContext(r.Context())
	if err != nil {
		writeError(w, h.logger, pkgerrors.NewAccessDenied("not authenticated"))
		return
	}

	result, err := h.status.Handle(r.Context(), queries.GetOperationStatusQuery{
		OperationID: chi.URLParam(r, "operationID"),
		ActorID:     actorID,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
