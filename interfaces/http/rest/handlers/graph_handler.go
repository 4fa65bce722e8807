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

// GraphHandler serves graph summary endpoints
type GraphHandler struct {
	stats  *queryhandlers.GetGraphStatsHandler
	logger *zap.Logger
}

// NewGraphHandler creates a GraphHandler
func NewGraphHandler(stats *queryhandlers.GetGraphStatsHandler, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{stats: stats, logger: logger}
}

// Stats handles GET /owners/{ownerID}/graph/stats
func (h *GraphHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actorID, err := auth.ActorFromContext(r.Context())
	if err != nil {
		writeError(w, h.logger, pkgerrors.NewAccessDenied("not authenticated"))
		return
	}

	result, err := h.stats.Handle(r.Context(), queries.GetGraphStatsQuery{
		OwnerID: chi.URLParam(r, "ownerID"),
		ActorID: actorID,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
