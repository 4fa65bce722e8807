package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"engram-backend/application/queries"
	queryhandlers "engram-backend/application/queries/handlers"
	"engram-backend/pkg/auth"
	pkgerrors "engram-backend/pkg/errors"
)

// SearchHandler serves the three retrieval endpoints
type SearchHandler struct {
	semantic *queryhandlers.SemanticSearchHandler
	graph    *queryhandlers.GraphNeighborhoodHandler
	hybrid   *queryhandlers.HybridSearchHandler
	logger   *zap.Logger
}

// NewSearchHandler creates a SearchHandler
func NewSearchHandler(
	semantic *queryhandlers.SemanticSearchHandler,
	graph *queryhandlers.GraphNeighborhoodHandler,
	hybrid *queryhandlers.HybridSearchHandler,
	logger *zap.Logger,
) *SearchHandler {
	return &SearchHandler{
		semantic: semantic,
		graph:    graph,
		hybrid:   hybrid,
		logger:   logger,
	}
}

// semanticRequest is the body for POST /search/semantic
type semanticRequest struct {
	Text  string `json:"text"`
	Limit int    `json:"limit,omitempty"`
}

// Semantic handles POST /owners/{ownerID}/search/semantic
func (h *SearchHandler) Semantic(w http.ResponseWriter, r *http.Request) {
	actorID, err := auth.ActorFromContext(r.Context())
	if err != nil {
		writeError(w, h.logger, pkgerrors.NewAccessDenied("not authenticated"))
		return
	}

	var body semanticRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, h.logger, pkgerrors.NewValidation("invalid request body"))
		return
	}

	result, err := h.semantic.Handle(r.Context(), queries.SemanticSearchQuery{
		OwnerID: chi.URLParam(r, "ownerID"),
		ActorID: actorID,
		Text:    body.Text,
		Limit:   body.Limit,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// graphRequest is the body for POST /search/graph
type graphRequest struct {
	EntityID   string   `json:"entity_id,omitempty"`
	Label      string   `json:"label,omitempty"`
	EntityType string   `json:"entity_type,omitempty"`
	Depth      int      `json:"depth,omitempty"`
	EdgeLabels []string `json:"edge_labels,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// Graph handles POST /owners/{ownerID}/search/graph
func (h *SearchHandler) Graph(w http.ResponseWriter, r *http.Request) {
	actorID, err := auth.ActorFromContext(r.Context())
	if err != nil {
		writeError(w, h.logger, pkgerrors.NewAccessDenied("not authenticated"))
		return
	}

	var body graphRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, h.logger, pkgerrors.NewValidation("invalid request body"))
		return
	}

	result, err := h.graph.Handle(r.Context(), queries.GraphNeighborhoodQuery{
		OwnerID:    chi.URLParam(r, "ownerID"),
		ActorID:    actorID,
		EntityID:   body.EntityID,
		Label:      body.Label,
		EntityType: body.EntityType,
		Depth:      body.Depth,
		EdgeLabels: body.EdgeLabels,
		Limit:      body.Limit,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// hybridRequest is the body for POST /search/hybrid
type hybridRequest struct {
	Text   string   `json:"text"`
	Depth  int      `json:"depth,omitempty"`
	Limit  int      `json:"limit,omitempty"`
	Weight *float64 `json:"weight,omitempty"`
}

// Hybrid handles POST /owners/{ownerID}/search/hybrid
func (h *SearchHandler) Hybrid(w http.ResponseWriter, r *http.Request) {
	actorID, err := auth.ActorFromContext(r.Context())
	if err != nil {
		writeError(w, h.logger, pkgerrors.NewAccessDenied("not authenticated"))
		return
	}

	var body hybridRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, h.logger, pkgerrors.NewValidation("invalid request body"))
		return
	}

	result, err := h.hybrid.Handle(r.Context(), queries.HybridSearchQuery{
		OwnerID: chi.URLParam(r, "ownerID"),
		ActorID: actorID,
		Text:    body.Text,
		Depth:   body.Depth,
		Limit:   body.Limit,
		Weight:  body.Weight,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
