package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"engram-backend/application/commands"
	"engram-backend/application/queries"
	queryhandlers "engram-backend/application/queries/handlers"
	"engram-backend/pkg/auth"
	pkgerrors "engram-backend/pkg/errors"
)

// MemoryHandler serves the memory lifecycle endpoints
type MemoryHandler struct {
	ingest *commands.IngestMemoryHandler
	delete *commands.DeleteMemoryHandler
	get    *queryhandlers.GetMemoryHandler
	logger *zap.Logger
}

// NewMemoryHandler creates a MemoryHandler
func NewMemoryHandler(
	ingest *commands.IngestMemoryHandler,
	deleteHandler *commands.DeleteMemoryHandler,
	get *queryhandlers.GetMemoryHandler,
	logger *zap.Logger,
) *MemoryHandler {
	return &MemoryHandler{
		ingest: ingest,
		delete: deleteHandler,
		get:    get,
		logger: logger,
	}
}

// ingestRequest is the body for POST /memories
type ingestRequest struct {
	Text           string `json:"text"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Ingest handles POST /owners/{ownerID}/memories
func (h *MemoryHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	actorID, err := auth.ActorFromContext(r.Context())
	if err != nil {
		writeError(w, h.logger, pkgerrors.NewAccessDenied("not authenticated"))
		return
	}

	var body ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, h.logger, pkgerrors.NewValidation("invalid request body"))
		return
	}

	result, err := h.ingest.Handle(r.Context(), commands.IngestMemoryCommand{
		OwnerID:        chi.URLParam(r, "ownerID"),
		ActorID:        actorID,
		Text:           body.Text,
		IdempotencyKey: body.IdempotencyKey,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	status := http.StatusCreated
	if result.Deduplicated {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// Get handles GET /owners/{ownerID}/memories/{memoryID}
func (h *MemoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	actorID, err := auth.ActorFromContext(r.Context())
	if err != nil {
		writeError(w, h.logger, pkgerrors.NewAccessDenied("not authenticated"))
		return
	}

	result, err := h.get.Handle(r.Context(), queries.GetMemoryQuery{
		OwnerID:  chi.URLParam(r, "ownerID"),
		ActorID:  actorID,
		MemoryID: chi.URLParam(r, "memoryID"),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// List handles GET /owners/{ownerID}/memories
func (h *MemoryHandler) List(w http.ResponseWriter, r *http.Request) {
	actorID, err := auth.ActorFromContext(r.Context())
	if err != nil {
		writeError(w, h.logger, pkgerrors.NewAccessDenied("not authenticated"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, h.logger, pkgerrors.NewValidation("limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	result, err := h.get.List(r.Context(), queries.ListMemoriesQuery{
		OwnerID: chi.URLParam(r, "ownerID"),
		ActorID: actorID,
		Limit:   limit,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Delete handles DELETE /owners/{ownerID}/memories/{memoryID}
func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actorID, err := auth.ActorFromContext(r.Context())
	if err != nil {
		writeError(w, h.logger, pkgerrors.NewAccessDenied("not authenticated"))
		return
	}

	result, err := h.delete.Handle(r.Context(), commands.DeleteMemoryCommand{
		OwnerID:  chi.URLParam(r, "ownerID"),
		ActorID:  actorID,
		MemoryID: chi.URLParam(r, "memoryID"),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
