// Package handlers holds the REST endpoint handlers. They translate
// HTTP requests into application commands and queries; all domain rules
// live below this layer.
package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	pkgerrors "engram-backend/pkg/errors"
)

// errorBody is the wire shape of every error response
type errorBody struct {
	Error   bool   `json:"error"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP status codes. Internal
// details never leave the process; clients get the type and message only.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	errType := pkgerrors.TypeOf(err)
	status := statusFor(errType)

	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		message = "internal error"
	}

	writeJSON(w, status, errorBody{
		Error:   true,
		Type:    string(errType),
		Message: message,
	})
}

func statusFor(errType pkgerrors.ErrorType) int {
	switch errType {
	case pkgerrors.ErrorTypeValidation, pkgerrors.ErrorTypeVectorDimensionMismatch:
		return http.StatusBadRequest
	case pkgerrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case pkgerrors.ErrorTypeConflict, pkgerrors.ErrorTypeResolutionConflict:
		return http.StatusConflict
	case pkgerrors.ErrorTypeAccessDenied:
		return http.StatusForbidden
	case pkgerrors.ErrorTypeExtractionUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
