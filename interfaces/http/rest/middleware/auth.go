// Package middleware holds the HTTP middleware stack: authentication,
// request logging, and request metrics.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"engram-backend/pkg/auth"
)

// Authenticate validates the bearer token and puts the actor id on the
// request context. Authentication only establishes who is calling;
// authorization against a specific owner's store happens in the
// application layer through the capability ledger.
func Authenticate(validator *auth.JWTValidator, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				respondUnauthorized(w, "missing authentication token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.Warn("rejected token",
					zap.Error(err),
					zap.String("path", r.URL.Path),
				)
				switch err {
				case auth.ErrExpiredToken:
					respondUnauthorized(w, "token has expired")
				case auth.ErrInvalidSignature:
					respondUnauthorized(w, "invalid token signature")
				default:
					respondUnauthorized(w, "invalid token")
				}
				return
			}

			ctx := auth.SetActorInContext(r.Context(), claims.ActorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return authHeader
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    http.StatusUnauthorized,
	})
}
