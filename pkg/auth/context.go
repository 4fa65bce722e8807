package auth

import (
	"context"
	"errors"
)

type contextKey struct{}

var actorKey contextKey

// SetActorInContext stores the authenticated actor id on the context
func SetActorInContext(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey, actorID)
}

// ActorFromContext returns the authenticated actor id
func ActorFromContext(ctx context.Context) (string, error) {
	actorID, ok := ctx.Value(actorKey).(string)
	if !ok || actorID == "" {
		return "", errors.New("no authenticated actor in context")
	}
	return actorID, nil
}
