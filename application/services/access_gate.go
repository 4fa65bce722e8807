// Package services holds application services that coordinate domain
// logic with ports.
package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"engram-backend/application/ports"
	"engram-backend/domain/core/valueobjects"
	pkgerrors "engram-backend/pkg/errors"
)

// AccessGate enforces capability checks in front of every pipeline and
// query operation. A ledger failure is an error, never an implicit grant.
type AccessGate struct {
	ledger ports.CapabilityLedger
	logger *zap.Logger
}

// NewAccessGate creates an AccessGate
func NewAccessGate(ledger ports.CapabilityLedger, logger *zap.Logger) *AccessGate {
	return &AccessGate{ledger: ledger, logger: logger}
}

// Require returns nil when the actor holds the capability over the owner's
// store, and an ACCESS_DENIED error otherwise.
func (g *AccessGate) Require(ctx context.Context, actor valueobjects.ActorID, owner valueobjects.OwnerID, capability ports.Capability) error {
	decision, err := g.ledger.Check(ctx, actor, owner, capability)
	if err != nil {
		return pkgerrors.Wrap(err, "capability ledger check")
	}
	if !decision.Allowed {
		g.logger.Info("capability denied",
			zap.String("actor_id", actor.String()),
			zap.String("owner_id", owner.String()),
			zap.String("capability", string(capability)),
			zap.String("reason", decision.Reason))
		return pkgerrors.NewAccessDenied(fmt.Sprintf("actor %s lacks %s over owner %s", actor.String(), capability, owner.String()))
	}
	return nil
}
