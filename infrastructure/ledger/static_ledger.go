// Package ledger provides the capability ledger adapters. The static
// ledger is a self-service policy for single-tenant deployments; the
// HTTP ledger consults an external authority.
package ledger

import (
	"context"
	"sync"

	"engram-backend/application/ports"
	"engram-backend/domain/core/valueobjects"
)

// StaticLedger grants every capability to the actor whose id equals the
// owner id, plus any explicitly registered grants. Suitable for
// development and single-tenant deployments where each user owns
// exactly their own store.
type StaticLedger struct {
	mu     sync.RWMutex
	grants map[string]map[ports.Capability]bool
}

// NewStaticLedger creates a StaticLedger with only the self-service rule
func NewStaticLedger() *StaticLedger {
	return &StaticLedger{grants: make(map[string]map[ports.Capability]bool)}
}

// Grant registers a capability for an actor over an owner's store
func (l *StaticLedger) Grant(actor valueobjects.ActorID, owner valueobjects.OwnerID, capability ports.Capability) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := grantKey(actor, owner)
	if l.grants[key] == nil {
		l.grants[key] = make(map[ports.Capability]bool)
	}
	l.grants[key][capability] = true
}

// Revoke removes a previously registered grant
func (l *StaticLedger) Revoke(actor valueobjects.ActorID, owner valueobjects.OwnerID, capability ports.Capability) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.grants[grantKey(actor, owner)], capability)
}

// Check decides whether the actor holds the capability over the owner's
// store
func (l *StaticLedger) Check(ctx context.Context, actor valueobjects.ActorID, owner valueobjects.OwnerID, capability ports.Capability) (ports.Decision, error) {
	if actor.String() == owner.String() {
		return ports.Decision{Allowed: true, Reason: "self"}, nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.grants[grantKey(actor, owner)][capability] {
		return ports.Decision{Allowed: true, Reason: "explicit grant"}, nil
	}
	return ports.Decision{Allowed: false, Reason: "no grant"}, nil
}

func grantKey(actor valueobjects.ActorID, owner valueobjects.OwnerID) string {
	return actor.String() + "|" + owner.String()
}
