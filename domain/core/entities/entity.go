package entities

import (
	"sort"
	"time"

	"engram-backend/domain/core/valueobjects"
	pkgerrors "engram-backend/pkg/errors"
)

// Entity is a deduplicated graph node representing a real-world object or
// concept. Multiple memories contribute evidence to the same entity, so
// entities are shared: they live until the last contributing memory is
// deleted and their degree drops to zero.
type Entity struct {
	id              valueobjects.EntityID
	ownerID         valueobjects.OwnerID
	label           valueobjects.Label
	entityType      valueobjects.EntityType
	aliases         map[string]string // normalized alias -> raw form
	confidence      float64
	sourceMemoryIDs map[string]struct{}
	createdAt       time.Time
	updatedAt       time.Time
}

// NewEntity creates a graph node from a resolved candidate
func NewEntity(
	ownerID valueobjects.OwnerID,
	label valueobjects.Label,
	entityType valueobjects.EntityType,
	confidence float64,
	sourceMemoryID valueobjects.MemoryID,
) (*Entity, error) {
	if ownerID.IsEmpty() {
		return nil, pkgerrors.NewValidation("owner id cannot be empty")
	}
	if label.IsEmpty() {
		return nil, pkgerrors.NewValidation("entity label cannot be empty")
	}
	if confidence < 0 || confidence > 1 {
		return nil, pkgerrors.NewValidation("confidence must be within [0,1]")
	}

	now := time.Now()
	e := &Entity{
		id:              valueobjects.NewEntityID(),
		ownerID:         ownerID,
		label:           label,
		entityType:      entityType,
		aliases:         map[string]string{},
		confidence:      confidence,
		sourceMemoryIDs: map[string]struct{}{},
		createdAt:       now,
		updatedAt:       now,
	}
	if !sourceMemoryID.IsEmpty() {
		e.sourceMemoryIDs[sourceMemoryID.String()] = struct{}{}
	}
	return e, nil
}

// ReconstructEntity rebuilds an entity from repository data
func ReconstructEntity(
	id valueobjects.EntityID,
	ownerID valueobjects.OwnerID,
	label valueobjects.Label,
	entityType valueobjects.EntityType,
	aliases []string,
	confidence float64,
	sourceMemoryIDs []string,
	createdAt, updatedAt time.Time,
) *Entity {
	e := &Entity{
		id:              id,
		ownerID:         ownerID,
		label:           label,
		entityType:      entityType,
		aliases:         map[string]string{},
		confidence:      confidence,
		sourceMemoryIDs: map[string]struct{}{},
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
	for _, a := range aliases {
		e.aliases[valueobjects.NormalizeLabel(a)] = a
	}
	for _, id := range sourceMemoryIDs {
		e.sourceMemoryIDs[id] = struct{}{}
	}
	return e
}

// ID returns the entity's unique identifier
func (e *Entity) ID() valueobjects.EntityID { return e.id }

// OwnerID returns the owning user's ID
func (e *Entity) OwnerID() valueobjects.OwnerID { return e.ownerID }

// Label returns the canonical label
func (e *Entity) Label() valueobjects.Label { return e.label }

// Type returns the entity's canonical type
func (e *Entity) Type() valueobjects.EntityType { return e.entityType }

// Confidence returns the current (max-merged) confidence
func (e *Entity) Confidence() float64 { return e.confidence }

// CreatedAt returns when the entity was first created
func (e *Entity) CreatedAt() time.Time { return e.createdAt }

// UpdatedAt returns when the entity last absorbed evidence
func (e *Entity) UpdatedAt() time.Time { return e.updatedAt }

// Aliases returns the raw alias forms, sorted for determinism
func (e *Entity) Aliases() []string {
	out := make([]string, 0, len(e.aliases))
	for _, raw := range e.aliases {
		out = append(out, raw)
	}
	sort.Strings(out)
	return out
}

// SourceMemoryIDs returns the contributing memory ids, sorted for determinism
func (e *Entity) SourceMemoryIDs() []string {
	out := make([]string, 0, len(e.sourceMemoryIDs))
	for id := range e.sourceMemoryIDs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// EvidenceCount returns how many memories contribute to this entity
func (e *Entity) EvidenceCount() int { return len(e.sourceMemoryIDs) }

// HasSource checks whether a memory contributes evidence to this entity
func (e *Entity) HasSource(memoryID valueobjects.MemoryID) bool {
	_, ok := e.sourceMemoryIDs[memoryID.String()]
	return ok
}

// MatchesLabel checks whether a normalized label matches the canonical label
// or any recorded alias
func (e *Entity) MatchesLabel(normalized string) bool {
	if e.label.Normalized() == normalized {
		return true
	}
	_, ok := e.aliases[normalized]
	return ok
}

// Absorb merges a candidate's evidence into this entity: aliases union,
// source memory ids union, confidence takes the max. Idempotent for repeated
// extraction of the same (label, memory) pair since set union keeps the
// growth bounded.
func (e *Entity) Absorb(candidateLabel valueobjects.Label, confidence float64, sourceMemoryID valueobjects.MemoryID) {
	if candidateLabel.Normalized() != e.label.Normalized() {
		if _, exists := e.aliases[candidateLabel.Normalized()]; !exists {
			e.aliases[candidateLabel.Normalized()] = candidateLabel.Raw()
		}
	}
	if confidence > e.confidence {
		e.confidence = confidence
	}
	if !sourceMemoryID.IsEmpty() {
		e.sourceMemoryIDs[sourceMemoryID.String()] = struct{}{}
	}
	e.updatedAt = time.Now()
}

// RemoveSource drops a memory from the entity's provenance. Returns true
// when no evidence remains and the entity is eligible for pruning (subject
// to its degree also being zero).
func (e *Entity) RemoveSource(memoryID valueobjects.MemoryID) bool {
	delete(e.sourceMemoryIDs, memoryID.String())
	e.updatedAt = time.Now()
	return len(e.sourceMemoryIDs) == 0
}

// Clone returns a deep copy, used to keep committed graph state isolated
// from staged transaction state.
func (e *Entity) Clone() *Entity {
	c := &Entity{
		id:              e.id,
		ownerID:         e.ownerID,
		label:           e.label,
		entityType:      e.entityType,
		aliases:         make(map[string]string, len(e.aliases)),
		confidence:      e.confidence,
		sourceMemoryIDs: make(map[string]struct{}, len(e.sourceMemoryIDs)),
		createdAt:       e.createdAt,
		updatedAt:       e.updatedAt,
	}
	for k, v := range e.aliases {
		c.aliases[k] = v
	}
	for k := range e.sourceMemoryIDs {
		c.sourceMemoryIDs[k] = struct{}{}
	}
	return c
}
