package entities

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"engram-backend/domain/core/valueobjects"
	pkgerrors "engram-backend/pkg/errors"
)

// Relationship is a typed, directed edge between two entities. An edge is
// uniquely identified by (source, target, label): repeated extraction of the
// same triple updates confidence and provenance instead of duplicating.
type Relationship struct {
	id              string
	sourceEntityID  valueobjects.EntityID
	targetEntityID  valueobjects.EntityID
	label           string
	confidence      float64
	sourceMemoryIDs map[string]struct{}
	createdAt       time.Time
	updatedAt       time.Time
}

// RelationshipKey is the identity of an edge within one owner's graph
func RelationshipKey(source, target valueobjects.EntityID, label string) string {
	return fmt.Sprintf("%s|%s|%s", source.String(), target.String(), NormalizeRelationLabel(label))
}

// NormalizeRelationLabel canonicalizes an edge label for identity matching
func NormalizeRelationLabel(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.TrimSpace(label)), "_"))
}

// NewRelationship creates an edge between two resolved entities
func NewRelationship(
	source, target valueobjects.EntityID,
	label string,
	confidence float64,
	sourceMemoryID valueobjects.MemoryID,
) (*Relationship, error) {
	if source.IsEmpty() || target.IsEmpty() {
		return nil, pkgerrors.NewValidation("relationship endpoints cannot be empty")
	}
	if strings.TrimSpace(label) == "" {
		return nil, pkgerrors.NewValidation("relationship label cannot be empty")
	}
	if confidence < 0 || confidence > 1 {
		return nil, pkgerrors.NewValidation("confidence must be within [0,1]")
	}

	now := time.Now()
	r := &Relationship{
		id:              RelationshipKey(source, target, label),
		sourceEntityID:  source,
		targetEntityID:  target,
		label:           NormalizeRelationLabel(label),
		confidence:      confidence,
		sourceMemoryIDs: map[string]struct{}{},
		createdAt:       now,
		updatedAt:       now,
	}
	if !sourceMemoryID.IsEmpty() {
		r.sourceMemoryIDs[sourceMemoryID.String()] = struct{}{}
	}
	return r, nil
}

// ReconstructRelationship rebuilds an edge from repository data
func ReconstructRelationship(
	source, target valueobjects.EntityID,
	label string,
	confidence float64,
	sourceMemoryIDs []string,
	createdAt, updatedAt time.Time,
) *Relationship {
	r := &Relationship{
		id:              RelationshipKey(source, target, label),
		sourceEntityID:  source,
		targetEntityID:  target,
		label:           NormalizeRelationLabel(label),
		confidence:      confidence,
		sourceMemoryIDs: map[string]struct{}{},
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
	for _, id := range sourceMemoryIDs {
		r.sourceMemoryIDs[id] = struct{}{}
	}
	return r
}

// ID returns the edge identity key
func (r *Relationship) ID() string { return r.id }

// SourceEntityID returns the edge's source node
func (r *Relationship) SourceEntityID() valueobjects.EntityID { return r.sourceEntityID }

// TargetEntityID returns the edge's target node
func (r *Relationship) TargetEntityID() valueobjects.EntityID { return r.targetEntityID }

// Label returns the normalized edge label
func (r *Relationship) Label() string { return r.label }

// Confidence returns the current (max-merged) confidence
func (r *Relationship) Confidence() float64 { return r.confidence }

// CreatedAt returns when the edge was first materialized
func (r *Relationship) CreatedAt() time.Time { return r.createdAt }

// SourceMemoryIDs returns the contributing memory ids, sorted for determinism
func (r *Relationship) SourceMemoryIDs() []string {
	out := make([]string, 0, len(r.sourceMemoryIDs))
	for id := range r.sourceMemoryIDs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Touches checks whether the edge is incident to the given entity
func (r *Relationship) Touches(entityID valueobjects.EntityID) bool {
	return r.sourceEntityID.Equals(entityID) || r.targetEntityID.Equals(entityID)
}

// Absorb merges repeated extraction of the same triple: provenance union,
// confidence max
func (r *Relationship) Absorb(confidence float64, sourceMemoryID valueobjects.MemoryID) {
	if confidence > r.confidence {
		r.confidence = confidence
	}
	if !sourceMemoryID.IsEmpty() {
		r.sourceMemoryIDs[sourceMemoryID.String()] = struct{}{}
	}
	r.updatedAt = time.Now()
}

// RemoveSource drops a memory from the edge's provenance. Returns true when
// no evidence remains and the edge should be pruned.
func (r *Relationship) RemoveSource(memoryID valueobjects.MemoryID) bool {
	delete(r.sourceMemoryIDs, memoryID.String())
	r.updatedAt = time.Now()
	return len(r.sourceMemoryIDs) == 0
}

// Clone returns a deep copy for transaction staging
func (r *Relationship) Clone() *Relationship {
	c := &Relationship{
		id:              r.id,
		sourceEntityID:  r.sourceEntityID,
		targetEntityID:  r.targetEntityID,
		label:           r.label,
		confidence:      r.confidence,
		sourceMemoryIDs: make(map[string]struct{}, len(r.sourceMemoryIDs)),
		createdAt:       r.createdAt,
		updatedAt:       r.updatedAt,
	}
	for k := range r.sourceMemoryIDs {
		c.sourceMemoryIDs[k] = struct{}{}
	}
	return c
}
