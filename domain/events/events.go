package events

import (
	"time"

	"engram-backend/domain/core/valueobjects"
)

// Event types
const (
	TypeMemoryIngested             = "memory.ingested"
	TypeMemoryDeleted              = "memory.deleted"
	TypeEntityCreated              = "entity.created"
	TypeEntityMerged               = "entity.merged"
	TypeRelationshipUpserted       = "relationship.upserted"
	TypeResolutionConflictRecorded = "resolution.conflict.recorded"
	TypeIndexRepaired              = "index.repaired"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

// MemoryIngested is raised once a memory is fully searchable
type MemoryIngested struct {
	BaseEvent
	MemoryID     string `json:"memory_id"`
	OwnerID      string `json:"owner_id"`
	EntityCount  int    `json:"entity_count"`
	EdgeCount    int    `json:"edge_count"`
	ModelVersion string `json:"model_version"`
}

// NewMemoryIngested creates a MemoryIngested event
func NewMemoryIngested(memoryID valueobjects.MemoryID, ownerID valueobjects.OwnerID, entityCount, edgeCount int, modelVersion string) MemoryIngested {
	return MemoryIngested{
		BaseEvent: BaseEvent{
			AggregateID: memoryID.String(),
			EventType:   TypeMemoryIngested,
			Timestamp:   time.Now(),
		},
		MemoryID:     memoryID.String(),
		OwnerID:      ownerID.String(),
		EntityCount:  entityCount,
		EdgeCount:    edgeCount,
		ModelVersion: modelVersion,
	}
}

// MemoryDeleted is raised when a memory is tombstoned
type MemoryDeleted struct {
	BaseEvent
	MemoryID       string `json:"memory_id"`
	OwnerID        string `json:"owner_id"`
	EntitiesPruned int    `json:"entities_pruned"`
	EdgesPruned    int    `json:"edges_pruned"`
}

// NewMemoryDeleted creates a MemoryDeleted event
func NewMemoryDeleted(memoryID valueobjects.MemoryID, ownerID valueobjects.OwnerID, entitiesPruned, edgesPruned int) MemoryDeleted {
	return MemoryDeleted{
		BaseEvent: BaseEvent{
			AggregateID: memoryID.String(),
			EventType:   TypeMemoryDeleted,
			Timestamp:   time.Now(),
		},
		MemoryID:       memoryID.String(),
		OwnerID:        ownerID.String(),
		EntitiesPruned: entitiesPruned,
		EdgesPruned:    edgesPruned,
	}
}

// EntityCreated is raised when resolution creates a brand-new graph node
type EntityCreated struct {
	BaseEvent
	EntityID string `json:"entity_id"`
	OwnerID  string `json:"owner_id"`
	Label    string `json:"label"`
	Type     string `json:"type"`
}

// NewEntityCreated creates an EntityCreated event
func NewEntityCreated(entityID valueobjects.EntityID, ownerID valueobjects.OwnerID, label string, entityType valueobjects.EntityType) EntityCreated {
	return EntityCreated{
		BaseEvent: BaseEvent{
			AggregateID: entityID.String(),
			EventType:   TypeEntityCreated,
			Timestamp:   time.Now(),
		},
		EntityID: entityID.String(),
		OwnerID:  ownerID.String(),
		Label:    label,
		Type:     string(entityType),
	}
}

// EntityMerged is raised when a candidate merges into an existing node
type EntityMerged struct {
	BaseEvent
	EntityID       string  `json:"entity_id"`
	OwnerID        string  `json:"owner_id"`
	CandidateLabel string  `json:"candidate_label"`
	Confidence     float64 `json:"confidence"`
}

// NewEntityMerged creates an EntityMerged event
func NewEntityMerged(entityID valueobjects.EntityID, ownerID valueobjects.OwnerID, candidateLabel string, confidence float64) EntityMerged {
	return EntityMerged{
		BaseEvent: BaseEvent{
			AggregateID: entityID.String(),
			EventType:   TypeEntityMerged,
			Timestamp:   time.Now(),
		},
		EntityID:       entityID.String(),
		OwnerID:        ownerID.String(),
		CandidateLabel: candidateLabel,
		Confidence:     confidence,
	}
}

// ResolutionConflictRecorded is raised when a candidate label matched more
// than one existing node and the tie-break rule picked a winner. Kept for
// manual review; data is never silently dropped.
type ResolutionConflictRecorded struct {
	BaseEvent
	OwnerID         string   `json:"owner_id"`
	CandidateLabel  string   `json:"candidate_label"`
	CandidateType   string   `json:"candidate_type"`
	MatchedEntities []string `json:"matched_entities"`
	WinnerID        string   `json:"winner_id"`
}

// NewResolutionConflictRecorded creates a ResolutionConflictRecorded event
func NewResolutionConflictRecorded(ownerID valueobjects.OwnerID, label string, entityType valueobjects.EntityType, matched []string, winner valueobjects.EntityID) ResolutionConflictRecorded {
	return ResolutionConflictRecorded{
		BaseEvent: BaseEvent{
			AggregateID: winner.String(),
			EventType:   TypeResolutionConflictRecorded,
			Timestamp:   time.Now(),
		},
		OwnerID:         ownerID.String(),
		CandidateLabel:  label,
		CandidateType:   string(entityType),
		MatchedEntities: matched,
		WinnerID:        winner.String(),
	}
}

// IndexRepaired is raised when the repair pass brings a graph-committed
// memory back into the vector index
type IndexRepaired struct {
	BaseEvent
	MemoryID string `json:"memory_id"`
	OwnerID  string `json:"owner_id"`
}

// NewIndexRepaired creates an IndexRepaired event
func NewIndexRepaired(memoryID valueobjects.MemoryID, ownerID valueobjects.OwnerID) IndexRepaired {
	return IndexRepaired{
		BaseEvent: BaseEvent{
			AggregateID: memoryID.String(),
			EventType:   TypeIndexRepaired,
			Timestamp:   time.Now(),
		},
		MemoryID: memoryID.String(),
		OwnerID:  ownerID.String(),
	}
}
