// Package fixtures provides builders for test data with sensible
// defaults, shared by integration and handler tests.
package fixtures

import (
	"time"

	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
)

// MemoryBuilder builds memories in chosen pipeline states
type MemoryBuilder struct {
	ownerID string
	text    string
	status  entities.MemoryStatus
	created time.Time
}

// NewMemoryBuilder starts a builder with defaults
func NewMemoryBuilder() *MemoryBuilder {
	return &MemoryBuilder{
		ownerID: "test-user",
		text:    "Ada Lovelace wrote the first program for the Analytical Engine.",
		status:  entities.StatusIndexed,
		created: time.Now(),
	}
}

func (b *MemoryBuilder) WithOwner(ownerID string) *MemoryBuilder {
	b.ownerID = ownerID
	return b
}

func (b *MemoryBuilder) WithText(text string) *MemoryBuilder {
	b.text = text
	return b
}

func (b *MemoryBuilder) WithStatus(status entities.MemoryStatus) *MemoryBuilder {
	b.status = status
	return b
}

func (b *MemoryBuilder) CreatedAt(t time.Time) *MemoryBuilder {
	b.created = t
	return b
}

// Build constructs the memory. Panics on invalid builder input; tests
// should not encode invalid fixture state here.
func (b *MemoryBuilder) Build() *entities.Memory {
	ownerID, err := valueobjects.NewOwnerID(b.ownerID)
	if err != nil {
		panic(err)
	}
	var deletedAt *time.Time
	if b.status == entities.StatusDeleted {
		t := b.created
		deletedAt = &t
	}
	return entities.ReconstructMemory(
		valueobjects.NewMemoryID(),
		ownerID,
		b.text,
		entities.DigestText(ownerID, b.text),
		b.status,
		b.created,
		b.created,
		deletedAt,
	)
}

// EntityBuilder builds graph entities
type EntityBuilder struct {
	ownerID    string
	label      string
	entityType valueobjects.EntityType
	confidence float64
	sourceID   valueobjects.MemoryID
}

// NewEntityBuilder starts a builder with defaults
func NewEntityBuilder() *EntityBuilder {
	return &EntityBuilder{
		ownerID:    "test-user",
		label:      "Ada Lovelace",
		entityType: valueobjects.TypePerson,
		confidence: 0.9,
		sourceID:   valueobjects.NewMemoryID(),
	}
}

func (b *EntityBuilder) WithOwner(ownerID string) *EntityBuilder {
	b.ownerID = ownerID
	return b
}

func (b *EntityBuilder) WithLabel(label string) *EntityBuilder {
	b.label = label
	return b
}

func (b *EntityBuilder) WithType(entityType valueobjects.EntityType) *EntityBuilder {
	b.entityType = entityType
	return b
}

func (b *EntityBuilder) WithConfidence(confidence float64) *EntityBuilder {
	b.confidence = confidence
	return b
}

func (b *EntityBuilder) FromMemory(id valueobjects.MemoryID) *EntityBuilder {
	b.sourceID = id
	return b
}

// Build constructs the entity, panicking on invalid builder input
func (b *EntityBuilder) Build() *entities.Entity {
	ownerID, err := valueobjects.NewOwnerID(b.ownerID)
	if err != nil {
		panic(err)
	}
	label, err := valueobjects.NewLabel(b.label)
	if err != nil {
		panic(err)
	}
	entity, err := entities.NewEntity(ownerID, label, b.entityType, b.confidence, b.sourceID)
	if err != nil {
		panic(err)
	}
	return entity
}

// StaticTuning is a fixed extraction confidence threshold for tests
// that do not exercise hot reload.
type StaticTuning float64

// ConfidenceThreshold returns the fixed cutoff
func (s StaticTuning) ConfidenceThreshold() float64 { return float64(s) }
