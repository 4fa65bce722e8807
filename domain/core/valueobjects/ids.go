package valueobjects

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "engram-backend/pkg/errors"
)

// MaxOwnerIDLength bounds owner identifiers coming from the ledger
const MaxOwnerIDLength = 128

// MemoryID is a value object that ensures valid memory identifiers
type MemoryID struct {
	value string
}

// NewMemoryID creates a new random MemoryID
func NewMemoryID() MemoryID {
	return MemoryID{value: uuid.New().String()}
}

// ParseMemoryID creates a MemoryID from a string, validating it's a proper UUID
func ParseMemoryID(id string) (MemoryID, error) {
	if _, err := uuid.Parse(id); err != nil {
		return MemoryID{}, pkgerrors.NewValidation("invalid memory id")
	}
	return MemoryID{value: id}, nil
}

// String returns the string representation of the MemoryID
func (id MemoryID) String() string { return id.value }

// Equals checks if two MemoryIDs are equal
func (id MemoryID) Equals(other MemoryID) bool { return id.value == other.value }

// IsEmpty checks if the MemoryID is empty
func (id MemoryID) IsEmpty() bool { return id.value == "" }

// EntityID is a value object that ensures valid graph node identifiers
type EntityID struct {
	value string
}

// NewEntityID creates a new random EntityID
func NewEntityID() EntityID {
	return EntityID{value: uuid.New().String()}
}

// ParseEntityID creates an EntityID from a string, validating it's a proper UUID
func ParseEntityID(id string) (EntityID, error) {
	if _, err := uuid.Parse(id); err != nil {
		return EntityID{}, pkgerrors.NewValidation("invalid entity id")
	}
	return EntityID{value: id}, nil
}

// String returns the string representation of the EntityID
func (id EntityID) String() string { return id.value }

// Equals checks if two EntityIDs are equal
func (id EntityID) Equals(other EntityID) bool { return id.value == other.value }

// IsEmpty checks if the EntityID is empty
func (id EntityID) IsEmpty() bool { return id.value == "" }

// OwnerID identifies the owner of a memory graph
type OwnerID struct {
	value string
}

// NewOwnerID creates an OwnerID from a string with validation
func NewOwnerID(id string) (OwnerID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return OwnerID{}, pkgerrors.NewValidation("owner id cannot be empty")
	}
	if len(id) > MaxOwnerIDLength {
		return OwnerID{}, pkgerrors.NewValidation("owner id too long")
	}
	return OwnerID{value: id}, nil
}

// String returns the string representation of the OwnerID
func (id OwnerID) String() string { return id.value }

// Equals checks if two OwnerIDs are equal
func (id OwnerID) Equals(other OwnerID) bool { return id.value == other.value }

// IsEmpty checks if the OwnerID is empty
func (id OwnerID) IsEmpty() bool { return id.value == "" }

// ActorID identifies the principal attempting an operation. Separate from
// OwnerID because an owner may delegate capabilities to other actors.
type ActorID struct {
	value string
}

// NewActorID creates an ActorID from a string with validation
func NewActorID(id string) (ActorID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ActorID{}, pkgerrors.NewValidation("actor id cannot be empty")
	}
	return ActorID{value: id}, nil
}

// String returns the string representation of the ActorID
func (id ActorID) String() string { return id.value }

// IsEmpty checks if the ActorID is empty
func (id ActorID) IsEmpty() bool { return id.value == "" }
