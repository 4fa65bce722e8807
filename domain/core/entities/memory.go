package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"engram-backend/domain/core/valueobjects"
	pkgerrors "engram-backend/pkg/errors"
)

// MemoryStatus tracks a memory's progress through the ingestion pipeline.
// The set mirrors the pipeline's committed checkpoints rather than every
// transient stage: only states that must survive a crash are persisted.
type MemoryStatus string

const (
	// StatusPending is set when the record is first persisted, before the
	// graph transaction commits.
	StatusPending MemoryStatus = "pending"
	// StatusGraphCommitted means graph changes are durable but the memory is
	// not yet vector-searchable. Repairable state.
	StatusGraphCommitted MemoryStatus = "graph_committed"
	// StatusIndexed means the memory is fully searchable.
	StatusIndexed MemoryStatus = "indexed"
	// StatusDeleted marks a tombstone. Tombstones keep provenance auditable.
	StatusDeleted MemoryStatus = "deleted"
)

// Memory is an immutable unit of ingested text owned by a user.
// Mutability is limited to pipeline status transitions and tombstoning.
type Memory struct {
	id            valueobjects.MemoryID
	ownerID       valueobjects.OwnerID
	text          string
	contentDigest string
	status        MemoryStatus
	createdAt     time.Time
	updatedAt     time.Time
	deletedAt     *time.Time
}

// NewMemory creates a memory record with full validation
func NewMemory(ownerID valueobjects.OwnerID, text string) (*Memory, error) {
	if ownerID.IsEmpty() {
		return nil, pkgerrors.NewValidation("owner id cannot be empty")
	}
	if strings.TrimSpace(text) == "" {
		return nil, pkgerrors.NewValidation("memory text cannot be empty")
	}

	now := time.Now()
	return &Memory{
		id:            valueobjects.NewMemoryID(),
		ownerID:       ownerID,
		text:          text,
		contentDigest: DigestText(ownerID, text),
		status:        StatusPending,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// ReconstructMemory rebuilds a memory from repository data with preserved
// timestamps and status
func ReconstructMemory(
	id valueobjects.MemoryID,
	ownerID valueobjects.OwnerID,
	text string,
	contentDigest string,
	status MemoryStatus,
	createdAt, updatedAt time.Time,
	deletedAt *time.Time,
) *Memory {
	return &Memory{
		id:            id,
		ownerID:       ownerID,
		text:          text,
		contentDigest: contentDigest,
		status:        status,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
		deletedAt:     deletedAt,
	}
}

// ID returns the memory's unique identifier
func (m *Memory) ID() valueobjects.MemoryID { return m.id }

// OwnerID returns the owning user's ID
func (m *Memory) OwnerID() valueobjects.OwnerID { return m.ownerID }

// Text returns the raw ingested text
func (m *Memory) Text() string { return m.text }

// ContentDigest returns the owner-scoped digest of the text
func (m *Memory) ContentDigest() string { return m.contentDigest }

// Status returns the memory's pipeline status
func (m *Memory) Status() MemoryStatus { return m.status }

// CreatedAt returns when the memory was ingested
func (m *Memory) CreatedAt() time.Time { return m.createdAt }

// UpdatedAt returns when the memory last changed state
func (m *Memory) UpdatedAt() time.Time { return m.updatedAt }

// DeletedAt returns the tombstone time, if deleted
func (m *Memory) DeletedAt() *time.Time { return m.deletedAt }

// IsDeleted checks whether the memory is tombstoned
func (m *Memory) IsDeleted() bool { return m.status == StatusDeleted }

// IsSearchable checks whether the memory is visible to vector queries
func (m *Memory) IsSearchable() bool { return m.status == StatusIndexed }

// MarkGraphCommitted records that the graph transaction for this memory is
// durable. Valid from pending (first run) or graph_committed (re-run).
func (m *Memory) MarkGraphCommitted() error {
	if m.status == StatusDeleted {
		return pkgerrors.NewValidation("cannot transition a deleted memory")
	}
	if m.status == StatusIndexed {
		return pkgerrors.NewConflict("memory already indexed")
	}
	m.status = StatusGraphCommitted
	m.updatedAt = time.Now()
	return nil
}

// MarkIndexed records that the vector upsert succeeded. Idempotent: marking
// an already-indexed memory is a no-op so pipeline re-runs stay safe.
func (m *Memory) MarkIndexed() error {
	switch m.status {
	case StatusDeleted:
		return pkgerrors.NewValidation("cannot transition a deleted memory")
	case StatusIndexed:
		return nil
	case StatusPending:
		return pkgerrors.NewValidation("memory must be graph-committed before indexing")
	}
	m.status = StatusIndexed
	m.updatedAt = time.Now()
	return nil
}

// Tombstone soft-deletes the memory, keeping provenance auditable
func (m *Memory) Tombstone() error {
	if m.status == StatusDeleted {
		return pkgerrors.NewConflict("memory already deleted")
	}
	now := time.Now()
	m.status = StatusDeleted
	m.deletedAt = &now
	m.updatedAt = now
	return nil
}

// DigestText computes the owner-scoped content digest used for idempotent
// ingestion. Scoping by owner keeps identical texts from different owners
// from colliding.
func DigestText(ownerID valueobjects.OwnerID, text string) string {
	h := sha256.New()
	h.Write([]byte(ownerID.String()))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
