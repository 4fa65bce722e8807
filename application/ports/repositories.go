// Package ports declares the interfaces the application layer depends on.
// Implementations live under infrastructure; the domain stays unaware of
// storage and transport concerns.
package ports

import (
	"context"
	"time"

	"engram-backend/domain/core/aggregates"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/domain/events"
)

// GraphTx is a staged transaction over one owner's graph. Mutations apply
// to a working copy; committed state changes atomically on Commit or not at
// all. At most one transaction per owner is live at a time, which gives the
// graph aggregate its single-writer guarantee.
type GraphTx interface {
	// Graph returns the staged working copy. Safe to mutate until Commit
	// or Rollback.
	Graph() *aggregates.Graph

	// Commit atomically replaces the owner's committed graph with the
	// staged copy and bumps the graph version.
	Commit(ctx context.Context) error

	// Rollback discards the staged copy. Safe to call after Commit (no-op).
	Rollback()
}

// GraphRepository persists per-owner knowledge graphs
type GraphRepository interface {
	// Begin opens a write transaction for the owner's graph, creating an
	// empty graph on first use. Blocks until any in-flight transaction for
	// the same owner finishes.
	Begin(ctx context.Context, ownerID valueobjects.OwnerID) (GraphTx, error)

	// View returns a read-only snapshot of the owner's committed graph.
	// Returns a NOT_FOUND error when the owner has no graph yet.
	View(ctx context.Context, ownerID valueobjects.OwnerID) (*aggregates.Graph, error)

	// Stats summarizes the owner's committed graph
	Stats(ctx context.Context, ownerID valueobjects.OwnerID) (GraphStatistics, error)
}

// GraphStatistics holds summary counts over one owner's graph
type GraphStatistics struct {
	NodeCount     int            `json:"node_count"`
	EdgeCount     int            `json:"edge_count"`
	MemoryCount   int            `json:"memory_count"`
	NodesByType   map[string]int `json:"nodes_by_type"`
	MaxDegree     int            `json:"max_degree"`
	AverageDegree float64        `json:"average_degree"`
	Version       int            `json:"version"`
}

// VectorHit is one vector search result
type VectorHit struct {
	MemoryID   string
	Similarity float64
}

// VectorIndex stores memory embeddings and answers nearest-neighbor
// queries. Entries are scoped per owner; queries never cross owners.
type VectorIndex interface {
	// Upsert stores or replaces a memory's embedding. Idempotent. The
	// memory's creation time travels with the entry so equal-similarity
	// results can rank the newer memory first.
	Upsert(ctx context.Context, ownerID valueobjects.OwnerID, memoryID valueobjects.MemoryID, embedding valueobjects.Embedding, createdAt time.Time) error

	// Remove drops a memory's embedding. Removing an absent entry is not
	// an error.
	Remove(ctx context.Context, ownerID valueobjects.OwnerID, memoryID valueobjects.MemoryID) error

	// Search returns up to k memories most similar to the query embedding,
	// ordered by descending similarity.
	Search(ctx context.Context, ownerID valueobjects.OwnerID, query valueobjects.Embedding, k int) ([]VectorHit, error)

	// Has reports whether the memory currently has an indexed embedding
	Has(ctx context.Context, ownerID valueobjects.OwnerID, memoryID valueobjects.MemoryID) (bool, error)
}

// MemoryRepository persists memory records through their lifecycle
type MemoryRepository interface {
	// Save persists a memory (create or update)
	Save(ctx context.Context, memory *entities.Memory) error

	// GetByID retrieves a memory. Returns a NOT_FOUND error for unknown or
	// foreign-owner ids.
	GetByID(ctx context.Context, ownerID valueobjects.OwnerID, id valueobjects.MemoryID) (*entities.Memory, error)

	// FindByDigest looks a memory up by its owner-scoped content digest.
	// Returns a NOT_FOUND error when no memory has the digest.
	FindByDigest(ctx context.Context, ownerID valueobjects.OwnerID, digest string) (*entities.Memory, error)

	// ListByStatus returns up to limit memories in the given status across
	// all owners, oldest first. Used by the repair pass.
	ListByStatus(ctx context.Context, status entities.MemoryStatus, limit int) ([]*entities.Memory, error)

	// ListByOwner returns the owner's non-deleted memories, newest first
	ListByOwner(ctx context.Context, ownerID valueobjects.OwnerID, limit int) ([]*entities.Memory, error)

	// Delete removes a memory record permanently. Tombstoning is done via
	// Save; this is the terminal prune.
	Delete(ctx context.Context, ownerID valueobjects.OwnerID, id valueobjects.MemoryID) error
}

// IdempotencyStore deduplicates retried operations by caller-supplied key
type IdempotencyStore interface {
	// Reserve claims a key. Returns false when the key is already claimed,
	// along with the stored result if the prior run completed.
	Reserve(ctx context.Context, key string) (claimed bool, priorResult []byte, err error)

	// Complete records the result for a claimed key
	Complete(ctx context.Context, key string, result []byte) error

	// Release frees a claimed key after a failed run so a retry can claim
	// it again
	Release(ctx context.Context, key string) error
}

// EventPublisher publishes domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// EventHandler processes domain events
type EventHandler interface {
	// Handle processes an event
	Handle(ctx context.Context, event events.DomainEvent) error

	// CanHandle checks if this handler can process the event
	CanHandle(eventType string) bool
}

// EventBus is a publisher with in-process subscriptions
type EventBus interface {
	EventPublisher

	// Subscribe registers a handler for an event type
	Subscribe(eventType string, handler EventHandler) error

	// Unsubscribe removes a handler
	Unsubscribe(eventType string, handler EventHandler) error
}
