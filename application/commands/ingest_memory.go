// Package commands defines the write-side operations and their handlers.
package commands

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"engram-backend/application/ports"
	"engram-backend/application/sagas"
	appservices "engram-backend/application/services"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	pkgerrors "engram-backend/pkg/errors"
)

// IngestMemoryCommand submits one memory for the full ingestion pipeline
type IngestMemoryCommand struct {
	OwnerID        string `json:"owner_id" validate:"required,max=128"`
	ActorID        string `json:"actor_id" validate:"required,max=128"`
	Text           string `json:"text" validate:"required,max=50000"`
	IdempotencyKey string `json:"idempotency_key,omitempty" validate:"max=256"`
}

// IngestMemoryResult reports the outcome of an ingestion
type IngestMemoryResult struct {
	MemoryID    string `json:"memory_id"`
	OperationID string `json:"operation_id"`
	Status      string `json:"status"`
	EntityCount int    `json:"entity_count"`
	EdgeCount   int    `json:"edge_count"`
	// Deduplicated is true when the exact same text was already fully
	// ingested for this owner
	Deduplicated bool `json:"deduplicated,omitempty"`
}

// IngestMemoryHandler handles IngestMemoryCommand. Ingesting the same text
// twice for one owner is a no-op thanks to the owner-scoped content digest,
// and an interrupted pipeline resumes from the memory's durable checkpoint.
type IngestMemoryHandler struct {
	accessGate       *appservices.AccessGate
	memoryRepo       ports.MemoryRepository
	saga             *sagas.IngestMemorySaga
	idempotencyStore ports.IdempotencyStore
	operationStore   ports.OperationStore
	validate         *validator.Validate
	logger           *zap.Logger

	// Per-digest locks serialize concurrent ingestions of the same text
	// for one owner, so the digest lookup and the pipeline run as a unit
	// and exactly one memory record wins.
	digestMu    sync.Mutex
	digestLocks map[string]*digestLock
}

// digestLock is reference counted so the lock table stays bounded by the
// number of in-flight ingestions rather than growing with every digest ever
// seen.
type digestLock struct {
	mu   sync.Mutex
	refs int
}

// NewIngestMemoryHandler creates an IngestMemoryHandler
func NewIngestMemoryHandler(
	accessGate *appservices.AccessGate,
	memoryRepo ports.MemoryRepository,
	saga *sagas.IngestMemorySaga,
	idempotencyStore ports.IdempotencyStore,
	operationStore ports.OperationStore,
	logger *zap.Logger,
) *IngestMemoryHandler {
	return &IngestMemoryHandler{
		accessGate:       accessGate,
		memoryRepo:       memoryRepo,
		saga:             saga,
		idempotencyStore: idempotencyStore,
		operationStore:   operationStore,
		validate:         validator.New(),
		logger:           logger,
		digestLocks:      map[string]*digestLock{},
	}
}

func (h *IngestMemoryHandler) acquireDigest(digest string) *digestLock {
	h.digestMu.Lock()
	lock, ok := h.digestLocks[digest]
	if !ok {
		lock = &digestLock{}
		h.digestLocks[digest] = lock
	}
	lock.refs++
	h.digestMu.Unlock()

	lock.mu.Lock()
	return lock
}

func (h *IngestMemoryHandler) releaseDigest(digest string, lock *digestLock) {
	lock.mu.Unlock()

	h.digestMu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(h.digestLocks, digest)
	}
	h.digestMu.Unlock()
}

// Handle executes the ingestion pipeline for one memory
func (h *IngestMemoryHandler) Handle(ctx context.Context, cmd IngestMemoryCommand) (*IngestMemoryResult, error) {
	if err := h.validate.Struct(cmd); err != nil {
		return nil, pkgerrors.NewValidation(err.Error())
	}

	ownerID, err := valueobjects.NewOwnerID(cmd.OwnerID)
	if err != nil {
		return nil, err
	}
	actorID, err := valueobjects.NewActorID(cmd.ActorID)
	if err != nil {
		return nil, err
	}

	if err := h.accessGate.Require(ctx, actorID, ownerID, ports.CapabilityIngest); err != nil {
		return nil, err
	}

	if cmd.IdempotencyKey != "" && h.idempotencyStore != nil {
		claimed, prior, err := h.idempotencyStore.Reserve(ctx, idempotencyKey(ownerID, cmd.IdempotencyKey))
		if err != nil {
			return nil, pkgerrors.Wrap(err, "reserving idempotency key")
		}
		if !claimed {
			if prior == nil {
				return nil, pkgerrors.NewConflict("an identical request is still in flight")
			}
			var result IngestMemoryResult
			if err := json.Unmarshal(prior, &result); err != nil {
				return nil, pkgerrors.Wrap(err, "decoding prior idempotent result")
			}
			result.Deduplicated = true
			return &result, nil
		}
	}

	digest := entities.DigestText(ownerID, cmd.Text)
	lock := h.acquireDigest(digest)
	result, err := h.ingest(ctx, ownerID, actorID, cmd.Text, digest)
	h.releaseDigest(digest, lock)

	if cmd.IdempotencyKey != "" && h.idempotencyStore != nil {
		key := idempotencyKey(ownerID, cmd.IdempotencyKey)
		if err != nil {
			if releaseErr := h.idempotencyStore.Release(ctx, key); releaseErr != nil {
				h.logger.Warn("releasing idempotency key failed", zap.Error(releaseErr))
			}
		} else if encoded, marshalErr := json.Marshal(result); marshalErr == nil {
			if completeErr := h.idempotencyStore.Complete(ctx, key, encoded); completeErr != nil {
				h.logger.Warn("completing idempotency key failed", zap.Error(completeErr))
			}
		}
	}

	return result, err
}

// ingest runs under the caller-held digest lock, so the lookup below and
// the saga execution cannot interleave with another ingestion of the same
// text.
func (h *IngestMemoryHandler) ingest(ctx context.Context, ownerID valueobjects.OwnerID, actorID valueobjects.ActorID, text, digest string) (*IngestMemoryResult, error) {
	// Same owner plus same text means the same memory. A fully indexed
	// prior ingestion short-circuits; an interrupted one resumes.
	existing, err := h.memoryRepo.FindByDigest(ctx, ownerID, digest)
	if err != nil && !pkgerrors.IsNotFound(err) {
		return nil, pkgerrors.Wrap(err, "looking up content digest")
	}

	var resume *entities.Memory
	if existing != nil {
		switch existing.Status() {
		case entities.StatusIndexed:
			return &IngestMemoryResult{
				MemoryID:     existing.ID().String(),
				Status:       string(existing.Status()),
				Deduplicated: true,
			}, nil
		case entities.StatusDeleted:
			// A tombstoned memory's text may be re-ingested as a fresh one
			// once the record is pruned; until then, treat it as new text
			// under a new id.
		default:
			resume = existing
		}
	}

	operationID := uuid.NewString()
	startTime := time.Now()
	if h.operationStore != nil {
		h.operationStore.Store(ctx, &ports.OperationResult{
			OperationID: operationID,
			Status:      ports.OperationStatusPending,
			Stage:       ports.StageAuthorized,
			StartedAt:   startTime,
			Metadata: map[string]interface{}{
				"owner_id": ownerID.String(),
				"actor_id": actorID.String(),
			},
		})
	}

	data := &sagas.IngestMemorySagaData{
		OwnerID:     ownerID,
		ActorID:     actorID,
		Text:        text,
		Memory:      resume,
		OperationID: operationID,
		StartTime:   startTime,
	}
	if err := h.saga.Execute(ctx, data); err != nil {
		return nil, err
	}

	return &IngestMemoryResult{
		MemoryID:    data.Memory.ID().String(),
		OperationID: operationID,
		Status:      string(data.Memory.Status()),
		EntityCount: len(data.Resolution.Created) + len(data.Resolution.Merged),
		EdgeCount:   len(data.Resolution.Relationships),
	}, nil
}

func idempotencyKey(ownerID valueobjects.OwnerID, key string) string {
	return ownerID.String() + "|" + key
}
