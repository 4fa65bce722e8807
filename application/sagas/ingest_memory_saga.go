package sagas

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"engram-backend/application/ports"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/domain/events"
	domainservices "engram-backend/domain/services"
	pkgerrors "engram-backend/pkg/errors"

	"engram-backend/domain/core/entities"
)

// MaxMemoryTextLength caps ingested memory text
const MaxMemoryTextLength = 50000

// IngestMemorySagaData carries state between ingest saga steps
type IngestMemorySagaData struct {
	// Input
	OwnerID valueobjects.OwnerID
	ActorID valueobjects.ActorID
	Text    string

	// Operation tracking
	OperationID string
	StartTime   time.Time

	// Resumption: set when the command handler found an existing memory for
	// the same owner-scoped digest that never finished its pipeline
	Memory *entities.Memory

	// State between steps
	Extraction domainservices.ExtractionResult
	Tx         ports.GraphTx
	Resolution *domainservices.Resolution
	Embedding  valueobjects.Embedding
	BlobKey    string

	// For compensation. GraphCommitted is the point of no return: once set,
	// compensations become no-ops and failures leave the memory in
	// graph_committed for the repair pass.
	MemoryCreated  bool
	BlobArchived   bool
	GraphCommitted bool
}

// IngestMemorySaga drives one memory through the full pipeline: persist,
// archive, extract, resolve, commit to the graph, embed, index, publish.
type IngestMemorySaga struct {
	memoryRepo     ports.MemoryRepository
	graphRepo      ports.GraphRepository
	vectorIndex    ports.VectorIndex
	extractor      ports.Extractor
	embedder       ports.Embedder
	resolver       *domainservices.EntityResolver
	blobStore      ports.BlobStore
	eventPublisher ports.EventPublisher
	operationStore ports.OperationStore
	tuning         ports.ExtractionTuning
	logger         *zap.Logger
}

// NewIngestMemorySaga creates an IngestMemorySaga
func NewIngestMemorySaga(
	memoryRepo ports.MemoryRepository,
	graphRepo ports.GraphRepository,
	vectorIndex ports.VectorIndex,
	extractor ports.Extractor,
	embedder ports.Embedder,
	resolver *domainservices.EntityResolver,
	blobStore ports.BlobStore,
	eventPublisher ports.EventPublisher,
	operationStore ports.OperationStore,
	tuning ports.ExtractionTuning,
	logger *zap.Logger,
) *IngestMemorySaga {
	return &IngestMemorySaga{
		memoryRepo:     memoryRepo,
		graphRepo:      graphRepo,
		vectorIndex:    vectorIndex,
		extractor:      extractor,
		embedder:       embedder,
		resolver:       resolver,
		blobStore:      blobStore,
		eventPublisher: eventPublisher,
		operationStore: operationStore,
		tuning:         tuning,
		logger:         logger,
	}
}

// BuildSaga assembles the pipeline steps
func (ims *IngestMemorySaga) BuildSaga(operationID string) *Saga {
	return NewSagaBuilder("IngestMemory", ims.logger).
		WithMetadata("operation_id", operationID).
		WithStep("ValidateInput", ims.validateInput).
		WithCompensableStep("PersistMemory", ims.persistMemory, ims.compensatePersistMemory).
		WithCompensableStep("ArchiveBlob", ims.archiveBlob, ims.compensateBlob).
		WithRetryableStep("ExtractEntities", ims.extractEntities, 3, 2*time.Second).
		WithCompensableStep("BeginGraphTx", ims.beginGraphTx, ims.rollbackGraphTx).
		WithStep("ResolveEntities", ims.resolveEntities).
		WithStep("CommitGraph", ims.commitGraph).
		WithRetryableStep("EmbedMemory", ims.embedMemory, 3, time.Second).
		WithRetryableStep("IndexMemory", ims.indexMemory, 3, time.Second).
		WithRetryableStep("PublishEvents", ims.publishEvents, 3, time.Second).
		Build()
}

// Execute runs the saga and records the operation outcome
func (ims *IngestMemorySaga) Execute(ctx context.Context, data *IngestMemorySagaData) error {
	ims.trackStage(ctx, data, ports.StageReceived)

	saga := ims.BuildSaga(data.OperationID)
	_, err := saga.Execute(ctx, data)

	if ims.operationStore != nil && data.OperationID != "" {
		now := time.Now()
		result := &ports.OperationResult{
			OperationID: data.OperationID,
			StartedAt:   data.StartTime,
			CompletedAt: &now,
		}
		if err != nil {
			result.Status = ports.OperationStatusFailed
			result.Error = err.Error()
			if data.GraphCommitted {
				result.Stage = ports.StageGraphCommitted
			}
		} else {
			result.Status = ports.OperationStatusCompleted
			result.Stage = ports.StageDone
			result.Result = map[string]interface{}{
				"memory_id":      data.Memory.ID().String(),
				"entities_found": len(data.Extraction.Entities),
				"edges_found":    len(data.Extraction.Relations),
			}
		}
		ims.operationStore.Update(ctx, data.OperationID, result)
	}

	return err
}

func (ims *IngestMemorySaga) trackStage(ctx context.Context, data *IngestMemorySagaData, stage string) {
	if ims.operationStore == nil || data.OperationID == "" {
		return
	}
	ims.operationStore.Update(ctx, data.OperationID, &ports.OperationResult{
		OperationID: data.OperationID,
		Status:      ports.OperationStatusPending,
		Stage:       stage,
		StartedAt:   data.StartTime,
	})
}

func (ims *IngestMemorySaga) validateInput(ctx context.Context, data interface{}) (interface{}, error) {
	d := data.(*IngestMemorySagaData)

	if d.OwnerID.IsEmpty() {
		return nil, pkgerrors.NewValidation("owner id is required")
	}
	if d.Text == "" {
		return nil, pkgerrors.NewValidation("memory text cannot be empty")
	}
	if len(d.Text) > MaxMemoryTextLength {
		return nil, pkgerrors.NewValidation(fmt.Sprintf("memory text exceeds %d characters", MaxMemoryTextLength))
	}
	return d, nil
}

func (ims *IngestMemorySaga) persistMemory(ctx context.Context, data interface{}) (interface{}, error) {
	d := data.(*IngestMemorySagaData)

	if d.Memory == nil {
		memory, err := entities.NewMemory(d.OwnerID, d.Text)
		if err != nil {
			return nil, err
		}
		if err := ims.memoryRepo.Save(ctx, memory); err != nil {
			return nil, pkgerrors.Wrap(err, "saving memory record")
		}
		d.Memory = memory
		d.MemoryCreated = true
	}

	ims.logger.Debug("memory persisted",
		zap.String("memory_id", d.Memory.ID().String()),
		zap.String("owner_id", d.OwnerID.String()),
		zap.Bool("resumed", !d.MemoryCreated))
	return d, nil
}

func (ims *IngestMemorySaga) compensatePersistMemory(ctx context.Context, data interface{}) error {
	d := data.(*IngestMemorySagaData)
	if d.GraphCommitted || !d.MemoryCreated || d.Memory == nil {
		return nil
	}
	return ims.memoryRepo.Delete(ctx, d.OwnerID, d.Memory.ID())
}

// archiveBlob stores the raw text in the blob store. Archival is best
// effort; an unavailable blob store never blocks ingestion.
func (ims *IngestMemorySaga) archiveBlob(ctx context.Context, data interface{}) (interface{}, error) {
	d := data.(*IngestMemorySagaData)

	d.BlobKey = fmt.Sprintf("%s/%s.txt", d.OwnerID.String(), d.Memory.ID().String())
	if err := ims.blobStore.Put(ctx, d.BlobKey, []byte(d.Text), "text/plain"); err != nil {
		ims.logger.Warn("blob archival failed, continuing",
			zap.String("blob_key", d.BlobKey),
			zap.Error(err))
		d.BlobKey = ""
		return d, nil
	}
	d.BlobArchived = true
	return d, nil
}

func (ims *IngestMemorySaga) compensateBlob(ctx context.Context, data interface{}) error {
	d := data.(*IngestMemorySagaData)
	if d.GraphCommitted || !d.BlobArchived {
		return nil
	}
	return ims.blobStore.Delete(ctx, d.BlobKey)
}

func (ims *IngestMemorySaga) extractEntities(ctx context.Context, data interface{}) (interface{}, error) {
	d := data.(*IngestMemorySagaData)

	threshold := ims.tuning.ConfidenceThreshold()
	extraction, err := ims.extractor.Extract(ctx, d.OwnerID, d.Text, threshold)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "extracting entities")
	}
	// Adapters filter their own output; filter again so a lax adapter
	// can never push sub-threshold candidates into resolution.
	d.Extraction = extraction.FilterByConfidence(threshold)
	ims.trackStage(ctx, d, ports.StageExtracted)

	ims.logger.Debug("extraction completed",
		zap.String("memory_id", d.Memory.ID().String()),
		zap.Float64("confidence_threshold", threshold),
		zap.Int("entities", len(d.Extraction.Entities)),
		zap.Int("relations", len(d.Extraction.Relations)))
	return d, nil
}

func (ims *IngestMemorySaga) beginGraphTx(ctx context.Context, data interface{}) (interface{}, error) {
	d := data.(*IngestMemorySagaData)

	tx, err := ims.graphRepo.Begin(ctx, d.OwnerID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "opening graph transaction")
	}
	d.Tx = tx
	return d, nil
}

func (ims *IngestMemorySaga) rollbackGraphTx(ctx context.Context, data interface{}) error {
	d := data.(*IngestMemorySagaData)
	if d.Tx != nil {
		d.Tx.Rollback()
	}
	return nil
}

func (ims *IngestMemorySaga) resolveEntities(ctx context.Context, data interface{}) (interface{}, error) {
	d := data.(*IngestMemorySagaData)

	resolution, err := ims.resolver.Resolve(d.Tx.Graph(), d.Memory.ID(), d.Extraction)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "resolving entities")
	}
	d.Resolution = resolution
	ims.trackStage(ctx, d, ports.StageResolved)
	return d, nil
}

// commitGraph applies the staged graph changes and checkpoints the memory.
// Everything after this step retries instead of compensating.
func (ims *IngestMemorySaga) commitGraph(ctx context.Context, data interface{}) (interface{}, error) {
	d := data.(*IngestMemorySagaData)

	if err := d.Tx.Commit(ctx); err != nil {
		return nil, pkgerrors.Wrap(err, "committing graph transaction")
	}
	d.GraphCommitted = true

	if d.Memory.Status() == entities.StatusPending {
		if err := d.Memory.MarkGraphCommitted(); err != nil {
			return nil, err
		}
	}
	if err := ims.memoryRepo.Save(ctx, d.Memory); err != nil {
		return nil, pkgerrors.Wrap(err, "checkpointing memory status")
	}
	ims.trackStage(ctx, d, ports.StageGraphCommitted)

	ims.logger.Info("graph committed",
		zap.String("memory_id", d.Memory.ID().String()),
		zap.Int("entities_created", len(d.Resolution.Created)),
		zap.Int("entities_merged", len(d.Resolution.Merged)),
		zap.Int("edges", len(d.Resolution.Relationships)))
	return d, nil
}

func (ims *IngestMemorySaga) embedMemory(ctx context.Context, data interface{}) (interface{}, error) {
	d := data.(*IngestMemorySagaData)

	embedding, err := ims.embedder.Embed(ctx, d.Memory.Text())
	if err != nil {
		return nil, pkgerrors.Wrap(err, "embedding memory text")
	}
	d.Embedding = embedding
	ims.trackStage(ctx, d, ports.StageEmbedded)
	return d, nil
}

func (ims *IngestMemorySaga) indexMemory(ctx context.Context, data interface{}) (interface{}, error) {
	d := data.(*IngestMemorySagaData)

	if err := ims.vectorIndex.Upsert(ctx, d.OwnerID, d.Memory.ID(), d.Embedding, d.Memory.CreatedAt()); err != nil {
		return nil, pkgerrors.Wrap(err, "indexing memory embedding")
	}
	if err := d.Memory.MarkIndexed(); err != nil {
		return nil, err
	}
	if err := ims.memoryRepo.Save(ctx, d.Memory); err != nil {
		return nil, pkgerrors.Wrap(err, "checkpointing indexed status")
	}
	ims.trackStage(ctx, d, ports.StageIndexed)
	return d, nil
}

func (ims *IngestMemorySaga) publishEvents(ctx context.Context, data interface{}) (interface{}, error) {
	d := data.(*IngestMemorySagaData)

	domainEvents := append([]events.DomainEvent{}, d.Resolution.Events...)
	domainEvents = append(domainEvents, events.NewMemoryIngested(
		d.Memory.ID(), d.OwnerID,
		len(d.Resolution.Created)+len(d.Resolution.Merged),
		len(d.Resolution.Relationships),
		ims.embedder.ModelVersion()))

	if err := ims.eventPublisher.PublishBatch(ctx, domainEvents); err != nil {
		ims.logger.Error("publishing domain events failed",
			zap.Error(err),
			zap.Int("event_count", len(domainEvents)))
		return nil, err
	}

	ims.logger.Info("memory ingested",
		zap.String("memory_id", d.Memory.ID().String()),
		zap.String("owner_id", d.OwnerID.String()),
		zap.Duration("duration", time.Since(d.StartTime)))
	return d, nil
}
