package services

import (
	"context"
	"sort"
	"time"

	"engram-backend/application/ports"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/events"
	domainservices "engram-backend/domain/services"
	pkgerrors "engram-backend/pkg/errors"

	"go.uber.org/zap"
)

// DefaultRepairBatchSize bounds one repair sweep
const DefaultRepairBatchSize = 50

// DefaultStuckAfter is how long a memory may sit graph-committed before
// the sweep treats it as stuck rather than in flight
const DefaultStuckAfter = 2 * time.Minute

// rebuildScanLimit bounds one startup replay. The repository lists
// oldest first, so anything beyond the limit is picked up by the
// periodic sweep once it ages past the cutoff.
const rebuildScanLimit = 10000

// RepairReport summarizes one repair sweep
type RepairReport struct {
	Scanned  int
	Repaired int
	Failed   int
}

// RebuildReport summarizes one startup index rebuild
type RebuildReport struct {
	Replayed int
	Failed   int
}

// RepairService keeps the process-local graph and vector state
// consistent with the durable memory records.
//
// The repair sweep handles the crash window inside one process
// lifetime: the graph commit is the pipeline's point of no return, so a
// failure between commit and index leaves a memory durable but not
// searchable, and the sweep re-embeds and re-indexes it once it has sat
// unindexed past the cutoff.
//
// The rebuild handles restarts: graph and vector state live in memory,
// so a new process starts empty while the memory records persist.
// Rebuild replays every durable memory through extraction, resolution
// and indexing before the server accepts traffic.
type RepairService struct {
	memoryRepo     ports.MemoryRepository
	graphRepo      ports.GraphRepository
	vectorIndex    ports.VectorIndex
	extractor      ports.Extractor
	embedder       ports.Embedder
	resolver       *domainservices.EntityResolver
	tuning         ports.ExtractionTuning
	eventPublisher ports.EventPublisher
	logger         *zap.Logger
}

// NewRepairService creates a repair service
func NewRepairService(
	memoryRepo ports.MemoryRepository,
	graphRepo ports.GraphRepository,
	vectorIndex ports.VectorIndex,
	extractor ports.Extractor,
	embedder ports.Embedder,
	resolver *domainservices.EntityResolver,
	tuning ports.ExtractionTuning,
	eventPublisher ports.EventPublisher,
	logger *zap.Logger,
) *RepairService {
	return &RepairService{
		memoryRepo:     memoryRepo,
		graphRepo:      graphRepo,
		vectorIndex:    vectorIndex,
		extractor:      extractor,
		embedder:       embedder,
		resolver:       resolver,
		tuning:         tuning,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// RepairOnce scans up to batchSize graph-committed memories, oldest
// first, and re-indexes those stuck for longer than olderThan. Memories
// updated inside the window are presumed in flight and left alone.
// Per-memory failures are logged and counted, not fatal; the next sweep
// retries them.
func (s *RepairService) RepairOnce(ctx context.Context, batchSize int, olderThan time.Duration) (RepairReport, error) {
	if batchSize <= 0 {
		batchSize = DefaultRepairBatchSize
	}
	if olderThan <= 0 {
		olderThan = DefaultStuckAfter
	}

	committed, err := s.memoryRepo.ListByStatus(ctx, entities.StatusGraphCommitted, batchSize)
	if err != nil {
		return RepairReport{}, pkgerrors.Wrap(err, "failed to list memories pending repair")
	}

	cutoff := time.Now().Add(-olderThan)
	var stuck []*entities.Memory
	for _, memory := range committed {
		if memory.UpdatedAt().After(cutoff) {
			continue
		}
		stuck = append(stuck, memory)
	}

	report := RepairReport{Scanned: len(stuck)}
	for _, memory := range stuck {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.repairMemory(ctx, memory); err != nil {
			report.Failed++
			s.logger.Warn("Failed to repair memory",
				zap.String("memoryId", memory.ID().String()),
				zap.String("ownerId", memory.OwnerID().String()),
				zap.Error(err),
			)
			continue
		}
		report.Repaired++
	}

	if report.Scanned > 0 {
		s.logger.Info("Repair sweep finished",
			zap.Int("scanned", report.Scanned),
			zap.Int("repaired", report.Repaired),
			zap.Int("failed", report.Failed),
		)
	}
	return report, nil
}

func (s *RepairService) repairMemory(ctx context.Context, memory *entities.Memory) error {
	embedding, err := s.embedder.Embed(ctx, memory.Text())
	if err != nil {
		return pkgerrors.Wrap(err, "failed to embed memory text")
	}

	if err := s.vectorIndex.Upsert(ctx, memory.OwnerID(), memory.ID(), embedding, memory.CreatedAt()); err != nil {
		return pkgerrors.Wrap(err, "failed to upsert embedding")
	}

	if err := memory.MarkIndexed(); err != nil {
		return err
	}
	if err := s.memoryRepo.Save(ctx, memory); err != nil {
		return pkgerrors.Wrap(err, "failed to persist repaired memory")
	}

	event := events.NewIndexRepaired(memory.ID(), memory.OwnerID())
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		// The index is already consistent; losing the event is tolerable.
		s.logger.Warn("Failed to publish index repaired event",
			zap.String("memoryId", memory.ID().String()),
			zap.Error(err),
		)
	}
	return nil
}

// RebuildIndexes replays every durable memory that reached the graph
// into the process-local graph and vector state. Replay is in creation
// order so entity resolution's earliest-created tie-break reproduces
// the same winners the original ingestions produced. Per-memory
// failures are counted and skipped; the repair sweep retries anything
// still unindexed.
func (s *RepairService) RebuildIndexes(ctx context.Context) (RebuildReport, error) {
	committed, err := s.memoryRepo.ListByStatus(ctx, entities.StatusGraphCommitted, rebuildScanLimit)
	if err != nil {
		return RebuildReport{}, pkgerrors.Wrap(err, "failed to list graph-committed memories")
	}
	indexed, err := s.memoryRepo.ListByStatus(ctx, entities.StatusIndexed, rebuildScanLimit)
	if err != nil {
		return RebuildReport{}, pkgerrors.Wrap(err, "failed to list indexed memories")
	}

	memories := append(committed, indexed...)
	sort.Slice(memories, func(i, j int) bool {
		return memories[i].CreatedAt().Before(memories[j].CreatedAt())
	})

	report := RebuildReport{}
	for _, memory := range memories {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.rebuildMemory(ctx, memory); err != nil {
			report.Failed++
			s.logger.Warn("Failed to rebuild memory",
				zap.String("memoryId", memory.ID().String()),
				zap.String("ownerId", memory.OwnerID().String()),
				zap.Error(err),
			)
			continue
		}
		report.Replayed++
	}

	if report.Replayed > 0 || report.Failed > 0 {
		s.logger.Info("Index rebuild finished",
			zap.Int("replayed", report.Replayed),
			zap.Int("failed", report.Failed),
		)
	}
	return report, nil
}

// rebuildMemory re-extracts and re-resolves one memory into the graph,
// and re-indexes its embedding when the record already reached indexed.
// Resolution is idempotent, so replaying a memory already present in
// the graph changes nothing.
func (s *RepairService) rebuildMemory(ctx context.Context, memory *entities.Memory) error {
	extraction, err := s.extractor.Extract(ctx, memory.OwnerID(), memory.Text(), s.tuning.ConfidenceThreshold())
	if err != nil {
		return pkgerrors.Wrap(err, "failed to re-extract memory text")
	}

	tx, err := s.graphRepo.Begin(ctx, memory.OwnerID())
	if err != nil {
		return pkgerrors.Wrap(err, "failed to open graph transaction")
	}
	if _, err := s.resolver.Resolve(tx.Graph(), memory.ID(), extraction); err != nil {
		tx.Rollback()
		return pkgerrors.Wrap(err, "failed to re-resolve entities")
	}
	if err := tx.Commit(ctx); err != nil {
		return pkgerrors.Wrap(err, "failed to commit rebuilt graph state")
	}

	if memory.Status() != entities.StatusIndexed {
		return nil
	}

	embedding, err := s.embedder.Embed(ctx, memory.Text())
	if err != nil {
		return pkgerrors.Wrap(err, "failed to re-embed memory text")
	}
	if err := s.vectorIndex.Upsert(ctx, memory.OwnerID(), memory.ID(), embedding, memory.CreatedAt()); err != nil {
		return pkgerrors.Wrap(err, "failed to re-index embedding")
	}
	return nil
}
