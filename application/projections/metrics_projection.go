package projections

import (
	"context"

	"engram-backend/domain/events"
	"engram-backend/pkg/observability"

	"go.uber.org/zap"
)

// MetricsProjection folds domain events into Prometheus counters. It
// subscribes to every event type and never fails the publishing side;
// a metric it does not recognize is simply ignored.
type MetricsProjection struct {
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewMetricsProjection creates a metrics projection backed by the
// given collector
func NewMetricsProjection(metrics *observability.Collector, logger *zap.Logger) *MetricsProjection {
	return &MetricsProjection{metrics: metrics, logger: logger}
}

// Handle updates counters from a single domain event
func (p *MetricsProjection) Handle(ctx context.Context, event events.DomainEvent) error {
	switch e := event.(type) {
	case events.MemoryIngested:
		p.metrics.MemoriesIngested.Inc()
		p.logger.Debug("Recorded memory ingestion",
			zap.String("memoryId", e.MemoryID),
			zap.Int("entityCount", e.EntityCount),
			zap.Int("edgeCount", e.EdgeCount),
		)
	case events.MemoryDeleted:
		p.metrics.MemoriesDeleted.Inc()
	case events.EntityCreated:
		p.metrics.EntitiesCreated.Inc()
	case events.EntityMerged:
		p.metrics.EntitiesMerged.Inc()
	case events.ResolutionConflictRecorded:
		p.metrics.ResolutionConflicts.Inc()
		p.logger.Info("Resolution conflict recorded",
			zap.String("candidateLabel", e.CandidateLabel),
			zap.Strings("matchedEntities", e.MatchedEntities),
			zap.String("winnerId", e.WinnerID),
		)
	case events.IndexRepaired:
		p.metrics.IndexRepairs.Inc()
	}
	return nil
}

// CanHandle accepts every event type
func (p *MetricsProjection) CanHandle(eventType string) bool {
	return true
}
