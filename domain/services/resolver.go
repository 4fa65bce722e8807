// Package services holds domain services: logic that spans multiple
// entities or aggregates and belongs to the domain, not the application
// layer.
package services

import (
	"sort"

	"go.uber.org/zap"

	"engram-backend/domain/core/aggregates"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/domain/events"
	pkgerrors "engram-backend/pkg/errors"
)

// EntityCandidate is one entity mention produced by extraction, before
// resolution against the owner's graph.
type EntityCandidate struct {
	Label      valueobjects.Label
	Type       valueobjects.EntityType
	Confidence float64
}

// RelationCandidate is one relationship mention produced by extraction.
// Endpoints reference entity candidates from the same extraction by label.
type RelationCandidate struct {
	SourceLabel valueobjects.Label
	TargetLabel valueobjects.Label
	Label       string
	Confidence  float64
}

// ExtractionResult is the full structured output of extracting one memory.
type ExtractionResult struct {
	Entities  []EntityCandidate
	Relations []RelationCandidate
}

// FilterByConfidence returns a copy with every candidate scored below
// threshold removed. A relation is also removed when either endpoint
// entity fell below the cutoff, so the surviving set stays resolvable.
func (r ExtractionResult) FilterByConfidence(threshold float64) ExtractionResult {
	filtered := ExtractionResult{}
	kept := map[string]bool{}
	for _, entity := range r.Entities {
		if entity.Confidence < threshold {
			continue
		}
		filtered.Entities = append(filtered.Entities, entity)
		kept[entity.Label.Normalized()] = true
	}
	for _, relation := range r.Relations {
		if relation.Confidence < threshold {
			continue
		}
		if !kept[relation.SourceLabel.Normalized()] || !kept[relation.TargetLabel.Normalized()] {
			continue
		}
		filtered.Relations = append(filtered.Relations, relation)
	}
	return filtered
}

// Resolution describes what resolving one memory's extraction did to the
// graph: nodes created, nodes merged into, edges upserted, and the domain
// events to publish once the transaction commits.
type Resolution struct {
	Created       []*entities.Entity
	Merged        []*entities.Entity
	Relationships []*entities.Relationship
	Events        []events.DomainEvent
}

// EntityResolver resolves extraction candidates against an owner's graph.
// Matching is by canonical type plus normalized label, with aliases counting
// as label forms. When a candidate matches more than one existing node the
// tie-break prefers the node with more evidence, then the earliest-created
// node, and records a conflict event rather than dropping anything.
type EntityResolver struct {
	logger *zap.Logger
}

// NewEntityResolver creates an EntityResolver
func NewEntityResolver(logger *zap.Logger) *EntityResolver {
	return &EntityResolver{logger: logger}
}

// Resolve applies one memory's extraction result to the graph. The graph is
// mutated in place; callers hand in a staged transaction copy, so a failed
// resolution never leaks into committed state. Entities resolve before
// relationships so every edge endpoint exists by the time it is upserted.
func (r *EntityResolver) Resolve(
	graph *aggregates.Graph,
	memoryID valueobjects.MemoryID,
	extraction ExtractionResult,
) (*Resolution, error) {
	res := &Resolution{}
	ownerID := graph.OwnerID()

	// Label form -> resolved node, for endpoint lookup and in-batch dedup.
	byForm := map[string]*entities.Entity{}

	for _, candidate := range extraction.Entities {
		if candidate.Label.IsEmpty() {
			return nil, pkgerrors.NewValidation("entity candidate label cannot be empty")
		}
		normalized := candidate.Label.Normalized()
		canonical := valueobjects.CanonicalType(string(candidate.Type))

		// A repeated mention within the same memory folds into whatever
		// the first mention resolved to.
		if node, seen := byForm[normalized]; seen {
			node.Absorb(candidate.Label, candidate.Confidence, memoryID)
			continue
		}

		matched := graph.FindByLabel(canonical, normalized)
		switch len(matched) {
		case 0:
			node, err := entities.NewEntity(ownerID, candidate.Label, canonical, candidate.Confidence, memoryID)
			if err != nil {
				return nil, err
			}
			if err := graph.AddNode(node); err != nil {
				return nil, err
			}
			byForm[normalized] = node
			res.Created = append(res.Created, node)
			res.Events = append(res.Events, events.NewEntityCreated(node.ID(), ownerID, candidate.Label.Raw(), canonical))

		case 1:
			node := matched[0]
			node.Absorb(candidate.Label, candidate.Confidence, memoryID)
			if err := graph.MergeNode(node); err != nil {
				return nil, err
			}
			byForm[normalized] = node
			res.Merged = append(res.Merged, node)
			res.Events = append(res.Events, events.NewEntityMerged(node.ID(), ownerID, candidate.Label.Raw(), candidate.Confidence))

		default:
			winner := pickWinner(matched)
			matchedIDs := make([]string, 0, len(matched))
			for _, m := range matched {
				matchedIDs = append(matchedIDs, m.ID().String())
			}
			sort.Strings(matchedIDs)

			winner.Absorb(candidate.Label, candidate.Confidence, memoryID)
			if err := graph.MergeNode(winner); err != nil {
				return nil, err
			}
			byForm[normalized] = winner
			res.Merged = append(res.Merged, winner)
			res.Events = append(res.Events,
				events.NewResolutionConflictRecorded(ownerID, candidate.Label.Raw(), canonical, matchedIDs, winner.ID()),
				events.NewEntityMerged(winner.ID(), ownerID, candidate.Label.Raw(), candidate.Confidence),
			)
			r.logger.Warn("resolution conflict, tie-break applied",
				zap.String("owner_id", ownerID.String()),
				zap.String("label", candidate.Label.Raw()),
				zap.Strings("matched", matchedIDs),
				zap.String("winner", winner.ID().String()))
		}
	}

	for _, relation := range extraction.Relations {
		source, ok := byForm[relation.SourceLabel.Normalized()]
		if !ok {
			r.logger.Warn("relation source not among extracted entities, skipping",
				zap.String("source", relation.SourceLabel.Raw()),
				zap.String("label", relation.Label))
			continue
		}
		target, ok := byForm[relation.TargetLabel.Normalized()]
		if !ok {
			r.logger.Warn("relation target not among extracted entities, skipping",
				zap.String("target", relation.TargetLabel.Raw()),
				zap.String("label", relation.Label))
			continue
		}
		if source.ID().Equals(target.ID()) {
			continue
		}

		edge, err := entities.NewRelationship(source.ID(), target.ID(), relation.Label, relation.Confidence, memoryID)
		if err != nil {
			return nil, err
		}
		if err := graph.UpsertEdge(edge); err != nil {
			return nil, err
		}
		committed, _ := graph.Edge(edge.ID())
		res.Relationships = append(res.Relationships, committed)
	}

	return res, nil
}

// pickWinner applies the tie-break rule over multiple matched nodes:
// more source memories wins; on a tie, the earliest-created node wins.
func pickWinner(matched []*entities.Entity) *entities.Entity {
	winner := matched[0]
	for _, m := range matched[1:] {
		switch {
		case m.EvidenceCount() > winner.EvidenceCount():
			winner = m
		case m.EvidenceCount() == winner.EvidenceCount() && m.CreatedAt().Before(winner.CreatedAt()):
			winner = m
		}
	}
	return winner
}
