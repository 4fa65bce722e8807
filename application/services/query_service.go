package services

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"engram-backend/application/ports"
	"engram-backend/application/queries"
	"engram-backend/domain/core/aggregates"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	pkgerrors "engram-backend/pkg/errors"
)

// RankingConfig supplies the tunable ranking parameters. The concrete
// implementation hot-reloads from the config file.
type RankingConfig interface {
	// SemanticWeight is the blend factor for hybrid ranking: 1 ranks by
	// similarity only, 0 by graph proximity only.
	SemanticWeight() float64
}

// QueryService implements the read-side search operations over the graph
// store and the vector index.
type QueryService struct {
	graphRepo   ports.GraphRepository
	vectorIndex ports.VectorIndex
	memoryRepo  ports.MemoryRepository
	embedder    ports.Embedder
	ranking     RankingConfig
	logger      *zap.Logger
}

// NewQueryService creates a QueryService
func NewQueryService(
	graphRepo ports.GraphRepository,
	vectorIndex ports.VectorIndex,
	memoryRepo ports.MemoryRepository,
	embedder ports.Embedder,
	ranking RankingConfig,
	logger *zap.Logger,
) *QueryService {
	return &QueryService{
		graphRepo:   graphRepo,
		vectorIndex: vectorIndex,
		memoryRepo:  memoryRepo,
		embedder:    embedder,
		ranking:     ranking,
		logger:      logger,
	}
}

// SemanticSearch finds the owner's memories most similar to the query text
func (s *QueryService) SemanticSearch(ctx context.Context, ownerID valueobjects.OwnerID, text string, limit int) (*queries.SemanticSearchResult, error) {
	limit = clampLimit(limit)

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "embedding query text")
	}

	// Over-fetch by one to detect truncation.
	hits, err := s.vectorIndex.Search(ctx, ownerID, embedding, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "searching vector index")
	}

	result := &queries.SemanticSearchResult{Memories: []queries.MemoryHit{}}
	if len(hits) > limit {
		result.Truncated = true
		hits = hits[:limit]
	}

	for _, hit := range hits {
		memoryID, err := valueobjects.ParseMemoryID(hit.MemoryID)
		if err != nil {
			continue
		}
		memory, err := s.memoryRepo.GetByID(ctx, ownerID, memoryID)
		if err != nil || memory.IsDeleted() {
			// A hit without a live memory record means the index and the
			// store disagree; the repair pass reconciles it.
			s.logger.Warn("vector hit without live memory record",
				zap.String("memory_id", hit.MemoryID),
				zap.String("owner_id", ownerID.String()))
			continue
		}
		result.Memories = append(result.Memories, queries.MemoryHit{
			MemoryID:   hit.MemoryID,
			Text:       memory.Text(),
			Similarity: hit.Similarity,
		})
	}
	return result, nil
}

// GraphNeighborhood walks outward from an anchor entity breadth-first
func (s *QueryService) GraphNeighborhood(ctx context.Context, ownerID valueobjects.OwnerID, q queries.GraphNeighborhoodQuery) (*queries.GraphNeighborhoodResult, error) {
	graph, err := s.graphRepo.View(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	anchor, err := s.resolveAnchor(graph, q)
	if err != nil {
		return nil, err
	}

	depth := q.Depth
	if depth <= 0 {
		depth = queries.DefaultDepth
	}
	limit := clampLimit(q.Limit)
	filter := aggregates.LabelsFilter(q.EdgeLabels...)

	result := &queries.GraphNeighborhoodResult{
		Anchor:    entityView(graph, anchor, 0, ""),
		Neighbors: []queries.EntityView{},
	}
	for hit := range graph.Neighbors(anchor.ID(), depth, filter) {
		if len(result.Neighbors) >= limit {
			result.Truncated = true
			break
		}
		result.Neighbors = append(result.Neighbors, entityView(graph, hit.Node, hit.Distance, hit.Edge.Label()))
	}
	return result, nil
}

// HybridSearch seeds anchor entities from the memories most similar to the
// query text, expands the graph around them, and ranks the expansion by a
// weighted blend of semantic similarity and graph proximity. Anchors are
// reported separately and never compete with their own neighborhoods.
func (s *QueryService) HybridSearch(ctx context.Context, ownerID valueobjects.OwnerID, q queries.HybridSearchQuery) (*queries.HybridSearchResult, error) {
	limit := clampLimit(q.Limit)
	depth := q.Depth
	if depth <= 0 {
		depth = queries.DefaultDepth
	}
	weight := s.ranking.SemanticWeight()
	if q.Weight != nil {
		weight = *q.Weight
	}

	embedding, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "embedding query text")
	}
	hits, err := s.vectorIndex.Search(ctx, ownerID, embedding, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "searching vector index")
	}

	result := &queries.HybridSearchResult{Anchors: []queries.EntityView{}, Ranked: []queries.RankedEntity{}}

	graph, err := s.graphRepo.View(ctx, ownerID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return result, nil
		}
		return nil, err
	}

	simByMemory := map[string]float64{}
	anchors := map[string]*entities.Entity{}
	for _, hit := range hits {
		simByMemory[hit.MemoryID] = hit.Similarity
		memoryID, err := valueobjects.ParseMemoryID(hit.MemoryID)
		if err != nil {
			continue
		}
		for _, e := range graph.EntitiesForMemory(memoryID) {
			anchors[e.ID().String()] = e
		}
	}

	type candidate struct {
		entity   *entities.Entity
		distance int
		via      string
	}
	candidates := map[string]*candidate{}
	for _, anchor := range anchors {
		for hit := range graph.Neighbors(anchor.ID(), depth, nil) {
			id := hit.Node.ID().String()
			if _, isAnchor := anchors[id]; isAnchor {
				continue
			}
			if existing, ok := candidates[id]; !ok || hit.Distance < existing.distance {
				candidates[id] = &candidate{entity: hit.Node, distance: hit.Distance, via: hit.Edge.Label()}
			}
		}
	}

	maxSim := func(e *entities.Entity) float64 {
		best := 0.0
		for _, mid := range e.SourceMemoryIDs() {
			if sim, ok := simByMemory[mid]; ok && sim > best {
				best = sim
			}
		}
		return best
	}

	for _, c := range candidates {
		sim := maxSim(c.entity)
		proximity := 1.0 / (1.0 + float64(c.distance))
		result.Ranked = append(result.Ranked, queries.RankedEntity{
			EntityView: entityView(graph, c.entity, c.distance, c.via),
			Score:      weight*sim + (1-weight)*proximity,
			Similarity: sim,
			Proximity:  proximity,
		})
	}

	sort.Slice(result.Ranked, func(i, j int) bool {
		a, b := result.Ranked[i], result.Ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.Label < b.Label
	})
	if len(result.Ranked) > limit {
		result.Ranked = result.Ranked[:limit]
		result.Truncated = true
	}

	anchorList := make([]*entities.Entity, 0, len(anchors))
	for _, e := range anchors {
		anchorList = append(anchorList, e)
	}
	sort.Slice(anchorList, func(i, j int) bool {
		a, b := anchorList[i], anchorList[j]
		if sa, sb := maxSim(a), maxSim(b); sa != sb {
			return sa > sb
		}
		if a.Confidence() != b.Confidence() {
			return a.Confidence() > b.Confidence()
		}
		return a.Label().Raw() < b.Label().Raw()
	})
	for _, e := range anchorList {
		result.Anchors = append(result.Anchors, entityView(graph, e, 0, ""))
	}

	return result, nil
}

// Stats summarizes the owner's graph
func (s *QueryService) Stats(ctx context.Context, ownerID valueobjects.OwnerID) (ports.GraphStatistics, error) {
	return s.graphRepo.Stats(ctx, ownerID)
}

func (s *QueryService) resolveAnchor(graph *aggregates.Graph, q queries.GraphNeighborhoodQuery) (*entities.Entity, error) {
	if q.EntityID != "" {
		entityID, err := valueobjects.ParseEntityID(q.EntityID)
		if err != nil {
			return nil, err
		}
		node, ok := graph.Node(entityID)
		if !ok {
			return nil, pkgerrors.NewNotFound("entity not found in graph")
		}
		return node, nil
	}
	if q.Label == "" {
		return nil, pkgerrors.NewValidation("either entity_id or label is required")
	}

	normalized := valueobjects.NormalizeLabel(q.Label)
	var matched []*entities.Entity
	if q.EntityType != "" {
		matched = graph.FindByLabel(valueobjects.CanonicalType(q.EntityType), normalized)
	} else {
		for _, entityType := range valueobjects.AllEntityTypes() {
			matched = append(matched, graph.FindByLabel(entityType, normalized)...)
		}
	}
	if len(matched) == 0 {
		return nil, pkgerrors.NewNotFound("no entity matches the label")
	}

	// Same tie-break as resolution: more evidence wins, then the
	// earliest-created node.
	best := matched[0]
	for _, m := range matched[1:] {
		switch {
		case m.EvidenceCount() > best.EvidenceCount():
			best = m
		case m.EvidenceCount() == best.EvidenceCount() && m.CreatedAt().Before(best.CreatedAt()):
			best = m
		}
	}
	return best, nil
}

func entityView(graph *aggregates.Graph, e *entities.Entity, distance int, via string) queries.EntityView {
	return queries.EntityView{
		EntityID:     e.ID().String(),
		Label:        e.Label().Raw(),
		Type:         string(e.Type()),
		Aliases:      e.Aliases(),
		Confidence:   e.Confidence(),
		Degree:       graph.Degree(e.ID()),
		Distance:     distance,
		ViaEdgeLabel: via,
	}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return queries.DefaultSearchLimit
	case limit > queries.MaxSearchLimit:
		return queries.MaxSearchLimit
	default:
		return limit
	}
}
