package aggregates

import (
	"fmt"
	"time"

	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	pkgerrors "engram-backend/pkg/errors"
)

// Graph is the aggregate root for one owner's memory graph. It is the
// consistency boundary for entity and relationship mutations: the store
// serializes writers per owner graph, so methods here assume single-writer
// access and perform no locking of their own.
type Graph struct {
	ownerID valueobjects.OwnerID

	nodes map[string]*entities.Entity       // entity id -> node
	edges map[string]*entities.Relationship // triple key -> edge

	// byTypeLabel indexes nodes by (type, normalized label or alias) for
	// resolver lookups. A normalized form can map to multiple nodes after
	// independent merges; the resolver tie-breaks.
	byTypeLabel map[typeLabelKey]map[string]struct{}

	// adjacency holds edge keys incident to each node, both directions
	adjacency map[string]map[string]struct{}

	// byMemory indexes entity ids by contributing memory id
	byMemory map[string]map[string]struct{}

	createdAt time.Time
	updatedAt time.Time
	version   int
}

type typeLabelKey struct {
	entityType valueobjects.EntityType
	normalized string
}

// NewGraph creates an empty graph for an owner
func NewGraph(ownerID valueobjects.OwnerID) (*Graph, error) {
	if ownerID.IsEmpty() {
		return nil, pkgerrors.NewValidation("owner id is required")
	}
	now := time.Now()
	return &Graph{
		ownerID:     ownerID,
		nodes:       map[string]*entities.Entity{},
		edges:       map[string]*entities.Relationship{},
		byTypeLabel: map[typeLabelKey]map[string]struct{}{},
		adjacency:   map[string]map[string]struct{}{},
		byMemory:    map[string]map[string]struct{}{},
		createdAt:   now,
		updatedAt:   now,
		version:     1,
	}, nil
}

// OwnerID returns the graph's owner
func (g *Graph) OwnerID() valueobjects.OwnerID { return g.ownerID }

// Version returns the commit version, incremented once per committed
// ingestion transaction
func (g *Graph) Version() int { return g.version }

// NodeCount returns the number of entities in the graph
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of relationships in the graph
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Node returns an entity by id
func (g *Graph) Node(id valueobjects.EntityID) (*entities.Entity, bool) {
	n, ok := g.nodes[id.String()]
	return n, ok
}

// Edge returns a relationship by its triple key
func (g *Graph) Edge(key string) (*entities.Relationship, bool) {
	e, ok := g.edges[key]
	return e, ok
}

// Nodes returns all entities. Callers must not mutate the returned entities.
func (g *Graph) Nodes() []*entities.Entity {
	out := make([]*entities.Entity, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// Edges returns all relationships
func (g *Graph) Edges() []*entities.Relationship {
	out := make([]*entities.Relationship, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	return out
}

// Degree returns the number of edges incident to an entity
func (g *Graph) Degree(id valueobjects.EntityID) int {
	return len(g.adjacency[id.String()])
}

// FindByLabel returns the entities of the given type whose canonical label
// or any alias normalizes to the given form
func (g *Graph) FindByLabel(entityType valueobjects.EntityType, normalized string) []*entities.Entity {
	ids := g.byTypeLabel[typeLabelKey{entityType, normalized}]
	out := make([]*entities.Entity, 0, len(ids))
	for id := range ids {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// EntitiesForMemory returns the entities a memory contributes evidence to
func (g *Graph) EntitiesForMemory(memoryID valueobjects.MemoryID) []*entities.Entity {
	ids := g.byMemory[memoryID.String()]
	out := make([]*entities.Entity, 0, len(ids))
	for id := range ids {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// AddNode inserts a new entity. The caller guarantees resolution already
// ran; inserting a second node with an identical (type, label) is legal and
// left to the tie-break rule on later resolutions.
func (g *Graph) AddNode(e *entities.Entity) error {
	if e == nil {
		return pkgerrors.NewValidation("entity is required")
	}
	if !e.OwnerID().Equals(g.ownerID) {
		return pkgerrors.NewGraphIntegrityViolation("entity belongs to a different owner graph")
	}
	id := e.ID().String()
	if _, exists := g.nodes[id]; exists {
		return pkgerrors.NewConflict(fmt.Sprintf("entity %s already exists", id))
	}
	g.nodes[id] = e
	g.indexNode(e)
	g.touch()
	return nil
}

// MergeNode reindexes an existing entity after it absorbed new evidence
// (aliases may have grown)
func (g *Graph) MergeNode(e *entities.Entity) error {
	id := e.ID().String()
	if _, exists := g.nodes[id]; !exists {
		return pkgerrors.NewNotFound(fmt.Sprintf("entity %s not in graph", id))
	}
	g.nodes[id] = e
	g.indexNode(e)
	g.touch()
	return nil
}

// UpsertEdge materializes a relationship. Both endpoints must already exist
// in the graph; a dangling edge is a fatal integrity violation for the
// enclosing transaction. Repeated upsert of the same triple merges
// confidence and provenance.
func (g *Graph) UpsertEdge(r *entities.Relationship) error {
	if r == nil {
		return pkgerrors.NewValidation("relationship is required")
	}
	srcID := r.SourceEntityID().String()
	dstID := r.TargetEntityID().String()
	if _, ok := g.nodes[srcID]; !ok {
		return pkgerrors.NewGraphIntegrityViolation(
			fmt.Sprintf("edge %s references missing source entity %s", r.ID(), srcID))
	}
	if _, ok := g.nodes[dstID]; !ok {
		return pkgerrors.NewGraphIntegrityViolation(
			fmt.Sprintf("edge %s references missing target entity %s", r.ID(), dstID))
	}

	if existing, ok := g.edges[r.ID()]; ok {
		for _, memID := range r.SourceMemoryIDs() {
			if mid, err := valueobjects.ParseMemoryID(memID); err == nil {
				existing.Absorb(r.Confidence(), mid)
			}
		}
	} else {
		g.edges[r.ID()] = r
		g.addAdjacency(srcID, r.ID())
		g.addAdjacency(dstID, r.ID())
	}
	g.touch()
	return nil
}

// RemoveNode deletes an entity and cascades removal of its incident edges
func (g *Graph) RemoveNode(id valueobjects.EntityID) error {
	key := id.String()
	node, ok := g.nodes[key]
	if !ok {
		return pkgerrors.NewNotFound(fmt.Sprintf("entity %s not in graph", key))
	}

	for edgeKey := range g.adjacency[key] {
		if edge, ok := g.edges[edgeKey]; ok {
			g.removeAdjacency(edge.SourceEntityID().String(), edgeKey)
			g.removeAdjacency(edge.TargetEntityID().String(), edgeKey)
			delete(g.edges, edgeKey)
		}
	}
	delete(g.adjacency, key)
	g.unindexNode(node)
	delete(g.nodes, key)
	g.touch()
	return nil
}

// RemoveMemoryProvenance removes one memory's evidence from every entity and
// edge it contributed to, pruning entities whose evidence is exhausted and
// whose degree has dropped to zero. Returns the counts of pruned entities
// and edges.
func (g *Graph) RemoveMemoryProvenance(memoryID valueobjects.MemoryID) (entitiesPruned, edgesPruned int) {
	memKey := memoryID.String()

	// Edges first: an edge with no remaining evidence goes away regardless
	// of its endpoints' fate.
	for key, edge := range g.edges {
		for _, mid := range edge.SourceMemoryIDs() {
			if mid == memKey {
				if edge.RemoveSource(memoryID) {
					g.removeAdjacency(edge.SourceEntityID().String(), key)
					g.removeAdjacency(edge.TargetEntityID().String(), key)
					delete(g.edges, key)
					edgesPruned++
				}
				break
			}
		}
	}

	for id := range g.byMemory[memKey] {
		node, ok := g.nodes[id]
		if !ok {
			continue
		}
		exhausted := node.RemoveSource(memoryID)
		if exhausted && len(g.adjacency[id]) == 0 {
			g.unindexNode(node)
			delete(g.nodes, id)
			delete(g.adjacency, id)
			entitiesPruned++
		}
	}
	delete(g.byMemory, memKey)
	g.touch()
	return entitiesPruned, edgesPruned
}

// MemoryCount returns the number of distinct memories contributing
// evidence to the graph
func (g *Graph) MemoryCount() int { return len(g.byMemory) }

// Clone returns a deep copy sharing nothing with the receiver. The store
// stages mutations on a clone so a failed transaction leaves the
// committed graph untouched.
func (g *Graph) Clone() *Graph {
	copied := &Graph{
		ownerID:     g.ownerID,
		nodes:       make(map[string]*entities.Entity, len(g.nodes)),
		edges:       make(map[string]*entities.Relationship, len(g.edges)),
		byTypeLabel: make(map[typeLabelKey]map[string]struct{}, len(g.byTypeLabel)),
		adjacency:   make(map[string]map[string]struct{}, len(g.adjacency)),
		byMemory:    make(map[string]map[string]struct{}, len(g.byMemory)),
		createdAt:   g.createdAt,
		updatedAt:   g.updatedAt,
		version:     g.version,
	}
	for id, node := range g.nodes {
		copied.nodes[id] = node.Clone()
	}
	for key, edge := range g.edges {
		copied.edges[key] = edge.Clone()
	}
	for k, set := range g.byTypeLabel {
		copied.byTypeLabel[k] = cloneSet(set)
	}
	for id, set := range g.adjacency {
		copied.adjacency[id] = cloneSet(set)
	}
	for id, set := range g.byMemory {
		copied.byMemory[id] = cloneSet(set)
	}
	return copied
}

func cloneSet(set map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(set))
	for k := range set {
		out[k] = struct{}{}
	}
	return out
}

// CommitVersion bumps the graph version after a transaction applies
func (g *Graph) CommitVersion() { g.version++ }

func (g *Graph) touch() { g.updatedAt = time.Now() }

func (g *Graph) addAdjacency(nodeID, edgeKey string) {
	if g.adjacency[nodeID] == nil {
		g.adjacency[nodeID] = map[string]struct{}{}
	}
	g.adjacency[nodeID][edgeKey] = struct{}{}
}

func (g *Graph) removeAdjacency(nodeID, edgeKey string) {
	if set, ok := g.adjacency[nodeID]; ok {
		delete(set, edgeKey)
		if len(set) == 0 {
			delete(g.adjacency, nodeID)
		}
	}
}

func (g *Graph) labelForms(e *entities.Entity) []string {
	forms := []string{e.Label().Normalized()}
	for _, alias := range e.Aliases() {
		forms = append(forms, valueobjects.NormalizeLabel(alias))
	}
	return forms
}

func (g *Graph) indexNode(e *entities.Entity) {
	id := e.ID().String()
	for _, form := range g.labelForms(e) {
		k := typeLabelKey{e.Type(), form}
		if g.byTypeLabel[k] == nil {
			g.byTypeLabel[k] = map[string]struct{}{}
		}
		g.byTypeLabel[k][id] = struct{}{}
	}
	for _, memID := range e.SourceMemoryIDs() {
		if g.byMemory[memID] == nil {
			g.byMemory[memID] = map[string]struct{}{}
		}
		g.byMemory[memID][id] = struct{}{}
	}
}

func (g *Graph) unindexNode(e *entities.Entity) {
	id := e.ID().String()
	for _, form := range g.labelForms(e) {
		k := typeLabelKey{e.Type(), form}
		if set, ok := g.byTypeLabel[k]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(g.byTypeLabel, k)
			}
		}
	}
	for memID, set := range g.byMemory {
		delete(set, id)
		if len(set) == 0 {
			delete(g.byMemory, memID)
		}
	}
}
