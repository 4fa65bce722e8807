package aggregates

import (
	"iter"
	"sort"

	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
)

// NeighborHit is one step of a graph traversal: the node reached, the edge
// it was reached through, and its BFS distance from the start node.
type NeighborHit struct {
	Node     *entities.Entity
	Edge     *entities.Relationship
	Distance int
}

// EdgeLabelFilter restricts traversal to matching edge labels. A nil filter
// admits every edge.
type EdgeLabelFilter func(label string) bool

// LabelsFilter builds a filter admitting only the given labels
func LabelsFilter(labels ...string) EdgeLabelFilter {
	if len(labels) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		allowed[entities.NormalizeRelationLabel(l)] = struct{}{}
	}
	return func(label string) bool {
		_, ok := allowed[label]
		return ok
	}
}

// Neighbors walks the graph breadth-first from the given node up to depth,
// deduplicating revisited nodes. The start node itself is not yielded. The
// returned sequence is lazy and restartable: each range re-runs the
// traversal from scratch, and there is no hidden cursor state. Neighbors at
// equal distance are yielded in deterministic (entity id) order.
func (g *Graph) Neighbors(start valueobjects.EntityID, depth int, filter EdgeLabelFilter) iter.Seq[NeighborHit] {
	return func(yield func(NeighborHit) bool) {
		if depth <= 0 {
			return
		}
		if _, ok := g.nodes[start.String()]; !ok {
			return
		}

		visited := map[string]struct{}{start.String(): {}}
		frontier := []string{start.String()}

		for dist := 1; dist <= depth && len(frontier) > 0; dist++ {
			type hop struct {
				nodeID  string
				edgeKey string
			}
			var next []hop

			for _, nodeID := range frontier {
				for edgeKey := range g.adjacency[nodeID] {
					edge, ok := g.edges[edgeKey]
					if !ok {
						continue
					}
					if filter != nil && !filter(edge.Label()) {
						continue
					}
					other := edge.TargetEntityID().String()
					if other == nodeID {
						other = edge.SourceEntityID().String()
					}
					if _, seen := visited[other]; seen {
						continue
					}
					next = append(next, hop{nodeID: other, edgeKey: edgeKey})
				}
			}

			sort.Slice(next, func(i, j int) bool { return next[i].nodeID < next[j].nodeID })

			frontier = frontier[:0]
			for _, h := range next {
				if _, seen := visited[h.nodeID]; seen {
					continue
				}
				visited[h.nodeID] = struct{}{}
				frontier = append(frontier, h.nodeID)

				node := g.nodes[h.nodeID]
				edge := g.edges[h.edgeKey]
				if !yield(NeighborHit{Node: node, Edge: edge, Distance: dist}) {
					return
				}
			}
		}
	}
}
