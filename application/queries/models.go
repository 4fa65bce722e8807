// Package queries defines the read-side operations and their result models.
package queries

// MemoryHit is one memory returned by semantic search
type MemoryHit struct {
	MemoryID   string  `json:"memory_id"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// EntityView is the read model for a graph node
type EntityView struct {
	EntityID   string   `json:"entity_id"`
	Label      string   `json:"label"`
	Type       string   `json:"type"`
	Aliases    []string `json:"aliases,omitempty"`
	Confidence float64  `json:"confidence"`
	Degree     int      `json:"degree"`
	// Distance is the BFS distance from the traversal anchor; 0 for the
	// anchor itself
	Distance int `json:"distance,omitempty"`
	// ViaEdgeLabel names the edge this node was reached through, when the
	// view comes from a traversal
	ViaEdgeLabel string `json:"via_edge_label,omitempty"`
}

// RankedEntity is a hybrid search result with its score decomposition
type RankedEntity struct {
	EntityView
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
	Proximity  float64 `json:"proximity"`
}

// MemoryView is the read model for a memory record
type MemoryView struct {
	MemoryID  string `json:"memory_id"`
	Text      string `json:"text"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}
