package queries

// GetGraphStatsQuery summarizes an owner's graph
type GetGraphStatsQuery struct {
	OwnerID string `json:"owner_id" validate:"required,max=128"`
	ActorID string `json:"actor_id" validate:"required,max=128"`
}

// GetGraphStatsResult reports summary counts for the owner's graph
type GetGraphStatsResult struct {
	NodeCount     int            `json:"node_count"`
	EdgeCount     int            `json:"edge_count"`
	MemoryCount   int            `json:"memory_count"`
	NodesByType   map[string]int `json:"nodes_by_type"`
	MaxDegree     int            `json:"max_degree"`
	AverageDegree float64        `json:"average_degree"`
	Version       int            `json:"version"`
}
