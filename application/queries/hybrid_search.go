package queries

// HybridSearchQuery combines semantic recall with graph expansion: the
// query text seeds entities via its most similar memories, the graph is
// walked outward from those seeds, and results are ranked by a weighted
// blend of semantic similarity and graph proximity.
type HybridSearchQuery struct {
	OwnerID string `json:"owner_id" validate:"required,max=128"`
	ActorID string `json:"actor_id" validate:"required,max=128"`
	Text    string `json:"text" validate:"required,max=2000"`
	Depth   int    `json:"depth" validate:"min=0,max=4"`
	Limit   int    `json:"limit" validate:"min=0,max=100"`
	// Weight overrides the configured semantic weight for this query when
	// set. 1 means similarity only, 0 means proximity only.
	Weight *float64 `json:"weight,omitempty" validate:"omitempty,min=0,max=1"`
}

// HybridSearchResult separates the seed entities (anchors, tied directly
// to the most similar memories) from the ranked graph expansion around
// them.
type HybridSearchResult struct {
	Anchors   []EntityView   `json:"anchors"`
	Ranked    []RankedEntity `json:"ranked"`
	Truncated bool           `json:"truncated"`
}
