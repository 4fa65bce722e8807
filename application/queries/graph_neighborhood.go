package queries

// GraphNeighborhoodQuery walks the graph outward from an anchor entity.
// The anchor is named either by entity id or by a label plus optional type.
type GraphNeighborhoodQuery struct {
	OwnerID    string   `json:"owner_id" validate:"required,max=128"`
	ActorID    string   `json:"actor_id" validate:"required,max=128"`
	EntityID   string   `json:"entity_id,omitempty" validate:"omitempty,uuid"`
	Label      string   `json:"label,omitempty" validate:"omitempty,max=256"`
	EntityType string   `json:"entity_type,omitempty" validate:"omitempty,max=32"`
	Depth      int      `json:"depth" validate:"min=0,max=4"`
	EdgeLabels []string `json:"edge_labels,omitempty" validate:"max=16,dive,max=64"`
	Limit      int      `json:"limit" validate:"min=0,max=100"`
}

// GraphNeighborhoodResult holds the anchor and its reachable neighborhood
// in breadth-first order
type GraphNeighborhoodResult struct {
	Anchor    EntityView   `json:"anchor"`
	Neighbors []EntityView `json:"neighbors"`
	Truncated bool         `json:"truncated"`
}
