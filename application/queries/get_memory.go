package queries

// GetMemoryQuery retrieves one memory record by id
type GetMemoryQuery struct {
	OwnerID  string `json:"owner_id" validate:"required,max=128"`
	ActorID  string `json:"actor_id" validate:"required,max=128"`
	MemoryID string `json:"memory_id" validate:"required,uuid"`
}

// ListMemoriesQuery lists an owner's memories, newest first
type ListMemoriesQuery struct {
	OwnerID string `json:"owner_id" validate:"required,max=128"`
	ActorID string `json:"actor_id" validate:"required,max=128"`
	Limit   int    `json:"limit" validate:"min=0,max=100"`
}

// ListMemoriesResult holds the listed memories
type ListMemoriesResult struct {
	Memories  []MemoryView `json:"memories"`
	Truncated bool         `json:"truncated"`
}
