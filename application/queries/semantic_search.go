package queries

// Query size defaults and caps shared by the search queries
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
	DefaultDepth       = 2
	MaxDepth           = 4
)

// SemanticSearchQuery finds memories by embedding similarity
type SemanticSearchQuery struct {
	OwnerID string `json:"owner_id" validate:"required,max=128"`
	ActorID string `json:"actor_id" validate:"required,max=128"`
	Text    string `json:"text" validate:"required,max=2000"`
	Limit   int    `json:"limit" validate:"min=0,max=100"`
}

// SemanticSearchResult holds ranked memory hits. Truncated reports that
// more results existed than the limit allowed.
type SemanticSearchResult struct {
	Memories  []MemoryHit `json:"memories"`
	Truncated bool        `json:"truncated"`
}
