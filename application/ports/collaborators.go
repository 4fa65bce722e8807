package ports

import (
	"context"

	"engram-backend/domain/core/valueobjects"
	"engram-backend/domain/services"
)

// Capability names an action an actor may be granted over an owner's store
type Capability string

const (
	CapabilityIngest Capability = "memory.ingest"
	CapabilityQuery  Capability = "memory.query"
	CapabilityDelete Capability = "memory.delete"
)

// Decision is a capability check outcome. Reason is only set on denial.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// CapabilityLedger answers whether an actor holds a capability over an
// owner's memory store. Failures from the ledger are errors, never implicit
// grants.
type CapabilityLedger interface {
	Check(ctx context.Context, actor valueobjects.ActorID, owner valueobjects.OwnerID, capability Capability) (Decision, error)
}

// Extractor turns raw memory text into structured entity and relation
// candidates. Candidates scored below confidenceThreshold never reach
// resolution. Implementations call an external model service; transient
// failures surface as EXTRACTION_UNAVAILABLE errors so the pipeline can
// retry.
type Extractor interface {
	Extract(ctx context.Context, ownerID valueobjects.OwnerID, text string, confidenceThreshold float64) (services.ExtractionResult, error)
}

// ExtractionTuning supplies the live extraction cutoff. The dynamic
// config manager satisfies it, so a tuning-file reload takes effect on
// the next ingestion without a restart.
type ExtractionTuning interface {
	ConfidenceThreshold() float64
}

// Embedder produces fixed-dimension embeddings for text. Every embedding
// carries the model version that produced it; vectors from different
// versions never mix in one similarity computation.
type Embedder interface {
	Embed(ctx context.Context, text string) (valueobjects.Embedding, error)

	// ModelVersion identifies the embedding model, e.g. "local-256-v1"
	ModelVersion() string

	// Dimensions is the vector width this embedder produces
	Dimensions() int
}

// BlobStore archives raw memory text outside the primary store
type BlobStore interface {
	// Put stores a blob under the key, replacing any prior content
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get retrieves a blob. Returns a NOT_FOUND error for unknown keys.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a blob. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
