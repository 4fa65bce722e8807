package ports

import (
	"context"
	"time"
)

// OperationStatus represents the status of an async pipeline operation
type OperationStatus string

const (
	OperationStatusPending   OperationStatus = "pending"
	OperationStatusCompleted OperationStatus = "completed"
	OperationStatusFailed    OperationStatus = "failed"
)

// Pipeline stages recorded while an ingestion operation runs. Only the
// memory's persisted status survives a crash; stages are progress
// reporting, not checkpoints.
const (
	StageReceived       = "received"
	StageAuthorized     = "authorized"
	StageExtracted      = "extracted"
	StageResolved       = "resolved"
	StageGraphCommitted = "graph_committed"
	StageEmbedded       = "embedded"
	StageIndexed        = "indexed"
	StageDone           = "done"
)

// OperationResult tracks an async operation through the pipeline
type OperationResult struct {
	OperationID string                 `json:"operation_id"`
	Status      OperationStatus        `json:"status"`
	Stage       string                 `json:"stage,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Result      interface{}            `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// OperationStore manages async operation results
type OperationStore interface {
	// Store saves an operation result
	Store(ctx context.Context, result *OperationResult) error

	// Get retrieves an operation result by ID
	Get(ctx context.Context, operationID string) (*OperationResult, error)

	// Update updates an existing operation result
	Update(ctx context.Context, operationID string, result *OperationResult) error

	// Delete removes an operation result
	Delete(ctx context.Context, operationID string) error

	// CleanupExpired removes operations older than the given duration
	CleanupExpired(ctx context.Context, olderThan time.Duration) error
}
