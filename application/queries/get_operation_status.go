package queries

import "time"

// GetOperationStatusQuery retrieves the status of an async pipeline
// operation
type GetOperationStatusQuery struct {
	OperationID string `json:"operation_id" validate:"required"`
	ActorID     string `json:"actor_id" validate:"required,max=128"`
}

// OperationStatusResult reports where an operation is in the pipeline
type OperationStatusResult struct {
	OperationID string                 `json:"operation_id"`
	Status      string                 `json:"status"`
	Stage       string                 `json:"stage,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Result      interface{}            `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}
