package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"engram-backend/application/ports"
	pkgerrors "engram-backend/pkg/errors"
)

const cleanupInterval = 5 * time.Minute

// OperationStore tracks async pipeline operations in process memory.
// Entries expire after the configured ttl; expiry is best effort since
// operation status is progress reporting, not durable state.
type OperationStore struct {
	mu         sync.RWMutex
	operations map[string]*ports.OperationResult
	ttl        time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewOperationStore creates a store whose entries expire after ttl
func NewOperationStore(ttl time.Duration) *OperationStore {
	store := &OperationStore{
		operations: make(map[string]*ports.OperationResult),
		ttl:        ttl,
		stop:       make(chan struct{}),
	}
	go store.cleanupLoop()
	return store
}

// Store saves an operation result
func (s *OperationStore) Store(ctx context.Context, result *ports.OperationResult) error {
	if result == nil || result.OperationID == "" {
		return pkgerrors.NewValidation("operation result requires an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.operations[result.OperationID] = result
	return nil
}

// Get retrieves an operation result. Expired operations read as absent.
func (s *OperationStore) Get(ctx context.Context, operationID string) (*ports.OperationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, exists := s.operations[operationID]
	if !exists || s.expired(result) {
		return nil, pkgerrors.NewNotFound(fmt.Sprintf("operation %s not found", operationID))
	}
	return result, nil
}

// Update replaces an existing operation result
func (s *OperationStore) Update(ctx context.Context, operationID string, result *ports.OperationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.operations[operationID]; !exists {
		return pkgerrors.NewNotFound(fmt.Sprintf("operation %s not found", operationID))
	}
	s.operations[operationID] = result
	return nil
}

// Delete removes an operation result. Deleting an absent id is not an
// error.
func (s *OperationStore) Delete(ctx context.Context, operationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.operations, operationID)
	return nil
}

// CleanupExpired removes operations older than the given duration
func (s *OperationStore) CleanupExpired(ctx context.Context, olderThan time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	for id, op := range s.operations {
		if op.StartedAt.Before(cutoff) {
			delete(s.operations, id)
		}
	}
	return nil
}

// Close stops the background cleanup loop
func (s *OperationStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *OperationStore) expired(result *ports.OperationResult) bool {
	return time.Since(result.StartedAt) > s.ttl
}

func (s *OperationStore) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.CleanupExpired(context.Background(), s.ttl)
		case <-s.stop:
			return
		}
	}
}
