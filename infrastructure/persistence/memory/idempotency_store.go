package memory

import (
	"context"
	"sync"

	pkgerrors "engram-backend/pkg/errors"
)

// idempotencyRecord tracks one claimed key. result stays nil until the
// run completes.
type idempotencyRecord struct {
	completed bool
	result    []byte
}

// IdempotencyStore deduplicates retried operations by caller-supplied
// key. A claimed but incomplete key means a run is in flight (or died);
// the claimant must Release on failure so a retry can proceed.
type IdempotencyStore struct {
	mu      sync.Mutex
	records map[string]*idempotencyRecord
}

// NewIdempotencyStore creates an empty idempotency store
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{records: make(map[string]*idempotencyRecord)}
}

// Reserve claims a key. Returns false when the key is already claimed,
// along with the stored result if the prior run completed.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, []byte, error) {
	if key == "" {
		return false, nil, pkgerrors.NewValidation("idempotency key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if record, exists := s.records[key]; exists {
		if record.completed {
			return false, record.result, nil
		}
		return false, nil, nil
	}

	s.records[key] = &idempotencyRecord{}
	return true, nil, nil
}

// Complete records the result for a claimed key
func (s *IdempotencyStore) Complete(ctx context.Context, key string, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[key]
	if !exists {
		return pkgerrors.NewNotFound("idempotency key was never claimed")
	}
	record.completed = true
	record.result = result
	return nil
}

// Release frees a claimed key after a failed run
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}
