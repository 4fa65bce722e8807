// Package mocks provides testify mock implementations of the application
// ports, shared across handler and service tests.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"engram-backend/application/ports"
	"engram-backend/domain/core/aggregates"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/domain/events"
	domainservices "engram-backend/domain/services"
)

// MockMemoryRepository mocks ports.MemoryRepository
type MockMemoryRepository struct {
	mock.Mock
}

func (m *MockMemoryRepository) Save(ctx context.Context, memory *entities.Memory) error {
	args := m.Called(ctx, memory)
	return args.Error(0)
}

func (m *MockMemoryRepository) GetByID(ctx context.Context, ownerID valueobjects.OwnerID, id valueobjects.MemoryID) (*entities.Memory, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Memory), args.Error(1)
}

func (m *MockMemoryRepository) FindByDigest(ctx context.Context, ownerID valueobjects.OwnerID, digest string) (*entities.Memory, error) {
	args := m.Called(ctx, ownerID, digest)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Memory), args.Error(1)
}

func (m *MockMemoryRepository) ListByStatus(ctx context.Context, status entities.MemoryStatus, limit int) ([]*entities.Memory, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Memory), args.Error(1)
}

func (m *MockMemoryRepository) ListByOwner(ctx context.Context, ownerID valueobjects.OwnerID, limit int) ([]*entities.Memory, error) {
	args := m.Called(ctx, ownerID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Memory), args.Error(1)
}

func (m *MockMemoryRepository) Delete(ctx context.Context, ownerID valueobjects.OwnerID, id valueobjects.MemoryID) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}

// MockGraphTx mocks ports.GraphTx
type MockGraphTx struct {
	mock.Mock
}

func (m *MockGraphTx) Graph() *aggregates.Graph {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*aggregates.Graph)
}

func (m *MockGraphTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockGraphTx) Rollback() {
	m.Called()
}

// MockGraphRepository mocks ports.GraphRepository
type MockGraphRepository struct {
	mock.Mock
}

func (m *MockGraphRepository) Begin(ctx context.Context, ownerID valueobjects.OwnerID) (ports.GraphTx, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.GraphTx), args.Error(1)
}

func (m *MockGraphRepository) View(ctx context.Context, ownerID valueobjects.OwnerID) (*aggregates.Graph, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*aggregates.Graph), args.Error(1)
}

func (m *MockGraphRepository) Stats(ctx context.Context, ownerID valueobjects.OwnerID) (ports.GraphStatistics, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(ports.GraphStatistics), args.Error(1)
}

// MockVectorIndex mocks ports.VectorIndex
type MockVectorIndex struct {
	mock.Mock
}

func (m *MockVectorIndex) Upsert(ctx context.Context, ownerID valueobjects.OwnerID, memoryID valueobjects.MemoryID, embedding valueobjects.Embedding, createdAt time.Time) error {
	args := m.Called(ctx, ownerID, memoryID, embedding, createdAt)
	return args.Error(0)
}

func (m *MockVectorIndex) Remove(ctx context.Context, ownerID valueobjects.OwnerID, memoryID valueobjects.MemoryID) error {
	args := m.Called(ctx, ownerID, memoryID)
	return args.Error(0)
}

func (m *MockVectorIndex) Search(ctx context.Context, ownerID valueobjects.OwnerID, query valueobjects.Embedding, k int) ([]ports.VectorHit, error) {
	args := m.Called(ctx, ownerID, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.VectorHit), args.Error(1)
}

func (m *MockVectorIndex) Has(ctx context.Context, ownerID valueobjects.OwnerID, memoryID valueobjects.MemoryID) (bool, error) {
	args := m.Called(ctx, ownerID, memoryID)
	return args.Bool(0), args.Error(1)
}

// MockCapabilityLedger mocks ports.CapabilityLedger
type MockCapabilityLedger struct {
	mock.Mock
}

func (m *MockCapabilityLedger) Check(ctx context.Context, actor valueobjects.ActorID, owner valueobjects.OwnerID, capability ports.Capability) (ports.Decision, error) {
	args := m.Called(ctx, actor, owner, capability)
	return args.Get(0).(ports.Decision), args.Error(1)
}

// MockExtractor mocks ports.Extractor
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, ownerID valueobjects.OwnerID, text string, confidenceThreshold float64) (domainservices.ExtractionResult, error) {
	args := m.Called(ctx, ownerID, text, confidenceThreshold)
	return args.Get(0).(domainservices.ExtractionResult), args.Error(1)
}

// MockEmbedder mocks ports.Embedder
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) (valueobjects.Embedding, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(valueobjects.Embedding), args.Error(1)
}

func (m *MockEmbedder) ModelVersion() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockEmbedder) Dimensions() int {
	args := m.Called()
	return args.Int(0)
}

// MockBlobStore mocks ports.BlobStore
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *MockBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockEventPublisher mocks ports.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	args := m.Called(ctx, evts)
	return args.Error(0)
}

// MockIdempotencyStore mocks ports.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) Reserve(ctx context.Context, key string) (bool, []byte, error) {
	args := m.Called(ctx, key)
	var prior []byte
	if args.Get(1) != nil {
		prior = args.Get(1).([]byte)
	}
	return args.Bool(0), prior, args.Error(2)
}

func (m *MockIdempotencyStore) Complete(ctx context.Context, key string, result []byte) error {
	args := m.Called(ctx, key, result)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockOperationStore mocks ports.OperationStore
type MockOperationStore struct {
	mock.Mock
}

func (m *MockOperationStore) Store(ctx context.Context, result *ports.OperationResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockOperationStore) Get(ctx context.Context, operationID string) (*ports.OperationResult, error) {
	args := m.Called(ctx, operationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.OperationResult), args.Error(1)
}

func (m *MockOperationStore) Update(ctx context.Context, operationID string, result *ports.OperationResult) error {
	args := m.Called(ctx, operationID, result)
	return args.Error(0)
}

func (m *MockOperationStore) Delete(ctx context.Context, operationID string) error {
	args := m.Called(ctx, operationID)
	return args.Error(0)
}

func (m *MockOperationStore) CleanupExpired(ctx context.Context, olderThan time.Duration) error {
	args := m.Called(ctx, olderThan)
	return args.Error(0)
}
