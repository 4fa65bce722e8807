package sagas_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"engram-backend/application/ports"
	"engram-backend/application/sagas"
	"engram-backend/domain/core/aggregates"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/domain/events"
	domainservices "engram-backend/domain/services"
	pkgerrors "engram-backend/pkg/errors"
	"engram-backend/tests/fixtures"
)

// In-memory fakes. The real adapters live under infrastructure; these keep
// the saga tests focused on orchestration behavior.

type fakeMemoryRepo struct {
	memories map[string]*entities.Memory
}

func newFakeMemoryRepo() *fakeMemoryRepo {
	return &fakeMemoryRepo{memories: map[string]*entities.Memory{}}
}

func (r *fakeMemoryRepo) Save(_ context.Context, m *entities.Memory) error {
	r.memories[m.ID().String()] = m
	return nil
}

func (r *fakeMemoryRepo) GetByID(_ context.Context, _ valueobjects.OwnerID, id valueobjects.MemoryID) (*entities.Memory, error) {
	m, ok := r.memories[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFound("memory not found")
	}
	return m, nil
}

func (r *fakeMemoryRepo) FindByDigest(_ context.Context, _ valueobjects.OwnerID, digest string) (*entities.Memory, error) {
	for _, m := range r.memories {
		if m.ContentDigest() == digest {
			return m, nil
		}
	}
	return nil, pkgerrors.NewNotFound("no memory with digest")
}

func (r *fakeMemoryRepo) ListByStatus(_ context.Context, status entities.MemoryStatus, _ int) ([]*entities.Memory, error) {
	var out []*entities.Memory
	for _, m := range r.memories {
		if m.Status() == status {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMemoryRepo) ListByOwner(_ context.Context, ownerID valueobjects.OwnerID, _ int) ([]*entities.Memory, error) {
	var out []*entities.Memory
	for _, m := range r.memories {
		if m.OwnerID().Equals(ownerID) && !m.IsDeleted() {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMemoryRepo) Delete(_ context.Context, _ valueobjects.OwnerID, id valueobjects.MemoryID) error {
	delete(r.memories, id.String())
	return nil
}

type fakeGraphRepo struct {
	graph *aggregates.Graph
}

type fakeGraphTx struct {
	graph *aggregates.Graph
}

func (t *fakeGraphTx) Graph() *aggregates.Graph        { return t.graph }
func (t *fakeGraphTx) Commit(_ context.Context) error  { t.graph.CommitVersion(); return nil }
func (t *fakeGraphTx) Rollback()                       {}

func (r *fakeGraphRepo) Begin(_ context.Context, ownerID valueobjects.OwnerID) (ports.GraphTx, error) {
	if r.graph == nil {
		g, err := aggregates.NewGraph(ownerID)
		if err != nil {
			return nil, err
		}
		r.graph = g
	}
	return &fakeGraphTx{graph: r.graph}, nil
}

func (r *fakeGraphRepo) View(_ context.Context, _ valueobjects.OwnerID) (*aggregates.Graph, error) {
	if r.graph == nil {
		return nil, pkgerrors.NewNotFound("no graph")
	}
	return r.graph, nil
}

func (r *fakeGraphRepo) Stats(_ context.Context, _ valueobjects.OwnerID) (ports.GraphStatistics, error) {
	return ports.GraphStatistics{}, nil
}

type fakeVectorIndex struct {
	entries   map[string]valueobjects.Embedding
	failUntil int
	calls     int
}

func newFakeVectorIndex() *fakeVectorIndex {
	return &fakeVectorIndex{entries: map[string]valueobjects.Embedding{}}
}

func (v *fakeVectorIndex) Upsert(_ context.Context, _ valueobjects.OwnerID, memoryID valueobjects.MemoryID, e valueobjects.Embedding, _ time.Time) error {
	v.calls++
	if v.calls <= v.failUntil {
		return pkgerrors.NewIndexInconsistency("index unavailable")
	}
	v.entries[memoryID.String()] = e
	return nil
}

func (v *fakeVectorIndex) Remove(_ context.Context, _ valueobjects.OwnerID, memoryID valueobjects.MemoryID) error {
	delete(v.entries, memoryID.String())
	return nil
}

func (v *fakeVectorIndex) Search(_ context.Context, _ valueobjects.OwnerID, _ valueobjects.Embedding, _ int) ([]ports.VectorHit, error) {
	return nil, nil
}

func (v *fakeVectorIndex) Has(_ context.Context, _ valueobjects.OwnerID, memoryID valueobjects.MemoryID) (bool, error) {
	_, ok := v.entries[memoryID.String()]
	return ok, nil
}

// fakeExtractor returns its result unfiltered so tests can verify the
// pipeline enforces the threshold itself.
type fakeExtractor struct {
	result        domainservices.ExtractionResult
	err           error
	gotThresholds []float64
}

func (e *fakeExtractor) Extract(_ context.Context, _ valueobjects.OwnerID, _ string, confidenceThreshold float64) (domainservices.ExtractionResult, error) {
	e.gotThresholds = append(e.gotThresholds, confidenceThreshold)
	if e.err != nil {
		return domainservices.ExtractionResult{}, e.err
	}
	return e.result, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, _ string) (valueobjects.Embedding, error) {
	vec := make([]float32, 4)
	vec[0] = 1
	return valueobjects.NewEmbedding(vec, "test-4-v1", 4)
}
func (fakeEmbedder) ModelVersion() string { return "test-4-v1" }
func (fakeEmbedder) Dimensions() int      { return 4 }

type fakeBlobStore struct {
	blobs map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore { return &fakeBlobStore{blobs: map[string][]byte{}} }

func (b *fakeBlobStore) Put(_ context.Context, key string, data []byte, _ string) error {
	b.blobs[key] = data
	return nil
}

func (b *fakeBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	d, ok := b.blobs[key]
	if !ok {
		return nil, pkgerrors.NewNotFound("blob not found")
	}
	return d, nil
}

func (b *fakeBlobStore) Delete(_ context.Context, key string) error {
	delete(b.blobs, key)
	return nil
}

type capturingPublisher struct {
	published []events.DomainEvent
}

func (p *capturingPublisher) Publish(_ context.Context, e events.DomainEvent) error {
	p.published = append(p.published, e)
	return nil
}

func (p *capturingPublisher) PublishBatch(_ context.Context, evts []events.DomainEvent) error {
	p.published = append(p.published, evts...)
	return nil
}

func mustLabel(t *testing.T, raw string) valueobjects.Label {
	t.Helper()
	l, err := valueobjects.NewLabel(raw)
	require.NoError(t, err)
	return l
}

func teslaExtraction(t *testing.T) domainservices.ExtractionResult {
	t.Helper()
	return domainservices.ExtractionResult{
		Entities: []domainservices.EntityCandidate{
			{Label: mustLabel(t, "Elon Musk"), Type: valueobjects.TypePerson, Confidence: 0.95},
			{Label: mustLabel(t, "Tesla"), Type: valueobjects.TypeOrganization, Confidence: 0.9},
			{Label: mustLabel(t, "Austin"), Type: valueobjects.TypeLocation, Confidence: 0.85},
		},
		Relations: []domainservices.RelationCandidate{
			{SourceLabel: mustLabel(t, "Elon Musk"), TargetLabel: mustLabel(t, "Tesla"), Label: "leads", Confidence: 0.95},
			{SourceLabel: mustLabel(t, "Tesla"), TargetLabel: mustLabel(t, "Austin"), Label: "located in", Confidence: 0.7},
		},
	}
}

type sagaEnv struct {
	memoryRepo  *fakeMemoryRepo
	graphRepo   *fakeGraphRepo
	vectorIndex *fakeVectorIndex
	extractor   *fakeExtractor
	blobStore   *fakeBlobStore
	publisher   *capturingPublisher
	saga        *sagas.IngestMemorySaga
}

func newSagaEnv(t *testing.T, extraction domainservices.ExtractionResult) *sagaEnv {
	t.Helper()
	return newTunedSagaEnv(t, extraction, 0)
}

func newTunedSagaEnv(t *testing.T, extraction domainservices.ExtractionResult, threshold float64) *sagaEnv {
	t.Helper()
	env := &sagaEnv{
		memoryRepo:  newFakeMemoryRepo(),
		graphRepo:   &fakeGraphRepo{},
		vectorIndex: newFakeVectorIndex(),
		extractor:   &fakeExtractor{result: extraction},
		blobStore:   newFakeBlobStore(),
		publisher:   &capturingPublisher{},
	}
	env.saga = sagas.NewIngestMemorySaga(
		env.memoryRepo,
		env.graphRepo,
		env.vectorIndex,
		env.extractor,
		fakeEmbedder{},
		domainservices.NewEntityResolver(zap.NewNop()),
		env.blobStore,
		env.publisher,
		nil,
		fixtures.StaticTuning(threshold),
		zap.NewNop(),
	)
	return env
}

func owner(t *testing.T) valueobjects.OwnerID {
	t.Helper()
	o, err := valueobjects.NewOwnerID("owner-saga-test")
	require.NoError(t, err)
	return o
}

func TestIngestMemorySaga_FullPipeline(t *testing.T) {
	env := newSagaEnv(t, teslaExtraction(t))
	data := &sagas.IngestMemorySagaData{
		OwnerID:   owner(t),
		Text:      "Elon Musk leads Tesla, which is located in Austin.",
		StartTime: time.Now(),
	}

	err := env.saga.Execute(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, entities.StatusIndexed, data.Memory.Status())
	assert.Equal(t, 3, env.graphRepo.graph.NodeCount())
	assert.Equal(t, 2, env.graphRepo.graph.EdgeCount())

	indexed, err := env.vectorIndex.Has(context.Background(), data.OwnerID, data.Memory.ID())
	require.NoError(t, err)
	assert.True(t, indexed)

	assert.NotEmpty(t, env.blobStore.blobs)

	var sawIngested bool
	for _, e := range env.publisher.published {
		if e.GetEventType() == events.TypeMemoryIngested {
			sawIngested = true
		}
	}
	assert.True(t, sawIngested)
}

func TestIngestMemorySaga_ConfidenceThresholdFiltersCandidates(t *testing.T) {
	// "located in" (0.7) falls below the cutoff; the entities all clear it.
	env := newTunedSagaEnv(t, teslaExtraction(t), 0.8)
	data := &sagas.IngestMemorySagaData{
		OwnerID:   owner(t),
		Text:      "Elon Musk leads Tesla, which is located in Austin.",
		StartTime: time.Now(),
	}

	err := env.saga.Execute(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, []float64{0.8}, env.extractor.gotThresholds,
		"extractor receives the live threshold")
	assert.Equal(t, 3, env.graphRepo.graph.NodeCount())
	assert.Equal(t, 1, env.graphRepo.graph.EdgeCount())
	assert.Len(t, data.Extraction.Relations, 1)
}

func TestIngestMemorySaga_ThresholdAboveAllCandidatesCommitsEmptyGraph(t *testing.T) {
	env := newTunedSagaEnv(t, teslaExtraction(t), 0.99)
	data := &sagas.IngestMemorySagaData{
		OwnerID:   owner(t),
		Text:      "Elon Musk leads Tesla, which is located in Austin.",
		StartTime: time.Now(),
	}

	err := env.saga.Execute(context.Background(), data)
	require.NoError(t, err)

	// The memory still completes its pipeline; it just contributes nothing
	// to the graph.
	assert.Equal(t, entities.StatusIndexed, data.Memory.Status())
	assert.Equal(t, 0, env.graphRepo.graph.NodeCount())
	assert.Equal(t, 0, env.graphRepo.graph.EdgeCount())
}

func TestIngestMemorySaga_ExtractionFailureCompensates(t *testing.T) {
	env := newSagaEnv(t, domainservices.ExtractionResult{})
	env.extractor.err = pkgerrors.NewValidation("malformed text")

	data := &sagas.IngestMemorySagaData{
		OwnerID:   owner(t),
		Text:      "some text",
		StartTime: time.Now(),
	}

	err := env.saga.Execute(context.Background(), data)
	require.Error(t, err)

	assert.Empty(t, env.memoryRepo.memories, "memory record rolled back")
	assert.Empty(t, env.blobStore.blobs, "archived blob rolled back")
	assert.Nil(t, env.graphRepo.graph, "graph never touched")
}

func TestIngestMemorySaga_IndexFailureThenResume(t *testing.T) {
	env := newSagaEnv(t, teslaExtraction(t))
	// Fail every index attempt of the first run (3 retries).
	env.vectorIndex.failUntil = 3

	data := &sagas.IngestMemorySagaData{
		OwnerID:   owner(t),
		Text:      "Elon Musk leads Tesla, which is located in Austin.",
		StartTime: time.Now(),
	}

	err := env.saga.Execute(context.Background(), data)
	require.Error(t, err)

	// The graph commit is the point of no return: the memory record stays
	// at its durable checkpoint and committed graph state is retained.
	require.NotNil(t, data.Memory)
	assert.Equal(t, entities.StatusGraphCommitted, data.Memory.Status())
	assert.Len(t, env.memoryRepo.memories, 1)
	assert.Equal(t, 3, env.graphRepo.graph.NodeCount())
	assert.Equal(t, 2, env.graphRepo.graph.EdgeCount())

	// Resume the same memory. Resolution is idempotent, so re-running the
	// full pipeline yields exactly one node per entity and one edge per
	// relation.
	resume := &sagas.IngestMemorySagaData{
		OwnerID:   data.OwnerID,
		Text:      data.Text,
		Memory:    data.Memory,
		StartTime: time.Now(),
	}
	err = env.saga.Execute(context.Background(), resume)
	require.NoError(t, err)

	assert.Equal(t, entities.StatusIndexed, resume.Memory.Status())
	assert.Equal(t, 3, env.graphRepo.graph.NodeCount(), "no duplicate nodes after resume")
	assert.Equal(t, 2, env.graphRepo.graph.EdgeCount(), "no duplicate edges after resume")

	indexed, err := env.vectorIndex.Has(context.Background(), resume.OwnerID, resume.Memory.ID())
	require.NoError(t, err)
	assert.True(t, indexed)
}

func TestSagaEngine_CompensatesInReverseOrder(t *testing.T) {
	var order []string
	saga := sagas.NewSagaBuilder("TestOrder", zap.NewNop()).
		WithCompensableStep("First",
			func(_ context.Context, d interface{}) (interface{}, error) { return d, nil },
			func(_ context.Context, _ interface{}) error {
				order = append(order, "first")
				return nil
			}).
		WithCompensableStep("Second",
			func(_ context.Context, d interface{}) (interface{}, error) { return d, nil },
			func(_ context.Context, _ interface{}) error {
				order = append(order, "second")
				return nil
			}).
		WithStep("Boom", func(_ context.Context, _ interface{}) (interface{}, error) {
			return nil, errors.New("boom")
		}).
		Build()

	_, err := saga.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, []string{"second", "first"}, order)
	assert.Equal(t, sagas.SagaStateCompensated, saga.GetState())
}

func TestSagaEngine_RetryableStepRecovers(t *testing.T) {
	attempts := 0
	saga := sagas.NewSagaBuilder("TestRetry", zap.NewNop()).
		WithRetryableStep("Flaky", func(_ context.Context, d interface{}) (interface{}, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("transient")
			}
			return d, nil
		}, 3, time.Millisecond).
		Build()

	_, err := saga.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, sagas.SagaStateCompleted, saga.GetState())
}
