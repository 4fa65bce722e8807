package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"engram-backend/domain/core/aggregates"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/domain/events"
)

func newTestGraph(t *testing.T) (*aggregates.Graph, valueobjects.OwnerID) {
	t.Helper()
	owner, err := valueobjects.NewOwnerID("owner-resolver-test")
	require.NoError(t, err)
	g, err := aggregates.NewGraph(owner)
	require.NoError(t, err)
	return g, owner
}

func label(t *testing.T, raw string) valueobjects.Label {
	t.Helper()
	l, err := valueobjects.NewLabel(raw)
	require.NoError(t, err)
	return l
}

func eventTypes(evts []events.DomainEvent) []string {
	types := make([]string, 0, len(evts))
	for _, e := range evts {
		types = append(types, e.GetEventType())
	}
	return types
}

func TestResolve_CreatesNewEntities(t *testing.T) {
	g, _ := newTestGraph(t)
	resolver := NewEntityResolver(zap.NewNop())
	memID := valueobjects.NewMemoryID()

	res, err := resolver.Resolve(g, memID, ExtractionResult{
		Entities: []EntityCandidate{
			{Label: label(t, "Elon Musk"), Type: valueobjects.TypePerson, Confidence: 0.95},
			{Label: label(t, "Tesla"), Type: valueobjects.TypeOrganization, Confidence: 0.9},
		},
		Relations: []RelationCandidate{
			{SourceLabel: label(t, "Elon Musk"), TargetLabel: label(t, "Tesla"), Label: "leads", Confidence: 0.95},
		},
	})
	require.NoError(t, err)

	assert.Len(t, res.Created, 2)
	assert.Empty(t, res.Merged)
	assert.Len(t, res.Relationships, 1)
	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 1, g.EdgeCount())
	assert.ElementsMatch(t, []string{events.TypeEntityCreated, events.TypeEntityCreated}, eventTypes(res.Events))
}

func TestResolve_MergesByNormalizedLabel(t *testing.T) {
	g, owner := newTestGraph(t)
	resolver := NewEntityResolver(zap.NewNop())

	firstMem := valueobjects.NewMemoryID()
	existing, err := entities.NewEntity(owner, label(t, "Tesla"), valueobjects.TypeOrganization, 0.8, firstMem)
	require.NoError(t, err)
	require.NoError(t, g.AddNode(existing))

	secondMem := valueobjects.NewMemoryID()
	res, err := resolver.Resolve(g, secondMem, ExtractionResult{
		Entities: []EntityCandidate{
			{Label: label(t, "TESLA"), Type: valueobjects.TypeOrganization, Confidence: 0.95},
		},
	})
	require.NoError(t, err)

	assert.Empty(t, res.Created)
	require.Len(t, res.Merged, 1)
	assert.True(t, res.Merged[0].ID().Equals(existing.ID()))
	assert.Equal(t, 1, g.NodeCount(), "no duplicate node for the same normalized label")
	assert.Equal(t, 0.95, existing.Confidence(), "confidence takes the max across mentions")
	assert.ElementsMatch(t, []string{firstMem.String(), secondMem.String()}, existing.SourceMemoryIDs())
}

func TestResolve_MergesThroughAlias(t *testing.T) {
	g, owner := newTestGraph(t)
	resolver := NewEntityResolver(zap.NewNop())

	mem := valueobjects.NewMemoryID()
	existing, err := entities.NewEntity(owner, label(t, "Tesla"), valueobjects.TypeOrganization, 0.8, mem)
	require.NoError(t, err)
	existing.Absorb(label(t, "Tesla Inc"), 0.8, mem)
	require.NoError(t, g.AddNode(existing))

	res, err := resolver.Resolve(g, valueobjects.NewMemoryID(), ExtractionResult{
		Entities: []EntityCandidate{
			{Label: label(t, "tesla inc"), Type: valueobjects.TypeOrganization, Confidence: 0.9},
		},
	})
	require.NoError(t, err)

	require.Len(t, res.Merged, 1)
	assert.True(t, res.Merged[0].ID().Equals(existing.ID()))
	assert.Equal(t, 1, g.NodeCount())
}

func TestResolve_TieBreakPrefersMoreEvidence(t *testing.T) {
	g, owner := newTestGraph(t)
	resolver := NewEntityResolver(zap.NewNop())
	now := time.Now()

	// Two distinct nodes share the same label form. The one with more
	// source memories must win the tie-break.
	thin := entities.ReconstructEntity(
		valueobjects.NewEntityID(), owner, label(t, "Mercury"), valueobjects.TypeConcept,
		nil, 0.7, []string{valueobjects.NewMemoryID().String()}, now.Add(-2*time.Hour), now)
	fat := entities.ReconstructEntity(
		valueobjects.NewEntityID(), owner, label(t, "Mercury"), valueobjects.TypeConcept,
		nil, 0.7, []string{valueobjects.NewMemoryID().String(), valueobjects.NewMemoryID().String()}, now.Add(-time.Hour), now)
	require.NoError(t, g.AddNode(thin))
	require.NoError(t, g.AddNode(fat))

	res, err := resolver.Resolve(g, valueobjects.NewMemoryID(), ExtractionResult{
		Entities: []EntityCandidate{
			{Label: label(t, "Mercury"), Type: valueobjects.TypeConcept, Confidence: 0.8},
		},
	})
	require.NoError(t, err)

	require.Len(t, res.Merged, 1)
	assert.True(t, res.Merged[0].ID().Equals(fat.ID()))
	assert.Contains(t, eventTypes(res.Events), events.TypeResolutionConflictRecorded)
}

func TestResolve_TieBreakFallsBackToEarliestCreated(t *testing.T) {
	g, owner := newTestGraph(t)
	resolver := NewEntityResolver(zap.NewNop())
	now := time.Now()

	older := entities.ReconstructEntity(
		valueobjects.NewEntityID(), owner, label(t, "Mercury"), valueobjects.TypeConcept,
		nil, 0.7, []string{valueobjects.NewMemoryID().String()}, now.Add(-2*time.Hour), now)
	newer := entities.ReconstructEntity(
		valueobjects.NewEntityID(), owner, label(t, "Mercury"), valueobjects.TypeConcept,
		nil, 0.7, []string{valueobjects.NewMemoryID().String()}, now.Add(-time.Hour), now)
	require.NoError(t, g.AddNode(newer))
	require.NoError(t, g.AddNode(older))

	res, err := resolver.Resolve(g, valueobjects.NewMemoryID(), ExtractionResult{
		Entities: []EntityCandidate{
			{Label: label(t, "Mercury"), Type: valueobjects.TypeConcept, Confidence: 0.8},
		},
	})
	require.NoError(t, err)

	require.Len(t, res.Merged, 1)
	assert.True(t, res.Merged[0].ID().Equals(older.ID()))
}

func TestResolve_DedupesWithinOneMemory(t *testing.T) {
	g, _ := newTestGraph(t)
	resolver := NewEntityResolver(zap.NewNop())

	res, err := resolver.Resolve(g, valueobjects.NewMemoryID(), ExtractionResult{
		Entities: []EntityCandidate{
			{Label: label(t, "Tesla"), Type: valueobjects.TypeOrganization, Confidence: 0.9},
			{Label: label(t, "tesla"), Type: valueobjects.TypeOrganization, Confidence: 0.95},
		},
	})
	require.NoError(t, err)

	assert.Len(t, res.Created, 1)
	assert.Equal(t, 1, g.NodeCount())
	assert.Equal(t, 0.95, res.Created[0].Confidence())
}

func TestResolve_SkipsRelationsWithUnknownEndpoints(t *testing.T) {
	g, _ := newTestGraph(t)
	resolver := NewEntityResolver(zap.NewNop())

	res, err := resolver.Resolve(g, valueobjects.NewMemoryID(), ExtractionResult{
		Entities: []EntityCandidate{
			{Label: label(t, "Tesla"), Type: valueobjects.TypeOrganization, Confidence: 0.9},
		},
		Relations: []RelationCandidate{
			{SourceLabel: label(t, "Tesla"), TargetLabel: label(t, "Mars"), Label: "expands to", Confidence: 0.4},
		},
	})
	require.NoError(t, err)

	assert.Empty(t, res.Relationships)
	assert.Equal(t, 0, g.EdgeCount())
}

func TestResolve_SkipsSelfLoops(t *testing.T) {
	g, _ := newTestGraph(t)
	resolver := NewEntityResolver(zap.NewNop())

	res, err := resolver.Resolve(g, valueobjects.NewMemoryID(), ExtractionResult{
		Entities: []EntityCandidate{
			{Label: label(t, "Tesla"), Type: valueobjects.TypeOrganization, Confidence: 0.9},
		},
		Relations: []RelationCandidate{
			{SourceLabel: label(t, "Tesla"), TargetLabel: label(t, "TESLA"), Label: "is", Confidence: 0.4},
		},
	})
	require.NoError(t, err)

	assert.Empty(t, res.Relationships)
	assert.Equal(t, 0, g.EdgeCount())
}

func TestFilterByConfidence_DropsLowCandidatesAndOrphanedRelations(t *testing.T) {
	result := ExtractionResult{
		Entities: []EntityCandidate{
			{Label: label(t, "Tesla"), Type: valueobjects.TypeOrganization, Confidence: 0.9},
			{Label: label(t, "Elon Musk"), Type: valueobjects.TypePerson, Confidence: 0.7},
			{Label: label(t, "Texas"), Type: valueobjects.TypeLocation, Confidence: 0.4},
		},
		Relations: []RelationCandidate{
			{SourceLabel: label(t, "Elon Musk"), TargetLabel: label(t, "Tesla"), Label: "leads", Confidence: 0.9},
			{SourceLabel: label(t, "Tesla"), TargetLabel: label(t, "Texas"), Label: "located in", Confidence: 0.8},
			{SourceLabel: label(t, "Elon Musk"), TargetLabel: label(t, "Tesla"), Label: "mentions", Confidence: 0.2},
		},
	}

	filtered := result.FilterByConfidence(0.6)

	require.Len(t, filtered.Entities, 2)
	assert.Equal(t, "Tesla", filtered.Entities[0].Label.Raw())
	assert.Equal(t, "Elon Musk", filtered.Entities[1].Label.Raw())
	// "located in" scored above the cutoff but lost its Texas endpoint.
	require.Len(t, filtered.Relations, 1)
	assert.Equal(t, "leads", filtered.Relations[0].Label)
}

func TestFilterByConfidence_ZeroThresholdKeepsEverything(t *testing.T) {
	result := ExtractionResult{
		Entities: []EntityCandidate{
			{Label: label(t, "Tesla"), Type: valueobjects.TypeOrganization, Confidence: 0.1},
		},
		Relations: []RelationCandidate{
			{SourceLabel: label(t, "Tesla"), TargetLabel: label(t, "Tesla"), Label: "self", Confidence: 0.05},
		},
	}

	filtered := result.FilterByConfidence(0)

	assert.Len(t, filtered.Entities, 1)
	assert.Len(t, filtered.Relations, 1)
}
