package integration

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engram-backend/application/commands"
	"engram-backend/application/queries"
	"engram-backend/domain/core/valueobjects"
	domainservices "engram-backend/domain/services"
)

// scriptedExtractor plays back typed candidates per input text, standing
// in for a real extraction model while keeping the rest of the pipeline
// real. Like any extractor it honors the confidence threshold.
type scriptedExtractor struct {
	byText map[string]domainservices.ExtractionResult
}

func (e *scriptedExtractor) Extract(_ context.Context, _ valueobjects.OwnerID, text string, confidenceThreshold float64) (domainservices.ExtractionResult, error) {
	return e.byText[text].FilterByConfidence(confidenceThreshold), nil
}

func scenarioLabel(t *testing.T, raw string) valueobjects.Label {
	t.Helper()
	l, err := valueobjects.NewLabel(raw)
	require.NoError(t, err)
	return l
}

const teslaNote = "Tesla is led by Elon Musk. The company makes electric vehicles in Austin, Texas."

func teslaScript(t *testing.T) *scriptedExtractor {
	t.Helper()
	return &scriptedExtractor{byText: map[string]domainservices.ExtractionResult{
		teslaNote: {
			Entities: []domainservices.EntityCandidate{
				{Label: scenarioLabel(t, "Tesla"), Type: valueobjects.TypeOrganization, Confidence: 0.95},
				{Label: scenarioLabel(t, "Elon Musk"), Type: valueobjects.TypePerson, Confidence: 0.9},
				{Label: scenarioLabel(t, "electric vehicles"), Type: valueobjects.TypeProduct, Confidence: 0.7},
				{Label: scenarioLabel(t, "Austin"), Type: valueobjects.TypeLocation, Confidence: 0.8},
				{Label: scenarioLabel(t, "Texas"), Type: valueobjects.TypeLocation, Confidence: 0.45},
			},
			Relations: []domainservices.RelationCandidate{
				{SourceLabel: scenarioLabel(t, "Elon Musk"), TargetLabel: scenarioLabel(t, "Tesla"), Label: "leads", Confidence: 0.9},
				{SourceLabel: scenarioLabel(t, "Tesla"), TargetLabel: scenarioLabel(t, "electric vehicles"), Label: "makes", Confidence: 0.75},
				{SourceLabel: scenarioLabel(t, "Tesla"), TargetLabel: scenarioLabel(t, "Austin"), Label: "located_in", Confidence: 0.8},
				{SourceLabel: scenarioLabel(t, "Austin"), TargetLabel: scenarioLabel(t, "Texas"), Label: "located_in", Confidence: 0.5},
			},
		},
	}}
}

func TestScenario_TypedExtractionBuildsTeslaNeighborhood(t *testing.T) {
	h := newHarnessWith(t, harnessOptions{extractor: teslaScript(t), threshold: 0.6})
	ctx := context.Background()

	result, err := h.ingest.Handle(ctx, commands.IngestMemoryCommand{
		OwnerID: testOwner, ActorID: testOwner, Text: teslaNote,
	})
	require.NoError(t, err)

	// Texas (0.45) and its edge fall below the 0.6 cutoff.
	assert.Equal(t, 4, result.EntityCount)
	assert.Equal(t, 3, result.EdgeCount)

	stats, err := h.stats.Handle(ctx, queries.GetGraphStatsQuery{
		OwnerID: testOwner, ActorID: testOwner,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NodesByType["Person"])
	assert.Equal(t, 1, stats.NodesByType["Organization"])
	assert.Equal(t, 1, stats.NodesByType["Location"])
	assert.Equal(t, 1, stats.NodesByType["Product"])

	neighborhood, err := h.neighborhood.Handle(ctx, queries.GraphNeighborhoodQuery{
		OwnerID: testOwner,
		ActorID: testOwner,
		Label:   "Tesla",
		Depth:   1,
		Limit:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, "Tesla", neighborhood.Anchor.Label)

	labels := make([]string, 0, len(neighborhood.Neighbors))
	via := map[string]string{}
	for _, n := range neighborhood.Neighbors {
		labels = append(labels, n.Label)
		via[n.Label] = n.ViaEdgeLabel
		assert.Equal(t, 1, n.Distance)
	}
	sort.Strings(labels)
	assert.Equal(t, []string{"Austin", "Elon Musk", "electric vehicles"}, labels)
	assert.Equal(t, "leads", via["Elon Musk"])
	assert.Equal(t, "makes", via["electric vehicles"])
	assert.Equal(t, "located_in", via["Austin"])
}

const (
	factoryNote = "The electric car company Tesla makes electric vehicles in Austin."
	leaderNote  = "Elon Musk leads Tesla."
)

func leadershipScript(t *testing.T) *scriptedExtractor {
	t.Helper()
	return &scriptedExtractor{byText: map[string]domainservices.ExtractionResult{
		factoryNote: {
			Entities: []domainservices.EntityCandidate{
				{Label: scenarioLabel(t, "Tesla"), Type: valueobjects.TypeOrganization, Confidence: 0.95},
				{Label: scenarioLabel(t, "electric vehicles"), Type: valueobjects.TypeProduct, Confidence: 0.8},
				{Label: scenarioLabel(t, "Austin"), Type: valueobjects.TypeLocation, Confidence: 0.85},
			},
			Relations: []domainservices.RelationCandidate{
				{SourceLabel: scenarioLabel(t, "Tesla"), TargetLabel: scenarioLabel(t, "electric vehicles"), Label: "makes", Confidence: 0.8},
				{SourceLabel: scenarioLabel(t, "Tesla"), TargetLabel: scenarioLabel(t, "Austin"), Label: "located_in", Confidence: 0.85},
			},
		},
		leaderNote: {
			Entities: []domainservices.EntityCandidate{
				{Label: scenarioLabel(t, "Elon Musk"), Type: valueobjects.TypePerson, Confidence: 0.95},
				{Label: scenarioLabel(t, "Tesla"), Type: valueobjects.TypeOrganization, Confidence: 0.95},
			},
			Relations: []domainservices.RelationCandidate{
				{SourceLabel: scenarioLabel(t, "Elon Musk"), TargetLabel: scenarioLabel(t, "Tesla"), Label: "leads", Confidence: 0.95},
			},
		},
	}}
}

func TestScenario_HybridSearchSurfacesTheLeader(t *testing.T) {
	h := newHarnessWith(t, harnessOptions{extractor: leadershipScript(t), threshold: 0.6})
	ctx := context.Background()

	for _, text := range []string{factoryNote, leaderNote} {
		_, err := h.ingest.Handle(ctx, commands.IngestMemoryCommand{
			OwnerID: testOwner, ActorID: testOwner, Text: text,
		})
		require.NoError(t, err)
	}

	// The factory note shares most of the query's words, so it seeds the
	// anchors; Elon Musk is reachable only through the graph, and the low
	// weight lets proximity dominate the ranking.
	weight := 0.2
	result, err := h.hybrid.Handle(ctx, queries.HybridSearchQuery{
		OwnerID: testOwner,
		ActorID: testOwner,
		Text:    "who runs the electric car company in Austin",
		Depth:   2,
		Limit:   1,
		Weight:  &weight,
	})
	require.NoError(t, err)

	require.NotEmpty(t, result.Anchors)
	anchorLabels := make([]string, 0, len(result.Anchors))
	for _, a := range result.Anchors {
		anchorLabels = append(anchorLabels, a.Label)
	}
	assert.Contains(t, anchorLabels, "Tesla")

	require.NotEmpty(t, result.Ranked)
	assert.Equal(t, "Elon Musk", result.Ranked[0].Label)
	assert.Equal(t, 1, result.Ranked[0].Distance)
	assert.GreaterOrEqual(t, result.Ranked[0].Score, 0.0)
	assert.LessOrEqual(t, result.Ranked[0].Score, 1.0)
}
