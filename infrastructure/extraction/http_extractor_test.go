package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"engram-backend/domain/core/valueobjects"
	pkgerrors "engram-backend/pkg/errors"
)

func testOwner(t *testing.T) valueobjects.OwnerID {
	t.Helper()
	owner, err := valueobjects.NewOwnerID("owner-1")
	require.NoError(t, err)
	return owner
}

func TestHTTPExtractor_MapsServiceResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/extract", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"entities": [
				{"label": "Elon Musk", "type": "person", "confidence": 0.95},
				{"label": "Tesla", "type": "company", "confidence": 0.9}
			],
			"relations": [
				{"source": "Elon Musk", "target": "Tesla", "label": "leads", "confidence": 0.9}
			]
		}`))
	}))
	defer server.Close()

	extractor := NewHTTPExtractor(server.URL, 5*time.Second, 3, zap.NewNop())
	result, err := extractor.Extract(context.Background(), testOwner(t), "Elon Musk leads Tesla", 0)

	require.NoError(t, err)
	require.Len(t, result.Entities, 2)
	assert.Equal(t, "Elon Musk", result.Entities[0].Label.Raw())
	assert.Equal(t, valueobjects.TypePerson, result.Entities[0].Type)
	assert.Equal(t, valueobjects.TypeOrganization, result.Entities[1].Type)
	require.Len(t, result.Relations, 1)
	assert.Equal(t, "leads", result.Relations[0].Label)
}

func TestHTTPExtractor_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"entities": [{"label": "Tesla", "type": "organization", "confidence": 0.9}]}`))
	}))
	defer server.Close()

	extractor := NewHTTPExtractor(server.URL, 5*time.Second, 3, zap.NewNop())
	result, err := extractor.Extract(context.Background(), testOwner(t), "Tesla", 0)

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, result.Entities, 1)
}

func TestHTTPExtractor_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	extractor := NewHTTPExtractor(server.URL, 5*time.Second, 3, zap.NewNop())
	_, err := extractor.Extract(context.Background(), testOwner(t), "bad input", 0)

	assert.True(t, pkgerrors.IsValidation(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPExtractor_UnreachableServiceIsUnavailable(t *testing.T) {
	extractor := NewHTTPExtractor("http://127.0.0.1:1", 200*time.Millisecond, 1, zap.NewNop())
	_, err := extractor.Extract(context.Background(), testOwner(t), "anything", 0)

	assert.True(t, pkgerrors.IsExtractionUnavailable(err))
}

func TestHTTPExtractor_SkipsInvalidLabels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"entities": [
				{"label": "", "type": "person", "confidence": 0.9},
				{"label": "Tesla", "type": "organization", "confidence": 0.9}
			]
		}`))
	}))
	defer server.Close()

	extractor := NewHTTPExtractor(server.URL, 5*time.Second, 1, zap.NewNop())
	result, err := extractor.Extract(context.Background(), testOwner(t), "text", 0)

	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "Tesla", result.Entities[0].Label.Raw())
}

func TestHTTPExtractor_SendsAndEnforcesConfidenceThreshold(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ConfidenceThreshold float64 `json:"confidence_threshold"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.InDelta(t, 0.6, req.ConfidenceThreshold, 1e-9)

		// The service ignores the threshold; the adapter must still filter.
		w.Write([]byte(`{
			"entities": [
				{"label": "Tesla", "type": "organization", "confidence": 0.9},
				{"label": "Texas", "type": "location", "confidence": 0.4}
			],
			"relations": [
				{"source": "Tesla", "target": "Texas", "label": "located in", "confidence": 0.8},
				{"source": "Tesla", "target": "Tesla", "label": "noise", "confidence": 0.2}
			]
		}`))
	}))
	defer server.Close()

	extractor := NewHTTPExtractor(server.URL, 5*time.Second, 1, zap.NewNop())
	result, err := extractor.Extract(context.Background(), testOwner(t), "Tesla builds in Texas", 0.6)

	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "Tesla", result.Entities[0].Label.Raw())
	// The surviving relation lost an endpoint to the cutoff, so it goes too.
	assert.Empty(t, result.Relations)
}

func TestFixtureExtractor_IsDeterministic(t *testing.T) {
	extractor := NewFixtureExtractor(zap.NewNop())
	text := "Elon Musk leads Tesla. Tesla is headquartered in Austin."

	first, err := extractor.Extract(context.Background(), testOwner(t), text, 0)
	require.NoError(t, err)
	second, err := extractor.Extract(context.Background(), testOwner(t), text, 0)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEmpty(t, first.Entities)
}

func TestFixtureExtractor_ThresholdDropsCandidates(t *testing.T) {
	extractor := NewFixtureExtractor(zap.NewNop())
	text := "Elon Musk leads Tesla Motors."

	// Fixture entities score 0.5 and relations 0.3.
	loose, err := extractor.Extract(context.Background(), testOwner(t), text, 0.25)
	require.NoError(t, err)
	assert.Len(t, loose.Entities, 2)
	assert.Len(t, loose.Relations, 1)

	relationsOnly, err := extractor.Extract(context.Background(), testOwner(t), text, 0.4)
	require.NoError(t, err)
	assert.Len(t, relationsOnly.Entities, 2)
	assert.Empty(t, relationsOnly.Relations)

	strict, err := extractor.Extract(context.Background(), testOwner(t), text, 0.6)
	require.NoError(t, err)
	assert.Empty(t, strict.Entities)
	assert.Empty(t, strict.Relations)
}
