// Package embedding provides the embedding adapters: an OpenAI-backed
// embedder for production and a deterministic local embedder for
// development and tests.
package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"engram-backend/domain/core/valueobjects"
	pkgerrors "engram-backend/pkg/errors"
)

// OpenAIEmbedder produces embeddings through the OpenAI embeddings API
type OpenAIEmbedder struct {
	api        openai.Client
	model      string
	dimensions int
	logger     *zap.Logger
}

// NewOpenAIEmbedder creates an embedder for the given model and
// expected dimensionality
func NewOpenAIEmbedder(apiKey, model string, dimensions int, logger *zap.Logger) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		api:        openai.NewClient(option.WithAPIKey(apiKey)),
		model:      model,
		dimensions: dimensions,
		logger:     logger,
	}
}

// Embed returns the embedding for one text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (valueobjects.Embedding, error) {
	resp, err := e.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
	})
	if err != nil {
		return valueobjects.Embedding{}, pkgerrors.NewExtractionUnavailable("embedding request failed", err)
	}
	if len(resp.Data) == 0 {
		return valueobjects.Embedding{}, pkgerrors.NewExtractionUnavailable("embedding response carried no data", nil)
	}

	vector := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float32(v)
	}
	return valueobjects.NewEmbedding(vector, e.ModelVersion(), e.dimensions)
}

// ModelVersion identifies the embedding space. Vectors from different
// model versions never mix in one index.
func (e *OpenAIEmbedder) ModelVersion() string {
	return fmt.Sprintf("%s-%d", e.model, e.dimensions)
}

// Dimensions returns the embedding width
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}
