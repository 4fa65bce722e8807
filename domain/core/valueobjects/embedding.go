package valueobjects

import (
	"fmt"
	"math"

	pkgerrors "engram-backend/pkg/errors"
)

// Embedding is a fixed-length vector produced by a specific model version.
// Vectors from different model versions are never comparable.
type Embedding struct {
	vector       []float32
	modelVersion string
}

// NewEmbedding validates the vector against the dimensionality the model
// version promises. A mismatch is fatal and must never silently degrade
// ranking.
func NewEmbedding(vector []float32, modelVersion string, wantDim int) (Embedding, error) {
	if modelVersion == "" {
		return Embedding{}, pkgerrors.NewValidation("model version cannot be empty")
	}
	if len(vector) == 0 {
		return Embedding{}, pkgerrors.NewValidation("embedding vector cannot be empty")
	}
	if wantDim > 0 && len(vector) != wantDim {
		return Embedding{}, pkgerrors.NewVectorDimensionMismatch(
			fmt.Sprintf("model %s expects dimension %d, got %d", modelVersion, wantDim, len(vector)))
	}
	v := make([]float32, len(vector))
	copy(v, vector)
	return Embedding{vector: v, modelVersion: modelVersion}, nil
}

// Vector returns a copy of the underlying vector
func (e Embedding) Vector() []float32 {
	v := make([]float32, len(e.vector))
	copy(v, e.vector)
	return v
}

// ModelVersion returns the producing model version
func (e Embedding) ModelVersion() string { return e.modelVersion }

// Dimension returns the vector length
func (e Embedding) Dimension() int { return len(e.vector) }

// IsZero checks whether the embedding is unset
func (e Embedding) IsZero() bool { return len(e.vector) == 0 }

// CosineSimilarity computes cosine similarity against another embedding.
// Comparing across model versions is a programming error and fails loudly.
func (e Embedding) CosineSimilarity(other Embedding) (float64, error) {
	if e.modelVersion != other.modelVersion {
		return 0, pkgerrors.NewVectorDimensionMismatch(
			fmt.Sprintf("cannot compare %s against %s", e.modelVersion, other.modelVersion))
	}
	if len(e.vector) != len(other.vector) {
		return 0, pkgerrors.NewVectorDimensionMismatch(
			fmt.Sprintf("dimension %d != %d", len(e.vector), len(other.vector)))
	}
	return CosineSimilarity(e.vector, other.vector), nil
}

// CosineSimilarity computes cosine similarity between two equal-length vectors.
// Returns 0 for zero-magnitude vectors.
func CosineSimilarity(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
