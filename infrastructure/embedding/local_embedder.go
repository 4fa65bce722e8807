package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"engram-backend/domain/core/valueobjects"
)

// LocalDimensions is the width of the local embedding space
const LocalDimensions = 256

// localModelVersion identifies the local embedding space
const localModelVersion = "local-256-v1"

// LocalEmbedder is a deterministic, dependency-free embedder: a hashed
// bag of words, L2-normalized. Texts sharing vocabulary land near each
// other, which is enough for development and tests. Not a substitute
// for a learned model.
type LocalEmbedder struct{}

// NewLocalEmbedder creates a LocalEmbedder
func NewLocalEmbedder() *LocalEmbedder {
	return &LocalEmbedder{}
}

// Embed produces the embedding for one text
func (e *LocalEmbedder) Embed(ctx context.Context, text string) (valueobjects.Embedding, error) {
	vector := make([]float32, LocalDimensions)

	for _, token := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		sum := h.Sum32()
		// Sign hashing keeps colliding tokens from always reinforcing.
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		vector[sum%LocalDimensions] += sign
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}

	return valueobjects.NewEmbedding(vector, localModelVersion, LocalDimensions)
}

// ModelVersion identifies the embedding space
func (e *LocalEmbedder) ModelVersion() string {
	return localModelVersion
}

// Dimensions returns the embedding width
func (e *LocalEmbedder) Dimensions() int {
	return LocalDimensions
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
