package valueobjects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "engram-backend/pkg/errors"
)

func TestParseMemoryID(t *testing.T) {
	id := NewMemoryID()

	parsed, err := ParseMemoryID(id.String())
	require.NoError(t, err)
	assert.True(t, id.Equals(parsed))

	_, err = ParseMemoryID("not-a-uuid")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestNewOwnerID(t *testing.T) {
	owner, err := NewOwnerID("  alice  ")
	require.NoError(t, err)
	assert.Equal(t, "alice", owner.String())

	_, err = NewOwnerID("   ")
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Elon  Musk ", "elon musk"},
		{"TESLA", "tesla"},
		{"  electric\tvehicles ", "electric vehicles"},
		{"Austin, Texas", "austin, texas"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeLabel(tt.in), tt.in)
	}
}

func TestLabel_Matches(t *testing.T) {
	label, err := NewLabel("Elon Musk")
	require.NoError(t, err)

	assert.True(t, label.Matches("elon  musk"))
	assert.False(t, label.Matches("elon"))
	assert.Equal(t, "Elon Musk", label.Raw())
}

func TestCanonicalType(t *testing.T) {
	assert.Equal(t, TypeOrganization, CanonicalType("Company"))
	assert.Equal(t, TypeLocation, CanonicalType("GPE"))
	assert.Equal(t, TypePerson, CanonicalType(" person "))
	assert.Equal(t, TypeConcept, CanonicalType("something-new"))
}

func TestNewEmbedding_DimensionMismatch(t *testing.T) {
	_, err := NewEmbedding([]float32{1, 2, 3}, "local-256-v1", 256)
	assert.True(t, pkgerrors.IsVectorDimensionMismatch(err))
}

func TestEmbedding_CosineSimilarity(t *testing.T) {
	a, err := NewEmbedding([]float32{1, 0, 0}, "m1", 3)
	require.NoError(t, err)
	b, err := NewEmbedding([]float32{1, 0, 0}, "m1", 3)
	require.NoError(t, err)
	c, err := NewEmbedding([]float32{0, 1, 0}, "m1", 3)
	require.NoError(t, err)

	sim, err := a.CosineSimilarity(b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)

	sim, err = a.CosineSimilarity(c)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)
}

func TestEmbedding_CrossModelComparisonRejected(t *testing.T) {
	a, _ := NewEmbedding([]float32{1, 0}, "m1", 2)
	b, _ := NewEmbedding([]float32{1, 0}, "m2", 2)

	_, err := a.CosineSimilarity(b)
	assert.True(t, pkgerrors.IsVectorDimensionMismatch(err))
}
