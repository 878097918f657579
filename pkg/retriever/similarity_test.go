package retriever

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimilarity(t *testing.T) {
	s, err := ParseSimilarity("")
	require.NoError(t, err)
	assert.Equal(t, DotProduct, s)

	s, err = ParseSimilarity("cosine")
	require.NoError(t, err)
	assert.Equal(t, Cosine, s)

	_, err = ParseSimilarity("euclidean")
	assert.Error(t, err)
}

func TestScore(t *testing.T) {
	q := []float32{1, 0}
	onTopic := []float32{1, 0}
	longOffTopic := []float32{3, 4}

	// Dot product favours the longer vector, cosine the aligned one.
	assert.Greater(t, DotProduct.Score(q, longOffTopic), DotProduct.Score(q, onTopic))
	assert.Greater(t, Cosine.Score(q, onTopic), Cosine.Score(q, longOffTopic))

	assert.InDelta(t, 1.0, Cosine.Score(q, onTopic), 1e-9)
	assert.InDelta(t, 0.6, Cosine.Score(q, longOffTopic), 1e-9)
	assert.Equal(t, 0.0, Cosine.Score(q, []float32{0, 0}))
	assert.Equal(t, 3.0, DotProduct.Score(q, longOffTopic))
}
