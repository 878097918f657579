package retriever

import (
	"fmt"
	"math"
)

// Similarity names the scoring used to rank sentences against the query.
type Similarity string

const (
	// DotProduct ranks by the raw inner product. It equals cosine similarity
	// only when the embedder returns unit vectors.
	DotProduct Similarity = "dot"
	Cosine     Similarity = "cosine"
)

func ParseSimilarity(s string) (Similarity, error) {
	switch Similarity(s) {
	case "", DotProduct:
		return DotProduct, nil
	case Cosine:
		return Cosine, nil
	}
	return "", fmt.Errorf("unknown similarity %q", s)
}

// Score compares two vectors. Extra trailing components of the longer vector
// are ignored.
func (s Similarity) Score(a, b []float32) float64 {
	if s == Cosine {
		return cosine(a, b)
	}
	return dot(a, b)
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func cosine(a, b []float32) float64 {
	na := math.Sqrt(dot(a, a))
	nb := math.Sqrt(dot(b, b))
	if na == 0 || nb == 0 {
		return 0
	}
	return dot(a, b) / (na * nb)
}
