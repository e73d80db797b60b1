// Package embedding turns inquiry text into unit-length sentence vectors.
package embedding

import (
	"context"
	"errors"
	"math"
)

// ErrEmbeddingUnavailable indicates the embedding model could not produce a
// usable vector. It is fatal for the inquiry being analysed.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// Embedder produces vectors of exactly Dimension() components with unit
// length. Embed returns one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimension() int
}

// Normalize scales v to unit length in place. It reports false for a zero
// vector, which is left untouched.
func Normalize(v []float32) bool {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return false
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return true
}

var (
	_ Embedder = (*Client)(nil)
	_ Embedder = (*HashEmbedder)(nil)
	_ Embedder = (*CachedEmbedder)(nil)
)
