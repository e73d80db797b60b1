package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashEmbedder is a deterministic local embedder for tests and offline runs.
// It hashes word tokens and character bigrams into a fixed number of buckets,
// so texts sharing vocabulary end up close in cosine space.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a hash embedder.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &HashEmbedder{dimension: dimension}
}

// Embed generates hash embeddings.
func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(text)
	}
	return out, nil
}

// EmbedSingle generates a hash embedding for a single text.
func (h *HashEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.vector(text), nil
}

// Model returns the model name.
func (h *HashEmbedder) Model() string {
	return "hash-embedding"
}

// Dimension returns the embedding dimension.
func (h *HashEmbedder) Dimension() int {
	return h.dimension
}

func (h *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	for _, w := range words {
		v[h.bucket(w)] += 2
		runes := []rune(w)
		for j := 0; j+1 < len(runes); j++ {
			v[h.bucket(string(runes[j:j+2]))]++
		}
	}
	if !Normalize(v) {
		// blank text maps to a fixed unit vector
		v[0] = 1
	}
	return v
}

func (h *HashEmbedder) bucket(s string) int {
	f := fnv.New32a()
	_, _ = f.Write([]byte(s))
	return int(f.Sum32() % uint32(h.dimension))
}
