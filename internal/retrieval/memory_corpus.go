package retrieval

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
)

// MemoryCorpus is an in-memory brute-force corpus. Entries are unique by
// InquiryID; inserting an existing InquiryID replaces the entry.
type MemoryCorpus struct {
	mu        sync.RWMutex
	dimension int
	entries   map[uuid.UUID]CorpusEntry
	byInquiry map[string]uuid.UUID
	search    SearchConfig
}

// NewMemoryCorpus creates an empty corpus. A zero dimension is taken from the
// first inserted vector.
func NewMemoryCorpus(dimension int, search SearchConfig) *MemoryCorpus {
	return &MemoryCorpus{
		dimension: dimension,
		entries:   make(map[uuid.UUID]CorpusEntry),
		byInquiry: make(map[string]uuid.UUID),
		search:    search,
	}
}

// Insert adds entries to the corpus. Vectors are stored normalized. Entries
// without an ID get a fresh one.
func (c *MemoryCorpus) Insert(_ context.Context, entries []CorpusEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range entries {
		if e.InquiryID == "" {
			return fmt.Errorf("%w: corpus entry without inquiry id", ErrInvalidQuery)
		}
		if len(e.Vector) == 0 {
			return fmt.Errorf("%w: entry %s has no vector", ErrVectorDimensionMismatch, e.InquiryID)
		}
		if c.dimension == 0 {
			c.dimension = len(e.Vector)
		}
		if len(e.Vector) != c.dimension {
			return fmt.Errorf("%w: expected %d, got %d for inquiry %s",
				ErrVectorDimensionMismatch, c.dimension, len(e.Vector), e.InquiryID)
		}

		if prev, ok := c.byInquiry[e.InquiryID]; ok {
			delete(c.entries, prev)
		}
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		e.Vector = normalizeVector(e.Vector)
		c.entries[e.ID] = e
		c.byInquiry[e.InquiryID] = e.ID
	}

	return nil
}

// Delete removes entries by inquiry ID.
func (c *MemoryCorpus) Delete(_ context.Context, inquiryIDs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range inquiryIDs {
		if key, ok := c.byInquiry[id]; ok {
			delete(c.entries, key)
			delete(c.byInquiry, id)
		}
	}
	return nil
}

// Count returns the number of entries.
func (c *MemoryCorpus) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// EmbeddingModels counts entries per embedding model.
func (c *MemoryCorpus) EmbeddingModels(ctx context.Context) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	models := make(map[string]int)
	for _, e := range c.entries {
		models[e.EmbeddingModel]++
	}
	return models, nil
}

// Dimension returns the vector dimension, or 0 while empty and unconfigured.
func (c *MemoryCorpus) Dimension() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dimension
}

// DenseSearch ranks entries by cosine similarity to vector.
func (c *MemoryCorpus) DenseSearch(ctx context.Context, vector []float32, filters Filters, limit int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	query, err := c.prepareQuery(vector)
	if err != nil {
		return nil, err
	}

	matches := c.scan(filters, func(e CorpusEntry) Match {
		dense := similarity(query, e.Vector)
		return Match{Entry: e, Score: dense, Dense: dense}
	})
	return Rank(matches, c.search.MinDenseScore, limit), nil
}

// HybridSearch ranks entries by alpha*dense + (1-alpha)*lexical.
func (c *MemoryCorpus) HybridSearch(ctx context.Context, q HybridQuery) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Filters.Validate(); err != nil {
		return nil, err
	}
	query, err := c.prepareQuery(q.Vector)
	if err != nil {
		return nil, err
	}

	terms := QueryTerms(q.Keywords, q.Text)
	matches := c.scan(q.Filters, func(e CorpusEntry) Match {
		dense := similarity(query, e.Vector)
		lexical := LexicalScore(terms, e)
		return Match{Entry: e, Score: HybridScore(q.Alpha, dense, lexical), Dense: dense, Lexical: lexical}
	})
	return Rank(matches, c.search.MinHybridScore, q.Limit), nil
}

func (c *MemoryCorpus) prepareQuery(vector []float32) ([]float32, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: query vector is required", ErrInvalidQuery)
	}
	dim := c.Dimension()
	if dim != 0 && len(vector) != dim {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrVectorDimensionMismatch, dim, len(vector))
	}
	return normalizeVector(vector), nil
}

// scan scores every entry matching filters under the read lock.
func (c *MemoryCorpus) scan(filters Filters, score func(CorpusEntry) Match) []Match {
	c.mu.RLock()
	defer c.mu.RUnlock()

	matches := make([]Match, 0, len(c.entries))
	for _, e := range c.entries {
		if !matchesFilters(e, filters) {
			continue
		}
		matches = append(matches, score(e))
	}
	return matches
}

// matchesFilters checks if an entry matches the given filters.
func matchesFilters(e CorpusEntry, filters Filters) bool {
	if e.BrandChannel != filters.BrandChannel {
		return false
	}
	if filters.Category != "" && e.Category != filters.Category {
		return false
	}
	return true
}

// similarity is 1 - cosine distance of two normalized vectors, clamped to [0, 1].
func similarity(a, b []float32) float64 {
	return clamp01(1 - cosineDistance(a, b))
}

// cosineDistance computes cosine distance between two normalized vectors.
// For normalized vectors: distance = 1 - dot(a, b)
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1.0
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}

	// Clamp to [-1, 1] range due to floating point errors
	return 1 - math.Max(-1, math.Min(1, dot))
}

// normalizeVector returns a unit vector.
func normalizeVector(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)

	normalized := make([]float32, len(v))
	if norm == 0 {
		return normalized
	}
	for i, x := range v {
		normalized[i] = float32(float64(x) / norm)
	}
	return normalized
}

var (
	_ Corpus         = (*MemoryCorpus)(nil)
	_ ModelInventory = (*MemoryCorpus)(nil)
)
