// Package retrieval finds prior answered inquiries similar to a new one.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BOSEON-SEO/CSAI/internal/inquiry"
)

// Default search settings.
const (
	DefaultLimit          = 5
	DefaultAlpha          = 0.5
	DefaultMinHybridScore = 0.5
	DefaultMinDenseScore  = 0.65
)

var (
	// ErrCorpusUnavailable indicates the corpus backend failed to answer.
	ErrCorpusUnavailable = errors.New("corpus unavailable")
	// ErrInvalidQuery indicates a malformed search request.
	ErrInvalidQuery = errors.New("invalid corpus query")
	// ErrVectorDimensionMismatch indicates a dimension mismatch.
	ErrVectorDimensionMismatch = errors.New("vector dimension mismatch")
)

// Corpus searches previously answered inquiries. Implementations must be
// safe for concurrent use.
type Corpus interface {
	// DenseSearch ranks entries by vector similarity alone.
	DenseSearch(ctx context.Context, vector []float32, filters Filters, limit int) ([]Match, error)

	// HybridSearch ranks entries by a blend of vector and keyword similarity.
	HybridSearch(ctx context.Context, q HybridQuery) ([]Match, error)
}

// CorpusEntry is one prior inquiry with its answer.
type CorpusEntry struct {
	ID             uuid.UUID            `json:"id"`
	InquiryID      string               `json:"inquiry_id"`
	BrandChannel   inquiry.BrandChannel `json:"brand_channel"`
	Category       string               `json:"category"`
	Title          string               `json:"title"`
	Content        string               `json:"content"`
	AnswerContent  string               `json:"answer_content,omitempty"`
	ProductName    string               `json:"product_name,omitempty"`
	EmbeddingModel string               `json:"embedding_model,omitempty"` // model that produced Vector
	Vector         []float32            `json:"-"`
	CreatedAt      time.Time            `json:"created_at"`
}

// ModelInventory reports which embedding models produced the stored vectors,
// keyed by model name with entry counts. Entries indexed without a recorded
// model are counted under "".
type ModelInventory interface {
	EmbeddingModels(ctx context.Context) (map[string]int, error)
}

// Filters scope a search. BrandChannel is required; an empty Category
// matches every category.
type Filters struct {
	BrandChannel inquiry.BrandChannel
	Category     string
}

// Validate checks the filter is usable.
func (f Filters) Validate() error {
	if f.BrandChannel == "" {
		return fmt.Errorf("%w: brand channel is required", ErrInvalidQuery)
	}
	return nil
}

// HybridQuery describes a hybrid search. Alpha weights the dense score:
// 1 is pure vector search and 0 is pure keyword search. Alpha 1 ranks like
// DenseSearch but keeps matches down to MinHybridScore instead of
// MinDenseScore, so it can return a longer list.
type HybridQuery struct {
	Text     string
	Vector   []float32
	Keywords []string
	Filters  Filters
	Limit    int
	Alpha    float64
}

// Match is a scored corpus entry. Score is the ranking score; Dense and
// Lexical are its components.
type Match struct {
	Entry   CorpusEntry `json:"entry"`
	Score   float64     `json:"score"`
	Dense   float64     `json:"dense"`
	Lexical float64     `json:"lexical"`
}

// SearchConfig holds the relevance floors applied after ranking.
type SearchConfig struct {
	MinHybridScore float64 `yaml:"min_hybrid_score"`
	MinDenseScore  float64 `yaml:"min_dense_score"`
}

// DefaultSearchConfig returns the default relevance floors.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		MinHybridScore: DefaultMinHybridScore,
		MinDenseScore:  DefaultMinDenseScore,
	}
}

// HybridScore blends dense and lexical similarity. alpha is clamped to [0, 1].
func HybridScore(alpha, dense, lexical float64) float64 {
	alpha = clamp01(alpha)
	return clamp01(alpha*dense + (1-alpha)*lexical)
}

// QueryTerms returns the lower-cased distinct terms used for lexical scoring:
// the keywords when present, otherwise the whitespace tokens of text.
func QueryTerms(keywords []string, text string) []string {
	src := keywords
	if len(src) == 0 {
		src = strings.Fields(text)
	}
	seen := make(map[string]struct{}, len(src))
	terms := make([]string, 0, len(src))
	for _, k := range src {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		terms = append(terms, k)
	}
	return terms
}

// LexicalScore is the fraction of terms contained in the entry's title,
// content, answer and product name. terms must already be lower-cased.
func LexicalScore(terms []string, e CorpusEntry) float64 {
	if len(terms) == 0 {
		return 0
	}
	haystack := strings.ToLower(strings.Join([]string{e.Title, e.Content, e.AnswerContent, e.ProductName}, " "))
	hits := 0
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

// Rank orders matches by score descending, then recency, then ID, drops those
// below minScore and truncates to limit.
func Rank(matches []Match, minScore float64, limit int) []Match {
	if limit <= 0 {
		limit = DefaultLimit
	}
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Entry.CreatedAt.Equal(b.Entry.CreatedAt) {
			return a.Entry.CreatedAt.After(b.Entry.CreatedAt)
		}
		return a.Entry.ID.String() < b.Entry.ID.String()
	})

	out := make([]Match, 0, limit)
	for _, m := range matches {
		if m.Score < minScore {
			break
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out
}

// unavailable wraps a backend failure. Caller cancellation is returned as is.
func unavailable(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return fmt.Errorf("%w: %s: %v", ErrCorpusUnavailable, op, err)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
