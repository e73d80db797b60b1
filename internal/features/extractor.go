// Package features extracts structured signals from free-text customer inquiries.
package features

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/BOSEON-SEO/CSAI/internal/inquiry"
	"github.com/BOSEON-SEO/CSAI/internal/observability"
)

// MaxKeywords caps the keyword list.
const MaxKeywords = 10

// ExtractedFeatures are the signals derived from one inquiry. Built once and
// never mutated afterwards.
type ExtractedFeatures struct {
	Keywords        []string `json:"keywords"`
	ProductCodes    []string `json:"product_codes"`
	ProductColor    *string  `json:"product_color,omitempty"`
	ProductVariant  *string  `json:"product_variant,omitempty"`
	TechnicalTerms  []string `json:"technical_terms"`
	ComplexityScore float64  `json:"complexity_score"`
}

// Empty returns a zero-signal feature set.
func Empty() ExtractedFeatures {
	return ExtractedFeatures{
		Keywords:       []string{},
		ProductCodes:   []string{},
		TechnicalTerms: []string{},
	}
}

// Extractor turns inquiry text into ExtractedFeatures.
type Extractor struct {
	tagger     Tagger
	fallback   Tagger
	patterns   *Patterns
	complexity ComplexityConfig
	logger     *observability.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithTagger sets the primary tagger. The built-in RuleTagger stays as fallback.
func WithTagger(t Tagger) Option {
	return func(e *Extractor) { e.tagger = t }
}

// WithPatterns overrides the recognition tables.
func WithPatterns(p *Patterns) Option {
	return func(e *Extractor) { e.patterns = p }
}

// WithComplexity overrides the complexity heuristic configuration.
func WithComplexity(c ComplexityConfig) Option {
	return func(e *Extractor) { e.complexity = c }
}

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor creates an extractor. Without options it uses the RuleTagger,
// the default pattern tables and the default complexity weights.
func NewExtractor(opts ...Option) *Extractor {
	rule := NewRuleTagger()
	e := &Extractor{
		tagger:     rule,
		fallback:   rule,
		patterns:   DefaultPatterns(),
		complexity: DefaultComplexityConfig(),
		logger:     observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract derives features from an inquiry. It does not fail: a blank content
// field yields empty collections and a zero complexity score, and a tagger
// outage degrades to the rule tagger.
func (e *Extractor) Extract(ctx context.Context, rec inquiry.Record) ExtractedFeatures {
	if !rec.HasContent() {
		return Empty()
	}

	working := workingText(rec)
	terms := e.TechnicalTerms(rec.Content)

	return ExtractedFeatures{
		Keywords:        e.Keywords(ctx, working),
		ProductCodes:    e.ProductCodes(working),
		ProductColor:    e.patterns.Colors.First(working),
		ProductVariant:  e.patterns.Variants.First(working),
		TechnicalTerms:  terms,
		ComplexityScore: Complexity(e.complexity, rec.Content, len(terms)),
	}
}

// workingText joins every free-text field so product descriptors given only in
// the title or order option are still recognised.
func workingText(rec inquiry.Record) string {
	parts := []string{rec.Title, rec.Content, rec.ProductName, rec.ProductOption}
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// Keywords returns up to MaxKeywords noun, proper-noun and verb tokens in
// first-seen order.
func (e *Extractor) Keywords(ctx context.Context, text string) []string {
	tokens, err := e.tagger.Tag(ctx, text)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Tagger failed, using rule tagger")
		tokens, _ = e.fallback.Tag(ctx, text)
	}

	seen := make(map[string]struct{}, len(tokens))
	keywords := make([]string, 0, MaxKeywords)
	for _, tok := range tokens {
		if tok.POS != POSNoun && tok.POS != POSPropNoun && tok.POS != POSVerb {
			continue
		}
		if utf8.RuneCountInString(tok.Text) <= 1 {
			continue
		}
		if _, dup := seen[tok.Text]; dup {
			continue
		}
		seen[tok.Text] = struct{}{}
		keywords = append(keywords, tok.Text)
		if len(keywords) == MaxKeywords {
			break
		}
	}
	return keywords
}

type codeMatch struct {
	start, end int
	code       string
}

// ProductCodes returns every distinct product code or series token in text,
// upper-cased, in order of first appearance. Overlapping matches are all
// kept, so "PRO SE2" yields both PRO SE2 and SE2; at the same position the
// longer match comes first.
func (e *Extractor) ProductCodes(text string) []string {
	var matches []codeMatch
	for _, re := range e.patterns.ProductCodes {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			matches = append(matches, codeMatch{
				start: loc[0],
				end:   loc[1],
				code:  strings.ToUpper(strings.Join(strings.Fields(text[loc[0]:loc[1]]), " ")),
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].start != matches[j].start {
			return matches[i].start < matches[j].start
		}
		return matches[i].end > matches[j].end
	})

	codes := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if _, dup := seen[m.code]; dup {
			continue
		}
		seen[m.code] = struct{}{}
		codes = append(codes, m.code)
	}
	return codes
}

// TechnicalTerms returns every vocabulary term contained in text.
func (e *Extractor) TechnicalTerms(text string) []string {
	lower := strings.ToLower(text)
	terms := make([]string, 0)
	for _, term := range e.patterns.TechnicalTerms {
		if strings.Contains(lower, strings.ToLower(term)) {
			terms = append(terms, term)
		}
	}
	return terms
}
