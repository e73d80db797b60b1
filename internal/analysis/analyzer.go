// Package analysis runs the inquiry analysis pipeline: feature extraction,
// embedding, precedent retrieval and confidence gating.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/BOSEON-SEO/CSAI/internal/confidence"
	"github.com/BOSEON-SEO/CSAI/internal/embedding"
	"github.com/BOSEON-SEO/CSAI/internal/features"
	"github.com/BOSEON-SEO/CSAI/internal/inquiry"
	"github.com/BOSEON-SEO/CSAI/internal/observability"
	"github.com/BOSEON-SEO/CSAI/internal/retrieval"
)

// FeatureExtractor derives signals from an inquiry.
type FeatureExtractor interface {
	Extract(ctx context.Context, rec inquiry.Record) features.ExtractedFeatures
}

// DecisionMaker gates automatic answering.
type DecisionMaker interface {
	Evaluate(matches []retrieval.Match, complexity float64) confidence.Decision
}

// Config holds pipeline parameters.
type Config struct {
	KeywordLimit int     `yaml:"keyword_limit"` // keywords passed to hybrid search
	MatchLimit   int     `yaml:"match_limit"`
	Alpha        float64 `yaml:"alpha"`         // dense weight of the hybrid score
	BatchWorkers int     `yaml:"batch_workers"` // concurrent inquiries in AnalyzeBatch
}

// DefaultConfig returns the default pipeline parameters.
func DefaultConfig() Config {
	return Config{
		KeywordLimit: 5,
		MatchLimit:   retrieval.DefaultLimit,
		Alpha:        retrieval.DefaultAlpha,
		BatchWorkers: 4,
	}
}

// Analyzer wires the pipeline collaborators. It holds no per-inquiry state and
// is safe for concurrent use.
type Analyzer struct {
	extractor FeatureExtractor
	embedder  embedding.Embedder
	corpus    retrieval.Corpus
	evaluator DecisionMaker
	cfg       Config
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithConfig sets the pipeline parameters.
func WithConfig(cfg Config) Option {
	return func(a *Analyzer) { a.cfg = cfg }
}

// NewAnalyzer creates an analyzer from its collaborators.
func NewAnalyzer(
	extractor FeatureExtractor,
	embedder embedding.Embedder,
	corpus retrieval.Corpus,
	evaluator DecisionMaker,
	opts ...Option,
) *Analyzer {
	a := &Analyzer{
		extractor: extractor,
		embedder:  embedder,
		corpus:    corpus,
		evaluator: evaluator,
		cfg:       DefaultConfig(),
		logger:    observability.NopLogger(),
		metrics:   observability.NopMetrics(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.cfg.KeywordLimit <= 0 {
		a.cfg.KeywordLimit = DefaultConfig().KeywordLimit
	}
	if a.cfg.MatchLimit <= 0 {
		a.cfg.MatchLimit = retrieval.DefaultLimit
	}
	if a.cfg.BatchWorkers <= 0 {
		a.cfg.BatchWorkers = DefaultConfig().BatchWorkers
	}
	return a
}

// Analyze runs the pipeline for one inquiry. A corpus outage is recovered
// locally and yields an escalated result; invalid input, an embedding
// failure or cancellation returns an *Error.
func (a *Analyzer) Analyze(ctx context.Context, rec inquiry.Record) (*Result, error) {
	res, err := a.run(ctx, rec)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// run analyses one inquiry and records the outcome metrics.
func (a *Analyzer) run(ctx context.Context, rec inquiry.Record) (*Result, *Error) {
	res, err := a.analyze(ctx, rec)
	if err != nil {
		a.metrics.ObserveAnalysis(string(err.Kind))
		return nil, err
	}
	a.metrics.ObserveAnalysis("ok")
	a.metrics.ObserveRetrieval(string(res.RetrievalOutcome))
	if res.ShouldEscalate && res.EscalateReason != nil {
		a.metrics.ObserveEscalation(*res.EscalateReason)
	}
	return res, nil
}

func (a *Analyzer) analyze(ctx context.Context, rec inquiry.Record) (*Result, *Error) {
	if err := rec.Validate(); err != nil {
		return nil, &Error{Kind: KindInvalidInput, InquiryID: rec.InquiryID, Stage: StageValidating, Err: err}
	}

	traceID := uuid.NewString()
	ctx = observability.WithTraceID(ctx, traceID)
	log := a.logger.WithContext(ctx).WithInquiry(rec.InquiryID, string(rec.BrandChannel))

	if err := ctx.Err(); err != nil {
		return nil, canceled(rec.InquiryID, StageExtracting, err)
	}

	start := time.Now()
	feats := a.extractor.Extract(ctx, rec)
	a.metrics.ObserveStage(string(StageExtracting), start)
	if err := ctx.Err(); err != nil {
		return nil, canceled(rec.InquiryID, StageExtracting, err)
	}

	res := &Result{
		InquiryID: rec.InquiryID,
		TraceID:   traceID,
		Category:  rec.Category,
		Features:  feats,
		Matches:   []retrieval.Match{},
	}

	if !rec.HasContent() {
		res.RetrievalOutcome = OutcomeSkippedEmpty
		a.decide(res, log)
		return res, nil
	}

	start = time.Now()
	vector, err := a.embedder.EmbedSingle(ctx, rec.Content)
	a.metrics.ObserveStage(string(StageEmbedding), start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, canceled(rec.InquiryID, StageEmbedding, ctx.Err())
		}
		log.Error().Err(err).Stage(string(StageEmbedding)).Msg("Embedding failed")
		return nil, &Error{Kind: KindEmbeddingUnavailable, InquiryID: rec.InquiryID, Stage: StageEmbedding, Err: err}
	}

	start = time.Now()
	matches, err := a.corpus.HybridSearch(ctx, retrieval.HybridQuery{
		Text:     rec.Content,
		Vector:   vector,
		Keywords: head(feats.Keywords, a.cfg.KeywordLimit),
		Filters: retrieval.Filters{
			BrandChannel: rec.BrandChannel,
			Category:     rec.CategoryFilter(),
		},
		Limit: a.cfg.MatchLimit,
		Alpha: a.cfg.Alpha,
	})
	a.metrics.ObserveStage(string(StageRetrieving), start)

	switch {
	case err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled)):
		return nil, canceled(rec.InquiryID, StageRetrieving, err)
	case err != nil:
		res.RetrievalOutcome = OutcomeCorpusUnavailable
		log.Warn().Err(err).
			Stage(string(StageRetrieving)).
			Outcome(string(res.RetrievalOutcome)).
			Msg("Corpus unavailable, escalating without precedent")
	case len(matches) == 0:
		res.RetrievalOutcome = OutcomeNoPrecedent
		log.Info().Outcome(string(res.RetrievalOutcome)).Msg("No similar precedent")
	default:
		res.RetrievalOutcome = OutcomeMatched
		res.Matches = matches
	}

	a.decide(res, log)
	return res, nil
}

func (a *Analyzer) decide(res *Result, log *observability.Logger) {
	start := time.Now()
	d := a.evaluator.Evaluate(res.Matches, res.Features.ComplexityScore)
	a.metrics.ObserveStage(string(StageScoring), start)

	res.Confidence = d.Confidence
	res.ShouldEscalate = d.ShouldEscalate
	res.EscalateReason = d.Reason

	log.Info().
		Stage(string(StageDone)).
		Outcome(string(res.RetrievalOutcome)).
		Int("matches", len(res.Matches)).
		Float64("complexity", res.Features.ComplexityScore).
		Float64("confidence", res.Confidence).
		Bool("escalate", res.ShouldEscalate).
		Reason(res.EscalateReason).
		Msg("Inquiry analysed")
}

func head(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
