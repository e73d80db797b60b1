package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BOSEON-SEO/CSAI/internal/confidence"
	"github.com/BOSEON-SEO/CSAI/internal/embedding"
	"github.com/BOSEON-SEO/CSAI/internal/features"
	"github.com/BOSEON-SEO/CSAI/internal/inquiry"
	"github.com/BOSEON-SEO/CSAI/internal/observability"
	"github.com/BOSEON-SEO/CSAI/internal/retrieval"
)

type fakeCorpus struct {
	mu      sync.Mutex
	matches []retrieval.Match
	err     error
	queries []retrieval.HybridQuery
}

func (f *fakeCorpus) DenseSearch(context.Context, []float32, retrieval.Filters, int) ([]retrieval.Match, error) {
	return nil, errors.New("not used")
}

func (f *fakeCorpus) HybridSearch(ctx context.Context, q retrieval.HybridQuery) ([]retrieval.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return append([]retrieval.Match(nil), f.matches...), nil
}

func (f *fakeCorpus) lastQuery() retrieval.HybridQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

type fakeEmbedder struct {
	*embedding.HashEmbedder
	err   error
	calls atomic.Int32
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.HashEmbedder.EmbedSingle(ctx, text)
}

// fixedComplexity runs the real extractor and overrides the complexity score.
type fixedComplexity struct {
	inner *features.Extractor
	score float64
}

func (f fixedComplexity) Extract(ctx context.Context, rec inquiry.Record) features.ExtractedFeatures {
	out := f.inner.Extract(ctx, rec)
	out.ComplexityScore = f.score
	return out
}

func scored(values ...float64) []retrieval.Match {
	out := make([]retrieval.Match, len(values))
	for i, v := range values {
		out[i] = retrieval.Match{
			Entry: retrieval.CorpusEntry{InquiryID: fmt.Sprintf("prior-%d", i), Title: fmt.Sprintf("prior %d", i)},
			Score: v,
		}
	}
	return out
}

func record(id, category, content string) inquiry.Record {
	return inquiry.Record{
		InquiryID:    id,
		BrandChannel: inquiry.BrandKeychron,
		Category:     category,
		Content:      content,
	}
}

type fixture struct {
	analyzer *Analyzer
	corpus   *fakeCorpus
	embedder *fakeEmbedder
	metrics  *observability.Metrics
}

func newFixture(t *testing.T, extractor FeatureExtractor) *fixture {
	t.Helper()
	if extractor == nil {
		extractor = features.NewExtractor()
	}
	metrics, err := observability.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	f := &fixture{
		corpus:   &fakeCorpus{},
		embedder: &fakeEmbedder{HashEmbedder: embedding.NewHashEmbedder(32)},
		metrics:  metrics,
	}
	f.analyzer = NewAnalyzer(extractor, f.embedder, f.corpus,
		confidence.NewEvaluator(confidence.DefaultThresholds()),
		WithMetrics(metrics),
		WithConfig(Config{KeywordLimit: 5, MatchLimit: 5, Alpha: 0.5, BatchWorkers: 2}),
	)
	return f
}

func TestAnalyze_SpecialistInquiryEscalatesDespiteStrongPrecedent(t *testing.T) {
	f := newFixture(t, fixedComplexity{inner: features.NewExtractor(), score: 0.75})
	f.corpus.matches = scored(0.9, 0.85, 0.8)

	res, err := f.analyzer.Analyze(context.Background(), record("313605440", "상품", "K10 PRO MAX 키보드 블루투스가 안 연결돼요"))
	require.NoError(t, err)

	assert.Equal(t, []string{"K10", "PRO MAX"}, res.Features.ProductCodes)
	assert.Contains(t, res.Features.TechnicalTerms, "블루투스")
	assert.Len(t, res.Matches, 3)
	assert.Equal(t, OutcomeMatched, res.RetrievalOutcome)
	assert.True(t, res.ShouldEscalate)
	require.NotNil(t, res.EscalateReason)
	assert.Equal(t, confidence.ReasonSpecialist, *res.EscalateReason)
	assert.InDelta(t, 0.85*(1-0.75*0.3), res.Confidence, 1e-9)
	assert.NotEmpty(t, res.TraceID)

	q := f.corpus.lastQuery()
	assert.Equal(t, []string{"K10", "PRO", "MAX", "키보드", "블루투스"}, q.Keywords)
	assert.Equal(t, inquiry.BrandKeychron, q.Filters.BrandChannel)
	assert.Equal(t, "상품", q.Filters.Category)
	assert.Equal(t, 5, q.Limit)
	assert.Equal(t, 0.5, q.Alpha)
	assert.Len(t, q.Vector, 32)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Escalations().WithLabelValues(confidence.ReasonSpecialist)))
}

func TestAnalyze_ShortQuestionWithoutPrecedent(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.analyzer.Analyze(context.Background(), record("313605441", "배송", "배송 언제 오나요?"))
	require.NoError(t, err)

	assert.Less(t, res.Features.ComplexityScore, 0.1)
	assert.Empty(t, res.Matches)
	assert.NotNil(t, res.Matches)
	assert.Equal(t, 0.0, res.Confidence)
	assert.True(t, res.ShouldEscalate)
	require.NotNil(t, res.EscalateReason)
	assert.Equal(t, confidence.ReasonNoPrecedent, *res.EscalateReason)
	assert.Equal(t, OutcomeNoPrecedent, res.RetrievalOutcome)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RetrievalOutcomes().WithLabelValues(string(OutcomeNoPrecedent))))
}

func TestAnalyze_CorpusOutageFallsBackToZeroMatches(t *testing.T) {
	f := newFixture(t, nil)
	f.corpus.err = fmt.Errorf("%w: dial tcp: connection refused", retrieval.ErrCorpusUnavailable)

	res, err := f.analyzer.Analyze(context.Background(), record("313605442", "상품", "펌웨어 업데이트 후 인식이 안돼요"))
	require.NoError(t, err)

	assert.Empty(t, res.Matches)
	assert.Equal(t, 0.0, res.Confidence)
	assert.True(t, res.ShouldEscalate)
	require.NotNil(t, res.EscalateReason)
	assert.Equal(t, confidence.ReasonNoPrecedent, *res.EscalateReason)
	assert.Equal(t, OutcomeCorpusUnavailable, res.RetrievalOutcome)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.RetrievalOutcomes().WithLabelValues(string(OutcomeCorpusUnavailable))))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.RetrievalOutcomes().WithLabelValues(string(OutcomeNoPrecedent))))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Analyses().WithLabelValues("ok")))
}

func TestAnalyze_AnswerableInquiry(t *testing.T) {
	f := newFixture(t, nil)
	f.corpus.matches = scored(0.9, 0.85)

	res, err := f.analyzer.Analyze(context.Background(), record("313605443", "배송", "배송 언제 오나요?"))
	require.NoError(t, err)

	assert.False(t, res.ShouldEscalate)
	assert.Nil(t, res.EscalateReason)
	assert.Greater(t, res.Confidence, 0.8)
	assert.Equal(t, OutcomeMatched, res.RetrievalOutcome)
}

func TestAnalyze_CatchAllCategoryIsNotFiltered(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.analyzer.Analyze(context.Background(), record("313605444", inquiry.CategoryOther, "키캡 교환 가능한가요?"))
	require.NoError(t, err)
	assert.Equal(t, "", f.corpus.lastQuery().Filters.Category)
}

func TestAnalyze_EmptyContentSkipsRetrieval(t *testing.T) {
	f := newFixture(t, nil)
	rec := record("313605445", "상품", "  ")
	rec.Title = "K10 문의"

	res, err := f.analyzer.Analyze(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSkippedEmpty, res.RetrievalOutcome)
	assert.Zero(t, res.Features.ComplexityScore)
	assert.Empty(t, res.Features.Keywords)
	assert.True(t, res.ShouldEscalate)
	assert.Equal(t, int32(0), f.embedder.calls.Load())
	assert.Empty(t, f.corpus.queries)
}

func TestAnalyze_EmbeddingFailureIsFatal(t *testing.T) {
	f := newFixture(t, nil)
	f.embedder.err = fmt.Errorf("%w: status 503", embedding.ErrEmbeddingUnavailable)

	res, err := f.analyzer.Analyze(context.Background(), record("313605446", "상품", "블루투스 연결 문의"))
	require.Error(t, err)
	assert.Nil(t, res)

	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, KindEmbeddingUnavailable, aerr.Kind)
	assert.Equal(t, "313605446", aerr.InquiryID)
	assert.Equal(t, StageEmbedding, aerr.Stage)
	assert.ErrorIs(t, err, embedding.ErrEmbeddingUnavailable)
	assert.Empty(t, f.corpus.queries)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Analyses().WithLabelValues(string(KindEmbeddingUnavailable))))
}

func TestAnalyze_InvalidInput(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.analyzer.Analyze(context.Background(), inquiry.Record{InquiryID: "x", BrandChannel: "UNKNOWN", Content: "배송"})
	assert.True(t, IsKind(err, KindInvalidInput))
	assert.ErrorIs(t, err, inquiry.ErrInvalidRecord)

	_, err = f.analyzer.Analyze(context.Background(), inquiry.Record{BrandChannel: inquiry.BrandAiper, Content: "배송"})
	assert.True(t, IsKind(err, KindInvalidInput))
}

func TestAnalyze_Canceled(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.analyzer.Analyze(ctx, record("313605447", "상품", "블루투스 연결 문의"))
	assert.True(t, IsKind(err, KindCanceled))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyze_CorpusCancellationIsNotAnOutage(t *testing.T) {
	f := newFixture(t, nil)
	f.corpus.err = context.Canceled

	_, err := f.analyzer.Analyze(context.Background(), record("313605448", "상품", "블루투스 연결 문의"))
	assert.True(t, IsKind(err, KindCanceled))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.RetrievalOutcomes().WithLabelValues(string(OutcomeCorpusUnavailable))))
}

func TestAnalyzeBatch_PreservesOrderAndIsolatesFailures(t *testing.T) {
	f := newFixture(t, nil)
	f.corpus.matches = scored(0.9, 0.85)

	records := []inquiry.Record{
		record("a", "배송", "배송 언제 오나요?"),
		{InquiryID: "b", BrandChannel: "UNKNOWN", Content: "배송"},
		record("c", "상품", "  "),
		record("d", "상품", "교환 문의드립니다."),
		record("e", "배송", "주문 취소 가능한가요?"),
	}

	items := f.analyzer.AnalyzeBatch(context.Background(), records)
	require.Len(t, items, len(records))

	for i, item := range items {
		assert.Equal(t, records[i].InquiryID, item.InquiryID)
		assert.True(t, (item.Result == nil) != (item.Err == nil), "exactly one of result and error for %s", item.InquiryID)
	}
	require.NotNil(t, items[1].Err)
	assert.Equal(t, KindInvalidInput, items[1].Err.Kind)
	assert.Equal(t, OutcomeSkippedEmpty, items[2].Result.RetrievalOutcome)
	assert.Equal(t, "d", items[3].Result.InquiryID)
	assert.Equal(t, OutcomeMatched, items[4].Result.RetrievalOutcome)
}

func TestAnalyzeBatch_Empty(t *testing.T) {
	f := newFixture(t, nil)
	assert.Empty(t, f.analyzer.AnalyzeBatch(context.Background(), nil))
}

func TestCheckModel(t *testing.T) {
	require.NoError(t, CheckModel(context.Background(), embedding.NewHashEmbedder(8)))

	broken := &fakeEmbedder{HashEmbedder: embedding.NewHashEmbedder(8), err: errors.New("weights missing")}
	err := CheckModel(context.Background(), broken)
	assert.True(t, IsKind(err, KindModelLoadFailure))
	assert.ErrorIs(t, err, embedding.ErrModelLoad)
}
