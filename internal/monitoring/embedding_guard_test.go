package monitoring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BOSEON-SEO/CSAI/internal/inquiry"
	"github.com/BOSEON-SEO/CSAI/internal/retrieval"
)

type inventory map[string]int

func (i inventory) EmbeddingModels(context.Context) (map[string]int, error) {
	return i, nil
}

type brokenInventory struct{}

func (brokenInventory) EmbeddingModels(context.Context) (map[string]int, error) {
	return nil, retrieval.ErrCorpusUnavailable
}

func TestEmbeddingGuard_Check(t *testing.T) {
	g := NewEmbeddingGuard(nil, "ko-sroberta")

	report, err := g.Check(context.Background(), inventory{
		"ko-sroberta": 10,
		"":            2,
		"old-model":   3,
		"another":     1,
	})
	require.NoError(t, err)

	assert.Equal(t, 16, report.Total)
	assert.Equal(t, 2, report.Unrecorded)
	assert.False(t, report.OK())
	assert.Equal(t, []ModelMismatch{
		{Model: "another", Entries: 1},
		{Model: "old-model", Entries: 3},
	}, report.Mismatches)
}

func TestEmbeddingGuard_PreventMixedModelQueries(t *testing.T) {
	ctx := context.Background()
	g := NewEmbeddingGuard(nil, "ko-sroberta")

	assert.NoError(t, g.PreventMixedModelQueries(ctx, inventory{}))
	assert.NoError(t, g.PreventMixedModelQueries(ctx, inventory{"ko-sroberta": 4, "": 1}))

	err := g.PreventMixedModelQueries(ctx, inventory{"ko-sroberta": 4, "old-model": 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMixedEmbeddingModels))
	assert.Contains(t, err.Error(), "old-model (3 entries)")
}

func TestEmbeddingGuard_InventoryFailure(t *testing.T) {
	g := NewEmbeddingGuard(nil, "ko-sroberta")

	err := g.PreventMixedModelQueries(context.Background(), brokenInventory{})
	assert.ErrorIs(t, err, retrieval.ErrCorpusUnavailable)
}

func TestEmbeddingGuard_MemoryCorpus(t *testing.T) {
	ctx := context.Background()
	corpus := retrieval.NewMemoryCorpus(2, retrieval.DefaultSearchConfig())
	require.NoError(t, corpus.Insert(ctx, []retrieval.CorpusEntry{
		{InquiryID: "a", BrandChannel: inquiry.BrandKeychron, EmbeddingModel: "hash-embedding", Vector: []float32{1, 0}},
		{InquiryID: "b", BrandChannel: inquiry.BrandKeychron, EmbeddingModel: "hash-embedding", Vector: []float32{0, 1}},
	}))

	assert.NoError(t, NewEmbeddingGuard(nil, "hash-embedding").PreventMixedModelQueries(ctx, corpus))
	assert.ErrorIs(t, NewEmbeddingGuard(nil, "ko-sroberta").PreventMixedModelQueries(ctx, corpus), ErrMixedEmbeddingModels)
}
