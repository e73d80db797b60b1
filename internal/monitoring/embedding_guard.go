// Package monitoring provides embedding model guardrails for the corpus.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BOSEON-SEO/CSAI/internal/observability"
	"github.com/BOSEON-SEO/CSAI/internal/retrieval"
)

// ErrMixedEmbeddingModels indicates corpus vectors produced by a model other
// than the one embedding queries. Similarities across models are meaningless.
var ErrMixedEmbeddingModels = errors.New("corpus embedded with a different model")

// EmbeddingGuard detects corpus entries embedded with a model other than the
// current one.
type EmbeddingGuard struct {
	logger       *observability.Logger
	currentModel string
}

// ModelMismatch is a foreign model found in the corpus.
type ModelMismatch struct {
	Model   string `json:"model"`
	Entries int    `json:"entries"`
}

// GuardReport summarizes one check.
type GuardReport struct {
	CurrentModel string          `json:"current_model"`
	Total        int             `json:"total"`
	Unrecorded   int             `json:"unrecorded"` // entries indexed without a model name
	Mismatches   []ModelMismatch `json:"mismatches"`
	CheckedAt    time.Time       `json:"checked_at"`
}

// OK reports whether every recorded model matches the current one.
func (r *GuardReport) OK() bool {
	return len(r.Mismatches) == 0
}

// NewEmbeddingGuard creates a guard for the given query model.
func NewEmbeddingGuard(logger *observability.Logger, currentModel string) *EmbeddingGuard {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &EmbeddingGuard{logger: logger, currentModel: currentModel}
}

// Check counts corpus entries per embedding model.
func (g *EmbeddingGuard) Check(ctx context.Context, inv retrieval.ModelInventory) (*GuardReport, error) {
	models, err := inv.EmbeddingModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list embedding models: %w", err)
	}

	report := &GuardReport{
		CurrentModel: g.currentModel,
		Mismatches:   []ModelMismatch{},
		CheckedAt:    time.Now(),
	}
	for model, n := range models {
		report.Total += n
		switch model {
		case "":
			report.Unrecorded += n
		case g.currentModel:
		default:
			report.Mismatches = append(report.Mismatches, ModelMismatch{Model: model, Entries: n})
		}
	}
	sort.Slice(report.Mismatches, func(i, j int) bool {
		return report.Mismatches[i].Model < report.Mismatches[j].Model
	})

	g.logger.Info().
		Str("current_model", g.currentModel).
		Int("entries", report.Total).
		Int("mismatches_found", len(report.Mismatches)).
		Msg("Embedding model check completed")

	return report, nil
}

// PreventMixedModelQueries fails when any corpus entry was embedded with a
// different model. Entries without a recorded model are only warned about.
func (g *EmbeddingGuard) PreventMixedModelQueries(ctx context.Context, inv retrieval.ModelInventory) error {
	report, err := g.Check(ctx, inv)
	if err != nil {
		return err
	}

	if report.Unrecorded > 0 {
		g.logger.Warn().
			Int("entries", report.Unrecorded).
			Msg("Corpus entries without a recorded embedding model")
	}

	if !report.OK() {
		foreign := make([]string, 0, len(report.Mismatches))
		for _, m := range report.Mismatches {
			foreign = append(foreign, fmt.Sprintf("%s (%d entries)", m.Model, m.Entries))
		}
		return fmt.Errorf("%w: query model %s, corpus has %s: queries blocked until re-embedding completes",
			ErrMixedEmbeddingModels, g.currentModel, strings.Join(foreign, ", "))
	}
	return nil
}
