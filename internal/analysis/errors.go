package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/BOSEON-SEO/CSAI/internal/embedding"
)

// Kind classifies analysis failures.
type Kind string

const (
	KindInvalidInput         Kind = "invalid_input"
	KindEmbeddingUnavailable Kind = "embedding_unavailable"
	KindCorpusUnavailable    Kind = "corpus_unavailable"
	KindModelLoadFailure     Kind = "model_load_failure"
	KindCanceled             Kind = "canceled"
)

// Stage is a step of the analysis pipeline.
type Stage string

const (
	StageStartup    Stage = "startup"
	StageValidating Stage = "validating"
	StageExtracting Stage = "extracting"
	StageEmbedding  Stage = "embedding"
	StageRetrieving Stage = "retrieving"
	StageScoring    Stage = "scoring"
	StageDone       Stage = "done"
)

// Error is returned for an inquiry that could not be analysed.
type Error struct {
	Kind      Kind
	InquiryID string
	Stage     Stage
	Err       error
}

func (e *Error) Error() string {
	if e.InquiryID == "" {
		return fmt.Sprintf("%s during %s: %v", e.Kind, e.Stage, e.Err)
	}
	return fmt.Sprintf("inquiry %s: %s during %s: %v", e.InquiryID, e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var aerr *Error
	return errors.As(err, &aerr) && aerr.Kind == kind
}

func canceled(inquiryID string, stage Stage, err error) *Error {
	return &Error{Kind: KindCanceled, InquiryID: inquiryID, Stage: stage, Err: err}
}

// CheckModel probes the embedding model once at startup. A failure is a
// KindModelLoadFailure error and should stop the process.
func CheckModel(ctx context.Context, e embedding.Embedder) error {
	if err := embedding.Probe(ctx, e); err != nil {
		if ctx.Err() != nil {
			return canceled("", StageStartup, ctx.Err())
		}
		return &Error{Kind: KindModelLoadFailure, Stage: StageStartup, Err: err}
	}
	return nil
}
