package analysis

import (
	"fmt"
	"strings"

	"github.com/BOSEON-SEO/CSAI/internal/features"
	"github.com/BOSEON-SEO/CSAI/internal/retrieval"
)

// RetrievalOutcome tells a genuine miss apart from a corpus outage. Both lead
// to the same escalation.
type RetrievalOutcome string

const (
	OutcomeMatched           RetrievalOutcome = "matched"
	OutcomeNoPrecedent       RetrievalOutcome = "no_precedent"
	OutcomeCorpusUnavailable RetrievalOutcome = "corpus_unavailable"
	OutcomeSkippedEmpty      RetrievalOutcome = "skipped_empty_content"
)

// Result is the analysis of one inquiry.
type Result struct {
	InquiryID        string                     `json:"inquiry_id"`
	TraceID          string                     `json:"trace_id"`
	Category         string                     `json:"category"`
	Features         features.ExtractedFeatures `json:"features"`
	Matches          []retrieval.Match          `json:"matches"`
	Confidence       float64                    `json:"confidence"`
	ShouldEscalate   bool                       `json:"should_escalate"`
	EscalateReason   *string                    `json:"escalate_reason,omitempty"`
	RetrievalOutcome RetrievalOutcome           `json:"retrieval_outcome"`
}

// BatchItem is the outcome for one inquiry of a batch. Exactly one of Result
// and Err is set.
type BatchItem struct {
	InquiryID string  `json:"inquiry_id"`
	Result    *Result `json:"result,omitempty"`
	Err       *Error  `json:"-"`
}

const rule = "======================================================================"

// FormatResult renders a result as a human-readable report.
func FormatResult(r *Result) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line(rule)
	line("Inquiry %s", r.InquiryID)
	line(rule)
	line("")
	line("Keywords:       %s", joinOr(r.Features.Keywords, "-"))
	line("Product codes:  %s", joinOr(r.Features.ProductCodes, "N/A"))
	if r.Features.ProductColor != nil {
		line("Color:          %s", *r.Features.ProductColor)
	}
	if r.Features.ProductVariant != nil {
		line("Variant:        %s", *r.Features.ProductVariant)
	}
	line("Technical:      %s", joinOr(r.Features.TechnicalTerms, "-"))
	line("Category:       %s", orDash(r.Category))
	line("Complexity:     %.2f", r.Features.ComplexityScore)
	line("")
	line("Similar inquiries: %d (%s)", len(r.Matches), r.RetrievalOutcome)
	for i, m := range r.Matches {
		if i == 3 {
			break
		}
		line("  [%d] score %.2f: %s", i+1, m.Score, orDash(m.Entry.Title))
	}
	line("")
	line("Confidence:     %.2f", r.Confidence)
	if r.ShouldEscalate {
		line("Escalate:       yes")
		if r.EscalateReason != nil {
			line("  reason: %s", *r.EscalateReason)
		}
	} else {
		line("Escalate:       no")
	}
	line(rule)
	return b.String()
}

func joinOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
