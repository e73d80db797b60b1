// Package confidence decides whether an inquiry can be answered automatically.
package confidence

import (
	"math"

	"github.com/BOSEON-SEO/CSAI/internal/retrieval"
)

// Escalation reasons.
const (
	ReasonNoPrecedent           = "no similar precedent found"
	ReasonSpecialist            = "requires specialist knowledge"
	ReasonInsufficientPrecedent = "insufficient precedent"
	ReasonLowConfidence         = "confidence below threshold"
)

// Thresholds holds the gating parameters.
type Thresholds struct {
	ComplexityPenalty    float64 `yaml:"complexity_penalty"`    // confidence = avg * (1 - complexity*penalty)
	SpecialistComplexity float64 `yaml:"specialist_complexity"` // escalate when complexity exceeds this
	MinAverageScore      float64 `yaml:"min_average_score"`     // escalate when the mean match score is below this
	MinConfidence        float64 `yaml:"min_confidence"`        // escalate when confidence is below this
}

// DefaultThresholds returns the default gating parameters.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ComplexityPenalty:    0.3,
		SpecialistComplexity: 0.7,
		MinAverageScore:      0.6,
		MinConfidence:        0.5,
	}
}

// Decision is the outcome of an evaluation. Reason is set iff ShouldEscalate.
type Decision struct {
	Confidence     float64 `json:"confidence"`
	ShouldEscalate bool    `json:"should_escalate"`
	Reason         *string `json:"escalate_reason,omitempty"`
}

// Evaluator turns retrieval evidence and inquiry complexity into a Decision.
type Evaluator struct {
	thresholds Thresholds
}

// NewEvaluator creates an evaluator.
func NewEvaluator(t Thresholds) *Evaluator {
	return &Evaluator{thresholds: t}
}

// Thresholds returns the evaluator's parameters.
func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds
}

// Evaluate scores the matches. The first failing rule sets the reason:
// specialist complexity, then weak precedent, then low confidence.
func (e *Evaluator) Evaluate(matches []retrieval.Match, complexity float64) Decision {
	if len(matches) == 0 {
		return Escalated(0, ReasonNoPrecedent)
	}

	var sum float64
	for _, m := range matches {
		sum += m.Score
	}
	avg := sum / float64(len(matches))

	confidence := clamp01(avg * (1 - complexity*e.thresholds.ComplexityPenalty))

	switch {
	case complexity > e.thresholds.SpecialistComplexity:
		return Escalated(confidence, ReasonSpecialist)
	case avg < e.thresholds.MinAverageScore:
		return Escalated(confidence, ReasonInsufficientPrecedent)
	case confidence < e.thresholds.MinConfidence:
		return Escalated(confidence, ReasonLowConfidence)
	}
	return Decision{Confidence: confidence}
}

// Escalated builds an escalating decision.
func Escalated(confidence float64, reason string) Decision {
	return Decision{Confidence: confidence, ShouldEscalate: true, Reason: &reason}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
