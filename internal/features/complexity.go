package features

import (
	"math"
	"strings"
	"unicode/utf8"
)

// TermScaling selects how the technical-term signal is normalized.
type TermScaling string

const (
	// TermScalingFlat contributes the full term weight once any term is found.
	TermScalingFlat TermScaling = "flat"
	// TermScalingScaled grows linearly up to the saturation count.
	TermScalingScaled TermScaling = "scaled"
)

// ComplexityConfig holds the complexity heuristic weights and saturation points.
type ComplexityConfig struct {
	LengthWeight       float64     `yaml:"length_weight"`
	LengthSaturation   int         `yaml:"length_saturation"` // characters
	TermWeight         float64     `yaml:"term_weight"`
	TermSaturation     int         `yaml:"term_saturation"` // distinct terms
	TermScaling        TermScaling `yaml:"term_scaling"`
	SentenceWeight     float64     `yaml:"sentence_weight"`
	SentenceSaturation int         `yaml:"sentence_saturation"` // terminators
}

// DefaultComplexityConfig returns the default weights (0.3 / 0.4 / 0.3).
func DefaultComplexityConfig() ComplexityConfig {
	return ComplexityConfig{
		LengthWeight:       0.3,
		LengthSaturation:   200,
		TermWeight:         0.4,
		TermSaturation:     3,
		TermScaling:        TermScalingFlat,
		SentenceWeight:     0.3,
		SentenceSaturation: 5,
	}
}

func (c ComplexityConfig) withDefaults() ComplexityConfig {
	d := DefaultComplexityConfig()
	if c.LengthSaturation <= 0 {
		c.LengthSaturation = d.LengthSaturation
	}
	if c.TermSaturation <= 0 {
		c.TermSaturation = d.TermSaturation
	}
	if c.SentenceSaturation <= 0 {
		c.SentenceSaturation = d.SentenceSaturation
	}
	if c.TermScaling == "" {
		c.TermScaling = d.TermScaling
	}
	if c.LengthWeight == 0 && c.TermWeight == 0 && c.SentenceWeight == 0 {
		c.LengthWeight, c.TermWeight, c.SentenceWeight = d.LengthWeight, d.TermWeight, d.SentenceWeight
	}
	return c
}

// sentenceTerminators counts ASCII and full-width terminators.
const sentenceTerminators = ".?!？！。"

// Complexity scores how specialised an inquiry is from its content and the
// technical terms found in it. The result is always in [0, 1].
func Complexity(cfg ComplexityConfig, content string, termCount int) float64 {
	if strings.TrimSpace(content) == "" {
		return 0
	}
	cfg = cfg.withDefaults()

	length := ratio(utf8.RuneCountInString(content), cfg.LengthSaturation)

	var terms float64
	if termCount > 0 {
		if cfg.TermScaling == TermScalingScaled {
			terms = ratio(termCount, cfg.TermSaturation)
		} else {
			terms = 1
		}
	}

	terminators := 0
	for _, r := range content {
		if strings.ContainsRune(sentenceTerminators, r) {
			terminators++
		}
	}
	sentences := ratio(terminators, cfg.SentenceSaturation)

	score := cfg.LengthWeight*length + cfg.TermWeight*terms + cfg.SentenceWeight*sentences
	return clamp01(score)
}

func ratio(n, saturation int) float64 {
	if n <= 0 || saturation <= 0 {
		return 0
	}
	return math.Min(float64(n)/float64(saturation), 1)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
