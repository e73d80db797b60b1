package features

import (
	"context"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// POS is a coarse universal part-of-speech tag.
type POS string

const (
	POSNoun      POS = "NOUN"
	POSPropNoun  POS = "PROPN"
	POSVerb      POS = "VERB"
	POSAdjective POS = "ADJ"
	POSAdverb    POS = "ADV"
	POSPronoun   POS = "PRON"
	POSNumber    POS = "NUM"
	POSOther     POS = "X"
)

// Token is one tagged token.
type Token struct {
	Text string `json:"text"`
	POS  POS    `json:"pos"`
}

// ErrTaggerUnavailable indicates the linguistic tagger could not be reached.
var ErrTaggerUnavailable = errors.New("tagger unavailable")

// Tagger assigns part-of-speech tags to natural-language text.
type Tagger interface {
	Tag(ctx context.Context, text string) ([]Token, error)
}

// RuleTagger is a deterministic, dependency-free tagger for Korean/English
// support inquiries. It strips common postpositional particles, recognises
// predicate endings and treats Latin or alphanumeric tokens as proper nouns.
// It is the fallback whenever a model-backed tagger is unavailable.
type RuleTagger struct {
	particles  []string
	endings    []string
	stopwords  map[string]POS
	minStemLen int
}

// NewRuleTagger creates a rule tagger with the built-in Korean tables.
func NewRuleTagger() *RuleTagger {
	return &RuleTagger{
		// longest first so "에서는" is stripped before "는"
		particles: []string{
			"에서는", "으로는", "에서", "으로", "에게", "한테", "까지", "부터", "처럼", "보다", "이랑",
			"은", "는", "이", "가", "을", "를", "에", "의", "도", "로", "와", "과", "랑", "만",
		},
		endings: []string{
			"니다", "세요", "해요", "돼요", "되요", "나요", "까요", "어요", "아요", "네요", "데요",
			"요", "다", "까", "죠", "고", "서",
		},
		stopwords: map[string]POS{
			"안": POSAdverb, "못": POSAdverb, "좀": POSAdverb, "너무": POSAdverb, "정말": POSAdverb,
			"언제": POSAdverb, "어떻게": POSAdverb, "왜": POSAdverb, "혹시": POSAdverb, "다시": POSAdverb,
			"계속": POSAdverb, "아직": POSAdverb, "이미": POSAdverb, "그리고": POSAdverb, "그런데": POSAdverb,
			"근데": POSAdverb, "또": POSAdverb, "꼭": POSAdverb, "바로": POSAdverb, "많이": POSAdverb,
			"제가": POSPronoun, "저는": POSPronoun, "저": POSPronoun, "이거": POSPronoun, "그거": POSPronoun,
			"이것": POSPronoun, "그것": POSPronoun, "여기": POSPronoun, "거기": POSPronoun,
			"the": POSOther, "a": POSOther, "an": POSOther, "is": POSOther, "are": POSOther,
			"and": POSOther, "or": POSOther, "to": POSOther, "of": POSOther, "it": POSPronoun,
		},
		minStemLen: 2,
	}
}

// Tag never fails.
func (t *RuleTagger) Tag(_ context.Context, text string) ([]Token, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '-') || unicode.IsSymbol(r)
	})

	tokens := make([]Token, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if f == "" {
			continue
		}
		tokens = append(tokens, t.tagWord(f))
	}
	return tokens, nil
}

func (t *RuleTagger) tagWord(word string) Token {
	if pos, ok := t.stopwords[strings.ToLower(word)]; ok {
		return Token{Text: word, POS: pos}
	}

	var hasLatin, hasDigit, hasHangul, allUpper = false, false, false, true
	for _, r := range word {
		switch {
		case unicode.Is(unicode.Hangul, r):
			hasHangul = true
		case r < utf8.RuneSelf && unicode.IsLetter(r):
			hasLatin = true
			if !unicode.IsUpper(r) {
				allUpper = false
			}
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	switch {
	case !hasLatin && !hasHangul && hasDigit:
		return Token{Text: word, POS: POSNumber}
	case hasLatin && !hasHangul:
		if hasDigit || allUpper {
			return Token{Text: word, POS: POSPropNoun}
		}
		return Token{Text: word, POS: POSNoun}
	case hasHangul:
		if t.isPredicate(word) {
			return Token{Text: word, POS: POSVerb}
		}
		stem := t.stripParticle(word)
		if hasLatin || hasDigit {
			return Token{Text: stem, POS: POSPropNoun}
		}
		return Token{Text: stem, POS: POSNoun}
	}
	return Token{Text: word, POS: POSOther}
}

func (t *RuleTagger) isPredicate(word string) bool {
	if utf8.RuneCountInString(word) < 2 {
		return false
	}
	for _, e := range t.endings {
		if strings.HasSuffix(word, e) {
			return true
		}
	}
	return false
}

func (t *RuleTagger) stripParticle(word string) string {
	for _, p := range t.particles {
		if !strings.HasSuffix(word, p) {
			continue
		}
		stem := strings.TrimSuffix(word, p)
		if utf8.RuneCountInString(stem) >= t.minStemLen {
			return stem
		}
	}
	return word
}

var _ Tagger = (*RuleTagger)(nil)
