package features

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComplexity(t *testing.T) {
	cfg := DefaultComplexityConfig()

	tests := []struct {
		name      string
		content   string
		termCount int
		want      float64
	}{
		{name: "blank", content: "  \n", termCount: 3, want: 0},
		{name: "short question", content: "배송 언제 오나요?", termCount: 0, want: 0.015 + 0.06},
		{name: "terms only contribute flat weight", content: "펌웨어", termCount: 1, want: 0.0045 + 0.4},
		{name: "full-width terminators count", content: "왜죠？정말！", termCount: 0, want: 0.3*6.0/200 + 0.3*2.0/5},
		{name: "saturated", content: strings.Repeat("버전. ", 100), termCount: 5, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Complexity(cfg, tt.content, tt.termCount), 1e-9)
		})
	}
}

func TestComplexity_ScaledTerms(t *testing.T) {
	cfg := DefaultComplexityConfig()
	cfg.TermScaling = TermScalingScaled

	one := Complexity(cfg, "펌웨어", 1)
	three := Complexity(cfg, "펌웨어", 3)
	many := Complexity(cfg, "펌웨어", 10)

	assert.InDelta(t, 0.0045+0.4/3, one, 1e-9)
	assert.InDelta(t, 0.0045+0.4, three, 1e-9)
	assert.Equal(t, three, many)
}

func TestComplexity_ZeroConfigUsesDefaults(t *testing.T) {
	content := "K10 PRO MAX 키보드 블루투스가 안 연결돼요"
	assert.Equal(t,
		Complexity(DefaultComplexityConfig(), content, 2),
		Complexity(ComplexityConfig{}, content, 2),
	)
}

func TestComplexity_Bounds(t *testing.T) {
	cfg := ComplexityConfig{LengthWeight: 2, TermWeight: 2, SentenceWeight: 2}
	assert.Equal(t, 1.0, Complexity(cfg, "업데이트 후 연결이 안 됩니다.", 2))
}
