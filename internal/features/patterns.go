package features

import (
	"regexp"
	"strings"
)

// Alias maps a surface form found in inquiry text to its canonical value.
type Alias struct {
	Match     string
	Canonical string
}

// AliasTable is a priority-ordered alias list. The first alias contained in
// the text wins, so longer and more specific aliases must come first.
type AliasTable []Alias

// First returns the canonical value of the first alias contained in text.
func (t AliasTable) First(text string) *string {
	lower := strings.ToLower(text)
	for _, a := range t {
		if strings.Contains(lower, strings.ToLower(a.Match)) {
			v := a.Canonical
			return &v
		}
	}
	return nil
}

// Patterns holds the fixed recognition tables used by the extractor.
type Patterns struct {
	ProductCodes   []*regexp.Regexp
	Colors         AliasTable
	Variants       AliasTable
	TechnicalTerms []string
}

// DefaultPatterns returns the recognition tables for the supported brands.
func DefaultPatterns() *Patterns {
	return &Patterns{
		ProductCodes:   buildProductCodePatterns(),
		Colors:         buildColorAliases(),
		Variants:       buildSwitchAliases(),
		TechnicalTerms: buildTechnicalTerms(),
	}
}

func buildProductCodePatterns() []*regexp.Regexp {
	exprs := []string{
		`\bK\d{1,2}`, // K10, K8, K5
		`\bQ\d{1,2}`, // Q10, Q13
		`\bV\d{1,2}`, // V10, V6
		`\bB\d{1,2}`, // B6, B1
		`\bC\d{1,2}`, // C2
		`\bM\d{1,2}`, // M6 mouse
		`PRO\s*MAX`,
		`PRO\s*SE\d?`,
		`\bSE\d`,
		`ZMK`,
	}
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

func buildColorAliases() AliasTable {
	return AliasTable{
		{"쉘 화이트", "쉘화이트"},
		{"쉘화이트", "쉘화이트"},
		{"카본 블랙", "카본블랙"},
		{"카본블랙", "카본블랙"},
		{"프로스트 블랙", "프로스트블랙"},
		{"프로스트블랙", "프로스트블랙"},
		{"스페이스 그레이", "스페이스그레이"},
		{"스페이스그레이", "스페이스그레이"},
		{"네이비 블루", "네이비블루"},
		{"네이비블루", "네이비블루"},
		{"민트 그린", "민트그린"},
		{"민트그린", "민트그린"},
		{"화이트", "화이트"},
		{"블랙", "블랙"},
		{"그레이", "그레이"},
		{"실버", "실버"},
		{"블루", "블루"},
		{"그린", "그린"},
		{"핑크", "핑크"},
		{"white", "화이트"},
		{"black", "블랙"},
		{"grey", "그레이"},
		{"gray", "그레이"},
	}
}

func buildSwitchAliases() AliasTable {
	return AliasTable{
		{"저소음 적축", "저소음적축"},
		{"저소음적축", "저소음적축"},
		{"바나나축", "바나나축"},
		{"바나나 스위치", "바나나축"},
		{"실버축", "실버축"},
		{"적축", "적축"},
		{"갈축", "갈축"},
		{"청축", "청축"},
		{"흑축", "흑축"},
		{"황축", "황축"},
		{"무접점", "무접점"},
		{"banana switch", "바나나축"},
		{"red switch", "적축"},
		{"brown switch", "갈축"},
		{"blue switch", "청축"},
	}
}

func buildTechnicalTerms() []string {
	return []string{
		"펌웨어", "firmware",
		"드라이버", "driver",
		"호환", "지원",
		"bios", "바이오스",
		"업데이트", "update",
		"버전", "version",
		"블루투스", "bluetooth",
		"연결", "끊김",
		"인식", "페어링", "pairing",
		"무선",
		"qmk", "매크로", "macro",
	}
}
