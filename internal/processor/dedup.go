package processor

import (
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	PolicyFuzzy  = "fuzzy"
	PolicyPrefix = "prefix"

	DefaultThreshold = 0.7
	DefaultKeyLen    = 50
)

// Deduper 把报道同一事件的条目合并为一条，保留最先出现的那条
type Deduper interface {
	Name() string
	Dedupe(items []NewsItem) []NewsItem
}

// NewDeduper 按策略名构造去重器；阈值和前缀长度都可调
func NewDeduper(policy string, threshold float64, keyLen int) (Deduper, error) {
	switch strings.ToLower(strings.TrimSpace(policy)) {
	case "", PolicyFuzzy:
		if threshold <= 0 {
			threshold = DefaultThreshold
		}
		return &FuzzyDeduper{Threshold: threshold}, nil
	case PolicyPrefix:
		if keyLen <= 0 {
			keyLen = DefaultKeyLen
		}
		return &PrefixDeduper{KeyLen: keyLen}, nil
	default:
		return nil, eris.Errorf("unknown dedup policy %q", policy)
	}
}

// FuzzyDeduper 基于标题词集合的重合度去重。
// 每条新条目都与此前保留的所有条目比较，O(n²)，n 为每轮几十条。
type FuzzyDeduper struct {
	Threshold float64
}

func (f *FuzzyDeduper) Name() string {
	return PolicyFuzzy
}

func (f *FuzzyDeduper) Dedupe(items []NewsItem) []NewsItem {
	lower := cases.Lower(language.Und)
	out := make([]NewsItem, 0, len(items))
	kept := make([]map[string]struct{}, 0, len(items))

	for _, it := range items {
		tokens := tokenSet(lower.String(it.Title))
		dup := false
		for _, seen := range kept {
			if overlap(tokens, seen) > f.Threshold {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		out = append(out, it)
		kept = append(kept, tokens)
	}
	return out
}

// Similarity 返回两个标题的 |A∩B| / max(|A|,|B|)，与参数顺序无关
func Similarity(a, b string) float64 {
	lower := cases.Lower(language.Und)
	return overlap(tokenSet(lower.String(a)), tokenSet(lower.String(b)))
}

// tokenSet 去掉标点（保留字母、数字、下划线和空白）后按空白切词
func tokenSet(s string) map[string]struct{} {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)

	set := make(map[string]struct{})
	for _, w := range strings.Fields(stripped) {
		set[w] = struct{}{}
	}
	return set
}

func overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	common := 0
	for w := range small {
		if _, ok := large[w]; ok {
			common++
		}
	}
	return float64(common) / float64(len(large))
}

// PrefixDeduper 标题前 KeyLen 个字符转小写后完全相同即视为重复。
// 比模糊策略快，但只能识别开头一致的重复。
type PrefixDeduper struct {
	KeyLen int
}

func (p *PrefixDeduper) Name() string {
	return PolicyPrefix
}

func (p *PrefixDeduper) Dedupe(items []NewsItem) []NewsItem {
	lower := cases.Lower(language.Und)
	out := make([]NewsItem, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for _, it := range items {
		key := lower.String(prefix(it.Title, p.KeyLen))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}
	return out
}

func prefix(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
