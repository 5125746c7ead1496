package collector

import (
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

// Clean 去掉标签、解码常见实体、压缩空白并去掉首尾空格。
// 各步骤循环执行直到结果不再变化，因此 Clean(Clean(s)) == Clean(s)。
func Clean(raw string) string {
	s := raw
	for {
		next := cleanOnce(s)
		if next == s {
			return next
		}
		s = next
	}
}

func cleanOnce(s string) string {
	s = entityReplacer.Replace(s)
	s = tagPattern.ReplaceAllString(s, "")
	// strings.Fields 按 unicode 空白切分，\n \r \t 都包含在内
	return strings.Join(strings.Fields(s), " ")
}

// Truncate 按 rune 数截断，不追加省略号
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return strings.TrimSpace(string(rs[:limit]))
}

// RuneLen 返回字符串的字符数
func RuneLen(s string) int {
	return len([]rune(s))
}
