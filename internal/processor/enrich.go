package processor

import "fmt"

const defaultExpertNote = "Specialist review pending to confirm specific figures and claims"

// Enricher 为排序后的条目编号并附加固定模板的注解。
// 只引用来源名和日期，没有外部调用，也不会失败。
type Enricher struct {
	// ExpertNote 为空时使用默认文案
	ExpertNote string
}

func (e Enricher) Enrich(items []NewsItem) []NewsItem {
	note := e.ExpertNote
	if note == "" {
		note = defaultExpertNote
	}

	out := make([]NewsItem, len(items))
	for i, it := range items {
		it.ID = i + 1
		it.Verdict = VerdictUnverified
		it.Annotations = Annotations{
			Narrative:  fmt.Sprintf("Story reported by %s, collected automatically", it.Source),
			Context:    fmt.Sprintf("Published on %s", it.PublishedDate),
			ExpertNote: note,
			SummaryLines: []string{
				"📰 Source: " + it.Source,
				"📅 Date: " + it.PublishedDate,
				"🔍 Status: " + string(VerdictUnverified),
				"⚡ Type: live coverage",
			},
		}
		out[i] = it
	}
	return out
}
