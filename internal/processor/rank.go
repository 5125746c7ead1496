package processor

import "sort"

// DefaultMaxItems 是每轮最终保留的条数上限
const DefaultMaxItems = 25

// Ranker 按发布日期倒序做稳定排序，再截断到 Max 条
type Ranker struct {
	Max int
}

// Rank 不修改入参；日期相同的条目保持原有先后
func (r Ranker) Rank(items []NewsItem) []NewsItem {
	out := make([]NewsItem, len(items))
	copy(out, items)

	// 日期为 YYYY-MM-DD，字符串比较即时间顺序
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedDate > out[j].PublishedDate
	})

	limit := r.Max
	if limit <= 0 {
		limit = DefaultMaxItems
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
