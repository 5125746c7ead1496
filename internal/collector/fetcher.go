package collector

import "context"

// Origin 标记候选条目来自哪种适配器
type Origin string

const (
	OriginFeed Origin = "feed"
	OriginPage Origin = "page"
)

// Kind 决定一个来源使用哪种抓取策略
type Kind string

const (
	KindFeed Kind = "feed"
	KindPage Kind = "page"
)

// DateLayout 是 PublishedDate 的格式（自然日）
const DateLayout = "2006-01-02"

// Candidate 统一采集后的基础结构，去重之前的单条新闻线索
type Candidate struct {
	Title         string `json:"title"`
	Summary       string `json:"summary"`
	Source        string `json:"source"`
	PublishedDate string `json:"date"`
	URL           string `json:"url,omitempty"`
	Origin        Origin `json:"origin"`
}

// Source 描述一个已配置的数据源。Name 始终来自配置，不从内容推断。
type Source struct {
	Name      string
	Kind      Kind
	FeedURL   string
	PageURL   string
	Selectors []string
	// Domain 为空时使用 PageURL 的 host
	Domain string
	// Placeholder 是缺少摘要时使用的文案，为空则按适配器默认
	Placeholder string
	// FallbackToPage 为 true 时，RSS 无结果会在同一轮里改抓 PageURL
	FallbackToPage bool
}

// Fetcher 抽象每一种抓取策略。Fetch 不返回错误：
// 网络错误、解析失败、空 feed 都在内部记录日志并返回空切片。
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, sess *Session, src Source, limit int) []Candidate
}
